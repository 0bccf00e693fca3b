// Package models provides data model definitions for MemoStream.
package models

import (
	"time"

	"github.com/kimhsiao/memostream/internal/recordid"
)

// Record is a single user-created entry in the synchronized view.
//
// A record is born pending with a temporary identifier; once it round-trips
// through the remote store it reappears as a fresh confirmed record carrying
// the remote-assigned identifier. Records are never transitioned in place.
type Record struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Pending   bool      `json:"pending"`
	Confirmed bool      `json:"confirmed"`
}

// NewPendingRecord creates a locally originated record awaiting sync.
func NewPendingRecord(content string) Record {
	return Record{
		ID:        recordid.NewTemporary(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Pending:   true,
	}
}

// NewConfirmedRecord builds a record from a row observed in the remote store.
func NewConfirmedRecord(id, content string, createdAt time.Time) Record {
	return Record{
		ID:        id,
		Content:   content,
		CreatedAt: createdAt,
		Confirmed: true,
	}
}

// Valid reports whether the record satisfies the store invariants: a
// non-empty identifier, non-empty content, and mutually exclusive flags.
func (r Record) Valid() bool {
	if r.ID == "" || r.Content == "" {
		return false
	}
	return !(r.Pending && r.Confirmed)
}
