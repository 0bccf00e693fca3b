// Package remote defines the connector to the authoritative remote store.
//
// The remote store is an append-only table reachable through three calls: a
// batched insert returning the inserted rows with server-assigned
// identifiers, a full scan ordered by creation time, and a push channel
// emitting insert events for the table.
package remote

import (
	"context"
	"time"
)

// NewRecord is the payload submitted for insertion. Local bookkeeping
// (temporary identifier, pending/confirmed flags) is stripped before
// submission; the remote store assigns the permanent identifier.
type NewRecord struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Row is a record as it exists in the remote store.
type Row struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription is a handle to an active push channel.
type Subscription interface {
	Close() error
}

// Connector is the remote store contract the sync core depends on.
type Connector interface {
	// Insert submits rows as one batch and returns the inserted rows with
	// their permanent identifiers.
	Insert(ctx context.Context, rows []NewRecord) ([]Row, error)

	// SelectAll returns every row, newest first by creation time.
	SelectAll(ctx context.Context) ([]Row, error)

	// Subscribe delivers each newly inserted row to fn until the returned
	// subscription is closed. Delivery order from the channel is the only
	// ordering guaranteed.
	Subscribe(ctx context.Context, fn func(Row)) (Subscription, error)
}
