// Package store holds the in-memory ordered view of all known records.
//
// The view merges three sources: optimistic pending inserts, full confirmed
// snapshots from the remote store, and incremental realtime events. Pending
// records are always shown ahead of confirmed ones; confirmed ordering is
// whatever the snapshot or realtime arrival order already provides.
package store

import (
	"sync"

	"github.com/kimhsiao/memostream/internal/logging"
	"github.com/kimhsiao/memostream/internal/models"
)

// RecordStore is the authoritative in-memory record list.
type RecordStore struct {
	mu        sync.RWMutex
	pending   []models.Record
	confirmed []models.Record

	onChange func()
}

// New creates an empty RecordStore.
func New() *RecordStore {
	return &RecordStore{}
}

// SetOnChange registers a hook invoked after every mutation that altered the
// view. The hook runs outside the store lock.
func (s *RecordStore) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *RecordStore) notify() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// UpsertPending prepends a pending record so it is visible immediately,
// newest first. A record with the same identifier replaces the old entry in
// place instead.
func (s *RecordStore) UpsertPending(rec models.Record) {
	rec.Pending = true
	rec.Confirmed = false

	s.mu.Lock()
	replaced := false
	for i := range s.pending {
		if s.pending[i].ID == rec.ID {
			s.pending[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		s.pending = append([]models.Record{rec}, s.pending...)
	}
	s.mu.Unlock()

	s.notify()
}

// PurgeAllPending removes every pending record from the view, returning how
// many were removed. This runs on flush success: removed entries reappear as
// confirmed records once the remote store echoes them back.
func (s *RecordStore) PurgeAllPending() int {
	s.mu.Lock()
	n := len(s.pending)
	s.pending = nil
	s.mu.Unlock()

	if n > 0 {
		s.notify()
	}
	return n
}

// ReplaceConfirmed swaps the confirmed subset wholesale for rows from a
// snapshot fetch, preserving pending records in front of them.
func (s *RecordStore) ReplaceConfirmed(rows []models.Record) {
	confirmed := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		r.Pending = false
		r.Confirmed = true
		confirmed = append(confirmed, r)
	}

	s.mu.Lock()
	s.confirmed = confirmed
	s.mu.Unlock()

	s.notify()
}

// MergeRealtime folds a push-delivered row into the view. Events for
// identifiers already present anywhere in the view are discarded; dedup is
// by exact identifier only.
func (s *RecordStore) MergeRealtime(rec models.Record) bool {
	rec.Pending = false
	rec.Confirmed = true

	s.mu.Lock()
	if s.containsLocked(rec.ID) {
		s.mu.Unlock()
		logging.Debug("duplicate realtime event discarded",
			map[string]interface{}{"record_id": rec.ID})
		return false
	}
	s.confirmed = append([]models.Record{rec}, s.confirmed...)
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *RecordStore) containsLocked(id string) bool {
	for i := range s.confirmed {
		if s.confirmed[i].ID == id {
			return true
		}
	}
	for i := range s.pending {
		if s.pending[i].ID == id {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the ordered view: pending first, then confirmed.
func (s *RecordStore) Snapshot() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Record, 0, len(s.pending)+len(s.confirmed))
	out = append(out, s.pending...)
	out = append(out, s.confirmed...)
	return out
}

// Confirmed returns a copy of the confirmed subset, used for mirroring the
// last-known-good snapshot to the local store.
func (s *RecordStore) Confirmed() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Record(nil), s.confirmed...)
}

// PendingCount returns the number of pending records in the view.
func (s *RecordStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}
