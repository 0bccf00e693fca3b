// Package queue provides the pending write queue for locally created records.
//
// The queue is FIFO and durably mirrored to the local persistent store after
// every settled mutation. Each mirror write carries the full queue content,
// not a delta, so interleaved writes converge on the last-issued value.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kimhsiao/memostream/internal/errors"
	"github.com/kimhsiao/memostream/internal/localstore"
	"github.com/kimhsiao/memostream/internal/logging"
	"github.com/kimhsiao/memostream/internal/models"
)

const mirrorTimeout = 5 * time.Second

// PendingQueue holds records awaiting a flush to the remote store.
type PendingQueue struct {
	mu    sync.Mutex
	items []models.Record

	store localstore.Store
	key   string
}

// New creates a queue mirrored under the given key of the local store.
func New(store localstore.Store, key string) *PendingQueue {
	if key == "" {
		key = localstore.KeyQueue
	}
	return &PendingQueue{store: store, key: key}
}

// Load restores the queue from the local store. Called once at startup,
// before any network access, so unflushed records survive a restart.
func (q *PendingQueue) Load(ctx context.Context) error {
	data, ok, err := q.store.Get(ctx, q.key)
	if err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to load queue mirror", err)
	}
	if !ok {
		return nil
	}

	var items []models.Record
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(errors.ErrPersistence, "queue mirror is corrupt", err)
	}

	q.mu.Lock()
	q.items = items
	q.mu.Unlock()

	logging.Info("pending queue restored", map[string]interface{}{"items": len(items)})
	return nil
}

// Enqueue appends a record, preserving FIFO order. The durable mirror is not
// written here; callers mirror asynchronously via Mirror once the in-memory
// mutation is visible.
func (q *PendingQueue) Enqueue(rec models.Record) {
	q.mu.Lock()
	q.items = append(q.items, rec)
	n := len(q.items)
	q.mu.Unlock()

	logging.Debug("record enqueued", map[string]interface{}{
		"record_id": rec.ID,
		"depth":     n,
	})
}

// Mirror writes the full current queue content to the local store. Failures
// are returned but the in-memory queue stays authoritative; the next settled
// mutation retries the mirror.
func (q *PendingQueue) Mirror(ctx context.Context) error {
	q.mu.Lock()
	snapshot := append([]models.Record(nil), q.items...)
	q.mu.Unlock()

	return q.write(ctx, snapshot)
}

// Clear empties the queue and mirrors the empty state.
func (q *PendingQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()

	return q.write(ctx, []models.Record{})
}

func (q *PendingQueue) write(ctx context.Context, items []models.Record) error {
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to encode queue", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()

	if err := q.store.Set(ctx, q.key, data); err != nil {
		return errors.Wrap(errors.ErrPersistence, "failed to mirror queue", err)
	}
	return nil
}

// SnapshotItems returns a copy of the queue in FIFO order.
func (q *PendingQueue) SnapshotItems() []models.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.Record(nil), q.items...)
}

// Len returns the number of queued records.
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
