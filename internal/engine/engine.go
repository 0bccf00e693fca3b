// Package engine wires the sync core together: the pending write queue, the
// debounced flush scheduler, the snapshot reconciler, the realtime merge and
// the identity gate, behind the operation surface the presentation layer
// consumes.
package engine

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/memostream/internal/errors"
	"github.com/kimhsiao/memostream/internal/identity"
	"github.com/kimhsiao/memostream/internal/localstore"
	"github.com/kimhsiao/memostream/internal/logging"
	"github.com/kimhsiao/memostream/internal/models"
	"github.com/kimhsiao/memostream/internal/queue"
	"github.com/kimhsiao/memostream/internal/remote"
	"github.com/kimhsiao/memostream/internal/scheduler"
	"github.com/kimhsiao/memostream/internal/store"
)

const mirrorTimeout = 5 * time.Second

// Options tunes the engine.
type Options struct {
	// Debounce is the trailing delay between the last queue mutation and the
	// flush it triggers. Zero selects the scheduler default.
	Debounce time.Duration
}

// Engine is the synchronization core. All remote-facing activity (flushing,
// snapshot reconciliation, realtime merge) runs only while an identity is
// present; local capture works regardless.
type Engine struct {
	records  *store.RecordStore
	queue    *queue.PendingQueue
	remote   remote.Connector
	local    localstore.Store
	provider identity.Provider
	sched    *scheduler.Scheduler

	mu         sync.Mutex
	sub        remote.Subscription
	unsubAuth  func()
	loading    bool
	started    bool
	closed     bool
	lifetime   context.Context
	cancelLife context.CancelFunc

	wg sync.WaitGroup
}

// New creates an engine over the given collaborators. Call Start before use.
func New(local localstore.Store, conn remote.Connector, provider identity.Provider, opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		records:    store.New(),
		queue:      queue.New(local, localstore.KeyQueue),
		remote:     conn,
		local:      local,
		provider:   provider,
		loading:    true,
		lifetime:   ctx,
		cancelLife: cancel,
	}
	e.sched = scheduler.New(e, opts.Debounce)
	return e
}

// Records exposes the underlying record store, primarily so the presentation
// layer can register a change hook.
func (e *Engine) Records() *store.RecordStore {
	return e.records
}

// Start restores local state and begins reacting to the identity signal.
// The restored view is available before any network access succeeds.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		return errors.New(errors.ErrInternal, "engine already started")
	}
	e.started = true
	e.mu.Unlock()

	e.restoreSnapshot(ctx)

	if err := e.queue.Load(ctx); err != nil {
		// In-memory state starts empty; the next mutation rewrites the mirror.
		logging.ErrorWithCode("failed to restore pending queue",
			string(errors.ErrPersistence), err)
	}
	for _, rec := range e.queue.SnapshotItems() {
		e.records.UpsertPending(rec)
	}

	e.unsubAuth = e.provider.OnChange(e.onIdentityChange)

	if _, present := e.provider.Current(); present {
		e.activate()
	} else {
		e.setLoading(false)
	}

	logging.Info("sync engine started", map[string]interface{}{
		"restored_pending": e.queue.Len(),
	})
	return nil
}

// Close tears the engine down: the realtime subscription is dropped, the
// scheduler stops, and no events are processed afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	unsub := e.unsubAuth
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if sub != nil {
		sub.Close()
	}
	e.sched.Stop()
	e.cancelLife()
	e.wg.Wait()
	return nil
}

// Submit validates and captures a new record. The record is visible in the
// view immediately; durable mirroring and flush scheduling happen in the
// background. The only error surfaced is validation.
func (e *Engine) Submit(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New(errors.ErrValidation, "content must not be empty")
	}

	rec := models.NewPendingRecord(content)
	e.records.UpsertPending(rec)
	e.queue.Enqueue(rec)

	// The mirror must settle before the scheduler may consider this mutation,
	// so a crash between enqueue and persistence cannot lose a scheduled-but-
	// unmirrored queue. Mirror failures are swallowed: in-memory state stays
	// authoritative and the next mutation retries.
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		mctx, cancel := context.WithTimeout(e.lifetime, mirrorTimeout)
		defer cancel()
		if err := e.queue.Mirror(mctx); err != nil {
			logging.ErrorWithCode("queue mirror failed",
				string(errors.ErrPersistence), err)
		}
		e.sched.NotifyMutation()
	}()

	return nil
}

// Refresh performs a full snapshot reconciliation: the confirmed subset of
// the view is replaced wholesale by an ordered fetch, pending records are
// preserved in front, and the result is mirrored locally. On failure the
// view is left untouched and no retry is scheduled.
func (e *Engine) Refresh(ctx context.Context) error {
	rows, err := e.remote.SelectAll(ctx)
	if err != nil {
		logging.ErrorWithCode("snapshot fetch failed",
			string(errors.ErrRemoteFetch), err)
		return errors.Wrap(errors.ErrRemoteFetch, "snapshot fetch failed", err)
	}

	confirmed := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		confirmed = append(confirmed, models.NewConfirmedRecord(row.ID, row.Content, row.CreatedAt))
	}
	e.records.ReplaceConfirmed(confirmed)
	e.mirrorConfirmed(ctx)

	logging.Info("snapshot reconciled", map[string]interface{}{"rows": len(rows)})
	return nil
}

// View returns the ordered record list: pending first, then confirmed.
func (e *Engine) View() []models.Record {
	return e.records.Snapshot()
}

// Loading reports whether the engine is still performing its initial local
// restore and first reconciliation attempt.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// PendingCount implements scheduler.Flusher.
func (e *Engine) PendingCount() int {
	return e.queue.Len()
}

// Flush implements scheduler.Flusher: it submits the entire current queue as
// one batch. On success every record currently flagged pending is purged
// from the view, including records enqueued after the batch snapshot; they
// reappear once the remote store echoes them back through the snapshot
// reconciler or the realtime channel. On failure queue and view are left
// unchanged.
func (e *Engine) Flush(ctx context.Context) error {
	batch := e.queue.SnapshotItems()
	if len(batch) == 0 {
		return nil
	}

	rows := make([]remote.NewRecord, 0, len(batch))
	for _, rec := range batch {
		rows = append(rows, remote.NewRecord{
			Content:   rec.Content,
			CreatedAt: rec.CreatedAt,
		})
	}

	inserted, err := e.remote.Insert(ctx, rows)
	if err != nil {
		return errors.Wrap(errors.ErrRemoteInsert, "batched insert failed", err)
	}

	purged := e.records.PurgeAllPending()
	if err := e.queue.Clear(ctx); err != nil {
		logging.ErrorWithCode("failed to mirror cleared queue",
			string(errors.ErrPersistence), err)
	}

	logging.Info("flush succeeded", map[string]interface{}{
		"batch":    len(batch),
		"inserted": len(inserted),
		"purged":   purged,
	})
	return nil
}

// SignOut delegates to the identity provider; teardown happens through the
// resulting absent transition.
func (e *Engine) SignOut() {
	e.provider.SignOut()
}

func (e *Engine) onIdentityChange(_ identity.Identity, present bool) {
	if present {
		e.activate()
		return
	}
	e.deactivate()
}

// activate brings up the remote-facing half: initial reconciliation, the
// realtime subscription, and the flush scheduler.
func (e *Engine) activate() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	alreadySubscribed := e.sub != nil
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = e.Refresh(e.lifetime)
		e.setLoading(false)
	}()

	if !alreadySubscribed {
		sub, err := e.remote.Subscribe(e.lifetime, e.onRealtimeInsert)
		if err != nil {
			logging.ErrorWithCode("realtime subscription failed",
				string(errors.ErrSubscribeFailed), err)
		} else {
			e.mu.Lock()
			if e.closed {
				e.mu.Unlock()
				sub.Close()
			} else {
				e.sub = sub
				e.mu.Unlock()
			}
		}
	}

	e.sched.Activate()
}

// deactivate tears the remote-facing half down on identity loss. Pending
// records stay queued and displayed; they flush after the next sign-in.
func (e *Engine) deactivate() {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	e.sched.Deactivate()
}

// onRealtimeInsert folds one push-delivered row into the view, deduplicating
// by exact identifier. Duplicate events are discarded, not errors.
func (e *Engine) onRealtimeInsert(row remote.Row) {
	rec := models.NewConfirmedRecord(row.ID, row.Content, row.CreatedAt)
	if !e.records.MergeRealtime(rec) {
		return
	}
	e.mirrorConfirmed(e.lifetime)
}

// mirrorConfirmed writes the confirmed subset to the local store as the
// last-known-good snapshot. Failures degrade to a log line.
func (e *Engine) mirrorConfirmed(ctx context.Context) {
	data, err := json.Marshal(e.records.Confirmed())
	if err != nil {
		logging.Error("failed to encode confirmed snapshot", err)
		return
	}

	mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := e.local.Set(mctx, localstore.KeySnapshot, data); err != nil {
		logging.ErrorWithCode("failed to mirror confirmed snapshot",
			string(errors.ErrPersistence), err)
	}
}

// restoreSnapshot loads the last-known-good confirmed view from the local
// store so the UI is non-empty before any network access.
func (e *Engine) restoreSnapshot(ctx context.Context) {
	data, ok, err := e.local.Get(ctx, localstore.KeySnapshot)
	if err != nil {
		logging.ErrorWithCode("failed to read confirmed snapshot",
			string(errors.ErrPersistence), err)
		return
	}
	if !ok {
		return
	}

	var rows []models.Record
	if err := json.Unmarshal(data, &rows); err != nil {
		logging.ErrorWithCode("confirmed snapshot is corrupt",
			string(errors.ErrPersistence), err)
		return
	}
	e.records.ReplaceConfirmed(rows)
}

func (e *Engine) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}
