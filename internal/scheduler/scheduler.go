// Package scheduler provides the debounced flush scheduler for the sync core.
//
// The scheduler is an explicit state machine. Queue mutations arm a trailing
// debounce timer; on expiry the entire pending queue is flushed as one batch.
// A single-flight guard keeps at most one flush outstanding, and a failed
// flush is retried only when a later mutation re-arms the timer.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/memostream/internal/errors"
	"github.com/kimhsiao/memostream/internal/logging"
)

// State is the scheduler's position in the flush cycle.
type State string

const (
	StateIdle         State = "idle"
	StatePendingFlush State = "pending_flush" // debounce timer armed
	StateFlushing     State = "flushing"      // batch submission in flight
)

// DefaultDebounce is the trailing debounce delay between the last queue
// mutation and the flush it triggers.
const DefaultDebounce = 500 * time.Millisecond

// Flusher is the engine-side contract the scheduler drives.
type Flusher interface {
	// PendingCount reports how many records await a flush.
	PendingCount() int

	// Flush submits the entire current queue as one batch. On success the
	// flusher clears the queue and purges pending records from the view; on
	// failure it leaves both untouched.
	Flush(ctx context.Context) error
}

// Scheduler debounces queue mutations into single-flight flushes.
type Scheduler struct {
	flusher  Flusher
	debounce time.Duration

	mu     sync.Mutex
	state  State
	timer  *time.Timer
	active bool
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped scheduler. It stays dormant until Activate is called
// by the identity gate.
func New(flusher Flusher, debounce time.Duration) *Scheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		flusher:  flusher,
		debounce: debounce,
		state:    StateIdle,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NotifyMutation records a settled queue mutation. In Idle or PendingFlush it
// cancels any armed timer and re-arms the debounce; while Flushing the
// mutation is accepted but covered by the next cycle, which starts only when
// a later mutation re-arms the timer.
func (s *Scheduler) NotifyMutation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.closed || s.state == StateFlushing {
		return
	}
	s.armLocked()
}

// Activate enables scheduling. A non-empty queue at activation time counts
// as a mutation, so records accumulated while inactive get flushed.
func (s *Scheduler) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.active {
		return
	}
	s.active = true
	if s.state != StateFlushing && s.flusher.PendingCount() > 0 {
		s.armLocked()
	}
	logging.Info("sync scheduler activated")
}

// Deactivate disables scheduling and cancels any armed timer. An in-flight
// flush is not interrupted.
func (s *Scheduler) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.active = false
	s.stopTimerLocked()
	if s.state == StatePendingFlush {
		s.state = StateIdle
	}
	logging.Info("sync scheduler deactivated")
}

// Stop shuts the scheduler down and waits for any in-flight flush.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.active = false
	s.stopTimerLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) armLocked() {
	s.stopTimerLocked()
	s.state = StatePendingFlush
	s.timer = time.AfterFunc(s.debounce, s.onTimer)
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) onTimer() {
	s.mu.Lock()
	if !s.active || s.closed || s.state != StatePendingFlush {
		s.mu.Unlock()
		return
	}
	if s.flusher.PendingCount() == 0 {
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	s.state = StateFlushing
	s.wg.Add(1)
	s.mu.Unlock()

	s.runFlush()
}

func (s *Scheduler) runFlush() {
	defer s.wg.Done()

	err := s.flusher.Flush(s.ctx)

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	if err != nil {
		// No retry timer: the next queue mutation re-arms the debounce.
		logging.ErrorWithCode("flush failed, awaiting next mutation",
			string(errors.ErrRemoteInsert), err)
		return
	}
	logging.Debug("flush cycle completed")
}
