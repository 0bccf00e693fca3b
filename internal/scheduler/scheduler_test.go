package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeFlusher counts flush calls and can fail or block on demand.
type fakeFlusher struct {
	mu      sync.Mutex
	pending int
	flushes int
	err     error
	block   chan struct{} // when set, Flush waits for a receive
}

func (f *fakeFlusher) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeFlusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	f.flushes++
	block := f.block
	err := f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.pending = 0
	f.mu.Unlock()
	return nil
}

func (f *fakeFlusher) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

const testDebounce = 20 * time.Millisecond

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestDebounceCoalescing verifies rapid mutations within the debounce window
// trigger exactly one flush.
func TestDebounceCoalescing(t *testing.T) {
	f := &fakeFlusher{pending: 10}
	s := New(f, testDebounce)
	defer s.Stop()
	s.Activate()

	for i := 0; i < 10; i++ {
		s.NotifyMutation()
	}

	waitFor(t, func() bool { return f.flushCount() == 1 }, "expected one flush")

	// No further flushes without a new mutation.
	time.Sleep(4 * testDebounce)
	if got := f.flushCount(); got != 1 {
		t.Errorf("flush count = %d, want 1", got)
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

// TestInactiveIgnoresMutations verifies nothing fires before Activate.
func TestInactiveIgnoresMutations(t *testing.T) {
	f := &fakeFlusher{pending: 1}
	s := New(f, testDebounce)
	defer s.Stop()

	s.NotifyMutation()
	time.Sleep(4 * testDebounce)

	if f.flushCount() != 0 {
		t.Error("inactive scheduler must not flush")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

// TestActivateWithBacklogArms verifies activation with a non-empty queue
// schedules a flush without a new mutation.
func TestActivateWithBacklogArms(t *testing.T) {
	f := &fakeFlusher{pending: 3}
	s := New(f, testDebounce)
	defer s.Stop()

	s.Activate()
	waitFor(t, func() bool { return f.flushCount() == 1 }, "expected backlog flush")
}

// TestEmptyQueueAtExpiry verifies the timer firing with nothing pending
// returns to Idle without calling Flush.
func TestEmptyQueueAtExpiry(t *testing.T) {
	f := &fakeFlusher{pending: 0}
	s := New(f, testDebounce)
	defer s.Stop()
	s.Activate()

	s.NotifyMutation()
	time.Sleep(4 * testDebounce)

	if f.flushCount() != 0 {
		t.Error("empty queue must not be flushed")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

// TestFailureDoesNotRetry verifies a failed flush transitions to Idle and is
// retried only by the next mutation.
func TestFailureDoesNotRetry(t *testing.T) {
	f := &fakeFlusher{pending: 1, err: errors.New("remote down")}
	s := New(f, testDebounce)
	defer s.Stop()
	s.Activate()

	s.NotifyMutation()
	waitFor(t, func() bool { return f.flushCount() == 1 }, "expected first attempt")

	time.Sleep(4 * testDebounce)
	if f.flushCount() != 1 {
		t.Fatal("failed flush must not self-retry")
	}

	// The next mutation re-arms and retries.
	f.mu.Lock()
	f.err = nil
	f.mu.Unlock()
	s.NotifyMutation()
	waitFor(t, func() bool { return f.flushCount() == 2 }, "expected retry on mutation")
}

// TestMutationDuringFlushDoesNotArm verifies mutations while Flushing are
// accepted but only a post-completion mutation starts the next cycle.
func TestMutationDuringFlushDoesNotArm(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFlusher{pending: 1, block: block}
	s := New(f, testDebounce)
	defer s.Stop()
	s.Activate()

	s.NotifyMutation()
	waitFor(t, func() bool { return s.State() == StateFlushing }, "expected in-flight flush")

	// Mutation while in flight: accepted, no timer armed.
	s.NotifyMutation()
	close(block)

	waitFor(t, func() bool { return s.State() == StateIdle }, "expected flush to finish")
	time.Sleep(4 * testDebounce)
	if got := f.flushCount(); got != 1 {
		t.Errorf("flush count = %d, want 1 (in-flight mutation must not arm)", got)
	}
}

// TestDeactivateCancelsTimer verifies teardown prevents a pending flush from
// firing.
func TestDeactivateCancelsTimer(t *testing.T) {
	f := &fakeFlusher{pending: 1}
	s := New(f, testDebounce)
	defer s.Stop()
	s.Activate()

	s.NotifyMutation()
	s.Deactivate()

	time.Sleep(4 * testDebounce)
	if f.flushCount() != 0 {
		t.Error("deactivation must cancel the armed timer")
	}
	if s.State() != StateIdle {
		t.Errorf("state = %s, want idle", s.State())
	}
}

// TestStopWaitsForInflight verifies Stop blocks until the flush goroutine
// returns.
func TestStopWaitsForInflight(t *testing.T) {
	block := make(chan struct{})
	f := &fakeFlusher{pending: 1, block: block}
	s := New(f, testDebounce)
	s.Activate()

	s.NotifyMutation()
	waitFor(t, func() bool { return s.State() == StateFlushing }, "expected in-flight flush")

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	// Stop cancels the flush context, unblocking the fake via ctx.Done.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
