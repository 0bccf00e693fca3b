package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "github.com/kimhsiao/memostream/internal/errors"
	"github.com/kimhsiao/memostream/internal/localstore"
	"github.com/kimhsiao/memostream/internal/models"
)

// failingStore rejects every write.
type failingStore struct {
	*localstore.MemoryStore
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errors.New("disk full")
}

func mirrored(t *testing.T, s localstore.Store) []models.Record {
	t.Helper()
	data, ok, err := s.Get(context.Background(), localstore.KeyQueue)
	if err != nil {
		t.Fatalf("Get mirror: %v", err)
	}
	if !ok {
		return nil
	}
	var items []models.Record
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("mirror is not valid JSON: %v", err)
	}
	return items
}

// TestEnqueuePreservesFIFO verifies insertion order.
func TestEnqueuePreservesFIFO(t *testing.T) {
	q := New(localstore.NewMemoryStore(), "")

	q.Enqueue(models.NewPendingRecord("a"))
	q.Enqueue(models.NewPendingRecord("b"))
	q.Enqueue(models.NewPendingRecord("c"))

	items := q.SnapshotItems()
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	if items[0].Content != "a" || items[1].Content != "b" || items[2].Content != "c" {
		t.Errorf("queue order broken: %v", items)
	}
}

// TestMirrorMatchesMemory verifies the persisted mirror equals the in-memory
// content after each settled mutation.
func TestMirrorMatchesMemory(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	q := New(store, "")

	q.Enqueue(models.NewPendingRecord("a"))
	if err := q.Mirror(ctx); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	items := mirrored(t, store)
	if len(items) != 1 || items[0].Content != "a" {
		t.Fatalf("mirror = %v", items)
	}

	q.Enqueue(models.NewPendingRecord("b"))
	if err := q.Mirror(ctx); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	if got := mirrored(t, store); len(got) != 2 {
		t.Fatalf("mirror after second enqueue = %v", got)
	}
}

// TestClearMirrorsEmptyState verifies flush completion leaves an empty mirror.
func TestClearMirrorsEmptyState(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()
	q := New(store, "")

	q.Enqueue(models.NewPendingRecord("a"))
	if err := q.Mirror(ctx); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	if err := q.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if q.Len() != 0 {
		t.Error("queue should be empty after Clear")
	}
	if got := mirrored(t, store); len(got) != 0 {
		t.Errorf("mirror after Clear = %v, want empty", got)
	}
}

// TestLoadRestoresQueue verifies restart durability: a queue reloaded from
// the local store alone still contains the unflushed records.
func TestLoadRestoresQueue(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemoryStore()

	q := New(store, "")
	q.Enqueue(models.NewPendingRecord("a"))
	if err := q.Mirror(ctx); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}

	// Simulated restart: a fresh queue over the same store, no network.
	restarted := New(store, "")
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	items := restarted.SnapshotItems()
	if len(items) != 1 || items[0].Content != "a" {
		t.Fatalf("restored queue = %v, want the unflushed record", items)
	}
	if !items[0].Pending {
		t.Error("restored record must still be pending")
	}
}

// TestLoadAbsentKey verifies a fresh store yields an empty queue.
func TestLoadAbsentKey(t *testing.T) {
	q := New(localstore.NewMemoryStore(), "")
	if err := q.Load(context.Background()); err != nil {
		t.Fatalf("Load on empty store failed: %v", err)
	}
	if q.Len() != 0 {
		t.Error("expected an empty queue")
	}
}

// TestMirrorFailureLeavesMemoryAuthoritative verifies persistence errors are
// reported but do not disturb the in-memory queue.
func TestMirrorFailureLeavesMemoryAuthoritative(t *testing.T) {
	q := New(&failingStore{localstore.NewMemoryStore()}, "")
	q.Enqueue(models.NewPendingRecord("a"))

	err := q.Mirror(context.Background())
	if err == nil {
		t.Fatal("expected a mirror error")
	}
	if !apperrors.Is(err, apperrors.ErrPersistence) {
		t.Errorf("error code = %v, want PERSISTENCE_ERROR", err)
	}
	if q.Len() != 1 {
		t.Error("in-memory queue must stay authoritative on mirror failure")
	}
}
