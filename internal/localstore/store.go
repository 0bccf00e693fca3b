// Package localstore provides the local persistent key/value store adapter.
//
// The store is a durable best-effort mirror of in-memory state: it is read
// once at startup and written on every settled mutation. There are no
// guarantees beyond per-key overwrite, so every write carries the full value
// for its key and the last write wins.
package localstore

import (
	"context"
	"sync"
)

// Store is the key/value contract the sync core depends on.
type Store interface {
	// Get returns the value for key, with ok=false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set overwrites the value for key.
	Set(ctx context.Context, key string, value []byte) error

	Close() error
}

// Keys used by the sync core.
const (
	KeyQueue    = "memostream.queue"
	KeySnapshot = "memostream.snapshot"
)

// MemoryStore is an in-process Store used in tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
