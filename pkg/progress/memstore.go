package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// MemStore is an in-process Store backed by a map. Used by tests and by
// runs that don't need progress to survive the process.
type MemStore struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[Key]Entry)}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, key Key) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// Put implements Store.
func (s *MemStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Key] = entry
	return nil
}

// Due implements Store.
func (s *MemStore) Due(_ context.Context, performer string, now time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []Entry
	for _, e := range s.entries {
		if e.Key.Performer == performer && e.Due(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].State.Due().Before(due[j].State.Due())
	})
	return due, nil
}

// Close implements Store. It is a no-op for the in-memory store.
func (s *MemStore) Close() error { return nil }
