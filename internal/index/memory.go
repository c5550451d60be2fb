package index

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps entries in process memory. It is used for tests and
// ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

func (s *MemoryStore) Insert(_ context.Context, collection string, entries []Entry, replace []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.entries[collection]
	if len(replace) > 0 {
		current = slices.DeleteFunc(slices.Clone(current), func(e Entry) bool {
			return slices.Contains(replace, e.Metadata.DrugName)
		})
	}
	for _, e := range entries {
		e.Collection = collection
		e.Vector = slices.Clone(e.Vector)
		current = append(current, e)
	}
	s.entries[collection] = current
	return nil
}

func (s *MemoryStore) Each(ctx context.Context, collection string, fn func(Entry) error) error {
	s.mu.RLock()
	snapshot := s.entries[collection]
	s.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[collection]), nil
}

func (s *MemoryStore) Reset(_ context.Context, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries[collection])
	delete(s.entries, collection)
	return n, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
