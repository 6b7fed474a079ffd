package index

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by a Store that holds no index for a key.
var ErrNotFound = errors.New("index not found")

// Store caches indexing results by source identity so repeated opens of the
// same source skip the indexing pass.
type Store interface {
	Get(ctx context.Context, key string) (*Result, error)
	Put(ctx context.Context, key string, res *Result) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Result
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Result)}
}

// Get returns a copy of the stored result.
func (s *MemoryStore) Get(_ context.Context, key string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return res.clone(), nil
}

// Put stores a copy of res under key.
func (s *MemoryStore) Put(_ context.Context, key string, res *Result) error {
	if res == nil {
		return errors.New("index: nil result")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = res.clone()
	return nil
}

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (r *Result) clone() *Result {
	out := *r
	out.Entries = append([]Entry(nil), r.Entries...)
	return &out
}
