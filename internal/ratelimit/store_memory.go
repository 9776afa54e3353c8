package ratelimit

import (
	"context"
	"sync"
)

// MemoryStore keeps rate-limit state in process.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]State
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]State)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.data[userID]
	return st, ok, nil
}

func (s *MemoryStore) Update(ctx context.Context, userID string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[userID]
	next, write := fn(cur, ok)
	if write {
		s.data[userID] = next
	}
	return nil
}
