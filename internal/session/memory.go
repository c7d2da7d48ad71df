// internal/session/memory.go
package session

import (
	"context"
	"sync"
)

// MemoryStore keeps session state in process memory. State survives for
// the process lifetime only; suitable for tests and single-instance
// deployments without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok {
		return Idle, nil
	}
	return st, nil
}

func (s *MemoryStore) Set(_ context.Context, userID int64, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = st
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, userID)
	return nil
}
