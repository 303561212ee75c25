package session

import (
	"context"
	"sync"
	"time"
)

// Store remembers when a visitor's previous session ended.
// Implementations are best effort and must not block the tracker on failure.
type Store interface {
	LastSessionEnd(ctx context.Context, visitor string) (time.Time, bool)
	SaveSessionEnd(ctx context.Context, visitor string, t time.Time)
}

type MemoryStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: map[string]time.Time{}}
}

func (s *MemoryStore) LastSessionEnd(_ context.Context, visitor string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.last[visitor]
	return t, ok
}

func (s *MemoryStore) SaveSessionEnd(_ context.Context, visitor string, t time.Time) {
	s.mu.Lock()
	s.last[visitor] = t
	s.mu.Unlock()
}
