package chatstore

import (
	"context"
	"sync"
)

// MemoryStore keeps threads in process memory. It is the fallback when no
// durable backend is configured or the durable one cannot be opened.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]Turn
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]Turn)}
}

func (s *MemoryStore) Get(_ context.Context, threadID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.threads[threadID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, threadID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = append(s.threads[threadID], stamp(turns)...)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
