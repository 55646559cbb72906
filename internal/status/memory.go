package status

import (
	"context"
	"sync"
)

// MemoryStore keeps the most recent updates in process memory only
type MemoryStore struct {
	mu      sync.RWMutex
	updates *ring[Update]
}

// NewMemoryStore creates a store bounded to maxUpdates entries
func NewMemoryStore(maxUpdates int) *MemoryStore {
	return &MemoryStore{updates: newRing[Update](maxUpdates)}
}

// Append records update, evicting the oldest entry when full
func (s *MemoryStore) Append(_ context.Context, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates.push(update)
	return nil
}

// List returns the retained updates, newest first
func (s *MemoryStore) List(_ context.Context) ([]Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.updates.newestFirst(), nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// seed loads updates given newest first, keeping the newest that fit
func (s *MemoryStore) seed(updates []Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(updates) - 1; i >= 0; i-- {
		s.updates.push(updates[i])
	}
}
