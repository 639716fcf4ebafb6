package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"trustex/internal/dependents/models"
)

// InMemoryStore keeps the dependent set in process memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	dependents map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{dependents: make(map[string]time.Time)}
}

// Add reports whether the address was newly added.
func (s *InMemoryStore) Add(_ context.Context, address string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dependents[address]; ok {
		return false, nil
	}
	s.dependents[address] = at
	return true, nil
}

// Remove reports whether the address was present.
func (s *InMemoryStore) Remove(_ context.Context, address string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dependents[address]; !ok {
		return false, nil
	}
	delete(s.dependents, address)
	return true, nil
}

// List returns dependents ordered by address.
func (s *InMemoryStore) List(_ context.Context) ([]models.Dependent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Dependent, 0, len(s.dependents))
	for addr, at := range s.dependents {
		out = append(out, models.Dependent{Address: addr, RegisteredAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}
