package store

import (
	"context"
	"sync"

	"github.com/countermap/countermap/ontology"
)

// MemoryStore keeps the index in process memory. Useful for tests and
// single-binary deployments that rebuild on startup.
type MemoryStore struct {
	mu         sync.RWMutex
	techniques []ontology.Technique
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save replaces the stored records with a copy of the input.
func (s *MemoryStore) Save(_ context.Context, techniques []ontology.Technique) error {
	cp := make([]ontology.Technique, len(techniques))
	copy(cp, techniques)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.techniques = cp
	return nil
}

// Load returns a copy of the stored records.
func (s *MemoryStore) Load(_ context.Context) ([]ontology.Technique, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.techniques == nil {
		return nil, ErrNotFound
	}
	cp := make([]ontology.Technique, len(s.techniques))
	copy(cp, s.techniques)
	return cp, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
