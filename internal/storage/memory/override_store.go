package memory

import (
	"context"
	"sync"

	"trade-intel-lab/internal/storage"
)

// OverrideStore is an in-memory implementation of storage.OverrideStore.
type OverrideStore struct {
	mu   sync.RWMutex
	data map[string]float64 // keyed by signal name
}

// NewOverrideStore creates a new in-memory override store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{
		data: make(map[string]float64),
	}
}

// Set stores or replaces the override for a signal.
func (s *OverrideStore) Set(_ context.Context, signal string, weight float64) error {
	if signal == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[signal] = weight
	return nil
}

// Delete removes the override for a signal. Returns ErrNotFound if no override exists.
func (s *OverrideStore) Delete(_ context.Context, signal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[signal]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, signal)
	return nil
}

// GetAll returns a copy of the full override map.
func (s *OverrideStore) GetAll(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]float64, len(s.data))
	for k, v := range s.data {
		result[k] = v
	}
	return result, nil
}

var _ storage.OverrideStore = (*OverrideStore)(nil)
