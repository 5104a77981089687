package memory

import (
	"context"
	"sort"
	"sync"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeOutcome // keyed by outcome id
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.TradeOutcome),
	}
}

// Insert adds a resolved outcome. Returns ErrDuplicateKey if the id exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.TradeOutcome) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[o.ID] = cloneOutcome(o)
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *OutcomeStore) InsertBulk(_ context.Context, outcomes []*domain.TradeOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(outcomes))

	for _, o := range outcomes {
		if o == nil || o.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[o.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[o.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[o.ID] = struct{}{}
	}

	for _, o := range outcomes {
		s.data[o.ID] = cloneOutcome(o)
	}

	return nil
}

// GetByID retrieves one outcome. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(_ context.Context, id string) (*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return cloneOutcome(o), nil
}

// GetAll retrieves the full ledger, ordered by close time ASC then id ASC.
func (s *OutcomeStore) GetAll(_ context.Context) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeOutcome, 0, len(s.data))
	for _, o := range s.data {
		result = append(result, cloneOutcome(o))
	}

	sortChronological(result)
	return result, nil
}

// GetBySymbol retrieves all outcomes for a symbol, ordered by close time ASC then id ASC.
func (s *OutcomeStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.TradeOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeOutcome
	for _, o := range s.data {
		if o.Symbol == symbol {
			result = append(result, cloneOutcome(o))
		}
	}

	sortChronological(result)
	return result, nil
}

// GetRecentBySymbol retrieves the most recently closed outcomes for a symbol,
// newest first, at most limit rows.
func (s *OutcomeStore) GetRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeOutcome, error) {
	all, err := s.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// Reverse chronological
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Count returns the total number of resolved outcomes.
func (s *OutcomeStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func cloneOutcome(o *domain.TradeOutcome) *domain.TradeOutcome {
	c := *o
	if o.Signals != nil {
		c.Signals = make([]string, len(o.Signals))
		copy(c.Signals, o.Signals)
	}
	return &c
}

func sortChronological(outcomes []*domain.TradeOutcome) {
	sort.Slice(outcomes, func(i, j int) bool {
		if !outcomes[i].ClosedAt.Equal(outcomes[j].ClosedAt) {
			return outcomes[i].ClosedAt.Before(outcomes[j].ClosedAt)
		}
		return outcomes[i].ID < outcomes[j].ID
	})
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
