package storage

import (
	"context"

	"trade-intel-lab/internal/domain"
)

// OutcomeStore provides access to the resolved-trade ledger. The analytics
// pipeline only reads; inserts exist for the upstream resolution process and
// for fixtures. The ledger is append-only: resolved outcomes are immutable.
type OutcomeStore interface {
	// Insert adds a resolved outcome. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, o *domain.TradeOutcome) error

	// InsertBulk adds multiple outcomes atomically. Fails the entire batch
	// on any duplicate.
	InsertBulk(ctx context.Context, outcomes []*domain.TradeOutcome) error

	// GetByID retrieves one outcome. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TradeOutcome, error)

	// GetAll retrieves the full ledger snapshot, ordered by close time ASC
	// then id ASC for deterministic aggregation input.
	GetAll(ctx context.Context) ([]*domain.TradeOutcome, error)

	// GetBySymbol retrieves all outcomes for a symbol, ordered by close
	// time ASC then id ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeOutcome, error)

	// GetRecentBySymbol retrieves the most recently closed outcomes for a
	// symbol, newest first, at most limit rows.
	GetRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeOutcome, error)

	// Count returns the total number of resolved outcomes.
	Count(ctx context.Context) (int, error)
}

// OverrideStore holds manual signal-weight overrides, keyed by signal name.
// Overrides are the one mutable analytics input; the weight value must be
// validated (positive, finite) before it reaches the store.
type OverrideStore interface {
	// Set stores or replaces the override for a signal.
	Set(ctx context.Context, signal string, weight float64) error

	// Delete removes the override for a signal. Returns ErrNotFound if no
	// override exists.
	Delete(ctx context.Context, signal string) error

	// GetAll returns the full override map.
	GetAll(ctx context.Context) (map[string]float64, error)
}
