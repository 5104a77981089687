package postgres

import (
	"context"
	"fmt"

	"trade-intel-lab/internal/storage"
)

// OverrideStore implements storage.OverrideStore using PostgreSQL.
// Unlike the append-only ledger, overrides are mutable: Set upserts.
type OverrideStore struct {
	pool *Pool
}

// NewOverrideStore creates a new OverrideStore.
func NewOverrideStore(pool *Pool) *OverrideStore {
	return &OverrideStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OverrideStore = (*OverrideStore)(nil)

// Set stores or replaces the override for a signal.
func (s *OverrideStore) Set(ctx context.Context, signal string, weight float64) error {
	if signal == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO signal_weight_overrides (signal, weight, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (signal) DO UPDATE SET weight = EXCLUDED.weight, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, signal, weight); err != nil {
		return fmt.Errorf("set override: %w", err)
	}
	return nil
}

// Delete removes the override for a signal. Returns ErrNotFound if no override exists.
func (s *OverrideStore) Delete(ctx context.Context, signal string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM signal_weight_overrides WHERE signal = $1`, signal)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAll returns the full override map.
func (s *OverrideStore) GetAll(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT signal, weight FROM signal_weight_overrides`)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var signal string
		var weight float64
		if err := rows.Scan(&signal, &weight); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		result[signal] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return result, nil
}
