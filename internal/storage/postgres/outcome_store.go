package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

const outcomeColumns = `
	id, symbol, engine_id, direction, signals, confidence,
	catalyst_type, asset_type, realized_return_pct, resolution,
	opened_at, closed_at
`

const insertOutcomeQuery = `
	INSERT INTO trade_outcomes (
		id, symbol, engine_id, direction, signals, confidence,
		catalyst_type, asset_type, realized_return_pct, resolution,
		opened_at, closed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12
	)
`

// Insert adds a resolved outcome. Returns ErrDuplicateKey if the id exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.TradeOutcome) error {
	if o == nil || o.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertOutcomeQuery,
		o.ID, o.Symbol, o.EngineID, string(o.Direction), o.Signals, o.Confidence,
		nullableText(o.CatalystType), nullableText(o.AssetType), o.RealizedReturnPct, string(o.Resolution),
		o.OpenedAt, o.ClosedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade outcome: %w", err)
	}
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *OutcomeStore) InsertBulk(ctx context.Context, outcomes []*domain.TradeOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range outcomes {
		if o == nil || o.ID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, insertOutcomeQuery,
			o.ID, o.Symbol, o.EngineID, string(o.Direction), o.Signals, o.Confidence,
			nullableText(o.CatalystType), nullableText(o.AssetType), o.RealizedReturnPct, string(o.Resolution),
			o.OpenedAt, o.ClosedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade outcome %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves one outcome. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(ctx context.Context, id string) (*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	o, err := scanOutcome(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade outcome: %w", err)
	}
	return o, nil
}

// GetAll retrieves the full ledger, ordered by close time ASC then id ASC.
func (s *OutcomeStore) GetAll(ctx context.Context) ([]*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes ORDER BY closed_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query trade outcomes: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// GetBySymbol retrieves all outcomes for a symbol, ordered by close time ASC then id ASC.
func (s *OutcomeStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE symbol = $1 ORDER BY closed_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query trade outcomes by symbol: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// GetRecentBySymbol retrieves the most recently closed outcomes for a symbol, newest first.
func (s *OutcomeStore) GetRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE symbol = $1 ORDER BY closed_at DESC, id DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent trade outcomes: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// Count returns the total number of resolved outcomes.
func (s *OutcomeStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trade_outcomes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count trade outcomes: %w", err)
	}
	return count, nil
}

func scanOutcome(row pgx.Row) (*domain.TradeOutcome, error) {
	var o domain.TradeOutcome
	var direction, resolution string
	var catalyst, assetType *string

	err := row.Scan(
		&o.ID, &o.Symbol, &o.EngineID, &direction, &o.Signals, &o.Confidence,
		&catalyst, &assetType, &o.RealizedReturnPct, &resolution,
		&o.OpenedAt, &o.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Direction = domain.Direction(direction)
	o.Resolution = domain.Resolution(resolution)
	if catalyst != nil {
		o.CatalystType = *catalyst
	}
	if assetType != nil {
		o.AssetType = *assetType
	}
	return &o, nil
}

func scanOutcomes(rows pgx.Rows) ([]*domain.TradeOutcome, error) {
	var result []*domain.TradeOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade outcome: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade outcomes: %w", err)
	}
	return result, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
