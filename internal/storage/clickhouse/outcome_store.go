package clickhouse

import (
	"context"
	"fmt"
	"time"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using ClickHouse.
// MergeTree does not enforce uniqueness at insert time, so duplicate ids
// are detected with explicit existence checks before insert.
type OutcomeStore struct {
	conn *Conn
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(conn *Conn) *OutcomeStore {
	return &OutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

const outcomeColumns = `
	id, symbol, engine_id, direction, signals, confidence,
	catalyst_type, asset_type, realized_return_pct, resolution,
	opened_at, closed_at
`

// Insert adds a resolved outcome. Returns ErrDuplicateKey if the id exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.TradeOutcome) error {
	return s.InsertBulk(ctx, []*domain.TradeOutcome{o})
}

// InsertBulk adds multiple outcomes. Fails entire batch on any duplicate.
func (s *OutcomeStore) InsertBulk(ctx context.Context, outcomes []*domain.TradeOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		if o == nil || o.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[o.ID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[o.ID] = struct{}{}

		exists, err := s.exists(ctx, o.ID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_outcomes (
			id, symbol, engine_id, direction, signals, confidence,
			catalyst_type, asset_type, realized_return_pct, resolution,
			opened_at, closed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range outcomes {
		err = batch.Append(
			o.ID, o.Symbol, o.EngineID, string(o.Direction), o.Signals, o.Confidence,
			o.CatalystType, o.AssetType, o.RealizedReturnPct, string(o.Resolution),
			o.OpenedAt, o.ClosedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByID retrieves one outcome. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByID(ctx context.Context, id string) (*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE id = ? LIMIT 1`

	rows, err := s.conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query trade outcome: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}
	return scanOutcome(rows)
}

// GetAll retrieves the full ledger, ordered by close time ASC then id ASC.
func (s *OutcomeStore) GetAll(ctx context.Context) ([]*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes ORDER BY closed_at ASC, id ASC`
	return s.queryOutcomes(ctx, query)
}

// GetBySymbol retrieves all outcomes for a symbol, ordered by close time ASC then id ASC.
func (s *OutcomeStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE symbol = ? ORDER BY closed_at ASC, id ASC`
	return s.queryOutcomes(ctx, query, symbol)
}

// GetRecentBySymbol retrieves the most recently closed outcomes for a symbol, newest first.
func (s *OutcomeStore) GetRecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM trade_outcomes WHERE symbol = ? ORDER BY closed_at DESC, id DESC LIMIT ?`
	return s.queryOutcomes(ctx, query, symbol, limit)
}

// Count returns the total number of resolved outcomes.
func (s *OutcomeStore) Count(ctx context.Context) (int, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM trade_outcomes`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count trade outcomes: %w", err)
	}
	return int(count), nil
}

func (s *OutcomeStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM trade_outcomes WHERE id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type chRows interface {
	Scan(dest ...any) error
}

func (s *OutcomeStore) queryOutcomes(ctx context.Context, query string, args ...any) ([]*domain.TradeOutcome, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trade outcomes: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade outcomes: %w", err)
	}
	return result, nil
}

func scanOutcome(rows chRows) (*domain.TradeOutcome, error) {
	var o domain.TradeOutcome
	var direction, resolution string
	var openedAt, closedAt time.Time

	err := rows.Scan(
		&o.ID, &o.Symbol, &o.EngineID, &direction, &o.Signals, &o.Confidence,
		&o.CatalystType, &o.AssetType, &o.RealizedReturnPct, &resolution,
		&openedAt, &closedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan trade outcome: %w", err)
	}

	o.Direction = domain.Direction(direction)
	o.Resolution = domain.Resolution(resolution)
	o.OpenedAt = openedAt
	o.ClosedAt = closedAt
	return &o, nil
}
