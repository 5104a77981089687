package reporting

import (
	"context"
	"sort"
	"time"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/snapshot"
	"trade-intel-lab/internal/storage"
)

// Generator produces reports from a derived snapshot plus the ledger.
type Generator struct {
	outcomeStore storage.OutcomeStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(outcomeStore storage.OutcomeStore) *Generator {
	return &Generator{
		outcomeStore: outcomeStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete report from the given snapshot. malformedRows
// comes from the refresh result; the snapshot itself only holds valid rows.
func (g *Generator) Generate(ctx context.Context, d *snapshot.Derived, malformedRows int) (*Report, error) {
	summary, err := g.generateDataSummary(ctx, d)
	if err != nil {
		return nil, err
	}

	platform := d.Intel.Platform()

	return &Report{
		GeneratedAt:     g.now(),
		SnapshotVersion: d.Version,
		ComputedAt:      d.ComputedAt,
		DataSummary:     *summary,
		DataQuality:     generateDataQuality(d, malformedRows),
		Health:          d.Health,
		EngineMetrics:   d.EngineMetrics,
		ByDirection:     d.ByDirection,
		ByCatalyst:      d.ByCatalyst,
		Calibration:     d.Calibration,
		Weights:         d.Weights,
		Leaderboard:     platform.Leaderboard,
	}, nil
}

// generateDataSummary computes ledger counts and the close-time date range.
func (g *Generator) generateDataSummary(ctx context.Context, d *snapshot.Derived) (*DataSummary, error) {
	outcomes, err := g.outcomeStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := &DataSummary{
		LedgerSize:  d.LedgerSize,
		SymbolCount: d.Intel.SymbolCount(),
		EngineCount: len(d.EngineMetrics),
		SignalCount: d.Weights.TotalSignals,
	}

	// Rows come back ordered by close time ASC.
	if len(outcomes) > 0 {
		start := outcomes[0].ClosedAt
		end := outcomes[len(outcomes)-1].ClosedAt
		summary.DateRangeStart = &start
		summary.DateRangeEnd = &end
	}

	return summary, nil
}

// generateDataQuality builds the skip tally in deterministic dimension order.
func generateDataQuality(d *snapshot.Derived, malformedRows int) DataQualitySection {
	section := DataQualitySection{MalformedRows: malformedRows}

	dims := make([]string, 0, len(d.SkippedRecords))
	for dim := range d.SkippedRecords {
		dims = append(dims, string(dim))
	}
	sort.Strings(dims)

	for _, dim := range dims {
		section.SkippedByDimension = append(section.SkippedByDimension, SkippedRow{
			Dimension: dim,
			Skipped:   d.SkippedRecords[domain.GroupDimension(dim)],
		})
	}

	return section
}
