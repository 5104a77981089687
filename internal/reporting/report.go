package reporting

import (
	"time"

	"trade-intel-lab/internal/domain"
	"trade-intel-lab/internal/health"
)

// Report is the offline analytics report rendered from one snapshot.
type Report struct {
	// Metadata
	GeneratedAt     time.Time
	SnapshotVersion uint64
	ComputedAt      time.Time

	// Data Summary
	DataSummary DataSummary

	// Data Quality (excluded and skipped rows)
	DataQuality DataQualitySection

	// Platform health roll-up
	Health health.Summary

	// Engine metrics (sorted by group key within each dimension)
	EngineMetrics []domain.EngineMetrics
	ByDirection   []domain.EngineMetrics
	ByCatalyst    []domain.EngineMetrics

	// Calibration
	Calibration domain.CalibrationReport

	// Signal weights
	Weights domain.WeightSummary

	// Symbol leaderboard
	Leaderboard []domain.SymbolLeaderboardRow
}

// DataSummary describes the ledger the snapshot was built from.
type DataSummary struct {
	LedgerSize     int
	SymbolCount    int
	EngineCount    int
	SignalCount    int
	DateRangeStart *time.Time
	DateRangeEnd   *time.Time
}

// DataQualitySection tallies rows excluded from aggregation.
type DataQualitySection struct {
	MalformedRows int
	// SkippedByDimension counts rows missing the grouping field per
	// dimension; such rows stay in every other breakdown.
	SkippedByDimension []SkippedRow
}

// SkippedRow is one dimension's skip tally.
type SkippedRow struct {
	Dimension string
	Skipped   int
}
