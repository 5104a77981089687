package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"trade-intel-lab/internal/domain"
)

// RenderMarkdown renders the report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trade Intelligence Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Snapshot: v%d computed %s\n\n", r.SnapshotVersion, r.ComputedAt.Format(time.RFC3339)))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Resolved Trades | %d |\n", r.DataSummary.LedgerSize))
	sb.WriteString(fmt.Sprintf("| Symbols | %d |\n", r.DataSummary.SymbolCount))
	sb.WriteString(fmt.Sprintf("| Engines | %d |\n", r.DataSummary.EngineCount))
	sb.WriteString(fmt.Sprintf("| Signals | %d |\n", r.DataSummary.SignalCount))
	if r.DataSummary.DateRangeStart != nil {
		sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", r.DataSummary.DateRangeStart.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", r.DataSummary.DateRangeEnd.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString(fmt.Sprintf("Malformed rows excluded: %d\n\n", r.DataQuality.MalformedRows))
	if len(r.DataQuality.SkippedByDimension) > 0 {
		sb.WriteString("| Dimension | Rows Skipped (missing field) |\n")
		sb.WriteString("|-----------|------------------------------|\n")
		for _, row := range r.DataQuality.SkippedByDimension {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Dimension, row.Skipped))
		}
		sb.WriteString("\n")
	}

	// Platform Health
	sb.WriteString("## Platform Health\n\n")
	sb.WriteString(fmt.Sprintf("Status: **%s**\n\n", strings.ToUpper(r.Health.Status)))
	for _, issue := range r.Health.Issues {
		sb.WriteString(fmt.Sprintf("- %s\n", issue))
	}
	if len(r.Health.Issues) > 0 {
		sb.WriteString("\n")
	}

	// Engine Metrics
	sb.WriteString("## Engine Performance\n\n")
	writeMetricsTable(&sb, r.EngineMetrics)

	sb.WriteString("## By Direction\n\n")
	writeMetricsTable(&sb, r.ByDirection)

	sb.WriteString("## By Catalyst\n\n")
	writeMetricsTable(&sb, r.ByCatalyst)

	// Calibration
	sb.WriteString("## Confidence Calibration\n\n")
	sb.WriteString(fmt.Sprintf("Brier: %.4f | ECE: %.2f%% | Reliability: %.1f\n\n",
		r.Calibration.BrierScore, r.Calibration.ECEPct, r.Calibration.ReliabilityScore))
	if len(r.Calibration.Bins) > 0 {
		sb.WriteString("| Bin | Predicted | Actual | Samples | Calibrated |\n")
		sb.WriteString("|-----|-----------|--------|---------|------------|\n")
		for _, bin := range r.Calibration.Bins {
			status := "no"
			if bin.Calibrated {
				status = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %.0f-%.0f%% | %.1f%% | %.1f%% | %d | %s |\n",
				bin.LowerBound, bin.UpperBound, bin.PredictedMeanPct, bin.ActualWinRatePct, bin.SampleSize, status))
		}
		sb.WriteString("\n")
	} else {
		sb.WriteString("No calibration data available.\n\n")
	}

	// Signal Weights
	sb.WriteString("## Signal Weights\n\n")
	sb.WriteString(fmt.Sprintf("Signals: %d | Boosted: %d | Reduced: %d | Neutral: %d | Overridden: %d\n\n",
		r.Weights.TotalSignals, r.Weights.Boosted, r.Weights.Reduced, r.Weights.Neutral, r.Weights.Overridden))
	if len(r.Weights.Weights) > 0 {
		sb.WriteString("| Signal | Weight | Win Rate | Trades | Tier | Override |\n")
		sb.WriteString("|--------|--------|----------|--------|------|----------|\n")
		for _, w := range r.Weights.Weights {
			override := "-"
			if w.Overridden && w.OverrideWeight != nil {
				override = fmt.Sprintf("%.2f", *w.OverrideWeight)
			}
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.1f%% | %d | %s | %s |\n",
				w.Signal, w.DynamicWeight, w.WinRatePct, w.TradeCount, w.Tier, override))
		}
	} else {
		sb.WriteString("No signals observed.\n")
	}
	sb.WriteString("\n")

	// Leaderboard
	sb.WriteString("## Symbol Leaderboard\n\n")
	if len(r.Leaderboard) > 0 {
		sb.WriteString("| Symbol | Trades | Win Rate | Total PnL |\n")
		sb.WriteString("|--------|--------|----------|-----------|\n")
		for _, row := range r.Leaderboard {
			winRate := "n/a"
			if row.WinRatePct != nil {
				winRate = fmt.Sprintf("%.1f%%", *row.WinRatePct)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %+.2f%% |\n",
				row.Symbol, row.TradeCount, winRate, row.TotalPnLPct))
		}
	} else {
		sb.WriteString("No symbols with sufficient history.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeMetricsTable(sb *strings.Builder, rows []domain.EngineMetrics) {
	if len(rows) == 0 {
		sb.WriteString("No closed trades.\n\n")
		return
	}

	sb.WriteString("| Group | Trades | W/L/B | Win Rate | Expectancy | Sharpe | Profit Factor | Max DD |\n")
	sb.WriteString("|-------|--------|-------|----------|------------|--------|---------------|--------|\n")
	for _, m := range rows {
		sharpe := "n/a"
		if m.Sharpe != nil {
			sharpe = formatRatio(*m.Sharpe)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d/%d/%d | %.1f%% | %+.2f%% | %s | %s | %.2f%% |\n",
			m.GroupKey, m.TradeCount, m.Wins, m.Losses, m.Breakevens,
			m.WinRatePct, m.ExpectancyPct, sharpe, formatRatio(m.ProfitFactor), m.MaxDrawdownPct))
	}
	sb.WriteString("\n")
}

func formatRatio(r domain.Ratio) string {
	f := float64(r)
	switch {
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	default:
		return fmt.Sprintf("%.2f", f)
	}
}
