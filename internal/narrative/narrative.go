// Package narrative turns numeric analytics outputs into human-readable
// guidance strings. It consumes only the numeric contracts of the
// calibration, weight, and intelligence reducers; no statistical logic
// lives here, and nothing here feeds back into the numbers.
package narrative

import (
	"fmt"
	"math"

	"trade-intel-lab/internal/domain"
)

// highConfidenceFloorPct marks the bands treated as "high confidence" when
// wording calibration guidance.
const highConfidenceFloorPct = 70

// CalibrationAdvice produces guidance strings for a calibration report.
// Pure function of the report numbers: same report, same strings.
func CalibrationAdvice(report domain.CalibrationReport, tolerancePct float64) []string {
	var out []string

	switch {
	case report.SampleCount == 0:
		return []string{"no scored predictions yet; calibration cannot be assessed"}
	case report.ReliabilityScore >= 80:
		out = append(out, fmt.Sprintf("confidence scores are well calibrated (reliability %.0f/100)", report.ReliabilityScore))
	case report.ReliabilityScore >= 50:
		out = append(out, fmt.Sprintf("confidence scores are loosely calibrated (reliability %.0f/100); treat scores as ordinal rather than literal probabilities", report.ReliabilityScore))
	default:
		out = append(out, fmt.Sprintf("confidence scores are poorly calibrated (reliability %.0f/100); do not size positions off raw confidence", report.ReliabilityScore))
	}

	for _, bin := range report.Bins {
		if bin.BrierSamples == 0 || bin.Calibrated {
			continue
		}
		gap := bin.PredictedMeanPct - bin.ActualWinRatePct
		label := fmt.Sprintf("%.0f-%.0f", bin.LowerBound, bin.UpperBound)
		if bin.LowerBound >= highConfidenceFloorPct {
			label = "high-confidence band " + label
		} else {
			label = "band " + label
		}
		if gap > 0 {
			out = append(out, fmt.Sprintf("%s is overconfident by %.1f points (predicted %.1f%%, realized %.1f%% over %d trades)",
				label, gap, bin.PredictedMeanPct, bin.ActualWinRatePct, bin.BrierSamples))
		} else {
			out = append(out, fmt.Sprintf("%s is underconfident by %.1f points (predicted %.1f%%, realized %.1f%% over %d trades)",
				label, -gap, bin.PredictedMeanPct, bin.ActualWinRatePct, bin.BrierSamples))
		}
	}

	return out
}

// WeightAdvice produces guidance strings for a signal-weight summary.
func WeightAdvice(summary domain.WeightSummary) []string {
	var out []string

	if summary.TotalSignals == 0 {
		return []string{"no signals observed in the ledger yet"}
	}

	if !summary.Enabled {
		out = append(out, "dynamic signal weighting is currently disabled upstream; computed weights are informational only")
	}

	if len(summary.TopBoosted) > 0 {
		best := summary.TopBoosted[0]
		out = append(out, fmt.Sprintf("strongest signal is %q at %.2fx (%.1f%% win rate over %d trades)",
			best.Signal, best.EffectiveWeight(), best.WinRatePct, best.TradeCount))
	}
	if len(summary.TopReduced) > 0 {
		worst := summary.TopReduced[0]
		out = append(out, fmt.Sprintf("weakest signal is %q at %.2fx (%.1f%% win rate over %d trades)",
			worst.Signal, worst.EffectiveWeight(), worst.WinRatePct, worst.TradeCount))
	}

	untested := 0
	for _, w := range summary.Weights {
		if w.Tier == domain.TierUntested {
			untested++
		}
	}
	if untested > 0 {
		out = append(out, fmt.Sprintf("%d signal(s) are untested and held at neutral weight pending more samples", untested))
	}
	if summary.Overridden > 0 {
		out = append(out, fmt.Sprintf("%d signal(s) carry manual overrides; computed weights remain visible alongside", summary.Overridden))
	}

	return out
}

// SymbolAdvice produces guidance strings for one symbol's intelligence.
func SymbolAdvice(profile domain.SymbolProfile, best, worst []domain.CatalystStats) []string {
	var out []string

	if profile.ClosedTrades == 0 {
		return []string{fmt.Sprintf("no resolved trades for %s yet", profile.Symbol)}
	}

	if profile.OverallWinRatePct != nil {
		wr := *profile.OverallWinRatePct
		switch {
		case wr >= 60:
			out = append(out, fmt.Sprintf("%s has a strong %.1f%% win rate over %d trades", profile.Symbol, wr, profile.ClosedTrades))
		case wr < 40:
			out = append(out, fmt.Sprintf("%s has a weak %.1f%% win rate over %d trades; be selective", profile.Symbol, wr, profile.ClosedTrades))
		}
	}

	if longShortGap(profile) {
		lw, sw := *profile.LongWinRatePct, *profile.ShortWinRatePct
		if lw > sw {
			out = append(out, fmt.Sprintf("%s favors longs (%.1f%% vs %.1f%% short win rate)", profile.Symbol, lw, sw))
		} else {
			out = append(out, fmt.Sprintf("%s favors shorts (%.1f%% vs %.1f%% long win rate)", profile.Symbol, sw, lw))
		}
	}

	if len(best) > 0 && best[0].WinRatePct != nil {
		c := best[0]
		out = append(out, fmt.Sprintf("best setup on %s is %s catalysts: %.1f%% win rate over %d trades",
			profile.Symbol, c.CatalystType, *c.WinRatePct, c.TradeCount))
	}
	if len(worst) > 0 && worst[0].WinRatePct != nil && *worst[0].WinRatePct < 40 {
		c := worst[0]
		out = append(out, fmt.Sprintf("avoid %s on %s catalysts: %.1f%% win rate over %d trades",
			profile.Symbol, c.CatalystType, *c.WinRatePct, c.TradeCount))
	}

	return out
}

// longShortGap reports whether both directional win rates exist and differ
// by a meaningful margin.
func longShortGap(p domain.SymbolProfile) bool {
	if p.LongWinRatePct == nil || p.ShortWinRatePct == nil {
		return false
	}
	return math.Abs(*p.LongWinRatePct-*p.ShortWinRatePct) >= 15
}
