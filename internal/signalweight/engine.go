// Package signalweight turns per-signal outcome statistics into bounded
// multiplicative weights that bias future signal use. Signals are dampened,
// never disabled: the clamp floor is the single place that invariant lives.
package signalweight

import (
	"math"
	"sort"

	"trade-intel-lab/internal/domain"
)

// Config controls weight computation.
type Config struct {
	// BaseWeight is the design-time prior every signal starts from.
	BaseWeight float64
	// NeutralWinRatePct is the baseline win rate that maps to a neutral
	// weight (default 50).
	NeutralWinRatePct float64
	// Sensitivity scales how strongly win-rate deviation moves the weight.
	Sensitivity float64
	// DampingTrades is the half-saturation sample size: at n trades the
	// deviation is scaled by n/(n+DampingTrades), pulling small samples
	// toward neutral.
	DampingTrades float64

	// FloorWeight and CeilingWeight clamp the dynamic weight. The floor is
	// strictly positive so the automatic process can never silently
	// disable a signal.
	FloorWeight   float64
	CeilingWeight float64

	// Tier thresholds on trade count.
	UntestedBelow int // < UntestedBelow            -> untested
	LowBelow      int // [UntestedBelow, LowBelow)  -> low
	MediumBelow   int // [LowBelow, MediumBelow)    -> medium, above -> high

	// NeutralEpsilon is the half-width of the neutral band around 1.0 when
	// classifying boosted/reduced/neutral.
	NeutralEpsilon float64

	// TopN bounds the boosted/reduced leaderboards.
	TopN int

	// Enabled reports whether dynamic weighting is applied upstream.
	Enabled bool
}

// DefaultConfig returns the default weight-engine configuration.
func DefaultConfig() Config {
	return Config{
		BaseWeight:        1.0,
		NeutralWinRatePct: 50,
		Sensitivity:       2.0,
		DampingTrades:     20,
		FloorWeight:       0.3,
		CeilingWeight:     2.0,
		UntestedBelow:     10,
		LowBelow:          30,
		MediumBelow:       100,
		NeutralEpsilon:    0.05,
		TopN:              5,
		Enabled:           true,
	}
}

// Compute derives one SignalWeight per signal observed in the ledger, blends
// in manual overrides, and rolls everything up into a summary. Pure function
// of (outcomes, overrides, cfg): recomputing from an unchanged snapshot
// yields identical weights.
func Compute(outcomes []*domain.TradeOutcome, overrides map[string]float64, cfg Config) domain.WeightSummary {
	type signalAccum struct {
		count int
		wins  int
	}
	accums := make(map[string]*signalAccum)

	// A trade can carry multiple signals and contributes to each.
	for _, o := range outcomes {
		for _, sig := range o.Signals {
			if sig == "" {
				continue
			}
			a := accums[sig]
			if a == nil {
				a = &signalAccum{}
				accums[sig] = a
			}
			a.count++
			if o.Resolution == domain.ResolutionWin {
				a.wins++
			}
		}
	}

	names := make([]string, 0, len(accums))
	for name := range accums {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := domain.WeightSummary{
		Enabled:      cfg.Enabled,
		TotalSignals: len(names),
		Weights:      make([]domain.SignalWeight, 0, len(names)),
	}

	for _, name := range names {
		a := accums[name]

		w := domain.SignalWeight{
			Signal:     name,
			BaseWeight: cfg.BaseWeight,
			TradeCount: a.count,
			WinRatePct: float64(a.wins) / float64(a.count) * 100,
			Tier:       tierFor(a.count, cfg),
		}
		w.DynamicWeight = dynamicWeight(w.WinRatePct, a.count, cfg)

		if ov, ok := overrides[name]; ok {
			ovCopy := ov
			w.Overridden = true
			w.OverrideWeight = &ovCopy
			summary.Overridden++
		}

		eff := w.EffectiveWeight()
		switch {
		case eff > 1+cfg.NeutralEpsilon:
			summary.Boosted++
		case eff < 1-cfg.NeutralEpsilon:
			summary.Reduced++
		default:
			summary.Neutral++
		}

		summary.Weights = append(summary.Weights, w)
	}

	summary.TopBoosted = topByEffective(summary.Weights, cfg, true)
	summary.TopReduced = topByEffective(summary.Weights, cfg, false)

	return summary
}

// dynamicWeight computes the bounded multiplier for one signal. Below the
// untested threshold the weight is exactly the neutral prior regardless of
// the observed win rate; above it the win-rate deviation is shrunk by
// n/(n+damping) before clamping.
func dynamicWeight(winRatePct float64, count int, cfg Config) float64 {
	if count < cfg.UntestedBelow {
		return cfg.BaseWeight
	}

	deviation := (winRatePct - cfg.NeutralWinRatePct) / 100
	damp := float64(count) / (float64(count) + cfg.DampingTrades)
	w := cfg.BaseWeight + deviation*cfg.Sensitivity*damp

	return clamp(w, cfg.FloorWeight, cfg.CeilingWeight)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// tierFor maps trade count onto a confidence tier.
func tierFor(count int, cfg Config) domain.ConfidenceTier {
	switch {
	case count < cfg.UntestedBelow:
		return domain.TierUntested
	case count < cfg.LowBelow:
		return domain.TierLow
	case count < cfg.MediumBelow:
		return domain.TierMedium
	default:
		return domain.TierHigh
	}
}

// topByEffective returns the top-N boosted (descending) or reduced
// (ascending) signals by effective weight, with name as the tiebreaker for
// deterministic output.
func topByEffective(weights []domain.SignalWeight, cfg Config, boosted bool) []domain.SignalWeight {
	var filtered []domain.SignalWeight
	for _, w := range weights {
		eff := w.EffectiveWeight()
		if boosted && eff > 1+cfg.NeutralEpsilon {
			filtered = append(filtered, w)
		}
		if !boosted && eff < 1-cfg.NeutralEpsilon {
			filtered = append(filtered, w)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		ei, ej := filtered[i].EffectiveWeight(), filtered[j].EffectiveWeight()
		if ei != ej {
			if boosted {
				return ei > ej
			}
			return ei < ej
		}
		return filtered[i].Signal < filtered[j].Signal
	})

	if cfg.TopN > 0 && len(filtered) > cfg.TopN {
		filtered = filtered[:cfg.TopN]
	}
	return filtered
}

// ValidateOverride checks a manual override value at write time. Invalid
// overrides are rejected, never silently clamped.
func ValidateOverride(weight float64) bool {
	return weight > 0 && !math.IsInf(weight, 0) && !math.IsNaN(weight)
}
