package domain

// ConfidenceTier labels how much a signal's statistics can be trusted,
// based purely on sample size.
type ConfidenceTier string

const (
	TierUntested ConfidenceTier = "untested"
	TierLow      ConfidenceTier = "low"
	TierMedium   ConfidenceTier = "medium"
	TierHigh     ConfidenceTier = "high"
)

// SignalWeight is the per-signal output of the weight engine. The computed
// dynamic weight is always retained, even when a manual override is in
// effect, so the override and the underlying computed value coexist.
type SignalWeight struct {
	Signal string `json:"signal"`

	// BaseWeight is the design-time prior, 1.0 unless configured otherwise.
	BaseWeight float64 `json:"baseWeight"`
	// DynamicWeight is the computed multiplier, always > 0. Signals are
	// dampened, never hard-zeroed.
	DynamicWeight float64 `json:"dynamicWeight"`

	WinRatePct float64        `json:"winRatePct"`
	TradeCount int            `json:"tradeCount"`
	Tier       ConfidenceTier `json:"tier"`

	Overridden     bool     `json:"overridden"`
	OverrideWeight *float64 `json:"overrideWeight,omitempty"`
}

// EffectiveWeight is the weight applied upstream: the override when one is
// set, otherwise the dynamic weight.
func (w *SignalWeight) EffectiveWeight() float64 {
	if w.Overridden && w.OverrideWeight != nil {
		return *w.OverrideWeight
	}
	return w.DynamicWeight
}

// WeightSummary is the roll-up across all observed signals.
type WeightSummary struct {
	// Enabled reports whether dynamic weighting is currently applied by the
	// upstream predictor.
	Enabled bool `json:"enabled"`

	TotalSignals int `json:"totalSignals"`
	Boosted      int `json:"boosted"`
	Reduced      int `json:"reduced"`
	Neutral      int `json:"neutral"`
	Overridden   int `json:"overridden"`

	// TopBoosted and TopReduced are sorted by effective weight, descending
	// and ascending respectively.
	TopBoosted []SignalWeight `json:"topBoosted"`
	TopReduced []SignalWeight `json:"topReduced"`

	Weights []SignalWeight `json:"weights"`
}
