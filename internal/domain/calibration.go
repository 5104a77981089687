package domain

// CalibrationBin is one fixed-width confidence bucket comparing predicted
// confidence to realized win rate. Bins partition [0,100] with no overlap;
// the last bin is inclusive of its upper bound.
type CalibrationBin struct {
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`

	// PredictedMeanPct is the mean prediction-time confidence of members.
	PredictedMeanPct float64 `json:"predictedMeanPct"`
	// ActualWinRatePct is wins / (wins+losses) among members, in percent.
	// Breakevens count toward SampleSize but not toward the win rate.
	ActualWinRatePct float64 `json:"actualWinRatePct"`

	// SampleSize counts every closed trade assigned to the bin.
	SampleSize int `json:"sampleSize"`
	// BrierSamples counts only win/loss members (the Brier/ECE population).
	BrierSamples int `json:"brierSamples"`

	// Calibrated is true when |predicted - actual| is within tolerance.
	Calibrated bool `json:"calibrated"`
}

// CalibrationReport is the full calibration diagnostic over the ledger.
type CalibrationReport struct {
	Bins []CalibrationBin `json:"bins"`

	// BrierScore is the mean squared error between confidence/100 and the
	// binary win outcome, in [0,1]. Lower is better.
	BrierScore float64 `json:"brierScore"`
	// ECEPct is the sample-weighted mean |predicted - actual| across bins
	// with enough samples, in percentage points.
	ECEPct float64 `json:"ecePct"`
	// ReliabilityScore maps ECE onto [0,100]: 0 ECE -> 100, ECE >= 50 -> 0.
	ReliabilityScore float64 `json:"reliabilityScore"`

	// SampleCount is the number of win/loss outcomes scored.
	SampleCount int `json:"sampleCount"`

	Recommendations []string `json:"recommendations"`
}

// ConfidenceBandRow is one row of the platform-wide calibration table keyed
// by confidence band, distinct from per-bin calibration: expectation is the
// band midpoint rather than the members' mean confidence.
type ConfidenceBandRow struct {
	Label     string `json:"label"` // e.g. "60-70%"
	IdeaCount int    `json:"ideaCount"`

	ExpectedWinRatePct float64 `json:"expectedWinRatePct"` // band midpoint
	ActualWinRatePct   float64 `json:"actualWinRatePct"`
	// CalibrationErrorPct is actual - expected, in percentage points.
	CalibrationErrorPct float64 `json:"calibrationErrorPct"`
}
