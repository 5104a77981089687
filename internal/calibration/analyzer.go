// Package calibration buckets closed predictions by prediction-time
// confidence and compares predicted confidence to realized win rate.
package calibration

import (
	"fmt"
	"math"

	"trade-intel-lab/internal/domain"
)

// Config controls binning and scoring.
type Config struct {
	// BinWidthPct is the fixed confidence bin width (default 10).
	BinWidthPct float64
	// TolerancePct is the |predicted - actual| gap inside which a bin is
	// flagged calibrated (default 10 points).
	TolerancePct float64
	// MinBinSamples is the minimum number of scored (win/loss) samples a
	// bin needs to participate in ECE weighting (default 5). Thin bins are
	// still reported, they just do not move the score.
	MinBinSamples int
}

// DefaultConfig returns the default calibration configuration.
func DefaultConfig() Config {
	return Config{
		BinWidthPct:   10,
		TolerancePct:  10,
		MinBinSamples: 5,
	}
}

// reliabilityFloorECE is the ECE at and beyond which reliability is 0.
const reliabilityFloorECE = 50.0

// Analyze computes the calibration report over all closed outcomes.
// Breakevens count toward bin sample sizes but are excluded from the Brier
// score and the realized win rate. Deterministic: same input, same output.
func Analyze(outcomes []*domain.TradeOutcome, cfg Config) domain.CalibrationReport {
	if cfg.BinWidthPct <= 0 {
		cfg.BinWidthPct = 10
	}

	binCount := int(math.Ceil(100 / cfg.BinWidthPct))
	bins := make([]domain.CalibrationBin, binCount)
	for i := range bins {
		bins[i].LowerBound = float64(i) * cfg.BinWidthPct
		bins[i].UpperBound = math.Min(float64(i+1)*cfg.BinWidthPct, 100)
	}

	type binAccum struct {
		confSum float64
		wins    int
		losses  int
	}
	accums := make([]binAccum, binCount)

	var brierSum float64
	var brierN int

	for _, o := range outcomes {
		idx := binIndex(o.Confidence, cfg.BinWidthPct, binCount)
		bins[idx].SampleSize++
		accums[idx].confSum += o.Confidence

		switch o.Resolution {
		case domain.ResolutionWin:
			accums[idx].wins++
			diff := o.Confidence/100 - 1
			brierSum += diff * diff
			brierN++
		case domain.ResolutionLoss:
			accums[idx].losses++
			diff := o.Confidence / 100
			brierSum += diff * diff
			brierN++
		}
	}

	var eceWeighted float64
	var eceWeight int

	for i := range bins {
		a := accums[i]
		bins[i].BrierSamples = a.wins + a.losses
		if bins[i].SampleSize == 0 {
			continue
		}

		bins[i].PredictedMeanPct = a.confSum / float64(bins[i].SampleSize)
		if bins[i].BrierSamples > 0 {
			bins[i].ActualWinRatePct = float64(a.wins) / float64(bins[i].BrierSamples) * 100
			gap := math.Abs(bins[i].PredictedMeanPct - bins[i].ActualWinRatePct)
			bins[i].Calibrated = gap <= cfg.TolerancePct

			if bins[i].BrierSamples >= cfg.MinBinSamples {
				eceWeighted += gap * float64(bins[i].BrierSamples)
				eceWeight += bins[i].BrierSamples
			}
		}
	}

	report := domain.CalibrationReport{
		Bins:        bins,
		SampleCount: brierN,
	}
	if brierN > 0 {
		report.BrierScore = brierSum / float64(brierN)
	}
	if eceWeight > 0 {
		report.ECEPct = eceWeighted / float64(eceWeight)
	}
	report.ReliabilityScore = reliabilityFromECE(report.ECEPct)

	return report
}

// reliabilityFromECE linearly maps ECE onto [0,100]: 0 -> 100, >=50 -> 0.
func reliabilityFromECE(ecePct float64) float64 {
	score := 100 * (1 - ecePct/reliabilityFloorECE)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// binIndex assigns a confidence score to its bin. A score of exactly 100
// falls into the top bin.
func binIndex(confidence, width float64, binCount int) int {
	idx := int(confidence / width)
	if idx >= binCount {
		idx = binCount - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// ConfidenceBands builds the platform-wide confidence-band table. Unlike
// per-bin calibration, the expected win rate is the band midpoint.
func ConfidenceBands(outcomes []*domain.TradeOutcome, widthPct float64) []domain.ConfidenceBandRow {
	if widthPct <= 0 {
		widthPct = 10
	}

	bandCount := int(math.Ceil(100 / widthPct))
	rows := make([]domain.ConfidenceBandRow, bandCount)
	wins := make([]int, bandCount)
	scored := make([]int, bandCount)

	for i := range rows {
		lo := float64(i) * widthPct
		hi := math.Min(lo+widthPct, 100)
		rows[i].Label = fmt.Sprintf("%.0f-%.0f%%", lo, hi)
		rows[i].ExpectedWinRatePct = (lo + hi) / 2
	}

	for _, o := range outcomes {
		idx := binIndex(o.Confidence, widthPct, bandCount)
		rows[idx].IdeaCount++
		switch o.Resolution {
		case domain.ResolutionWin:
			wins[idx]++
			scored[idx]++
		case domain.ResolutionLoss:
			scored[idx]++
		}
	}

	for i := range rows {
		if scored[i] == 0 {
			continue
		}
		rows[i].ActualWinRatePct = float64(wins[i]) / float64(scored[i]) * 100
		rows[i].CalibrationErrorPct = rows[i].ActualWinRatePct - rows[i].ExpectedWinRatePct
	}

	return rows
}
