package pipeline

import (
	"trade-intel-lab/internal/calibration"
	"trade-intel-lab/internal/config"
	"trade-intel-lab/internal/health"
	"trade-intel-lab/internal/intel"
	"trade-intel-lab/internal/signalweight"
)

// ConfigFrom maps file configuration onto the reducer configs.
func ConfigFrom(cfg *config.Config) Config {
	a := cfg.Analytics

	cal := calibration.DefaultConfig()
	cal.BinWidthPct = a.Calibration.BinWidthPct
	cal.TolerancePct = a.Calibration.TolerancePct
	cal.MinBinSamples = a.Calibration.MinBinSamples

	w := signalweight.DefaultConfig()
	w.Enabled = a.Weights.Enabled
	w.NeutralWinRatePct = a.Weights.NeutralWinRatePct
	w.Sensitivity = a.Weights.Sensitivity
	w.DampingTrades = a.Weights.DampingTrades
	w.FloorWeight = a.Weights.FloorWeight
	w.CeilingWeight = a.Weights.CeilingWeight
	w.UntestedBelow = a.Weights.UntestedBelow
	w.LowBelow = a.Weights.LowBelow
	w.MediumBelow = a.Weights.MediumBelow
	w.TopN = a.Weights.TopN

	in := intel.DefaultConfig()
	in.MinCatalystSamples = a.Intel.MinCatalystSamples
	in.MinLeaderboardSamples = a.Intel.MinLeaderboardSamples
	in.TopN = a.Intel.TopN

	h := health.DefaultConfig()
	h.DegradedExpectancyPct = a.Health.DegradedExpectancyPct
	h.UnhealthyExpectancyPct = a.Health.UnhealthyExpectancyPct
	h.DegradedProfitFactor = a.Health.DegradedProfitFactor
	h.UnhealthyProfitFactor = a.Health.UnhealthyProfitFactor
	h.MinSamples = a.Health.MinSamples

	return Config{
		BreakevenBandPct: a.BreakevenBandPct,
		Calibration:      cal,
		Weights:          w,
		Intel:            in,
		Health:           h,
	}
}
