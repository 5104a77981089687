// Package health derives a platform-level status from aggregate performance.
package health

import (
	"fmt"
	"math"

	"trade-intel-lab/internal/domain"
)

// Status values, ordered from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Config holds the status thresholds.
type Config struct {
	// Expectancy thresholds, in percent per trade.
	DegradedExpectancyPct  float64 // below this -> degraded
	UnhealthyExpectancyPct float64 // below this -> unhealthy

	// Profit-factor thresholds.
	DegradedProfitFactor  float64
	UnhealthyProfitFactor float64

	// MinSamples is the closed-trade count below which the platform is
	// reported degraded for lack of data rather than scored.
	MinSamples int
}

// DefaultConfig returns the default health thresholds.
func DefaultConfig() Config {
	return Config{
		DegradedExpectancyPct:  0.0,
		UnhealthyExpectancyPct: -1.0,
		DegradedProfitFactor:   1.2,
		UnhealthyProfitFactor:  0.9,
		MinSamples:             10,
	}
}

// Summary is the platform health payload.
type Summary struct {
	Status string `json:"status"`

	ClosedTrades  int          `json:"closedTrades"`
	WinRatePct    *float64     `json:"winRatePct"`
	ExpectancyPct float64      `json:"expectancyPct"`
	ProfitFactor  domain.Ratio `json:"profitFactor"`

	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Evaluate scores the platform from the all-trades aggregate. overall may be
// nil when the ledger is empty. Deterministic: the issue and recommendation
// strings are a pure function of the numbers.
func Evaluate(overall *domain.EngineMetrics, cfg Config) Summary {
	if overall == nil || overall.TradeCount == 0 {
		return Summary{
			Status:          StatusDegraded,
			Issues:          []string{"no resolved trades in the ledger"},
			Recommendations: []string{"wait for predictions to resolve before reading platform statistics"},
		}
	}

	s := Summary{
		ClosedTrades:  overall.TradeCount,
		ExpectancyPct: overall.ExpectancyPct,
		ProfitFactor:  overall.ProfitFactor,
	}
	wr := overall.WinRatePct
	s.WinRatePct = &wr

	if overall.TradeCount < cfg.MinSamples {
		s.Status = StatusDegraded
		s.Issues = append(s.Issues,
			fmt.Sprintf("only %d resolved trades; statistics are not yet meaningful", overall.TradeCount))
		s.Recommendations = append(s.Recommendations,
			fmt.Sprintf("treat all metrics as provisional until at least %d trades resolve", cfg.MinSamples))
		return s
	}

	status := StatusHealthy
	pf := float64(overall.ProfitFactor)

	if overall.ExpectancyPct < cfg.DegradedExpectancyPct {
		status = worse(status, StatusDegraded)
		s.Issues = append(s.Issues,
			fmt.Sprintf("expectancy %.2f%% per trade is below %.2f%%", overall.ExpectancyPct, cfg.DegradedExpectancyPct))
		s.Recommendations = append(s.Recommendations,
			"review engines with negative expectancy before sizing up")
	}
	if overall.ExpectancyPct < cfg.UnhealthyExpectancyPct {
		status = worse(status, StatusUnhealthy)
	}

	if !math.IsInf(pf, 1) {
		if pf < cfg.DegradedProfitFactor {
			status = worse(status, StatusDegraded)
			s.Issues = append(s.Issues,
				fmt.Sprintf("profit factor %.2f is below %.2f", pf, cfg.DegradedProfitFactor))
			s.Recommendations = append(s.Recommendations,
				"losses are eating most of the gross gains; tighten signal weighting or cut weak engines")
		}
		if pf < cfg.UnhealthyProfitFactor {
			status = worse(status, StatusUnhealthy)
		}
	}

	s.Status = status
	return s
}

// worse keeps the worst of two statuses.
func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
