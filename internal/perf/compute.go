// Package perf reduces the outcome ledger into grouped performance
// statistics: win rate, expectancy, Sharpe, profit factor, drawdown.
package perf

import (
	"math"
	"sort"

	"trade-intel-lab/internal/domain"
)

// computeGroupMetrics calculates the full metrics row for one group of
// closed outcomes. Outcomes are sorted by ClosedAt ASC, ID ASC before the
// order-dependent drawdown walk, so input order never affects the result.
func computeGroupMetrics(dim domain.GroupDimension, key string, outcomes []*domain.TradeOutcome) domain.EngineMetrics {
	n := len(outcomes)

	sorted := make([]*domain.TradeOutcome, n)
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ClosedAt.Equal(sorted[j].ClosedAt) {
			return sorted[i].ClosedAt.Before(sorted[j].ClosedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var wins, losses, breakevens int
	var grossGain, grossLoss float64
	var sumWin, sumLoss float64

	returns := make([]float64, n)
	for i, o := range sorted {
		returns[i] = o.RealizedReturnPct
		switch o.Resolution {
		case domain.ResolutionWin:
			wins++
			sumWin += o.RealizedReturnPct
		case domain.ResolutionLoss:
			losses++
			sumLoss += o.RealizedReturnPct
		case domain.ResolutionBreakeven:
			breakevens++
		}
		if o.RealizedReturnPct > 0 {
			grossGain += o.RealizedReturnPct
		} else if o.RealizedReturnPct < 0 {
			grossLoss += -o.RealizedReturnPct
		}
	}

	mean := computeMean(returns)

	m := domain.EngineMetrics{
		Dimension: dim,
		GroupKey:  key,

		TradeCount: n,
		Wins:       wins,
		Losses:     losses,
		Breakevens: breakevens,

		WinRatePct:     computeWinRatePct(wins, n),
		ExpectancyPct:  mean,
		Sharpe:         computeSharpe(returns, mean),
		ProfitFactor:   computeProfitFactor(grossGain, grossLoss),
		MaxDrawdownPct: computeMaxDrawdown(returns),
	}

	if wins > 0 {
		m.AvgWinPct = sumWin / float64(wins)
	}
	if losses > 0 {
		m.AvgLossPct = sumLoss / float64(losses)
	}

	return m
}

// computeWinRatePct calculates win rate as a percentage of closed trades.
// Zero-sample groups never reach here; callers treat them as insufficient
// data, not 0%.
func computeWinRatePct(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// computeMean calculates the arithmetic mean of returns.
func computeMean(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	return sum / float64(len(returns))
}

// computePopulationStddev calculates population standard deviation
// (n denominator). The Sharpe contract specifies the population formula.
func computePopulationStddev(returns []float64, mean float64) float64 {
	n := len(returns)
	if n == 0 {
		return 0
	}
	sumSq := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n))
}

// computeSharpe calculates mean return / population stdev.
// Undefined (nil) with fewer than 2 trades; an infinity sentinel when the
// variance is zero with a nonzero mean.
func computeSharpe(returns []float64, mean float64) *domain.Ratio {
	if len(returns) < 2 {
		return nil
	}

	stddev := computePopulationStddev(returns, mean)
	var sharpe domain.Ratio
	switch {
	case stddev > 0:
		sharpe = domain.Ratio(mean / stddev)
	case mean > 0:
		sharpe = domain.Ratio(math.Inf(1))
	case mean < 0:
		sharpe = domain.Ratio(math.Inf(-1))
	default:
		sharpe = 0
	}
	return &sharpe
}

// computeProfitFactor calculates gross gain / gross loss, with the +Inf
// sentinel when the group has no losing amount.
func computeProfitFactor(grossGain, grossLoss float64) domain.Ratio {
	if grossLoss == 0 {
		if grossGain == 0 {
			return 0
		}
		return domain.Ratio(math.Inf(1))
	}
	return domain.Ratio(grossGain / grossLoss)
}

// computeMaxDrawdown calculates the worst peak-to-trough decline on the
// cumulative return curve. Returns must be in chronological close order.
func computeMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, r := range returns {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}
