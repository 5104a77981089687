// Package intel builds the historical-intelligence index: per-symbol
// profiles, catalyst breakdowns, and platform-wide roll-ups, derived
// wholesale from the outcome ledger on each refresh.
package intel

import (
	"sort"

	"trade-intel-lab/internal/calibration"
	"trade-intel-lab/internal/domain"
)

// Config controls index construction.
type Config struct {
	// MinCatalystSamples is the minimum trade count for a catalyst to rank
	// in best/worst lists (default 3).
	MinCatalystSamples int
	// MinLeaderboardSamples is the minimum trade count for a symbol to rank
	// as a top/bottom performer.
	MinLeaderboardSamples int
	// TopN bounds ranking lists.
	TopN int
	// BandWidthPct is the confidence-band width for the platform table.
	BandWidthPct float64
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() Config {
	return Config{
		MinCatalystSamples:    3,
		MinLeaderboardSamples: 5,
		TopN:                  10,
		BandWidthPct:          10,
	}
}

// Index is the immutable derived lookup structure. Build constructs a
// complete new Index; nothing mutates one in place.
type Index struct {
	profiles  map[string]domain.SymbolProfile
	catalysts map[string][]domain.CatalystStats // keyed by symbol, sorted by catalyst
	platform  domain.PlatformStats
	cfg       Config
}

// Build recomputes the full index from a ledger snapshot. Deterministic:
// the same snapshot always produces an identical index.
func Build(outcomes []*domain.TradeOutcome, cfg Config) *Index {
	idx := &Index{
		profiles:  make(map[string]domain.SymbolProfile),
		catalysts: make(map[string][]domain.CatalystStats),
		cfg:       cfg,
	}

	bySymbol := make(map[string][]*domain.TradeOutcome)
	for _, o := range outcomes {
		bySymbol[o.Symbol] = append(bySymbol[o.Symbol], o)
	}

	for symbol, rows := range bySymbol {
		catalysts := buildCatalystStats(rows)
		idx.catalysts[symbol] = catalysts
		idx.profiles[symbol] = buildProfile(symbol, rows, catalysts, cfg)
	}

	idx.platform = buildPlatformStats(outcomes, idx, cfg)
	return idx
}

// Profile returns the profile for a symbol. For symbols with zero closed
// trades it returns a profile with nil statistics, never zeros, so callers
// render "no data" instead of "0% win rate".
func (idx *Index) Profile(symbol string) domain.SymbolProfile {
	if p, ok := idx.profiles[symbol]; ok {
		return p
	}
	return domain.SymbolProfile{Symbol: symbol}
}

// Catalysts returns the per-catalyst breakdown for a symbol.
func (idx *Index) Catalysts(symbol string) []domain.CatalystStats {
	return idx.catalysts[symbol]
}

// BestCatalysts ranks a symbol's catalysts by win rate descending, keeping
// only those with at least MinCatalystSamples trades.
func (idx *Index) BestCatalysts(symbol string) []domain.CatalystStats {
	return idx.rankCatalysts(symbol, true)
}

// WorstCatalysts ranks a symbol's catalysts by win rate ascending.
func (idx *Index) WorstCatalysts(symbol string) []domain.CatalystStats {
	return idx.rankCatalysts(symbol, false)
}

// Platform returns the platform-wide roll-up.
func (idx *Index) Platform() domain.PlatformStats {
	return idx.platform
}

// SymbolCount returns the number of symbols with at least one closed trade.
func (idx *Index) SymbolCount() int {
	return len(idx.profiles)
}

// Profiles returns every symbol profile, sorted by symbol.
func (idx *Index) Profiles() []domain.SymbolProfile {
	out := make([]domain.SymbolProfile, 0, len(idx.profiles))
	for _, p := range idx.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (idx *Index) rankCatalysts(symbol string, best bool) []domain.CatalystStats {
	var ranked []domain.CatalystStats
	for _, c := range idx.catalysts[symbol] {
		if c.TradeCount >= idx.cfg.MinCatalystSamples && c.WinRatePct != nil {
			ranked = append(ranked, c)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		wi, wj := *ranked[i].WinRatePct, *ranked[j].WinRatePct
		if wi != wj {
			if best {
				return wi > wj
			}
			return wi < wj
		}
		return ranked[i].CatalystType < ranked[j].CatalystType
	})

	if idx.cfg.TopN > 0 && len(ranked) > idx.cfg.TopN {
		ranked = ranked[:idx.cfg.TopN]
	}
	return ranked
}

func buildProfile(symbol string, rows []*domain.TradeOutcome, catalysts []domain.CatalystStats, cfg Config) domain.SymbolProfile {
	p := domain.SymbolProfile{Symbol: symbol}

	var longWins, longCount, shortWins, shortCount int
	var grossGain, grossLoss, confSum float64

	for _, o := range rows {
		p.TotalIdeas++
		p.ClosedTrades++
		p.TotalPnLPct += o.RealizedReturnPct
		confSum += o.Confidence

		switch o.Resolution {
		case domain.ResolutionWin:
			p.Wins++
		case domain.ResolutionLoss:
			p.Losses++
		case domain.ResolutionBreakeven:
			p.Breakevens++
		}

		switch o.Direction {
		case domain.DirectionLong:
			longCount++
			if o.IsWin() {
				longWins++
			}
		case domain.DirectionShort:
			shortCount++
			if o.IsWin() {
				shortWins++
			}
		}

		if o.RealizedReturnPct > 0 {
			grossGain += o.RealizedReturnPct
		} else if o.RealizedReturnPct < 0 {
			grossLoss += -o.RealizedReturnPct
		}

		if p.LastTradeAt == nil || o.ClosedAt.After(*p.LastTradeAt) {
			closed := o.ClosedAt
			p.LastTradeAt = &closed
		}
	}

	p.OverallWinRatePct = winRatePtr(p.Wins, p.ClosedTrades)
	p.LongWinRatePct = winRatePtr(longWins, longCount)
	p.ShortWinRatePct = winRatePtr(shortWins, shortCount)

	if p.ClosedTrades > 0 {
		avg := confSum / float64(p.ClosedTrades)
		p.AvgConfidence = &avg

		pf := profitFactor(grossGain, grossLoss)
		p.ProfitFactor = &pf
	}

	// Best catalyst by win rate among sufficiently sampled catalysts.
	var best *domain.CatalystStats
	for i := range catalysts {
		c := &catalysts[i]
		if c.TradeCount < cfg.MinCatalystSamples || c.WinRatePct == nil {
			continue
		}
		if best == nil || *c.WinRatePct > *best.WinRatePct {
			best = c
		}
	}
	if best != nil {
		p.BestCatalyst = best.CatalystType
		p.BestCatalystWinRatePct = best.WinRatePct
	}

	return p
}

func buildCatalystStats(rows []*domain.TradeOutcome) []domain.CatalystStats {
	byCatalyst := make(map[string][]*domain.TradeOutcome)
	for _, o := range rows {
		if o.CatalystType == "" {
			continue
		}
		byCatalyst[o.CatalystType] = append(byCatalyst[o.CatalystType], o)
	}

	keys := make([]string, 0, len(byCatalyst))
	for k := range byCatalyst {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.CatalystStats, 0, len(keys))
	for _, k := range keys {
		group := byCatalyst[k]
		c := domain.CatalystStats{CatalystType: k, TradeCount: len(group)}
		var sum float64
		for _, o := range group {
			sum += o.RealizedReturnPct
			if o.IsWin() {
				c.Wins++
			} else if o.IsLoss() {
				c.Losses++
			}
		}
		c.WinRatePct = winRatePtr(c.Wins, c.TradeCount)
		c.AvgReturnPct = sum / float64(c.TradeCount)
		out = append(out, c)
	}
	return out
}

func buildPlatformStats(outcomes []*domain.TradeOutcome, idx *Index, cfg Config) domain.PlatformStats {
	stats := domain.PlatformStats{}

	for _, o := range outcomes {
		stats.TotalIdeas++
		stats.ClosedTrades++
		stats.TotalPnLPct += o.RealizedReturnPct
		switch o.Resolution {
		case domain.ResolutionWin:
			stats.Wins++
		case domain.ResolutionLoss:
			stats.Losses++
		case domain.ResolutionBreakeven:
			stats.Breakevens++
		}
	}
	stats.OverallWinRatePct = winRatePtr(stats.Wins, stats.ClosedTrades)

	stats.ByEngine = dimensionStats(outcomes, func(o *domain.TradeOutcome) string { return o.EngineID })
	stats.ByAssetType = dimensionStats(outcomes, func(o *domain.TradeOutcome) string { return o.AssetType })
	stats.ByDirection = dimensionStats(outcomes, func(o *domain.TradeOutcome) string { return string(o.Direction) })
	stats.ByCatalyst = dimensionStats(outcomes, func(o *domain.TradeOutcome) string { return o.CatalystType })

	stats.ConfidenceBands = calibration.ConfidenceBands(outcomes, cfg.BandWidthPct)

	stats.Leaderboard = buildLeaderboard(idx, 0)
	ranked := buildLeaderboard(idx, cfg.MinLeaderboardSamples)
	topN := cfg.TopN
	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}
	stats.TopPerformers = ranked[:topN]

	bottom := make([]domain.SymbolLeaderboardRow, len(ranked))
	copy(bottom, ranked)
	for i, j := 0, len(bottom)-1; i < j; i, j = i+1, j-1 {
		bottom[i], bottom[j] = bottom[j], bottom[i]
	}
	stats.BottomPerformers = bottom[:topN]

	return stats
}

// dimensionStats reduces the ledger along one field; rows missing the field
// are excluded from this breakdown only.
func dimensionStats(outcomes []*domain.TradeOutcome, keyFn func(*domain.TradeOutcome) string) []domain.DimensionStats {
	groups := make(map[string][]*domain.TradeOutcome)
	for _, o := range outcomes {
		key := keyFn(o)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], o)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.DimensionStats, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		d := domain.DimensionStats{Key: k, TradeCount: len(group)}
		wins := 0
		for _, o := range group {
			d.TotalPnLPct += o.RealizedReturnPct
			if o.IsWin() {
				wins++
			}
		}
		d.WinRatePct = winRatePtr(wins, d.TradeCount)
		d.AvgReturnPct = d.TotalPnLPct / float64(d.TradeCount)
		out = append(out, d)
	}
	return out
}

// buildLeaderboard ranks symbols by total P&L descending. minSamples=0
// includes every symbol.
func buildLeaderboard(idx *Index, minSamples int) []domain.SymbolLeaderboardRow {
	var rows []domain.SymbolLeaderboardRow
	for _, p := range idx.Profiles() {
		if p.ClosedTrades < minSamples {
			continue
		}
		rows = append(rows, domain.SymbolLeaderboardRow{
			Symbol:      p.Symbol,
			TradeCount:  p.ClosedTrades,
			WinRatePct:  p.OverallWinRatePct,
			TotalPnLPct: p.TotalPnLPct,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPnLPct != rows[j].TotalPnLPct {
			return rows[i].TotalPnLPct > rows[j].TotalPnLPct
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows
}

func winRatePtr(wins, total int) *float64 {
	if total == 0 {
		return nil
	}
	wr := float64(wins) / float64(total) * 100
	return &wr
}

func profitFactor(grossGain, grossLoss float64) domain.Ratio {
	if grossLoss == 0 {
		if grossGain == 0 {
			return 0
		}
		return domain.Inf()
	}
	return domain.Ratio(grossGain / grossLoss)
}
