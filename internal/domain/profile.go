package domain

import "time"

// SymbolProfile summarizes a symbol's full resolved history. Win-rate and
// ratio fields are pointers: nil means "insufficient data", which callers
// must render as "no data" rather than 0%.
type SymbolProfile struct {
	Symbol string `json:"symbol"`

	TotalIdeas   int `json:"totalIdeas"`
	ClosedTrades int `json:"closedTrades"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	Breakevens   int `json:"breakevens"`

	OverallWinRatePct *float64 `json:"overallWinRatePct"`
	LongWinRatePct    *float64 `json:"longWinRatePct"`
	ShortWinRatePct   *float64 `json:"shortWinRatePct"`

	TotalPnLPct  float64 `json:"totalPnlPct"`
	ProfitFactor *Ratio  `json:"profitFactor"`

	BestCatalyst           string   `json:"bestCatalyst,omitempty"`
	BestCatalystWinRatePct *float64 `json:"bestCatalystWinRatePct,omitempty"`

	AvgConfidence *float64   `json:"avgConfidence"`
	LastTradeAt   *time.Time `json:"lastTradeAt"`
}

// CatalystStats is a per-catalyst slice of one symbol's history.
type CatalystStats struct {
	CatalystType string   `json:"catalystType"`
	TradeCount   int      `json:"tradeCount"`
	Wins         int      `json:"wins"`
	Losses       int      `json:"losses"`
	WinRatePct   *float64 `json:"winRatePct"`
	AvgReturnPct float64  `json:"avgReturnPct"`
}

// SymbolIntelligence is the full point-lookup payload for one symbol.
type SymbolIntelligence struct {
	Profile SymbolProfile `json:"profile"`

	Catalysts []CatalystStats `json:"catalysts"`
	// BestCatalysts/WorstCatalysts rank catalysts by win rate among those
	// with at least the minimum sample size.
	BestCatalysts  []CatalystStats `json:"bestCatalysts"`
	WorstCatalysts []CatalystStats `json:"worstCatalysts"`

	RecentTrades []TradeOutcome `json:"recentTrades"`

	Recommendations []string `json:"recommendations"`
}

// DimensionStats is one row of a platform-wide breakdown (by engine, asset
// type, direction, or catalyst).
type DimensionStats struct {
	Key          string   `json:"key"`
	TradeCount   int      `json:"tradeCount"`
	WinRatePct   *float64 `json:"winRatePct"`
	TotalPnLPct  float64  `json:"totalPnlPct"`
	AvgReturnPct float64  `json:"avgReturnPct"`
}

// SymbolLeaderboardRow ranks symbols by realized performance.
type SymbolLeaderboardRow struct {
	Symbol      string   `json:"symbol"`
	TradeCount  int      `json:"tradeCount"`
	WinRatePct  *float64 `json:"winRatePct"`
	TotalPnLPct float64  `json:"totalPnlPct"`
}

// PlatformStats is the platform-wide historical roll-up.
type PlatformStats struct {
	TotalIdeas   int `json:"totalIdeas"`
	ClosedTrades int `json:"closedTrades"`
	Wins         int `json:"wins"`
	Losses       int `json:"losses"`
	Breakevens   int `json:"breakevens"`

	OverallWinRatePct *float64 `json:"overallWinRatePct"`
	TotalPnLPct       float64  `json:"totalPnlPct"`

	ByEngine    []DimensionStats `json:"byEngine"`
	ByAssetType []DimensionStats `json:"byAssetType"`
	ByDirection []DimensionStats `json:"byDirection"`
	ByCatalyst  []DimensionStats `json:"byCatalyst"`

	ConfidenceBands []ConfidenceBandRow `json:"confidenceBands"`

	Leaderboard      []SymbolLeaderboardRow `json:"leaderboard"`
	TopPerformers    []SymbolLeaderboardRow `json:"topPerformers"`
	BottomPerformers []SymbolLeaderboardRow `json:"bottomPerformers"`
}
