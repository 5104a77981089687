package domain

// GroupDimension identifies which ledger field a metrics row was grouped by.
type GroupDimension string

const (
	GroupByEngine    GroupDimension = "engine"
	GroupBySymbol    GroupDimension = "symbol"
	GroupByDirection GroupDimension = "direction"
	GroupByCatalyst  GroupDimension = "catalyst"
	GroupByAssetType GroupDimension = "asset_type"
)

// EngineMetrics is a full set of performance statistics for one group of
// closed trades (per engine, per symbol, per direction, per catalyst type).
// Rows are recomputed wholesale on every aggregation run, never mutated.
type EngineMetrics struct {
	Dimension GroupDimension `json:"dimension"`
	GroupKey  string         `json:"groupKey"`

	TradeCount int `json:"tradeCount"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	Breakevens int `json:"breakevens"`

	// WinRatePct is wins / closed trades, as a percentage (57.3 means 57.3%).
	WinRatePct float64 `json:"winRatePct"`
	// ExpectancyPct is the mean realized return per trade, in percent.
	ExpectancyPct float64 `json:"expectancyPct"`
	// Sharpe is mean return / population stdev of returns. Nil when fewer
	// than two trades make the ratio undefined; +Inf when variance is zero
	// with a positive mean.
	Sharpe *Ratio `json:"sharpe"`
	// ProfitFactor is gross gain / gross loss, +Inf when the group has no
	// losing trades.
	ProfitFactor Ratio `json:"profitFactor"`
	// MaxDrawdownPct is the worst peak-to-trough decline of the cumulative
	// return curve, walking trades in chronological close order.
	MaxDrawdownPct float64 `json:"maxDrawdownPct"`

	AvgWinPct  float64 `json:"avgWinPct"`
	AvgLossPct float64 `json:"avgLossPct"`
}
