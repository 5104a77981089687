package reporting

import (
	"fmt"
	"strings"

	"trade-intel-lab/internal/domain"
)

// RenderCSV renders metric rows as a CSV string.
func RenderCSV(rows []domain.EngineMetrics) string {
	var sb strings.Builder

	// Header
	sb.WriteString("dimension,group_key,trade_count,wins,losses,breakevens,")
	sb.WriteString("win_rate_pct,expectancy_pct,sharpe,profit_factor,")
	sb.WriteString("max_drawdown_pct,avg_win_pct,avg_loss_pct\n")

	// Rows
	for _, m := range rows {
		sharpe := ""
		if m.Sharpe != nil {
			sharpe = formatRatio(*m.Sharpe)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%.4f,%.4f,%s,%s,%.4f,%.4f,%.4f\n",
			m.Dimension,
			m.GroupKey,
			m.TradeCount,
			m.Wins,
			m.Losses,
			m.Breakevens,
			m.WinRatePct,
			m.ExpectancyPct,
			sharpe,
			formatRatio(m.ProfitFactor),
			m.MaxDrawdownPct,
			m.AvgWinPct,
			m.AvgLossPct,
		))
	}

	return sb.String()
}
