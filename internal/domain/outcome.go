package domain

import (
	"fmt"
	"time"
)

// Direction of a trade prediction.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Resolution classification of a closed prediction.
type Resolution string

const (
	ResolutionWin       Resolution = "win"
	ResolutionLoss      Resolution = "loss"
	ResolutionBreakeven Resolution = "breakeven"
)

// TradeOutcome is one resolved trade prediction from the outcome ledger.
// Rows are owned by the upstream prediction/resolution process and are
// read-only here; once resolved a TradeOutcome never changes.
type TradeOutcome struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	EngineID string `json:"engineId"`

	Direction Direction `json:"direction"`
	Signals   []string  `json:"signals"` // signal tags that fired at prediction time
	// Confidence score assigned at prediction time, 0-100.
	Confidence float64 `json:"confidence"`

	CatalystType string `json:"catalystType,omitempty"` // "" when the idea had no catalyst
	AssetType    string `json:"assetType,omitempty"`    // e.g. "stock", "crypto", "etf"

	// RealizedReturnPct is the realized percent return (5.0 means +5%).
	RealizedReturnPct float64    `json:"realizedReturnPct"`
	Resolution        Resolution `json:"resolution"`

	OpenedAt time.Time `json:"openedAt"`
	ClosedAt time.Time `json:"closedAt"`
}

// Validate checks internal consistency of a resolved outcome.
// breakevenBandPct is the half-width of the band around zero return inside
// which a breakeven classification is accepted (and outside which the
// classification must match the sign of the return).
func (t *TradeOutcome) Validate(breakevenBandPct float64) error {
	if t.ID == "" {
		return fmt.Errorf("trade outcome missing id")
	}
	if t.Symbol == "" {
		return fmt.Errorf("trade outcome %s: missing symbol", t.ID)
	}
	if t.Confidence < 0 || t.Confidence > 100 {
		return fmt.Errorf("trade outcome %s: confidence %.2f outside [0,100]", t.ID, t.Confidence)
	}

	switch t.Resolution {
	case ResolutionWin:
		if t.RealizedReturnPct <= -breakevenBandPct {
			return fmt.Errorf("trade outcome %s: win with return %.4f%%", t.ID, t.RealizedReturnPct)
		}
	case ResolutionLoss:
		if t.RealizedReturnPct >= breakevenBandPct {
			return fmt.Errorf("trade outcome %s: loss with return %.4f%%", t.ID, t.RealizedReturnPct)
		}
	case ResolutionBreakeven:
		if t.RealizedReturnPct > breakevenBandPct || t.RealizedReturnPct < -breakevenBandPct {
			return fmt.Errorf("trade outcome %s: breakeven with return %.4f%% outside band %.4f%%",
				t.ID, t.RealizedReturnPct, breakevenBandPct)
		}
	default:
		return fmt.Errorf("trade outcome %s: unknown resolution %q", t.ID, t.Resolution)
	}

	return nil
}

// IsWin reports whether the outcome resolved as a win.
func (t *TradeOutcome) IsWin() bool { return t.Resolution == ResolutionWin }

// IsLoss reports whether the outcome resolved as a loss.
func (t *TradeOutcome) IsLoss() bool { return t.Resolution == ResolutionLoss }

// IsBreakeven reports whether the outcome resolved inside the breakeven band.
func (t *TradeOutcome) IsBreakeven() bool { return t.Resolution == ResolutionBreakeven }
