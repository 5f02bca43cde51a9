package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimulationSnapshot is one day of a backtest replaying current holdings
// against historical closes. Keyed by (UserID, Date).
type SimulationSnapshot struct {
	UserID              string          `json:"user_id"`
	Date                time.Time       `json:"date"`
	SimulatedValue      decimal.Decimal `json:"simulated_value"`
	BaseValue           decimal.Decimal `json:"base_value"`
	CumulativeReturnPct decimal.Decimal `json:"cumulative_return_pct"`
	DailyReturnPct      decimal.Decimal `json:"daily_return_pct"`
	DrawdownPct         decimal.Decimal `json:"drawdown_pct"`
}

// SimulationPoint is the display form of a snapshot row.
type SimulationPoint struct {
	Date                string  `json:"date"`
	Value               float64 `json:"value"`
	CumulativeReturnPct float64 `json:"cumulative_return_pct"`
	DrawdownPct         float64 `json:"drawdown_pct"`
}

// SimulationContribution is one position's share of the simulated P&L.
type SimulationContribution struct {
	InstrumentID string  `json:"instrument_id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	StartPrice   float64 `json:"start_price"`
	EndPrice     float64 `json:"end_price"`
	PnLAmount    float64 `json:"pnl_amount"`
	PnLRate      float64 `json:"pnl_rate"`
}

// SimulationResult carries the window KPIs, timeline and contributions.
type SimulationResult struct {
	UserID              string                   `json:"user_id"`
	StartDate           string                   `json:"start_date"`
	EndDate             string                   `json:"end_date"`
	Points              int                      `json:"points"`
	StartValue          float64                  `json:"start_value"`
	EndValue            float64                  `json:"end_value"`
	PnLAmount           float64                  `json:"pnl_amount"`
	PnLRate             float64                  `json:"pnl_rate"`
	AnnualizedReturnPct float64                  `json:"annualized_return_pct"`
	MaxDrawdownPct      float64                  `json:"max_drawdown_pct"`
	Timeline            []SimulationPoint        `json:"timeline"`
	Contributions       []SimulationContribution `json:"contributions"`
	Notes               []string                 `json:"notes"`
}
