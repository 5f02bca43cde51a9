// Package simulation replays current holdings against historical closes.
package simulation

import (
	"time"

	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/valuation"
	"github.com/shopspring/decimal"
)

const (
	rowScale   = 6
	ratioScale = 8
)

var hundred = decimal.NewFromInt(100)

// Build returns one snapshot row per date in [from, to] on which the frozen
// holdings have a positive simulated value. The first such date is the base.
// Drawdown is measured against the running peak, which never resets inside
// the window.
func Build(userID string, holdings []valuation.Holding, prices map[string]valuation.PriceSeries, from, to time.Time) []models.SimulationSnapshot {
	series := valuation.ValueSeries(holdings, prices, from, to)

	var (
		rows []models.SimulationSnapshot
		base decimal.Decimal
		peak decimal.Decimal
		prev decimal.Decimal
	)
	for _, point := range series {
		current := point.Value.Round(rowScale)
		if !current.IsPositive() {
			continue
		}
		daily := decimal.Zero
		if len(rows) == 0 {
			base, peak = current, current
		} else {
			daily = RatioPercent(prev, current).Round(rowScale)
		}
		if current.GreaterThan(peak) {
			peak = current
		}

		rows = append(rows, models.SimulationSnapshot{
			UserID:              userID,
			Date:                point.Date,
			SimulatedValue:      current,
			BaseValue:           base,
			CumulativeReturnPct: RatioPercent(base, current).Round(rowScale),
			DailyReturnPct:      daily,
			DrawdownPct:         drawdown(peak, current),
		})
		prev = current
	}
	return rows
}

// RatioPercent is 100 × (current − base) / base, or zero when base is zero.
func RatioPercent(base, current decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return current.Sub(base).DivRound(base, ratioScale).Mul(hundred)
}

func drawdown(peak, current decimal.Decimal) decimal.Decimal {
	if !peak.IsPositive() {
		return decimal.Zero
	}
	return peak.Sub(current).DivRound(peak, ratioScale).Mul(hundred).Round(rowScale)
}
