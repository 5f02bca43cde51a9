package simulation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/valuation"
	"github.com/shopspring/decimal"
)

// Held is an open position aggregated per instrument, with display metadata.
type Held struct {
	InstrumentID string
	Symbol       string
	Name         string
	Quantity     decimal.Decimal
	AverageCost  decimal.Decimal
}

// Holdings strips held positions down to their quantities.
func Holdings(held []Held) []valuation.Holding {
	out := make([]valuation.Holding, len(held))
	for i, h := range held {
		out[i] = valuation.Holding{InstrumentID: h.InstrumentID, Quantity: h.Quantity}
	}
	return out
}

// Summarize derives the window KPIs and display timeline from snapshot rows.
// The rows must be ascending by date and share a base value.
func Summarize(userID string, rows []models.SimulationSnapshot, start, end time.Time, cfg common.SimulationConfig) *models.SimulationResult {
	if len(rows) == 0 {
		return Empty(userID, start, end)
	}

	first, last := rows[0], rows[len(rows)-1]
	startValue := first.SimulatedValue.Round(models.AmountScale)
	endValue := last.SimulatedValue.Round(models.AmountScale)
	pnlRate := last.CumulativeReturnPct.Round(models.AmountScale)

	dayGap := max(1, int(last.Date.Sub(first.Date).Hours()/24))
	annualized := pnlRate
	if dayGap >= cfg.AnnualizeMinDays {
		annualized = annualizedReturn(first.SimulatedValue, last.SimulatedValue, dayGap).Round(models.AmountScale)
	}

	maxDrawdown := decimal.Zero
	timeline := make([]models.SimulationPoint, len(rows))
	for i, r := range rows {
		maxDrawdown = decimal.Max(maxDrawdown, r.DrawdownPct)
		timeline[i] = models.SimulationPoint{
			Date:                r.Date.Format(models.DateLayout),
			Value:               r.SimulatedValue.Round(models.AmountScale).InexactFloat64(),
			CumulativeReturnPct: r.CumulativeReturnPct.Round(models.AmountScale).InexactFloat64(),
			DrawdownPct:         r.DrawdownPct.Round(models.AmountScale).InexactFloat64(),
		}
	}

	annualizeNote := "Annualized return is most meaningful over long windows."
	if dayGap < cfg.AnnualizeMinDays {
		annualizeNote = fmt.Sprintf("Windows shorter than %d days report the period return as the annualized return.", cfg.AnnualizeMinDays)
	}

	return &models.SimulationResult{
		UserID:              userID,
		StartDate:           first.Date.Format(models.DateLayout),
		EndDate:             last.Date.Format(models.DateLayout),
		Points:              len(rows),
		StartValue:          startValue.InexactFloat64(),
		EndValue:            endValue.InexactFloat64(),
		PnLAmount:           endValue.Sub(startValue).InexactFloat64(),
		PnLRate:             pnlRate.InexactFloat64(),
		AnnualizedReturnPct: annualized.InexactFloat64(),
		MaxDrawdownPct:      maxDrawdown.Round(models.AmountScale).InexactFloat64(),
		Timeline:            timeline,
		Contributions:       []models.SimulationContribution{},
		Notes: []string{
			"Current holding quantities are applied to historical closes.",
			"The window starts at the first buy date or the chosen date and ends on the chosen date's close.",
			annualizeNote,
			"Fees, taxes and interim rebalancing are not included; use for comparison only.",
		},
	}
}

// Empty is the result for a window without usable price data.
func Empty(userID string, start, end time.Time) *models.SimulationResult {
	return &models.SimulationResult{
		UserID:        userID,
		StartDate:     start.Format(models.DateLayout),
		EndDate:       end.Format(models.DateLayout),
		Timeline:      []models.SimulationPoint{},
		Contributions: []models.SimulationContribution{},
		Notes: []string{
			"No price data is available for the selected window.",
			"Move the start date later or check that daily price ingestion has run.",
		},
	}
}

// annualizedReturn compounds the window return to a 365-day year.
func annualizedReturn(start, end decimal.Decimal, days int) decimal.Decimal {
	if !start.IsPositive() || !end.IsPositive() || days <= 0 {
		return decimal.Zero
	}
	factor := end.DivRound(start, 10).InexactFloat64()
	v := (math.Pow(factor, 365/float64(days)) - 1) * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(rowScale)
}

// Contributions attributes the window P&L to each held instrument. Prices are
// as-of start and end; an instrument without a close is priced at cost.
// Sorted by absolute P&L, largest first.
func Contributions(held []Held, prices map[string]valuation.PriceSeries, start, end time.Time) []models.SimulationContribution {
	type row struct {
		c   models.SimulationContribution
		abs decimal.Decimal
	}
	rows := make([]row, 0, len(held))
	for _, h := range held {
		series := prices[h.InstrumentID]
		startPrice, ok := series.AsOf(start)
		if !ok {
			startPrice = h.AverageCost
		}
		endPrice, ok := series.AsOf(end)
		if !ok {
			endPrice = h.AverageCost
		}
		startPrice = startPrice.Round(models.AmountScale)
		endPrice = endPrice.Round(models.AmountScale)
		qty := h.Quantity.Round(rowScale)
		pnl := endPrice.Sub(startPrice).Mul(qty).Round(models.AmountScale)

		rows = append(rows, row{
			abs: pnl.Abs(),
			c: models.SimulationContribution{
				InstrumentID: h.InstrumentID,
				Symbol:       h.Symbol,
				Name:         h.Name,
				Quantity:     qty.Round(4).InexactFloat64(),
				StartPrice:   startPrice.InexactFloat64(),
				EndPrice:     endPrice.InexactFloat64(),
				PnLAmount:    pnl.InexactFloat64(),
				PnLRate:      RatioPercent(startPrice, endPrice).Round(models.AmountScale).InexactFloat64(),
			},
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].abs.Cmp(rows[j].abs); c != 0 {
			return c > 0
		}
		return rows[i].c.InstrumentID < rows[j].c.InstrumentID
	})

	out := make([]models.SimulationContribution, len(rows))
	for i, r := range rows {
		out[i] = r.c
	}
	return out
}
