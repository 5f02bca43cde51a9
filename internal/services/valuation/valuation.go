// Package valuation values current holdings against daily closes.
package valuation

import (
	"sort"
	"time"

	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Snapshot values a position at price. pnlRate is zero when the position
// has no cost basis.
func Snapshot(pos models.Position, price decimal.Decimal) models.PositionSnapshot {
	pnlRate := decimal.Zero
	if pos.AverageCost.IsPositive() {
		pnlRate = price.Sub(pos.AverageCost).Div(pos.AverageCost).Mul(hundred)
	}
	return models.PositionSnapshot{
		AccountID:    pos.AccountID,
		InstrumentID: pos.InstrumentID,
		Quantity:     pos.Quantity.Round(models.QuantityScale),
		AverageCost:  pos.AverageCost.Round(models.QuantityScale),
		CurrentPrice: price.Round(models.QuantityScale),
		Valuation:    pos.Quantity.Mul(price).Round(models.AmountScale),
		PnLRate:      pnlRate.Round(models.AmountScale),
	}
}

// TotalValue sums snapshot valuations.
func TotalValue(snapshots []models.PositionSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, s := range snapshots {
		total = total.Add(s.Valuation)
	}
	return total.Round(models.AmountScale)
}

// SortByValuation orders snapshots by valuation descending, instrument ID ascending on ties.
func SortByValuation(snapshots []models.PositionSnapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		if c := snapshots[i].Valuation.Cmp(snapshots[j].Valuation); c != 0 {
			return c > 0
		}
		return snapshots[i].InstrumentID < snapshots[j].InstrumentID
	})
}

// PriceSeries is an instrument's daily closes in ascending date order.
type PriceSeries []models.PricePoint

// AsOf returns the most recent close at or before date.
func (s PriceSeries) AsOf(date time.Time) (decimal.Decimal, bool) {
	target := models.DateOnly(date)
	// First index strictly after the target; the one before it is the answer.
	idx := sort.Search(len(s), func(i int) bool {
		return models.DateOnly(s[i].Date).After(target)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return s[idx-1].Close, true
}

// Holding is a frozen quantity of one instrument.
type Holding struct {
	InstrumentID string
	Quantity     decimal.Decimal
}

// Holdings aggregates open positions by instrument. A user holding the same
// instrument in two accounts is valued once with the summed quantity.
func Holdings(positions []models.Position) []Holding {
	byInstrument := make(map[string]decimal.Decimal)
	for _, p := range positions {
		if !p.Quantity.IsPositive() {
			continue
		}
		byInstrument[p.InstrumentID] = byInstrument[p.InstrumentID].Add(p.Quantity)
	}
	out := make([]Holding, 0, len(byInstrument))
	for id, qty := range byInstrument {
		out = append(out, Holding{InstrumentID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstrumentID < out[j].InstrumentID })
	return out
}

// ValueSeries returns Σ quantity × close-as-of(date) for every date in
// [from, to] on which at least one held instrument has a close. Closes are
// forward-filled; an instrument with no close yet contributes nothing.
// Values keep full precision.
func ValueSeries(holdings []Holding, prices map[string]PriceSeries, from, to time.Time) []models.DailyValuePoint {
	from, to = models.DateOnly(from), models.DateOnly(to)

	seen := make(map[time.Time]struct{})
	for _, h := range holdings {
		for _, p := range prices[h.InstrumentID] {
			d := models.DateOnly(p.Date)
			if d.Before(from) || d.After(to) {
				continue
			}
			seen[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]models.DailyValuePoint, 0, len(dates))
	for _, d := range dates {
		value := decimal.Zero
		for _, h := range holdings {
			if price, ok := prices[h.InstrumentID].AsOf(d); ok {
				value = value.Add(h.Quantity.Mul(price))
			}
		}
		out = append(out, models.DailyValuePoint{Date: d, Value: value})
	}
	return out
}
