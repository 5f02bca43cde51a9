// Package ledger applies buy and sell trades to positions using weighted
// average cost accounting.
package ledger

import (
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
)

// stateScale is the precision positions are stored at. Arithmetic inside a
// single trade runs at full decimal precision.
const stateScale = models.QuantityScale

// Outcome describes the effect of one trade on a position.
type Outcome struct {
	Position      models.Position
	Sellable      decimal.Decimal // quantity actually sold; zero for buys
	RealizedDelta decimal.Decimal // P&L realised by this trade; zero for buys
	Clamped       bool            // sell asked for more than was held
}

// ValidateTrade rejects trades the ledger cannot apply.
func ValidateTrade(t models.TradeEvent) error {
	if t.AccountID == "" {
		return models.Invalid("account_id", "is required")
	}
	if t.InstrumentID == "" {
		return models.Invalid("instrument_id", "is required")
	}
	if t.Side != models.SideBuy && t.Side != models.SideSell {
		return models.Invalid("side", "must be BUY or SELL, got %q", t.Side)
	}
	if !t.Quantity.IsPositive() {
		return models.Invalid("quantity", "must be greater than zero, got %s", t.Quantity)
	}
	if t.Price.IsNegative() {
		return models.Invalid("price", "must not be negative, got %s", t.Price)
	}
	if t.Fee.IsNegative() {
		return models.Invalid("fee", "must not be negative, got %s", t.Fee)
	}
	if t.Tax.IsNegative() {
		return models.Invalid("tax", "must not be negative, got %s", t.Tax)
	}
	return nil
}

// ApplyTrade returns the position after trade. pos is not modified.
//
// A buy folds the purchase into the weighted average cost. A sell is clamped
// to the held quantity and realises (price - averageCost) x sold, net of fee
// and tax. Average cost resets to zero when the position closes; realised
// P&L is never reset.
func ApplyTrade(pos models.Position, trade models.TradeEvent) (Outcome, error) {
	if err := ValidateTrade(trade); err != nil {
		return Outcome{}, err
	}

	next := pos
	next.AccountID = trade.AccountID
	next.InstrumentID = trade.InstrumentID
	if !trade.OccurredAt.IsZero() {
		next.UpdatedAt = trade.OccurredAt
	}

	out := Outcome{Sellable: decimal.Zero, RealizedDelta: decimal.Zero}

	switch trade.Side {
	case models.SideBuy:
		qty := pos.Quantity.Add(trade.Quantity)
		cost := pos.AverageCost.Mul(pos.Quantity).Add(trade.Price.Mul(trade.Quantity))
		next.Quantity = qty
		if qty.IsPositive() {
			next.AverageCost = cost.Div(qty)
		} else {
			next.AverageCost = decimal.Zero
		}

	case models.SideSell:
		sellable := decimal.Min(pos.Quantity, trade.Quantity)
		if sellable.IsNegative() {
			sellable = decimal.Zero
		}
		out.Clamped = trade.Quantity.GreaterThan(pos.Quantity)
		out.Sellable = sellable

		delta := trade.Price.Sub(pos.AverageCost).Mul(sellable).Sub(trade.Fee).Sub(trade.Tax)
		out.RealizedDelta = delta

		remaining := pos.Quantity.Sub(sellable)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		next.Quantity = remaining
		next.RealizedPnL = pos.RealizedPnL.Add(delta)
		if !remaining.IsPositive() {
			next.AverageCost = decimal.Zero
		}
	}

	out.Position = normalize(next)
	return out, nil
}

// ReplayTrades folds trades over an empty position in order.
func ReplayTrades(trades []models.TradeEvent) (models.Position, error) {
	var pos models.Position
	for _, t := range trades {
		out, err := ApplyTrade(pos, t)
		if err != nil {
			return models.Position{}, err
		}
		pos = out.Position
	}
	return pos, nil
}

// normalize brings position state to storage precision.
func normalize(p models.Position) models.Position {
	p.Quantity = p.Quantity.Round(stateScale)
	p.AverageCost = p.AverageCost.Round(stateScale)
	p.RealizedPnL = p.RealizedPnL.Round(stateScale)
	return p
}
