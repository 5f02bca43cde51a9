// Package models defines data structures for Playasset
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalises a side string ("buy", " SELL ") into a Side.
// Returns false for anything that is not BUY or SELL.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// Decimal scales used at output boundaries.
const (
	QuantityScale = 6 // quantity and average cost
	AmountScale   = 2 // currency amounts and percentages
)

// Account is a brokerage account owned by a single user.
type Account struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// Instrument is a tradable asset (stock or ETF).
type Instrument struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Market    string `json:"market"`     // e.g. "US", "KR"
	AssetType string `json:"asset_type"` // "STOCK", "ETF"
	Currency  string `json:"currency"`
}

// Position is the ledger state for one (account, instrument) pair.
// AverageCost is zero whenever Quantity is zero. RealizedPnL is cumulative
// and never reset.
type Position struct {
	AccountID    string          `json:"account_id"`
	InstrumentID string          `json:"instrument_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Key returns the per-position serialization key.
func (p Position) Key() string {
	return PositionKey(p.AccountID, p.InstrumentID)
}

// PositionKey builds the identity key for an (account, instrument) position.
func PositionKey(accountID, instrumentID string) string {
	return accountID + "_" + instrumentID
}

// Rounded returns the position with quantity/average cost at QuantityScale
// and realized P&L at AmountScale.
func (p Position) Rounded() Position {
	p.Quantity = p.Quantity.Round(QuantityScale)
	p.AverageCost = p.AverageCost.Round(QuantityScale)
	p.RealizedPnL = p.RealizedPnL.Round(AmountScale)
	return p
}

// TradeEvent is an immutable, append-only buy or sell record.
type TradeEvent struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Fee          decimal.Decimal `json:"fee"`
	Tax          decimal.Decimal `json:"tax"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Note         string          `json:"note,omitempty"`
}

// PositionKey returns the key of the position this trade mutates.
func (t TradeEvent) PositionKey() string {
	return PositionKey(t.AccountID, t.InstrumentID)
}

// PositionSnapshot is a position valued at its current price. Derived, not stored.
type PositionSnapshot struct {
	AccountID    string          `json:"account_id"`
	InstrumentID string          `json:"instrument_id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Market       string          `json:"market,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Valuation    decimal.Decimal `json:"valuation"`
	PnLRate      decimal.Decimal `json:"pnl_rate"` // percent vs average cost
	PriceIsCost  bool            `json:"price_is_cost,omitempty"` // no close available, valued at cost
}

// PricePoint is one daily close for an instrument.
type PricePoint struct {
	InstrumentID string          `json:"instrument_id"`
	Date         time.Time       `json:"date"`
	Close        decimal.Decimal `json:"close"`
}

// DailyValuePoint is the aggregate portfolio value on one date.
type DailyValuePoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// TradeResult is the outcome of recording a trade.
type TradeResult struct {
	Trade    TradeEvent `json:"trade"`
	Position Position   `json:"position"`
	// Clamped is true when a sell asked for more than was held.
	Clamped bool `json:"clamped,omitempty"`
}
