package ledger

import (
	"errors"
	"testing"

	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func trade(side models.Side, qty, price string) models.TradeEvent {
	return models.TradeEvent{
		AccountID:    "acct-1",
		InstrumentID: "AAPL",
		Side:         side,
		Quantity:     d(qty),
		Price:        d(price),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestApplyTrade_Scenario(t *testing.T) {
	var pos models.Position

	out, err := ApplyTrade(pos, trade(models.SideBuy, "10", "100"))
	require.NoError(t, err)
	pos = out.Position
	assertDecimal(t, "10", pos.Quantity, "quantity")
	assertDecimal(t, "100", pos.AverageCost, "average cost")
	assertDecimal(t, "0", pos.RealizedPnL, "realized")

	out, err = ApplyTrade(pos, trade(models.SideBuy, "10", "200"))
	require.NoError(t, err)
	pos = out.Position
	assertDecimal(t, "20", pos.Quantity, "quantity")
	assertDecimal(t, "150", pos.AverageCost, "average cost")

	sell := trade(models.SideSell, "15", "180")
	sell.Fee = d("5")
	sell.Tax = d("2")
	out, err = ApplyTrade(pos, sell)
	require.NoError(t, err)
	pos = out.Position
	assertDecimal(t, "15", out.Sellable, "sellable")
	assertDecimal(t, "443", out.RealizedDelta, "realized delta")
	assertDecimal(t, "5", pos.Quantity, "quantity")
	assertDecimal(t, "150", pos.AverageCost, "average cost")
	assertDecimal(t, "443", pos.RealizedPnL, "realized")
	assert.False(t, out.Clamped)
}

func TestApplyTrade_SellClamped(t *testing.T) {
	pos := models.Position{Quantity: d("5"), AverageCost: d("150"), RealizedPnL: d("443")}

	sell := trade(models.SideSell, "8", "160")
	sell.Fee = d("1")
	out, err := ApplyTrade(pos, sell)
	require.NoError(t, err)

	assert.True(t, out.Clamped)
	assertDecimal(t, "5", out.Sellable, "sellable")
	assertDecimal(t, "0", out.Position.Quantity, "quantity")
	assertDecimal(t, "0", out.Position.AverageCost, "average cost resets on close")
	// (160-150)*5 - 1 = 49
	assertDecimal(t, "492", out.Position.RealizedPnL, "realized persists")
}

func TestApplyTrade_SellFromEmpty(t *testing.T) {
	out, err := ApplyTrade(models.Position{}, trade(models.SideSell, "3", "10"))
	require.NoError(t, err)
	assert.True(t, out.Clamped)
	assertDecimal(t, "0", out.Position.Quantity, "quantity")
	assertDecimal(t, "0", out.Position.RealizedPnL, "realized")
}

func TestApplyTrade_BuyAfterCloseStartsFreshCost(t *testing.T) {
	pos := models.Position{Quantity: d("0"), AverageCost: d("0"), RealizedPnL: d("-12.5")}
	out, err := ApplyTrade(pos, trade(models.SideBuy, "4", "25"))
	require.NoError(t, err)
	assertDecimal(t, "25", out.Position.AverageCost, "average cost")
	assertDecimal(t, "-12.5", out.Position.RealizedPnL, "buy leaves realized unchanged")
}

func TestApplyTrade_DoesNotMutateInput(t *testing.T) {
	pos := models.Position{Quantity: d("10"), AverageCost: d("100")}
	_, err := ApplyTrade(pos, trade(models.SideBuy, "10", "200"))
	require.NoError(t, err)
	assertDecimal(t, "10", pos.Quantity, "input quantity")
	assertDecimal(t, "100", pos.AverageCost, "input cost")
}

func TestApplyTrade_FractionalPrecision(t *testing.T) {
	var pos models.Position
	for _, p := range []string{"10.10", "10.20", "10.35"} {
		out, err := ApplyTrade(pos, trade(models.SideBuy, "3", p))
		require.NoError(t, err)
		pos = out.Position
	}
	// (30.30 + 30.60 + 31.05) / 9 = 10.216666...
	assertDecimal(t, "9", pos.Quantity, "quantity")
	assertDecimal(t, "10.216667", pos.AverageCost, "average cost at 6dp")
}

func TestValidateTrade(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*models.TradeEvent)
		field string
	}{
		{"zero quantity", func(t *models.TradeEvent) { t.Quantity = d("0") }, "quantity"},
		{"negative quantity", func(t *models.TradeEvent) { t.Quantity = d("-1") }, "quantity"},
		{"negative price", func(t *models.TradeEvent) { t.Price = d("-0.01") }, "price"},
		{"negative fee", func(t *models.TradeEvent) { t.Fee = d("-1") }, "fee"},
		{"negative tax", func(t *models.TradeEvent) { t.Tax = d("-1") }, "tax"},
		{"unknown side", func(t *models.TradeEvent) { t.Side = "HOLD" }, "side"},
		{"missing account", func(t *models.TradeEvent) { t.AccountID = "" }, "account_id"},
		{"missing instrument", func(t *models.TradeEvent) { t.InstrumentID = "" }, "instrument_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := trade(models.SideBuy, "1", "1")
			tt.mod(&tr)

			_, err := ApplyTrade(models.Position{}, tr)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidInput))

			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateTrade_ZeroPriceAllowed(t *testing.T) {
	// Bonus shares and transfers-in arrive at zero price.
	assert.NoError(t, ValidateTrade(trade(models.SideBuy, "1", "0")))
}

func TestReplayTrades_BuyConservation(t *testing.T) {
	buys := []struct{ qty, price string }{
		{"3", "10"}, {"7", "12.5"}, {"2.5", "9.8"}, {"10", "11"}, {"0.5", "15"},
	}

	var trades []models.TradeEvent
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, b := range buys {
		trades = append(trades, trade(models.SideBuy, b.qty, b.price))
		totalQty = totalQty.Add(d(b.qty))
		totalCost = totalCost.Add(d(b.qty).Mul(d(b.price)))
	}

	pos, err := ReplayTrades(trades)
	require.NoError(t, err)

	assert.True(t, totalQty.Equal(pos.Quantity), "quantity = sum of buys")
	want := totalCost.Div(totalQty)
	diff := want.Sub(pos.AverageCost).Abs()
	assert.True(t, diff.LessThanOrEqual(d("0.000001")), "average cost = value-weighted mean, diff %s", diff)
	assert.True(t, pos.RealizedPnL.IsZero(), "buys never realize")
}

func TestReplayTrades_RealizedOnlyChangesOnSell(t *testing.T) {
	trades := []models.TradeEvent{
		trade(models.SideBuy, "10", "100"),
		trade(models.SideSell, "4", "110"),
		trade(models.SideBuy, "6", "90"),
		trade(models.SideSell, "20", "95"),
	}

	var pos models.Position
	for _, tr := range trades {
		out, err := ApplyTrade(pos, tr)
		require.NoError(t, err)
		if tr.Side == models.SideBuy {
			assert.True(t, out.Position.RealizedPnL.Equal(pos.RealizedPnL))
		}
		assert.False(t, out.Position.Quantity.IsNegative())
		pos = out.Position
	}
	// sell 4 @110 vs 100 = 40; avg after buy = (6*100 + 6*90)/12 = 95; sell 12 @95 = 0
	assertDecimal(t, "40", pos.RealizedPnL, "realized")
	assertDecimal(t, "0", pos.Quantity, "quantity")
}

func TestReplayTrades_StopsOnInvalid(t *testing.T) {
	_, err := ReplayTrades([]models.TradeEvent{
		trade(models.SideBuy, "1", "1"),
		trade(models.SideBuy, "0", "1"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
