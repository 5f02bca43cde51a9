package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/bobmcallan/playasset/internal/cache"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/services/ledger"
	"github.com/bobmcallan/playasset/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: want %s, got %s", field, want, got)
}

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name          string
		qty, avg, px  string
		wantValuation string
		wantPnLRate   string
	}{
		{"gain", "10", "100", "110", "1100", "10"},
		{"loss", "4", "50", "45", "180", "-10"},
		{"zero cost basis", "5", "0", "12", "60", "0"},
		{"rounded at boundary", "3", "3", "3.3333", "10", "11.11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := models.Position{AccountID: "a", InstrumentID: "i", Quantity: d(tt.qty), AverageCost: d(tt.avg)}
			snap := Snapshot(pos, d(tt.px))
			assertDecimal(t, tt.wantValuation, snap.Valuation, "valuation")
			assertDecimal(t, tt.wantPnLRate, snap.PnLRate, "pnl rate")
		})
	}
}

func TestPriceSeries_AsOf(t *testing.T) {
	s := PriceSeries{
		{Date: day("2024-01-02"), Close: d("10")},
		{Date: day("2024-01-04"), Close: d("11")},
		{Date: day("2024-01-08"), Close: d("12")},
	}

	tests := []struct {
		date   string
		want   string
		wantOK bool
	}{
		{"2024-01-01", "0", false},
		{"2024-01-02", "10", true},
		{"2024-01-03", "10", true},
		{"2024-01-04", "11", true},
		{"2024-01-07", "11", true},
		{"2024-01-31", "12", true},
	}
	for _, tt := range tests {
		got, ok := s.AsOf(day(tt.date))
		assert.Equal(t, tt.wantOK, ok, tt.date)
		assertDecimal(t, tt.want, got, tt.date)
	}

	_, ok := PriceSeries(nil).AsOf(day("2024-01-02"))
	assert.False(t, ok)
}

func TestHoldings_AggregatesOpenPositions(t *testing.T) {
	holdings := Holdings([]models.Position{
		{AccountID: "a1", InstrumentID: "MSFT", Quantity: d("2")},
		{AccountID: "a2", InstrumentID: "MSFT", Quantity: d("3")},
		{AccountID: "a1", InstrumentID: "AAPL", Quantity: d("1")},
		{AccountID: "a1", InstrumentID: "TSLA", Quantity: d("0")},
	})

	require.Len(t, holdings, 2)
	assert.Equal(t, "AAPL", holdings[0].InstrumentID)
	assert.Equal(t, "MSFT", holdings[1].InstrumentID)
	assertDecimal(t, "5", holdings[1].Quantity, "msft quantity")
}

func TestValueSeries_ForwardFills(t *testing.T) {
	holdings := []Holding{
		{InstrumentID: "A", Quantity: d("10")},
		{InstrumentID: "B", Quantity: d("2")},
	}
	prices := map[string]PriceSeries{
		"A": {
			{Date: day("2023-12-29"), Close: d("9")},
			{Date: day("2024-01-02"), Close: d("10")},
			{Date: day("2024-01-04"), Close: d("12")},
		},
		"B": {
			{Date: day("2024-01-03"), Close: d("50")},
		},
	}

	points := ValueSeries(holdings, prices, day("2024-01-01"), day("2024-01-05"))
	require.Len(t, points, 3)

	assert.Equal(t, day("2024-01-02"), points[0].Date)
	assertDecimal(t, "100", points[0].Value, "jan 2: B has no close yet")
	assertDecimal(t, "200", points[1].Value, "jan 3: A forward-filled")
	assertDecimal(t, "220", points[2].Value, "jan 4: B forward-filled")
}

func TestValueSeries_NoPrices(t *testing.T) {
	points := ValueSeries([]Holding{{InstrumentID: "A", Quantity: d("1")}}, nil, day("2024-01-01"), day("2024-02-01"))
	assert.Empty(t, points)
}

func newTestService(t *testing.T, now time.Time) (*Service, *memory.Store, *cache.Memory) {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveAccount(ctx, &models.Account{ID: "acct-1", UserID: "u1"}))
	require.NoError(t, store.SaveInstrument(ctx, &models.Instrument{ID: "AAPL", Symbol: "AAPL", Name: "Apple", Market: "US"}))
	require.NoError(t, store.SaveInstrument(ctx, &models.Instrument{ID: "VTI", Symbol: "VTI", Name: "Total Market", Market: "US"}))

	c := cache.NewMemory()
	svc := NewService(store, c, time.Minute, common.NewRuntimeAnalytics(common.DefaultAnalyticsConfig()), common.NewSilentLogger())
	svc.now = func() time.Time { return now }
	return svc, store, c
}

func buy(t *testing.T, store *memory.Store, instrumentID, qty, price string) {
	t.Helper()
	tr := models.TradeEvent{
		AccountID:    "acct-1",
		InstrumentID: instrumentID,
		Side:         models.SideBuy,
		Quantity:     d(qty),
		Price:        d(price),
		OccurredAt:   day("2024-01-02"),
	}
	_, err := store.ApplyTrade(context.Background(), tr, func(p models.Position) (models.Position, error) {
		out, err := ledger.ApplyTrade(p, tr)
		return out.Position, err
	})
	require.NoError(t, err)
}

func TestService_Positions(t *testing.T) {
	svc, store, c := newTestService(t, day("2024-03-01"))
	ctx := context.Background()

	buy(t, store, "AAPL", "10", "100")
	buy(t, store, "VTI", "100", "20")
	require.NoError(t, store.SaveCloses(ctx, []models.PricePoint{
		{InstrumentID: "AAPL", Date: day("2024-02-27"), Close: d("110")},
		{InstrumentID: "AAPL", Date: day("2024-02-28"), Close: d("120")},
	}))

	got, err := svc.Positions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// VTI has no close and is valued at cost; 2000 > 1200
	assert.Equal(t, "VTI", got[0].Symbol)
	assert.True(t, got[0].PriceIsCost)
	assertDecimal(t, "2000", got[0].Valuation, "vti valuation")
	assertDecimal(t, "0", got[0].PnLRate, "vti pnl")

	assert.Equal(t, "Apple", got[1].Name)
	assert.False(t, got[1].PriceIsCost)
	assertDecimal(t, "1200", got[1].Valuation, "aapl valuation")
	assertDecimal(t, "20", got[1].PnLRate, "aapl pnl")

	assert.Equal(t, 1, c.Len())
}

func TestService_PositionsServedFromCache(t *testing.T) {
	svc, store, _ := newTestService(t, day("2024-03-01"))
	ctx := context.Background()

	buy(t, store, "AAPL", "1", "100")
	first, err := svc.Positions(ctx, "u1")
	require.NoError(t, err)

	// A new close is not visible until the cached entry is evicted.
	require.NoError(t, store.SaveCloses(ctx, []models.PricePoint{{InstrumentID: "AAPL", Date: day("2024-02-28"), Close: d("500")}}))
	second, err := svc.Positions(ctx, "u1")
	require.NoError(t, err)
	assertDecimal(t, first[0].Valuation.String(), second[0].Valuation, "cached valuation")
}

func TestService_PositionsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t, day("2024-03-01"))
	got, err := svc.Positions(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestService_DailyValues(t *testing.T) {
	svc, store, _ := newTestService(t, day("2024-03-01"))
	ctx := context.Background()

	buy(t, store, "AAPL", "3", "100")
	require.NoError(t, store.SaveCloses(ctx, []models.PricePoint{
		{InstrumentID: "AAPL", Date: day("2024-02-10"), Close: d("100.005")},
		{InstrumentID: "AAPL", Date: day("2024-02-25"), Close: d("101")},
		{InstrumentID: "AAPL", Date: day("2024-02-28"), Close: d("99")},
	}))

	points, err := svc.DailyValues(ctx, "u1", 5)
	require.NoError(t, err)

	// Window is 2024-02-25..2024-03-01
	require.Len(t, points, 2)
	assertDecimal(t, "303", points[0].Value, "feb 25")
	assertDecimal(t, "297", points[1].Value, "feb 28")
}
