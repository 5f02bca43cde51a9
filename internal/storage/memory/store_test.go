package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/playasset/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func buy(store *Store, account, instrument string, qty int64, at time.Time) error {
	tr := models.TradeEvent{AccountID: account, InstrumentID: instrument, Side: models.SideBuy, Quantity: decimal.NewFromInt(qty), Price: decimal.NewFromInt(10), OccurredAt: at}
	_, err := store.ApplyTrade(context.Background(), tr, func(p models.Position) (models.Position, error) {
		p.Quantity = p.Quantity.Add(tr.Quantity)
		p.AverageCost = tr.Price
		return p, nil
	})
	return err
}

func TestStore_ApplyTradeFailureWritesNothing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tr := models.TradeEvent{AccountID: "a1", InstrumentID: "AAPL", Side: models.SideSell}
	_, err := s.ApplyTrade(ctx, tr, func(models.Position) (models.Position, error) {
		return models.Position{}, errors.New("boom")
	})
	require.Error(t, err)

	_, err = s.GetPosition(ctx, "a1", "AAPL")
	assert.ErrorIs(t, err, models.ErrNotFound)
	trades, err := s.ListTrades(ctx, "a1", "AAPL")
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestStore_ApplyTradeRejectsDuplicateID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tr := models.TradeEvent{ID: "t-1", AccountID: "a1", InstrumentID: "AAPL", Side: models.SideBuy, Quantity: decimal.NewFromInt(5), Price: decimal.NewFromInt(10)}
	calls := 0
	apply := func(p models.Position) (models.Position, error) {
		calls++
		p.Quantity = p.Quantity.Add(tr.Quantity)
		return p, nil
	}

	_, err := s.ApplyTrade(ctx, tr, apply)
	require.NoError(t, err)
	_, err = s.ApplyTrade(ctx, tr, apply)
	require.Error(t, err)

	assert.Equal(t, 1, calls)
	pos, err := s.GetPosition(ctx, "a1", "AAPL")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(pos.Quantity))
	trades, err := s.ListTrades(ctx, "a1", "AAPL")
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestStore_EarliestBuyAndUsers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveAccount(ctx, &models.Account{ID: "a1", UserID: "u1"}))
	require.NoError(t, s.SaveAccount(ctx, &models.Account{ID: "a2", UserID: "u2"}))

	require.NoError(t, buy(s, "a1", "AAPL", 5, time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)))
	require.NoError(t, buy(s, "a1", "MSFT", 1, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, buy(s, "a2", "VTI", 1, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)))

	got, ok, err := s.EarliestBuyDate(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day("2024-02-01"), got)

	_, ok, err = s.EarliestBuyDate(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	users, err := s.UsersWithOpenPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	positions, err := s.ListPositions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "AAPL", positions[0].InstrumentID)
}

func TestStore_ReplaceSimulationSnapshots(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	row := func(date string, v int64) models.SimulationSnapshot {
		return models.SimulationSnapshot{Date: day(date), SimulatedValue: decimal.NewFromInt(v)}
	}

	require.NoError(t, s.ReplaceSimulationSnapshots(ctx, "u1", day("2024-01-01"), day("2024-01-05"),
		[]models.SimulationSnapshot{row("2024-01-01", 1), row("2024-01-02", 2), row("2024-01-05", 5)}))
	require.NoError(t, s.ReplaceSimulationSnapshots(ctx, "u1", day("2024-01-02"), day("2024-01-03"),
		[]models.SimulationSnapshot{row("2024-01-03", 3)}))

	rows, err := s.LoadSimulationSnapshots(ctx, "u1", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, day("2024-01-01"), rows[0].Date)
	assert.Equal(t, day("2024-01-03"), rows[1].Date)
	assert.Equal(t, "u1", rows[1].UserID)
	assert.Equal(t, day("2024-01-05"), rows[2].Date)

	others, err := s.LoadSimulationSnapshots(ctx, "u2", day("2024-01-01"), day("2024-01-31"))
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestStore_ClosePrices(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveCloses(ctx, []models.PricePoint{
		{InstrumentID: "AAPL", Date: day("2024-01-03"), Close: decimal.NewFromInt(3)},
		{InstrumentID: "AAPL", Date: day("2024-01-01"), Close: decimal.NewFromInt(1)},
		{InstrumentID: "AAPL", Date: day("2024-01-02"), Close: decimal.NewFromInt(2)},
	}))

	latest, ok, err := s.LatestClose(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(3).Equal(latest))

	pts, err := s.ClosePrices(ctx, "AAPL", day("2024-01-02"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, day("2024-01-02"), pts[0].Date)

	_, ok, err = s.LatestClose(ctx, "MSFT")
	require.NoError(t, err)
	assert.False(t, ok)
}
