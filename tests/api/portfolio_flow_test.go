package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/playasset/internal/models"
)

// seedMarket stores an account for userID, two instruments with ten days of
// closes ending today, and a small ETF catalog.
func seedMarket(t *testing.T, env *Env, userID, accountID string) time.Time {
	t.Helper()
	ctx := context.Background()
	sm := env.App.Storage

	require.NoError(t, sm.LedgerStore().SaveAccount(ctx, &models.Account{ID: accountID, UserID: userID, Currency: "USD"}))
	for _, inst := range []models.Instrument{
		{ID: "AAPL", Symbol: "AAPL", Name: "Apple", Market: "US", AssetType: "STOCK", Currency: "USD"},
		{ID: "VTI", Symbol: "VTI", Name: "Vanguard Total Market", Market: "US", AssetType: "ETF", Currency: "USD"},
	} {
		inst := inst
		require.NoError(t, sm.MarketDataStore().SaveInstrument(ctx, &inst))
	}

	today := models.DateOnly(time.Now().UTC())
	start := today.AddDate(0, 0, -9)
	var closes []models.PricePoint
	for i := 0; i < 10; i++ {
		date := start.AddDate(0, 0, i)
		closes = append(closes,
			models.PricePoint{InstrumentID: "AAPL", Date: date, Close: decimal.NewFromInt(int64(100 + i))},
			models.PricePoint{InstrumentID: "VTI", Date: date, Close: decimal.NewFromInt(int64(200 - i))},
		)
	}
	require.NoError(t, sm.MarketDataStore().SaveCloses(ctx, closes))

	require.NoError(t, sm.AdvisorStore().SaveEtf(ctx, models.EtfCatalogRow{
		ID: "etf-bnd", Symbol: "BND", Name: "Total Bond", Market: "US", FocusTheme: "bond income",
		RiskBucket: models.RiskBucketLow, DiversificationRole: "defensive", ExpenseRatioPct: 0.03, Active: true,
	}))
	return start
}

func postTrade(t *testing.T, env *Env, userID string, body map[string]any) models.TradeResult {
	t.Helper()
	resp, err := env.HTTPPost("/api/users/"+userID+"/trades", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var result models.TradeResult
	env.ReadJSON(resp, &result)
	return result
}

func runPortfolioFlow(t *testing.T, env *Env) {
	userID, accountID := "flow-user", "flow-acct"
	start := seedMarket(t, env, userID, accountID)
	startText := start.Format(models.DateLayout)

	postTrade(t, env, userID, map[string]any{
		"account_id": accountID, "instrument_id": "AAPL", "side": "BUY",
		"quantity": "10", "price": "100", "occurred_at": startText,
	})
	postTrade(t, env, userID, map[string]any{
		"account_id": accountID, "instrument_id": "VTI", "side": "BUY",
		"quantity": "5", "price": "200", "occurred_at": startText,
	})
	sell := postTrade(t, env, userID, map[string]any{
		"account_id": accountID, "instrument_id": "VTI", "side": "sell",
		"quantity": "8", "price": "195",
	})
	assert.True(t, sell.Clamped)
	assert.True(t, sell.Position.Quantity.IsZero())
	assert.True(t, decimal.NewFromInt(-25).Equal(sell.Position.RealizedPnL), "realized %s", sell.Position.RealizedPnL)

	// positions: only AAPL remains open, valued at today's close
	resp, err := env.HTTPGet("/api/users/" + userID + "/positions")
	require.NoError(t, err)
	var positions []models.PositionSnapshot
	env.ReadJSON(resp, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].InstrumentID)
	assert.True(t, decimal.NewFromInt(109).Equal(positions[0].CurrentPrice))
	assert.False(t, positions[0].PriceIsCost)

	// advice
	resp, err = env.HTTPGet("/api/users/" + userID + "/advice")
	require.NoError(t, err)
	var advice models.PortfolioAdvice
	env.ReadJSON(resp, &advice)
	assert.Equal(t, userID, advice.UserID)
	assert.NotEmpty(t, advice.Insight.Headline)

	logs, err := env.App.Storage.AdvisorStore().ListAdviceLog(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// simulation over the seeded window
	resp, err = env.HTTPGet("/api/users/" + userID + "/simulation?start_date=" + startText)
	require.NoError(t, err)
	var sim models.SimulationResult
	env.ReadJSON(resp, &sim)
	assert.Equal(t, 10, sim.Points)
	assert.InDelta(t, 1000.0, sim.StartValue, 0.001)
	assert.InDelta(t, 1090.0, sim.EndValue, 0.001)
	assert.InDelta(t, 9.0, sim.PnLRate, 0.001)

	// a second run replaces rows rather than duplicating them
	resp, err = env.HTTPGet("/api/users/" + userID + "/simulation?start_date=" + startText)
	require.NoError(t, err)
	var again models.SimulationResult
	env.ReadJSON(resp, &again)
	assert.Equal(t, sim.Points, again.Points)

	rows, err := env.App.Storage.SimulationStore().LoadSimulationSnapshots(context.Background(), userID, start, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, rows, 10)

	resp, err = env.HTTPGet("/api/users/" + userID + "/simulation/chart.png?start_date=" + startText)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	png, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NoError(t, env.SaveResult("simulation.png", png))
}

func TestPortfolioFlow_SurrealDB(t *testing.T) {
	env := NewEnv(t)
	if env == nil {
		return
	}
	runPortfolioFlow(t, env)
}

func TestPortfolioFlow_PostgresLedger(t *testing.T) {
	env := NewEnvWithOptions(t, EnvOptions{PostgresLedger: true})
	if env == nil {
		return
	}
	runPortfolioFlow(t, env)
}

func TestSimulationBatch_RecordsJobRun(t *testing.T) {
	env := NewEnv(t)
	if env == nil {
		return
	}
	userID, accountID := "batch-user", "batch-acct"
	start := seedMarket(t, env, userID, accountID)
	postTrade(t, env, userID, map[string]any{
		"account_id": accountID, "instrument_id": "AAPL", "side": "BUY",
		"quantity": "1", "price": "100", "occurred_at": start.Format(models.DateLayout),
	})

	run, err := env.App.SimulationBatch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, run.Status)
	assert.GreaterOrEqual(t, run.UsersTotal, 1)
	assert.Zero(t, run.UsersFailed)

	runs, err := env.App.Storage.JobRunStore().ListJobRuns(context.Background(), run.JobName, 5)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRecordTrade_UnknownInstrumentIsRejected(t *testing.T) {
	env := NewEnv(t)
	if env == nil {
		return
	}
	seedMarket(t, env, "reject-user", "reject-acct")

	resp, err := env.HTTPPost("/api/users/reject-user/trades", map[string]any{
		"account_id": "reject-acct", "instrument_id": "NOPE", "side": "BUY",
		"quantity": "1", "price": "1",
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
