package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/playasset/internal/cache"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/bobmcallan/playasset/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSimulation records Rebuild calls and fails for users in failFor.
type stubSimulation struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
	rows    int
}

func (s *stubSimulation) Run(context.Context, string, string, string) (*models.SimulationResult, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSimulation) Chart(context.Context, string, string, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSimulation) Rebuild(_ context.Context, userID string, lookbackDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	if s.failFor[userID] {
		return 0, errors.New("price store unavailable")
	}
	return s.rows, nil
}

func seedUser(t *testing.T, store *memory.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	accountID := "acct-" + userID
	require.NoError(t, store.SaveAccount(ctx, &models.Account{ID: accountID, UserID: userID}))
	_, err := store.ApplyTrade(ctx, models.TradeEvent{AccountID: accountID, InstrumentID: "VTI", Side: models.SideBuy}, func(p models.Position) (models.Position, error) {
		p.Quantity = decimal.NewFromInt(1)
		p.AverageCost = decimal.NewFromInt(100)
		return p, nil
	})
	require.NoError(t, err)
}

func newBatch(t *testing.T, sim *stubSimulation, users ...string) (*SimulationBatch, *memory.Store, *cache.Memory) {
	t.Helper()
	store := memory.NewStore()
	for _, u := range users {
		seedUser(t, store, u)
	}
	c := cache.NewMemory()
	cfg := common.NewDefaultConfig().Jobs.SimulationBatch
	cfg.UsersPerSecond = 0
	return NewSimulationBatch(store, sim, c, cfg, common.NewSilentLogger()), store, c
}

func TestRunOnce_AllSucceed(t *testing.T) {
	sim := &stubSimulation{rows: 7}
	batch, store, c := newBatch(t, sim, "u1", "u2")
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, cache.SimulationKey("u1", "", ""), "stale", time.Minute))

	run, err := batch.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusSucceeded, run.Status)
	assert.Equal(t, 2, run.UsersTotal)
	assert.Zero(t, run.UsersFailed)
	assert.Equal(t, 14, run.RowsWritten)
	assert.Empty(t, run.ErrorMessage)
	assert.ElementsMatch(t, []string{"u1", "u2"}, sim.calls)
	assert.Zero(t, c.Len(), "simulation cache evicted")

	runs, err := store.ListJobRuns(ctx, SimulationBatchName, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestRunOnce_UserFailureMarksRunFailed(t *testing.T) {
	sim := &stubSimulation{rows: 3, failFor: map[string]bool{"u2": true}}
	batch, store, _ := newBatch(t, sim, "u1", "u2", "u3")

	run, err := batch.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, run.Status)
	assert.Equal(t, 3, run.UsersTotal)
	assert.Equal(t, 1, run.UsersFailed)
	assert.Equal(t, 6, run.RowsWritten)
	assert.Contains(t, run.ErrorMessage, "u2")
	assert.Len(t, sim.calls, 3, "remaining users still run")

	runs, err := store.ListJobRuns(context.Background(), SimulationBatchName, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.JobStatusFailed, runs[0].Status)
}

func TestRunOnce_NoUsers(t *testing.T) {
	sim := &stubSimulation{}
	batch, _, _ := newBatch(t, sim)

	run, err := batch.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, run.Status)
	assert.Zero(t, run.UsersTotal)
	assert.Empty(t, sim.calls)
}

func TestRunOnce_CancelledContext(t *testing.T) {
	sim := &stubSimulation{rows: 1}
	batch, store, _ := newBatch(t, sim, "u1", "u2")
	batch.cfg.UsersPerSecond = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := batch.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, run.Status)

	runs, err := store.ListJobRuns(context.Background(), SimulationBatchName, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "run recorded despite cancellation")
}

func TestStart_StopsOnCancel(t *testing.T) {
	batch, _, _ := newBatch(t, &stubSimulation{})
	batch.cfg.Interval = "1h"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		batch.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not stop")
	}
}
