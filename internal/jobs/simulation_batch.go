// Package jobs runs periodic background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/playasset/internal/cache"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/metrics"
	"github.com/bobmcallan/playasset/internal/models"
)

// SimulationBatchName is the job name recorded in job runs.
const SimulationBatchName = "simulation_batch"

// SimulationBatch rebuilds simulation snapshots for every user holding an
// open position.
type SimulationBatch struct {
	ledger     interfaces.LedgerStore
	runs       interfaces.JobRunStore
	simulation interfaces.SimulationService
	cache      interfaces.Cache
	cfg        common.SimulationBatchConfig
	logger     *common.Logger
	now        func() time.Time
}

// NewSimulationBatch creates the batch job.
func NewSimulationBatch(
	storage interfaces.StorageManager,
	simulation interfaces.SimulationService,
	c interfaces.Cache,
	cfg common.SimulationBatchConfig,
	logger *common.Logger,
) *SimulationBatch {
	return &SimulationBatch{
		ledger:     storage.LedgerStore(),
		runs:       storage.JobRunStore(),
		simulation: simulation,
		cache:      c,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs the batch on the configured interval until ctx is done.
func (b *SimulationBatch) Start(ctx context.Context) {
	ticker := time.NewTicker(b.cfg.GetInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Simulation batch: stopped")
			return
		case <-ticker.C:
			if _, err := b.RunOnce(ctx); err != nil {
				b.logger.Warn().Err(err).Msg("Simulation batch: run failed")
			}
		}
	}
}

// RunOnce rebuilds every user once and records the run. A failing user is
// counted and skipped; the run is FAILED if any user failed. The returned
// error is set only when the run could not be carried out or recorded.
func (b *SimulationBatch) RunOnce(ctx context.Context) (*models.JobRun, error) {
	run := &models.JobRun{
		ID:        uuid.New().String(),
		JobName:   SimulationBatchName,
		Status:    models.JobStatusSucceeded,
		StartedAt: b.now().UTC(),
	}

	runErr := b.rebuildAll(ctx, run)
	if runErr != nil {
		run.Status = models.JobStatusFailed
		run.ErrorMessage = runErr.Error()
	}
	run.FinishedAt = b.now().UTC()

	metrics.JobRuns.WithLabelValues(SimulationBatchName, run.Status).Inc()
	b.logger.Info().
		Str("run_id", run.ID).
		Str("status", run.Status).
		Int("users", run.UsersTotal).
		Int("failed", run.UsersFailed).
		Int("rows", run.RowsWritten).
		Dur("elapsed", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Simulation batch: complete")

	// Record the run even if ctx was cancelled part way.
	if err := b.runs.InsertJobRun(context.WithoutCancel(ctx), *run); err != nil {
		return run, fmt.Errorf("failed to record job run %s: %w", run.ID, err)
	}
	return run, nil
}

func (b *SimulationBatch) rebuildAll(ctx context.Context, run *models.JobRun) error {
	users, err := b.ledger.UsersWithOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	run.UsersTotal = len(users)

	limit := rate.Inf
	if b.cfg.UsersPerSecond > 0 {
		limit = rate.Limit(b.cfg.UsersPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	var firstErr error
	for i, userID := range users {
		if err := limiter.Wait(ctx); err != nil {
			// users not reached count as failed
			run.UsersFailed += len(users) - i
			return fmt.Errorf("batch interrupted: %w", err)
		}

		n, err := b.simulation.Rebuild(ctx, userID, b.cfg.LookbackDays)
		if err != nil {
			run.UsersFailed++
			if firstErr == nil {
				firstErr = fmt.Errorf("user %s: %w", userID, err)
			}
			b.logger.Warn().Err(err).Str("user_id", userID).Msg("Simulation batch: rebuild failed")
			continue
		}
		run.RowsWritten += n

		if err := b.cache.DeletePrefix(ctx, cache.SimulationPrefix(userID)); err != nil {
			b.logger.Warn().Err(err).Str("user_id", userID).Msg("Simulation batch: cache eviction failed")
		}
	}

	if firstErr != nil {
		return fmt.Errorf("%d of %d users failed, first: %w", run.UsersFailed, run.UsersTotal, firstErr)
	}
	return nil
}
