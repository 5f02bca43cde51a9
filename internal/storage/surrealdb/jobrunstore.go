package surrealdb

import (
	"context"
	"fmt"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// JobRunStore implements interfaces.JobRunStore using SurrealDB.
type JobRunStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewJobRunStore creates a new JobRunStore.
func NewJobRunStore(db *surrealdb.DB, logger *common.Logger) *JobRunStore {
	return &JobRunStore{db: db, logger: logger}
}

func (s *JobRunStore) InsertJobRun(ctx context.Context, run models.JobRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	sql := "CREATE $rid CONTENT $run"
	vars := map[string]any{
		"rid": surrealmodels.NewRecordID(tableJobRuns, run.ID),
		"run": jobRunRecord{
			RunID:        run.ID,
			JobName:      run.JobName,
			Status:       run.Status,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			UsersTotal:   run.UsersTotal,
			UsersFailed:  run.UsersFailed,
			RowsWritten:  run.RowsWritten,
			ErrorMessage: run.ErrorMessage,
		},
	}
	if _, err := surrealdb.Query[[]jobRunRecord](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to insert job run %s: %w", run.ID, err)
	}
	return nil
}

// ListJobRuns returns runs newest first. An empty jobName lists every job.
func (s *JobRunStore) ListJobRuns(ctx context.Context, jobName string, limit int) ([]models.JobRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	sql := "SELECT * FROM job_runs ORDER BY started_at DESC LIMIT $limit"
	vars := map[string]any{"limit": limit}
	if jobName != "" {
		sql = "SELECT * FROM job_runs WHERE job_name = $name ORDER BY started_at DESC LIMIT $limit"
		vars["name"] = jobName
	}

	results, err := surrealdb.Query[[]jobRunRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}

	rows := firstResult(results)
	out := make([]models.JobRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Compile-time check
var _ interfaces.JobRunStore = (*JobRunStore)(nil)
