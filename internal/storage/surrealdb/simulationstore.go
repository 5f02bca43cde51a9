package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

const (
	deleteSnapshotsSQL = "DELETE simulation_snapshot WHERE user_id = $user AND date >= $from AND date <= $to;"
	insertSnapshotsSQL = "INSERT INTO simulation_snapshot $rows;"
)

// SimulationStore implements interfaces.SimulationStore using SurrealDB.
type SimulationStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewSimulationStore(db *surrealdb.DB, logger *common.Logger) *SimulationStore {
	return &SimulationStore{db: db, logger: logger}
}

// ReplaceSimulationSnapshots deletes the user's rows in [from, to] and
// inserts rows in the same transaction, so readers never see a partial window.
func (s *SimulationStore) ReplaceSimulationSnapshots(ctx context.Context, userID string, from, to time.Time, rows []models.SimulationSnapshot) error {
	records := make([]snapshotRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, newSnapshotRecord(userID, r))
	}

	sql := "BEGIN TRANSACTION;\n" + deleteSnapshotsSQL + "\n"
	if len(records) > 0 {
		sql += insertSnapshotsSQL + "\n"
	}
	sql += "COMMIT TRANSACTION;"

	vars := map[string]any{
		"user": userID,
		"from": formatDate(from),
		"to":   formatDate(to),
		"rows": records,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to replace simulation snapshots for %s: %w", userID, err)
	}
	return nil
}

func (s *SimulationStore) LoadSimulationSnapshots(ctx context.Context, userID string, from, to time.Time) ([]models.SimulationSnapshot, error) {
	sql := "SELECT * FROM simulation_snapshot WHERE user_id = $user AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"user": userID,
		"from": formatDate(from),
		"to":   formatDate(to),
	}
	results, err := surrealdb.Query[[]snapshotRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load simulation snapshots for %s: %w", userID, err)
	}

	rows := firstResult(results)
	out := make([]models.SimulationSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Compile-time check
var _ interfaces.SimulationStore = (*SimulationStore)(nil)
