package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// Table names
const (
	tableAccount    = "account"
	tablePosition   = "position"
	tableTrade      = "trade"
	tableInstrument = "instrument"
	tableClose      = "price_close"
	tableSnapshot   = "simulation_snapshot"
	tableEtf        = "etf_catalog"
	tableProfile    = "risk_profile"
	tableAdviceLog  = "advice_log"
	tableJobRuns    = "job_runs"
)

var tables = []string{
	tableAccount, tablePosition, tableTrade, tableInstrument, tableClose,
	tableSnapshot, tableEtf, tableProfile, tableAdviceLog, tableJobRuns,
}

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	ledgerStore     *LedgerStore
	marketStore     *MarketStore
	simulationStore *SimulationStore
	advisorStore    *AdvisorStore
	jobRunStore     *JobRunStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	// Connect to SurrealDB
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		return nil, err
	}

	m := newManager(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func newManager(db *surrealdb.DB, logger *common.Logger) *Manager {
	return &Manager{
		db:              db,
		logger:          logger,
		ledgerStore:     NewLedgerStore(db, logger),
		marketStore:     NewMarketStore(db, logger),
		simulationStore: NewSimulationStore(db, logger),
		advisorStore:    NewAdvisorStore(db, logger),
		jobRunStore:     NewJobRunStore(db, logger),
	}
}

// defineTables makes sure every table exists (SurrealDB v3 errors on
// querying non-existent tables).
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	return nil
}

func (m *Manager) LedgerStore() interfaces.LedgerStore {
	return m.ledgerStore
}

func (m *Manager) MarketDataStore() interfaces.MarketDataStore {
	return m.marketStore
}

func (m *Manager) SimulationStore() interfaces.SimulationStore {
	return m.simulationStore
}

func (m *Manager) AdvisorStore() interfaces.AdvisorStore {
	return m.advisorStore
}

func (m *Manager) JobRunStore() interfaces.JobRunStore {
	return m.jobRunStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError reports whether a driver error means the record is absent.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// firstResult returns the rows of the first statement of a query response.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
