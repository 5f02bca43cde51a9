// Package interfaces defines service contracts for Playasset
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/playasset/internal/models"
	"github.com/shopspring/decimal"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	LedgerStore() LedgerStore
	MarketDataStore() MarketDataStore
	SimulationStore() SimulationStore
	AdvisorStore() AdvisorStore
	JobRunStore() JobRunStore

	// Lifecycle
	Close() error
}

// ApplyFunc computes the next position state from the current one.
type ApplyFunc func(current models.Position) (models.Position, error)

// LedgerStore persists accounts, positions and the append-only trade log.
type LedgerStore interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	// GetAccount returns models.ErrNotFound for unknown accounts.
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)

	// ApplyTrade runs a read-modify-write of the trade's position as one
	// atomic unit: it reads the current state (zero if absent), calls fn,
	// appends the trade and saves the returned state. If fn fails nothing is written.
	ApplyTrade(ctx context.Context, trade models.TradeEvent, fn ApplyFunc) (models.Position, error)

	GetPosition(ctx context.Context, accountID, instrumentID string) (*models.Position, error)
	// ListPositions returns every position across the user's accounts, including closed ones.
	ListPositions(ctx context.Context, userID string) ([]models.Position, error)
	ListTrades(ctx context.Context, accountID, instrumentID string) ([]models.TradeEvent, error)

	// EarliestBuyDate returns the earliest BUY date across the user's open
	// positions. ok is false when there is none.
	EarliestBuyDate(ctx context.Context, userID string) (date time.Time, ok bool, err error)
	UsersWithOpenPositions(ctx context.Context) ([]string, error)

	Close() error
}

// MarketDataStore holds instruments and daily closes. Data is materialised
// by external ingestion; the engine only reads it.
type MarketDataStore interface {
	SaveInstrument(ctx context.Context, instrument *models.Instrument) error
	// GetInstrument returns models.ErrNotFound for unknown instruments.
	GetInstrument(ctx context.Context, instrumentID string) (*models.Instrument, error)

	// SaveCloses upserts daily closes keyed by (instrument, date).
	SaveCloses(ctx context.Context, closes []models.PricePoint) error
	// LatestClose returns the most recent close. ok is false when none exists.
	LatestClose(ctx context.Context, instrumentID string) (price decimal.Decimal, ok bool, err error)
	// ClosePrices returns closes with from <= date <= to, ascending by date.
	ClosePrices(ctx context.Context, instrumentID string, from, to time.Time) ([]models.PricePoint, error)
}

// SimulationStore persists backtest snapshot rows keyed by (user, date).
type SimulationStore interface {
	// ReplaceSimulationSnapshots upserts rows and removes any other rows for
	// the user within [from, to], as a single atomic unit.
	ReplaceSimulationSnapshots(ctx context.Context, userID string, from, to time.Time, rows []models.SimulationSnapshot) error
	// LoadSimulationSnapshots returns rows within [from, to], ascending by date.
	LoadSimulationSnapshots(ctx context.Context, userID string, from, to time.Time) ([]models.SimulationSnapshot, error)
}

// AdvisorStore holds the ETF catalog, risk profiles and the advice audit log.
type AdvisorStore interface {
	SaveEtf(ctx context.Context, row models.EtfCatalogRow) error
	// LoadEtfCatalog returns active rows only.
	LoadEtfCatalog(ctx context.Context) ([]models.EtfCatalogRow, error)

	// GetRiskProfile returns models.ErrNotFound when the user has no profile.
	GetRiskProfile(ctx context.Context, userID string) (*models.RiskProfile, error)
	SaveRiskProfile(ctx context.Context, profile models.RiskProfile) error

	InsertAdviceLog(ctx context.Context, entry models.AdviceLogEntry) error
	ListAdviceLog(ctx context.Context, userID string, limit int) ([]models.AdviceLogEntry, error)
}

// JobRunStore records background job executions.
type JobRunStore interface {
	InsertJobRun(ctx context.Context, run models.JobRun) error
	ListJobRuns(ctx context.Context, jobName string, limit int) ([]models.JobRun, error)
}

// Cache is the result cache port. Values are JSON encoded by implementations.
type Cache interface {
	// Get decodes the cached value into dest. Returns false on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Locker serializes work on a key across goroutines (and, for distributed
// implementations, across processes).
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
