// Package storage selects and assembles the configured storage backends.
package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/storage/memory"
	"github.com/bobmcallan/playasset/internal/storage/postgres"
	"github.com/bobmcallan/playasset/internal/storage/surrealdb"
)

// Backend type constants.
const (
	BackendSurrealDB = "surrealdb"
	BackendMemory    = "memory"

	LedgerBackendStorage  = "storage"
	LedgerBackendPostgres = "postgres"
)

// NewStorageManager creates the main storage backend and, when configured,
// moves the ledger onto its own PostgreSQL database.
func NewStorageManager(ctx context.Context, logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	base, err := newBase(logger, config)
	if err != nil {
		return nil, err
	}

	switch config.Ledger.Backend {
	case "", LedgerBackendStorage:
		return base, nil

	case LedgerBackendPostgres:
		pool, err := postgres.Connect(ctx, config.Ledger.DSN, config.Ledger.MaxConns)
		if err != nil {
			base.Close()
			return nil, err
		}
		ledger, err := postgres.NewLedgerStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			base.Close()
			return nil, err
		}
		logger.Info().Int("max_conns", config.Ledger.MaxConns).Msg("Ledger on PostgreSQL")
		return &splitManager{StorageManager: base, ledger: ledger}, nil

	default:
		base.Close()
		return nil, fmt.Errorf("unknown ledger backend: %s (supported: storage, postgres)", config.Ledger.Backend)
	}
}

func newBase(logger *common.Logger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Backend {
	case "", BackendSurrealDB:
		return surrealdb.NewManager(logger, config)

	case BackendMemory:
		logger.Warn().Msg("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: surrealdb, memory)", config.Storage.Backend)
	}
}

// splitManager serves the ledger from a dedicated store and everything else
// from the main backend.
type splitManager struct {
	interfaces.StorageManager
	ledger interfaces.LedgerStore
}

func (m *splitManager) LedgerStore() interfaces.LedgerStore {
	return m.ledger
}

func (m *splitManager) Close() error {
	lerr := m.ledger.Close()
	if err := m.StorageManager.Close(); err != nil {
		return err
	}
	return lerr
}
