// Package app wires configuration, storage and services into a runnable core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bobmcallan/playasset/internal/cache"
	"github.com/bobmcallan/playasset/internal/common"
	"github.com/bobmcallan/playasset/internal/interfaces"
	"github.com/bobmcallan/playasset/internal/jobs"
	"github.com/bobmcallan/playasset/internal/lock"
	"github.com/bobmcallan/playasset/internal/services/advice"
	"github.com/bobmcallan/playasset/internal/services/ledger"
	"github.com/bobmcallan/playasset/internal/services/simulation"
	"github.com/bobmcallan/playasset/internal/services/valuation"
	"github.com/bobmcallan/playasset/internal/storage"
)

// App holds all initialized services and shared infrastructure.
type App struct {
	Config     *common.Config
	ConfigPath string
	Logger     *common.Logger
	Storage    interfaces.StorageManager
	Redis      *redis.Client
	Cache      interfaces.Cache
	Locker     interfaces.Locker
	Analytics  *common.RuntimeAnalytics

	LedgerService     interfaces.LedgerService
	ValuationService  interfaces.ValuationService
	AdviceService     interfaces.AdviceService
	SimulationService interfaces.SimulationService
	SimulationBatch   *jobs.SimulationBatch

	StartupTime time.Time

	backgroundCancel context.CancelFunc
	watcher          *common.ConfigWatcher
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, PLAYASSET_CONFIG, the binary
// dir, then the development fallback.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("PLAYASSET_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "playasset.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/playasset.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes storage and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	configPath = resolveConfigPath(configPath)
	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)
	a, err := NewWithConfig(context.Background(), config, logger)
	if err != nil {
		return nil, err
	}
	a.ConfigPath = configPath
	return a, nil
}

// NewWithConfig builds an App from an already loaded config.
func NewWithConfig(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var rdb *redis.Client
	if config.Cache.Backend == "redis" || config.Lock.Backend == "redis" {
		rdb, err = connectRedis(ctx, config.Redis)
		if err != nil {
			storageManager.Close()
			return nil, err
		}
	}

	resultCache, err := newCache(config, rdb)
	if err != nil {
		closeAll(storageManager, rdb)
		return nil, err
	}
	locker, err := newLocker(config, rdb, logger)
	if err != nil {
		closeAll(storageManager, rdb)
		return nil, err
	}

	analytics := common.NewRuntimeAnalytics(config.Analytics)
	cacheTTL := config.Cache.GetTTL()

	ledgerService := ledger.NewService(storageManager, locker, resultCache, logger)
	valuationService := valuation.NewService(storageManager, resultCache, cacheTTL, analytics, logger)
	adviceService := advice.NewService(storageManager, valuationService, resultCache, cacheTTL, analytics, logger)
	simulationService := simulation.NewService(storageManager, locker, resultCache, cacheTTL, analytics, logger)
	batch := jobs.NewSimulationBatch(storageManager, simulationService, resultCache, config.Jobs.SimulationBatch, logger)

	a := &App{
		Config:            config,
		Logger:            logger,
		Storage:           storageManager,
		Redis:             rdb,
		Cache:             resultCache,
		Locker:            locker,
		Analytics:         analytics,
		LedgerService:     ledgerService,
		ValuationService:  valuationService,
		AdviceService:     adviceService,
		SimulationService: simulationService,
		SimulationBatch:   batch,
		StartupTime:       startupStart,
	}

	logger.Info().
		Str("storage", config.Storage.Backend).
		Str("ledger", config.Ledger.Backend).
		Str("cache", config.Cache.Backend).
		Str("lock", config.Lock.Backend).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

func connectRedis(ctx context.Context, cfg common.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return rdb, nil
}

func newCache(config *common.Config, rdb *redis.Client) (interfaces.Cache, error) {
	switch config.Cache.Backend {
	case "", "memory":
		return cache.NewMemory(), nil
	case "redis":
		return cache.NewRedis(rdb, config.Redis.KeyPrefix+"cache:"), nil
	case "none":
		return cache.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, redis, none)", config.Cache.Backend)
	}
}

func newLocker(config *common.Config, rdb *redis.Client, logger *common.Logger) (interfaces.Locker, error) {
	switch config.Lock.Backend {
	case "", "local":
		return lock.NewLocal(), nil
	case "redis":
		return lock.NewRedis(rdb, config.Redis.KeyPrefix+"lock:", config.Lock.GetTTL(), logger), nil
	default:
		return nil, fmt.Errorf("unknown lock backend: %s (supported: local, redis)", config.Lock.Backend)
	}
}

func closeAll(sm interfaces.StorageManager, rdb *redis.Client) {
	if rdb != nil {
		rdb.Close()
	}
	sm.Close()
}

// Close releases all resources held by the App.
// Shutdown order: stop background work, close redis, close storage.
func (a *App) Close() {
	a.StopBackground()
	if a.Redis != nil {
		a.Redis.Close()
		a.Redis = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
