// Package common provides shared utilities for Playasset
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Playasset
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Ledger      LedgerConfig    `toml:"ledger"`
	Redis       RedisConfig     `toml:"redis"`
	Cache       CacheConfig     `toml:"cache"`
	Lock        LockConfig      `toml:"lock"`
	Jobs        JobsConfig      `toml:"jobs"`
	Logging     LoggingConfig   `toml:"logging"`
	Analytics   AnalyticsConfig `toml:"analytics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection settings. Backend "memory" keeps
// everything in process (development and tests).
type StorageConfig struct {
	Backend   string `toml:"backend"` // "surrealdb" (default) or "memory"
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// LedgerConfig selects where positions and trades live. "storage" uses the
// main storage backend; "postgres" uses a dedicated PostgreSQL database with
// row-level locking.
type LedgerConfig struct {
	Backend  string `toml:"backend"`
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

// RedisConfig holds the shared Redis connection used by cache and lock.
type RedisConfig struct {
	Address   string `toml:"address"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// CacheConfig configures the result cache for advice, positions and simulations.
type CacheConfig struct {
	Backend string `toml:"backend"` // "memory", "redis", "none"
	TTL     string `toml:"ttl"`
}

// GetTTL parses and returns the cache TTL
func (c *CacheConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// LockConfig configures per-position serialization of trades.
type LockConfig struct {
	Backend string `toml:"backend"` // "local" or "redis"
	TTL     string `toml:"ttl"`     // redis lease length
}

// GetTTL parses and returns the lock lease
func (c *LockConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// JobsConfig holds background job settings
type JobsConfig struct {
	SimulationBatch SimulationBatchConfig `toml:"simulation_batch"`
}

// SimulationBatchConfig controls the periodic snapshot rebuild for all users.
type SimulationBatchConfig struct {
	Enabled        bool    `toml:"enabled"`
	Interval       string  `toml:"interval"`
	LookbackDays   int     `toml:"lookback_days"`
	UsersPerSecond float64 `toml:"users_per_second"`
}

// GetInterval parses and returns the batch interval
func (c *SimulationBatchConfig) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "surrealdb",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "playasset",
			Database:  "playasset",
			Username:  "root",
			Password:  "root",
		},
		Ledger: LedgerConfig{
			Backend:  "storage",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			KeyPrefix: "playasset:",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     "10m",
		},
		Lock: LockConfig{
			Backend: "local",
			TTL:     "10s",
		},
		Jobs: JobsConfig{
			SimulationBatch: SimulationBatchConfig{
				Enabled:        true,
				Interval:       "6h",
				LookbackDays:   730,
				UsersPerSecond: 5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Analytics: DefaultAnalyticsConfig(),
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Analytics.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analytics config: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PLAYASSET_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("PLAYASSET_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("PLAYASSET_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("PLAYASSET_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage overrides
	if v := os.Getenv("PLAYASSET_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("PLAYASSET_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("PLAYASSET_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("PLAYASSET_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if v := os.Getenv("PLAYASSET_LEDGER_DSN"); v != "" {
		config.Ledger.DSN = v
		if config.Ledger.Backend == "storage" {
			config.Ledger.Backend = "postgres"
		}
	}

	if v := os.Getenv("PLAYASSET_REDIS_ADDRESS"); v != "" {
		config.Redis.Address = v
	}
	if v := os.Getenv("PLAYASSET_REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}

	if v := os.Getenv("PLAYASSET_CACHE_BACKEND"); v != "" {
		config.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("PLAYASSET_LOCK_BACKEND"); v != "" {
		config.Lock.Backend = strings.ToLower(v)
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
