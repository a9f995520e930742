// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ledger drivers.
const (
	LedgerNone     = "none"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Config holds the clinic server's settings.
type Config struct {
	Addr        string
	GinMode     string
	LogLevel    string
	LogFormat   string
	ContentFile string

	LedgerDriver string
	LedgerDSN    string

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	SnapshotKey      string
	SnapshotInterval time.Duration
	SnapshotTTL      time.Duration

	Profile string
	Tuning  *Tuning
}

// Load reads .env if present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// LoadFile reads a specific env file into the environment and then loads.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Unset keys take defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Addr:          get("CLINIC_ADDR", ":8080"),
		GinMode:       get("GIN_MODE", "release"),
		LogLevel:      get("LOG_LEVEL", "info"),
		LogFormat:     get("LOG_FORMAT", "text"),
		ContentFile:   get("CLINIC_CONTENT_FILE", ""),
		LedgerDriver:  strings.ToLower(get("LEDGER_DRIVER", LedgerSQLite)),
		LedgerDSN:     get("LEDGER_DSN", "./data/clinic.db"),
		RedisAddr:     get("REDIS_ADDR", "localhost:6379"),
		RedisPassword: get("REDIS_PASSWORD", ""),
		SnapshotKey:   get("SNAPSHOT_KEY", "clinic:snapshot"),
		Profile:       strings.ToLower(get("TUNING_PROFILE", ProfileDefault)),
	}

	var errs []error
	var err error
	if cfg.RedisEnabled, err = strconv.ParseBool(get("REDIS_ENABLED", "false")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_ENABLED: %w", err))
	}
	if cfg.RedisDB, err = strconv.Atoi(get("REDIS_DB", "0")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_DB: %w", err))
	}
	if cfg.SnapshotInterval, err = time.ParseDuration(get("SNAPSHOT_INTERVAL", "2s")); err != nil {
		errs = append(errs, fmt.Errorf("SNAPSHOT_INTERVAL: %w", err))
	}
	if cfg.SnapshotTTL, err = time.ParseDuration(get("SNAPSHOT_TTL", "10m")); err != nil {
		errs = append(errs, fmt.Errorf("SNAPSHOT_TTL: %w", err))
	}
	switch cfg.LedgerDriver {
	case LedgerNone, LedgerSQLite, LedgerPostgres:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DRIVER: unknown driver %q", cfg.LedgerDriver))
	}
	if cfg.Tuning, err = ProfileTuning(cfg.Profile); err != nil {
		errs = append(errs, fmt.Errorf("TUNING_PROFILE: %w", err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}
