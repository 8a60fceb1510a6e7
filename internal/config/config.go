package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Хранилища таблиц.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendWorkbook = "xlsx"
)

type Config struct {
	Env       string // dev|prod
	LogLevel  string
	HTTPAddr  string
	SentryDSN string
	Release   string

	StoreBackend string // memory|postgres|xlsx
	DatabaseURL  string
	WorkbookPath string
	StoreTimeout time.Duration

	RedisURL      string // пусто — кэш в памяти процесса
	CacheTTL      time.Duration
	SweepInterval time.Duration
	ProbeInterval time.Duration

	AdminEmail      string
	AdminPassword   string
	DefaultPassword string
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:       getenv("ENV", "dev"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		SentryDSN: os.Getenv("SENTRY_DSN"),
		Release:   os.Getenv("RELEASE"),

		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WorkbookPath: getenv("WORKBOOK_PATH", "okr.xlsx"),
		RedisURL:     os.Getenv("REDIS_URL"),

		AdminEmail:      getenv("ADMIN_EMAIL", "admin@school.com"),
		AdminPassword:   getenv("ADMIN_PASSWORD", "123"),
		DefaultPassword: getenv("DEFAULT_PASSWORD", "123"),
	}

	var err error
	if cfg.StoreTimeout, err = duration("STORE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = duration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = duration("CACHE_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = duration("STORE_PROBE_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=%s", cfg.StoreBackend)
		}
	case BackendWorkbook:
		if cfg.WorkbookPath == "" {
			return nil, fmt.Errorf("WORKBOOK_PATH is required for STORE_BACKEND=%s", cfg.StoreBackend)
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND: unknown backend %q", cfg.StoreBackend)
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", k, v)
	}
	return d, nil
}
