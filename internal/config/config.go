package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dvcrn/flyerless-proxy/internal/env"
)

// Token store backends selectable through TOKEN_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreFile     = "file"
	StoreMemory   = "memory"
)

const (
	DefaultPort        = "9879"
	DefaultSQLitePath  = "./data/flyerless.db"
	DefaultHTTPTimeout = 60 * time.Second
)

type Config struct {
	APIKey  string
	BaseURL string

	Port        string
	LogLevel    string
	AdminAPIKey string
	HTTPTimeout time.Duration

	Store StoreConfig

	// Zero means the package defaults in tokenstore and auth.
	BootstrapTTL time.Duration
	RefreshTTL   time.Duration
}

type StoreConfig struct {
	Kind          string
	SQLitePath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TokenFile     string
}

// Load builds a Config from the process environment (and .env, if present).
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:      env.GetDefault("FLYERLESS_API_KEY", ""),
		BaseURL:     env.GetDefault("FLYERLESS_BASE_URL", ""),
		Port:        env.GetDefault("PORT", DefaultPort),
		LogLevel:    env.GetDefault("LOG_LEVEL", ""),
		AdminAPIKey: env.GetDefault("ADMIN_API_KEY", ""),
		Store: StoreConfig{
			Kind:          env.GetDefault("TOKEN_STORE", StoreSQLite),
			SQLitePath:    env.GetDefault("SQLITE_PATH", DefaultSQLitePath),
			DatabaseURL:   env.GetDefault("DATABASE_URL", ""),
			RedisAddr:     env.GetDefault("REDIS_ADDR", ""),
			RedisPassword: env.GetDefault("REDIS_PASSWORD", ""),
			TokenFile:     env.GetDefault("TOKEN_FILE", ""),
		},
	}

	var err error
	if cfg.HTTPTimeout, err = durationFromEnv("HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	if cfg.BootstrapTTL, err = durationFromEnv("TOKEN_BOOTSTRAP_TTL", 0); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = durationFromEnv("TOKEN_REFRESH_TTL", 0); err != nil {
		return nil, err
	}

	if v := env.GetDefault("REDIS_DB", ""); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		cfg.Store.RedisDB = db
	}

	return cfg, nil
}

// Validate checks that the connector settings and the selected store are usable.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("FLYERLESS_API_KEY is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("FLYERLESS_BASE_URL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid FLYERLESS_BASE_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("FLYERLESS_BASE_URL must be an absolute URL, got %q", c.BaseURL)
	}
	if c.BootstrapTTL < 0 || c.RefreshTTL < 0 {
		return fmt.Errorf("token TTLs must not be negative")
	}

	switch c.Store.Kind {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
	case StoreFile, StoreMemory:
	default:
		return fmt.Errorf("unknown TOKEN_STORE %q", c.Store.Kind)
	}
	return nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	v := env.GetDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
