package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "TOKEN_STORE", "SQLITE_PATH", "HTTP_TIMEOUT", "TOKEN_BOOTSTRAP_TTL", "TOKEN_REFRESH_TTL", "REDIS_DB"} {
		t.Setenv(k, "")
	}
	t.Setenv("FLYERLESS_API_KEY", "abc123")
	t.Setenv("FLYERLESS_BASE_URL", "https://example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.APIKey)
	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)
	assert.Equal(t, DefaultSQLitePath, cfg.Store.SQLitePath)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.Zero(t, cfg.BootstrapTTL)
	assert.Zero(t, cfg.RefreshTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_STORE", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("TOKEN_REFRESH_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, 3, cfg.Store.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*time.Minute, cfg.RefreshTTL)
}

func TestLoadInvalidValues(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("HTTP_TIMEOUT", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "HTTP_TIMEOUT")
	})

	t.Run("bad redis db", func(t *testing.T) {
		t.Setenv("HTTP_TIMEOUT", "")
		t.Setenv("REDIS_DB", "zero")
		_, err := Load()
		assert.ErrorContains(t, err, "REDIS_DB")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			APIKey:  "abc123",
			BaseURL: "https://bristol.flyerless.co.uk/API/",
			Store:   StoreConfig{Kind: StoreMemory},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.APIKey = "" }, wantErr: "FLYERLESS_API_KEY"},
		{name: "missing base url", mutate: func(c *Config) { c.BaseURL = "" }, wantErr: "FLYERLESS_BASE_URL"},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "flyerless/API" }, wantErr: "absolute"},
		{name: "negative ttl", mutate: func(c *Config) { c.RefreshTTL = -time.Minute }, wantErr: "negative"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Kind = StorePostgres }, wantErr: "DATABASE_URL"},
		{name: "redis without addr", mutate: func(c *Config) { c.Store.Kind = StoreRedis }, wantErr: "REDIS_ADDR"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Store.Kind = StoreSQLite }, wantErr: "SQLITE_PATH"},
		{name: "unknown store", mutate: func(c *Config) { c.Store.Kind = "etcd" }, wantErr: "unknown TOKEN_STORE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
