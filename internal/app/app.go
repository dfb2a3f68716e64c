package app

import (
	"context"
	"fmt"

	"github.com/dvcrn/flyerless-proxy/internal/auth"
	"github.com/dvcrn/flyerless-proxy/internal/config"
	"github.com/dvcrn/flyerless-proxy/internal/connector"
	"github.com/dvcrn/flyerless-proxy/internal/server"
	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/rs/zerolog"
)

// StoreOptions translates config into token store options.
func StoreOptions(cfg *config.Config) []tokenstore.Option {
	var opts []tokenstore.Option
	if cfg.BootstrapTTL > 0 {
		opts = append(opts, tokenstore.WithBootstrapTTL(cfg.BootstrapTTL))
	}
	return opts
}

// OpenStore opens the token store selected by cfg. The returned close
// function releases any connection it holds.
func OpenStore(ctx context.Context, cfg *config.Config) (tokenstore.Store, func() error, error) {
	opts := StoreOptions(cfg)
	noop := func() error { return nil }

	switch cfg.Store.Kind {
	case config.StoreSQLite:
		s, err := tokenstore.OpenSQLite(ctx, cfg.Store.SQLitePath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StorePostgres:
		s, err := tokenstore.OpenPostgres(ctx, cfg.Store.DatabaseURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreRedis:
		s, err := tokenstore.DialRedis(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, opts...)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreFile:
		path := cfg.Store.TokenFile
		if path == "" {
			path = tokenstore.DefaultTokenPath()
		}
		return tokenstore.NewFileStore(path, opts...), noop, nil
	case config.StoreMemory:
		return tokenstore.NewMemoryStore(opts...), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown token store %q", cfg.Store.Kind)
	}
}

// NewConnector builds the Flyerless connector from cfg on top of store.
func NewConnector(cfg *config.Config, store tokenstore.Store, client auth.HTTPClient, logger zerolog.Logger) (connector.Connector, error) {
	if client == nil {
		client = auth.NewHTTPClient(cfg.HTTPTimeout)
	}
	return connector.DefaultRegistry().New(connector.FlyerlessAlias, connector.Settings{
		connector.SettingAPIKey:  cfg.APIKey,
		connector.SettingBaseURL: cfg.BaseURL,
	}, connector.Deps{
		Store:         store,
		Client:        client,
		Logger:        logger,
		BrokerOptions: []auth.Option{auth.WithRefreshTTL(cfg.RefreshTTL)},
	})
}

// NewServer creates a new server instance around conn
func NewServer(conn connector.Connector, cfg *config.Config, logger zerolog.Logger) *server.Server {
	return server.New(logger, conn, connector.DefaultRegistry(), cfg.AdminAPIKey)
}
