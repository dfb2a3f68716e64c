package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/dvcrn/flyerless-proxy/internal/app"
	"github.com/dvcrn/flyerless-proxy/internal/config"
	"github.com/dvcrn/flyerless-proxy/internal/connector"
	"github.com/dvcrn/flyerless-proxy/internal/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	flag.StringVar(&cfg.Store.Kind, "store", cfg.Store.Kind, "Token store backend: sqlite, postgres, redis, file or memory")
	flag.StringVar(&cfg.Store.SQLitePath, "sqlite-path", cfg.Store.SQLitePath, "Path to the SQLite token database")
	flag.StringVar(&cfg.Store.TokenFile, "token-file", cfg.Store.TokenFile, "Path to the JSON token file (file store)")
	flag.StringVar(&cfg.Port, "port", cfg.Port, "Port to listen on")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	skipCheck := flag.Bool("skip-startup-check", false, "Do not probe the upstream API at startup")
	flag.Parse()

	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("⚠️  ADMIN_API_KEY is not set, admin and forwarding routes will reject all requests")
	}

	ctx := context.Background()
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Store.Kind).Msg("Failed to open token store")
	}
	defer closeStore()
	log.Info().Str("store", cfg.Store.Kind).Msg("🗄️  Token store ready")

	conn, err := app.NewConnector(cfg, store, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create connector")
	}

	if !*skipCheck {
		validateConnectorAtStartup(ctx, conn, log)
	}

	srv := app.NewServer(conn, cfg, log)

	log.Info().Str("port", cfg.Port).Msg("Starting server")
	log.Fatal().Err(http.ListenAndServe(":"+cfg.Port, srv)).Msg("Server failed to start")
}

func validateConnectorAtStartup(ctx context.Context, conn connector.Connector, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if !conn.Test(ctx) {
		log.Error().Msg("⚠️  Upstream did not authorise the connector at startup")
		return
	}
	log.Info().Msg("✅ Connector authorised by upstream")

	reporter, ok := conn.(connector.StatusReporter)
	if !ok {
		return
	}
	status, err := reporter.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  Could not read token status")
		return
	}

	event := log.Info().Bool("has_token", status.HasToken).Bool("valid", status.Valid)
	if status.UpdatedAt != nil {
		event = event.Time("updated_at", *status.UpdatedAt)
	}
	event.Msg("✅ Token status")
}
