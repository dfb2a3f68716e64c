//go:build js && wasm

package main

import (
	"github.com/dvcrn/flyerless-proxy/internal/app"
	"github.com/dvcrn/flyerless-proxy/internal/config"
	"github.com/dvcrn/flyerless-proxy/internal/logger"
	"github.com/dvcrn/flyerless-proxy/internal/tokenstore"
	"github.com/syumai/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("📦 Using Cloudflare KV token store")
	store, err := tokenstore.NewKVStore(app.StoreOptions(cfg)...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Cloudflare KV token store")
	}

	conn, err := app.NewConnector(cfg, store, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create connector")
	}

	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(app.NewServer(conn, cfg, log))
}
