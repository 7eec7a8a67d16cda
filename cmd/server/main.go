// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package main is the entry point for the Gatekeeper server.
//
// Gatekeeper is a self-hosted visitor management service: visitors
// register through a web form with a webcam photo, hosts approve or
// reject the visit from an emailed link, and approved visitors receive
// a PDF gate pass by email. An admin surface lists, filters, and
// exports visitor records.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered settings from defaults, config file, and
//     environment variables (koanf v2)
//  2. Database: DuckDB visitor store
//  3. Object storage: S3-compatible bucket for photos and passes
//  4. Mailer: SMTP client behind a circuit breaker
//  5. Pass generator: headless Chromium with a programmatic fallback
//  6. HTTP server: chi-routed REST API under a suture supervision tree
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops
// accepting connections, in-flight requests get the configured
// shutdown timeout, then the database is checkpointed and closed.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/nktu/gatekeeper/internal/api"
	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/database"
	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/mailer"
	"github.com/nktu/gatekeeper/internal/metrics"
	"github.com/nktu/gatekeeper/internal/pass"
	"github.com/nktu/gatekeeper/internal/storage"
	"github.com/nktu/gatekeeper/internal/supervisor"
	"github.com/nktu/gatekeeper/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("db_path", cfg.Database.Path).
		Str("bucket", cfg.Storage.Bucket).
		Msg("Starting Gatekeeper")

	metrics.AppInfo.WithLabelValues(api.Version, runtime.Version()).Set(1)

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	objects, err := storage.New(&cfg.Storage)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize object storage")
	}
	if err := objects.EnsureBucket(context.Background()); err != nil {
		// Storage may come up after us; uploads will fail loudly until
		// it does.
		logging.Warn().Err(err).Msg("Could not verify storage bucket at startup")
	}

	notifier, err := mailer.New(cfg.Email, cfg.Server.PublicBaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize mailer")
	}

	passes := pass.NewGenerator(&cfg.Pass)

	handler := api.NewHandler(db, objects, notifier, passes, cfg)
	router := api.NewRouter(handler, api.NewChiMiddleware(&cfg.Security))

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go trackUptime(ctx)

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.Add(services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
	}

	logging.Info().Msg("Gatekeeper stopped")
}

// trackUptime feeds the uptime gauge until shutdown.
func trackUptime(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.AppUptime.Set(time.Since(start).Seconds())
		}
	}
}
