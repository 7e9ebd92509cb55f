// Waymark - Community Map and Live Location Sharing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waymark

// Package main is the entry point for the Waymark server.
//
// Waymark is a self-hosted community map: members pin and moderate
// points of interest, and can opt in to sharing their live position
// with everyone else on the map.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered env vars, config file, and defaults (Koanf v2)
//  2. Database: DuckDB single-file store for locations, presence, and profiles
//  3. Change feed: embedded NATS JetStream, external NATS, or in-process channel
//  4. WebSocket hub: real-time marker and location updates to clients
//  5. Presence tracker: reconciles the live position set into marker commands
//  6. Authentication: JWT, Basic Auth, or no-auth mode
//  7. HTTP server: REST API under /api/v1
//
// All long-lived components run under a suture supervisor tree and are
// restarted independently on failure. The server handles graceful
// shutdown on SIGINT and SIGTERM.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables (see envMappings in internal/config)
//   - Config file (config.yaml, path via CONFIG_PATH)
//   - Built-in defaults
//
// For JWT authentication:
//   - JWT_SECRET: 32+ character secret for token signing
//   - ADMIN_USERNAME: admin username
//   - ADMIN_PASSWORD: admin password (8+ characters)
//
// # Example Usage
//
// Development, no auth, in-process feed:
//
//	export AUTH_MODE=none
//	./waymark
//
// Production with JWT and the embedded NATS feed:
//
//	export AUTH_MODE=jwt
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USERNAME=admin
//	export ADMIN_PASSWORD=secure-password
//	export NATS_ENABLED=true
//	export NATS_EMBEDDED_SERVER=true
//	./waymark
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/waymark/internal/api"
	"github.com/tomtom215/waymark/internal/auth"
	"github.com/tomtom215/waymark/internal/config"
	"github.com/tomtom215/waymark/internal/database"
	"github.com/tomtom215/waymark/internal/feed"
	"github.com/tomtom215/waymark/internal/logging"
	"github.com/tomtom215/waymark/internal/presence"
	"github.com/tomtom215/waymark/internal/supervisor"
	"github.com/tomtom215/waymark/internal/supervisor/services"
	ws "github.com/tomtom215/waymark/internal/websocket"
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
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("nats_enabled", cfg.Feed.NATSEnabled).
		Msg("Starting Waymark")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Change feed transport: embedded NATS, external NATS, or an
	// in-process channel when no broker is configured.
	var bus feed.Bus
	var embedded *feed.EmbeddedServer
	if cfg.Feed.NATSEnabled {
		url := cfg.Feed.NATSURL
		if cfg.Feed.EmbeddedServer {
			embedded, err = feed.NewEmbeddedServer(feed.EmbeddedServerConfig{
				StoreDir:  cfg.Feed.StoreDir,
				MaxMemory: cfg.Feed.MaxMemory,
				MaxStore:  cfg.Feed.MaxStore,
			})
			if err != nil {
				logging.Fatal().Err(err).Msg("Failed to start embedded NATS server")
			}
			url = embedded.ClientURL()
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}

		bus, err = feed.NewNATSBus(&cfg.Feed, url)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		logging.Info().Str("url", url).Msg("Change feed connected to NATS")
	} else {
		bus = feed.NewChannelBus()
		logging.Info().Msg("Change feed running in-process (NATS disabled)")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing change feed")
		}
	}()

	db.SetChangeHook(feed.Hook(bus))

	wsHub := ws.NewHub()

	tracker := presence.NewTracker(db, feed.NewPresenceCues(bus), wsHub, presence.TrackerConfig{
		PollInterval:       cfg.Presence.FallbackPollInterval,
		StaleThreshold:     cfg.Presence.StaleThreshold,
		FetchRetryAttempts: cfg.Presence.FetchRetryAttempts,
		FetchRetryDelay:    cfg.Presence.FetchRetryDelay,
	})

	var jwtManager *auth.JWTManager
	var basicAuthManager *auth.BasicAuthManager

	switch cfg.Security.AuthMode {
	case auth.AuthModeJWT:
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		basicAuthManager, err = auth.NewBasicAuthManager(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize credential store")
		}
		logging.Info().Msg("JWT authentication enabled")
	case auth.AuthModeBasic:
		basicAuthManager, err = auth.NewBasicAuthManager(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize Basic Auth manager")
		}
		logging.Info().Msg("Basic authentication enabled")
		logging.Warn().Msg("Basic Auth transmits credentials with each request. Use HTTPS in production!")
	case auth.AuthModeNone:
		logging.Warn().Msg("Authentication is DISABLED (auth_mode=none)")
		logging.Warn().Msg("All endpoints are publicly accessible. Use only for local development or isolated networks!")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (rate_limit_disabled=true)")
	}

	authMW := auth.NewMiddleware(&cfg.Security, jwtManager, basicAuthManager)
	chiMW := api.NewChiMiddleware(&cfg.Security)

	var feedStatus api.FeedStatus
	if embedded != nil {
		feedStatus = embedded
	}
	handler := api.NewHandler(db, cfg, jwtManager, basicAuthManager, wsHub, feedStatus)
	router := api.NewRouter(handler, authMW, chiMW)

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDataService(tracker)
	tree.AddMessagingService(services.NewHubService(wsHub))
	tree.AddMessagingService(ws.NewFeedBridge(wsHub, bus))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor closes the channel.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if embedded != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := embedded.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		shutdownCancel()
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Waymark stopped gracefully")
}
