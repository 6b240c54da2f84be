// Command api is the Gatherly nudge engine server.
//
// Usage:
//
//	nudge-api
//	API_PORT=8080 nudge-api

// @title Gatherly Nudge Engine API
// @version 1.0.0
// @description Behavioral nudge engine for the Gatherly events marketplace. Detects attendance signals, generates copy, and writes in-app notifications.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Gatherly
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/gatherly/nudge-engine/internal/api"
	"github.com/gatherly/nudge-engine/internal/cache"
	"github.com/gatherly/nudge-engine/internal/config"
	"github.com/gatherly/nudge-engine/internal/db"
	"github.com/gatherly/nudge-engine/internal/genai"
	"github.com/gatherly/nudge-engine/internal/listener"
	"github.com/gatherly/nudge-engine/internal/maintenance"
	"github.com/gatherly/nudge-engine/internal/nudge"
	"github.com/gatherly/nudge-engine/internal/scheduler"
	"github.com/gatherly/nudge-engine/internal/store"

	_ "github.com/gatherly/nudge-engine/docs" // swagger docs
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Wire the engine: store, copy generator, detectors
	st := store.New(pool.Pool)

	var textClient nudge.TextClient
	if cfg.HasGenAI() {
		textClient = genai.NewClient(cfg.GenAIAPIKey, cfg.GenAIBaseURL, cfg.GenAIModel,
			cfg.GenAITimeout, cfg.GenAIRPM, logger)
		logger.Info("Generative copy enabled", "model", cfg.GenAIModel)
	} else {
		logger.Info("Generative copy disabled (no GENAI_API_KEY), using fallback templates")
	}
	gen := nudge.NewGenerator(textClient, logger)
	engine := nudge.NewEngine(st, gen, logger)

	// Start LISTEN/NOTIFY consumer for real-time approval events
	if cfg.ListenEnabled {
		go listener.Start(ctx, cfg.DatabaseURL, engine, logger)
	} else {
		logger.Info("Approval listener disabled (LISTEN_ENABLED=false)")
	}

	// Start the periodic nudge scheduler
	if cfg.NudgeCron != "" {
		sched, err := scheduler.New(cfg.NudgeCron, func(ctx context.Context) {
			engine.ProcessPeriodicNudges(ctx)
		}, logger)
		if err != nil {
			logger.Error("Invalid NUDGE_CRON expression", "spec", cfg.NudgeCron, "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		logger.Info("In-process scheduler disabled (NUDGE_CRON empty)")
	}

	// Start maintenance tickers (cleanup, catch-up sweep)
	go maintenance.Start(ctx, pool.Pool, st, engine,
		maintenance.DefaultConfig(cfg.NudgeRetention), logger)

	// Create router
	router := api.NewRouter(pool.Pool, engine, appCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Gatherly Nudge Engine",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
