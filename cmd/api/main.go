// Package main is the entry point of the course platform HTTP API.
//
// The API serves the catalog, accounts, comments and per-user progress on
// top of three stores: a document store (MongoDB or PostgreSQL), a graph
// store (Neo4j) and a cache (Redis). When SCHEDULER_ENABLED is set the
// reconciliation jobs run in-process as well.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursehub/coursehub/config"
	"github.com/coursehub/coursehub/internal/app"
	httpapi "github.com/coursehub/coursehub/internal/interface/http"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting course platform API",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("version", cfg.App.Version),
		slog.String("document_store", cfg.Stores.Document),
		slog.String("graph_store", cfg.Stores.Graph),
		slog.String("cache", cfg.Stores.Cache),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORES
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.Error("failed to close stores", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION (event bus, rating aggregator, handlers)
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(cfg, stores, log)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = application.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched, err := application.Scheduler()
		if err != nil {
			return fmt.Errorf("failed to build scheduler: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       cfg.HTTP.MaxBodyBytes,
		EnableCORS:         len(cfg.HTTP.AllowedOrigins) > 0,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		EnableMetrics:      cfg.HTTP.EnableMetrics,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	}, application.HTTPDependencies(application.HealthChecker()))

	errCh := server.StartAsync()
	log.Info("course platform API is running", slog.String("address", cfg.HTTP.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("HTTP server stopped unexpectedly", logger.Err(serveErr))
		}
	}

	log.Info("starting graceful shutdown...", slog.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("HTTP server shutdown failed", logger.Err(err))
	}

	log.Info("shutdown completed")
	return serveErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the process logger and installs it as the slog default.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Log.Level)
	opts.Service = cfg.App.Name
	opts.Env = string(cfg.App.Environment)

	switch {
	case cfg.Log.Format != "":
		opts.Format = logger.Format(cfg.Log.Format)
	case cfg.IsDevelopment():
		opts.Format = logger.FormatText
	}
	opts.AddSource = cfg.IsDevelopment()

	log := logger.New(opts)
	slog.SetDefault(log)
	return log
}
