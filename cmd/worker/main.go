// Package main is the background worker of the course platform.
//
// The worker keeps derived data consistent with its source of truth:
//   - course ratings are recomputed from the comment edges in the graph
//   - progress mirrors in the cache and graph are repaired from the document store
//
// "worker run" schedules both jobs; the other subcommands run one job (or a
// maintenance task) once and exit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursehub/coursehub/config"
	"github.com/coursehub/coursehub/internal/app"
	"github.com/coursehub/coursehub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configDir string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "worker",
		Short:         "Background reconciliation for the course platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "directory holding an optional app.env file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newRunCmd(opts),
		newRecomputeRatingsCmd(opts),
		newRepairMirrorsCmd(opts),
		newMigrateCmd(opts),
		newFlushCacheCmd(opts),
		newImportCoursesCmd(opts),
	)
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ══════════════════════════════════════════════════════════════════════════════

// env is what every subcommand starts from.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	app    *app.Application
	stores *app.Stores
}

func bootstrap(ctx context.Context, opts *rootOptions) (*env, func(), error) {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadFrom(opts.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORES
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stores: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. APPLICATION
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(cfg, stores, log)
	if err != nil {
		_ = stores.Close(context.Background())
		return nil, nil, fmt.Errorf("failed to wire application: %w", err)
	}

	cleanup := func() {
		_ = application.Close()
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.Error("failed to close stores", logger.Err(err))
		}
	}
	return &env{cfg: cfg, log: log, app: application, stores: stores}, cleanup, nil
}

// jobContext bounds a one-shot job by SCHEDULER_JOB_TIMEOUT.
func (e *env) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Scheduler.JobTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Scheduler.JobTimeout)
	}
	return context.WithCancel(ctx)
}

// setupLogger builds the process logger and installs it as the slog default.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Log.Level)
	opts.Service = cfg.App.Name + "-worker"
	opts.Env = string(cfg.App.Environment)

	switch {
	case cfg.Log.Format != "":
		opts.Format = logger.Format(cfg.Log.Format)
	case cfg.IsDevelopment():
		opts.Format = logger.FormatText
	}

	log := logger.New(opts)
	slog.SetDefault(log)
	return log
}
