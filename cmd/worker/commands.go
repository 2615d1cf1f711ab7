package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coursehub/coursehub/config"
	"github.com/coursehub/coursehub/internal/application/command"
	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/infrastructure/scheduler/jobs"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the reconciliation jobs on their schedules until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, cleanup, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			sched, err := e.app.Scheduler()
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			for _, job := range sched.ListJobs() {
				e.log.Info("job scheduled",
					slog.String("job", job.Name),
					slog.String("schedule", job.Schedule),
					slog.Time("next_run", job.NextRun),
				)
			}

			e.log.Info("worker is running", slog.String("timezone", e.cfg.Scheduler.Timezone))
			<-ctx.Done()

			e.log.Info("received shutdown signal, stopping scheduler...",
				slog.Duration("timeout", e.cfg.App.ShutdownTimeout))
			stopped := make(chan struct{})
			go func() {
				_ = sched.Stop()
				close(stopped)
			}()
			select {
			case <-stopped:
				e.log.Info("shutdown completed")
			case <-time.After(e.cfg.App.ShutdownTimeout):
				e.log.Warn("shutdown timed out with jobs still running")
			}
			return nil
		},
	}
}

func newRecomputeRatingsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-ratings",
		Short: "Recompute every course rating once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := e.jobContext(cmd.Context())
			defer cancel()

			report, err := e.app.RecomputeRatingsJob().Execute(ctx)
			e.app.Metrics.JobRun(jobs.RecomputeRatingsName, err == nil)
			if err != nil {
				return err
			}
			printReport(cmd, jobs.RecomputeRatingsName, report)
			return nil
		},
	}
}

func newRepairMirrorsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-mirrors",
		Short: "Rewrite the cache and graph progress mirrors from the document store once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := e.jobContext(cmd.Context())
			defer cancel()

			report, err := e.app.RepairMirrorsJob().Execute(ctx)
			e.app.Metrics.JobRun(jobs.RepairMirrorsName, err == nil)
			if err != nil {
				return err
			}
			printReport(cmd, jobs.RepairMirrorsName, report)
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if e.stores.Migrator == nil {
				return fmt.Errorf("migrate: document store is %q, not %q", e.cfg.Stores.Document, config.BackendPostgres)
			}
			applied, err := e.stores.Migrator.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
			return nil
		},
	}
}

func newFlushCacheCmd(opts *rootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "flush-cache",
		Short: "Drop every cache entry, sessions included",
		Long: "Drops every cache entry. All users are logged out and progress " +
			"mirrors are rebuilt by the next repair-mirrors run.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("flush-cache: refusing to run without --yes")
			}
			e, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := e.stores.Cache.FlushAll(cmd.Context()); err != nil {
				return err
			}
			e.log.Warn("cache flushed; all sessions revoked")
			fmt.Fprintln(cmd.OutOrStdout(), "cache flushed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm that every session will be revoked")
	return cmd
}

// courseFile is one catalog entry in an import file.
type courseFile struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"shortDescription"`
	Description      string        `json:"description"`
	ImageURL         string        `json:"imageUrl"`
	BannerURL        string        `json:"bannerUrl"`
	Units            []course.Unit `json:"units"`
}

func newImportCoursesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import-courses <file.json>",
		Short: "Insert a JSON array of courses into the document store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("import-courses: %w", err)
			}
			var entries []courseFile
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("import-courses: decode %s: %w", args[0], err)
			}

			e, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			cmds := make([]command.CreateCourseCommand, 0, len(entries))
			for _, c := range entries {
				cmds = append(cmds, command.CreateCourseCommand{
					ID:               c.ID,
					Name:             c.Name,
					ShortDescription: c.ShortDescription,
					Description:      c.Description,
					ImageURL:         c.ImageURL,
					BannerURL:        c.BannerURL,
					Units:            c.Units,
				})
			}

			imported, err := command.NewCreateCourseHandler(e.stores.Courses, e.log).Import(cmd.Context(), cmds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d course(s)\n", len(imported))
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, job string, report jobs.Report) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d processed, %d failed in %s\n",
		job, report.Total, report.Failed, report.Duration.Round(time.Millisecond))
}
