package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/pkg/logger"
)

// RepairMirrorsJob rewrites cache mirrors and ENROLLED_IN edges from the
// document store, healing earlier partial writes.
//
// Mirrors are overwritten unconditionally. A progress update that lands
// between this job reading a user and writing the mirrors can be replaced
// by the older entry; the next run restores it.
type RepairMirrorsJob struct {
	users       user.Repository
	cache       session.Store
	graph       social.Graph
	concurrency int
	logger      *slog.Logger
}

// NewRepairMirrorsJob creates the job. concurrency <= 0 means 4.
func NewRepairMirrorsJob(users user.Repository, cache session.Store, graph social.Graph, concurrency int, log *slog.Logger) *RepairMirrorsJob {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &RepairMirrorsJob{
		users:       users,
		cache:       cache,
		graph:       graph,
		concurrency: concurrency,
		logger:      logger.OrDefault(log).With(logger.Component(RepairMirrorsName)),
	}
}

func (j *RepairMirrorsJob) Name() string { return RepairMirrorsName }

func (j *RepairMirrorsJob) Description() string {
	return "Rewrites progress mirrors in cache and graph from the document store"
}

// Run implements scheduler.Job.
func (j *RepairMirrorsJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Execute repairs every user. Total counts users; Failed counts users with at
// least one mirror write that did not go through.
func (j *RepairMirrorsJob) Execute(ctx context.Context) (Report, error) {
	start := time.Now()

	ids, err := j.users.ListIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: list users: %w", RepairMirrorsName, err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := j.repairUser(gctx, id); err != nil {
				failed.Add(1)
				j.logger.WarnContext(gctx, "mirror repair failed", logger.UserID(id), logger.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Total: len(ids), Failed: int(failed.Load()), Duration: time.Since(start)}
	j.logger.InfoContext(ctx, "progress mirrors repaired",
		slog.Int("users", report.Total),
		slog.Int("failed", report.Failed),
		logger.Latency(report.Duration),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Failed > 0 {
		return report, fmt.Errorf("%s: %d of %d users failed", RepairMirrorsName, report.Failed, report.Total)
	}
	return report, nil
}

func (j *RepairMirrorsJob) repairUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u, err := j.users.FindByID(ctx, userID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, entry := range u.CoursesProgress {
		status := entry.Status.String()
		if err := j.cache.SetProgressMirror(ctx, session.ProgressMirror{
			UserID:   u.ID,
			CourseID: entry.CourseID,
			Status:   status,
			Progress: entry.Progress,
		}); err != nil {
			errs = append(errs, err)
		}
		if err := j.graph.UpsertEnrollment(ctx, social.Enrollment{
			UserID:   u.ID,
			CourseID: entry.CourseID,
			Status:   status,
			Progress: entry.Progress,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
