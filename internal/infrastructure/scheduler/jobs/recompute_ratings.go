// Package jobs contains the background reconciliation jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/pkg/logger"
)

const (
	RecomputeRatingsName = "recompute_ratings"
	RepairMirrorsName    = "repair_progress_mirrors"
)

// RatingRecomputer recomputes one course rating.
type RatingRecomputer interface {
	Recompute(ctx context.Context, courseID string) (social.RatingSummary, error)
}

// Report summarizes one batch run.
type Report struct {
	Total    int
	Failed   int
	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE RATINGS
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeRatingsJob recomputes the rating of every course.
type RecomputeRatingsJob struct {
	courses     course.Repository
	ratings     RatingRecomputer
	concurrency int
	logger      *slog.Logger
}

// NewRecomputeRatingsJob creates the job. concurrency <= 0 means 4.
func NewRecomputeRatingsJob(courses course.Repository, ratings RatingRecomputer, concurrency int, log *slog.Logger) *RecomputeRatingsJob {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &RecomputeRatingsJob{
		courses:     courses,
		ratings:     ratings,
		concurrency: concurrency,
		logger:      logger.OrDefault(log).With(logger.Component(RecomputeRatingsName)),
	}
}

func (j *RecomputeRatingsJob) Name() string { return RecomputeRatingsName }

func (j *RecomputeRatingsJob) Description() string {
	return "Recomputes every course rating from its comment edges"
}

// Run implements scheduler.Job.
func (j *RecomputeRatingsJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Execute recomputes all courses with bounded concurrency. A failing course
// is logged and counted; the rest of the batch still runs.
func (j *RecomputeRatingsJob) Execute(ctx context.Context) (Report, error) {
	start := time.Now()

	ids, err := j.courses.ListIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: list courses: %w", RecomputeRatingsName, err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				failed.Add(1)
				return nil
			}
			if _, err := j.ratings.Recompute(gctx, id); err != nil {
				failed.Add(1)
				j.logger.WarnContext(gctx, "course rating recompute failed", logger.CourseID(id), logger.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Total: len(ids), Failed: int(failed.Load()), Duration: time.Since(start)}
	j.logger.InfoContext(ctx, "ratings recomputed",
		slog.Int("courses", report.Total),
		slog.Int("failed", report.Failed),
		logger.Latency(report.Duration),
	)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if report.Failed > 0 {
		return report, fmt.Errorf("%s: %d of %d courses failed", RecomputeRatingsName, report.Failed, report.Total)
	}
	return report, nil
}
