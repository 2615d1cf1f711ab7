// Package rating recomputes course ratings from the comment edges of the
// social graph and writes them back to the course documents.
package rating

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/pkg/logger"
)

// Aggregator derives a course's rating from its COMMENTED edges.
//
// There is no locking against concurrent comment creation. The written value
// is always computed from the edges returned by a single graph read, so it can
// be stale but never wrong; a comment created after the read is picked up by
// the next invocation (the one its own creation triggers, or the bulk job).
type Aggregator struct {
	graph     social.Graph
	courses   course.Repository
	publisher shared.EventPublisher
	metrics   shared.Recorder
	logger    *slog.Logger

	reads singleflight.Group
}

// NewAggregator creates a new rating aggregator.
func NewAggregator(
	graph social.Graph,
	courses course.Repository,
	publisher shared.EventPublisher,
	metrics shared.Recorder,
	log *slog.Logger,
) *Aggregator {
	if publisher == nil {
		publisher = shared.NoopPublisher{}
	}
	if metrics == nil {
		metrics = shared.NoopRecorder{}
	}
	return &Aggregator{
		graph:     graph,
		courses:   courses,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.OrDefault(log).With(logger.Component("rating_aggregator")),
	}
}

// Recompute reads every comment rating of the course, writes the rounded mean
// into the course document and returns the summary. Safe to call repeatedly.
// If the graph read fails the stored rating is left untouched.
func (a *Aggregator) Recompute(ctx context.Context, courseID string) (social.RatingSummary, error) {
	start := time.Now()

	summary, err := a.summarize(ctx, courseID)
	if err != nil {
		a.metrics.RatingRecomputed(false, time.Since(start))
		return social.RatingSummary{}, fmt.Errorf("recompute_rating: read ratings: %w", err)
	}

	if err := a.courses.UpdateRating(ctx, courseID, summary.AverageRating); err != nil {
		a.metrics.RatingRecomputed(false, time.Since(start))
		return social.RatingSummary{}, fmt.Errorf("recompute_rating: write rating: %w", err)
	}

	a.metrics.RatingRecomputed(true, time.Since(start))
	a.logger.DebugContext(ctx, "course rating recomputed",
		logger.CourseID(courseID),
		slog.Float64("average_rating", summary.AverageRating),
		slog.Int("total_ratings", summary.TotalRatings),
	)

	event := shared.NewRatingRecomputedEvent(courseID, summary.AverageRating, summary.TotalRatings)
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.WarnContext(ctx, "failed to publish rating event", logger.CourseID(courseID), logger.Err(err))
	}

	return summary, nil
}

// Read computes the summary without writing it. Concurrent reads for the same
// course share one graph query.
func (a *Aggregator) Read(ctx context.Context, courseID string) (social.RatingSummary, error) {
	// The shared read must not die with whichever caller started it, so it
	// runs on a context without cancellation. Each caller still stops
	// waiting when its own context ends.
	ch := a.reads.DoChan(courseID, func() (interface{}, error) {
		return a.summarize(context.WithoutCancel(ctx), courseID)
	})
	select {
	case <-ctx.Done():
		return social.RatingSummary{}, fmt.Errorf("read_rating: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return social.RatingSummary{}, fmt.Errorf("read_rating: %w", res.Err)
		}
		return res.Val.(social.RatingSummary), nil
	}
}

func (a *Aggregator) summarize(ctx context.Context, courseID string) (social.RatingSummary, error) {
	ratings, err := a.graph.CourseRatings(ctx, courseID)
	if err != nil {
		return social.RatingSummary{}, err
	}
	return social.Summarize(ratings), nil
}
