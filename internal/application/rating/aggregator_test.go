package rating

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/pkg/logger"
)

type fixture struct {
	docs  *memory.DocumentStore
	graph *memory.GraphStore
	agg   *Aggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := memory.NewDocumentStore()
	graph := memory.NewGraphStore()
	require.NoError(t, docs.Courses.Create(context.Background(), &course.Course{ID: "c1", Name: "Go"}))
	return &fixture{
		docs:  docs,
		graph: graph,
		agg:   NewAggregator(graph, docs.Courses, nil, nil, logger.Discard()),
	}
}

func (f *fixture) comment(t *testing.T, rating int) {
	t.Helper()
	c, err := social.NewComment("u1", "c1", "text", rating, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.graph.CreateComment(context.Background(), c))
}

func TestRecompute_MeanRoundedToOneDecimal(t *testing.T) {
	f := newFixture(t)
	for _, r := range []int{2, 4, 5} {
		f.comment(t, r)
	}

	summary, err := f.agg.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, social.RatingSummary{AverageRating: 3.7, TotalRatings: 3}, summary)

	c, _ := f.docs.Courses.FindByID(context.Background(), "c1")
	assert.Equal(t, 3.7, c.Rating)
}

func TestRecompute_EmptySetIsZero(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.Courses.UpdateRating(context.Background(), "c1", 4.2))

	summary, err := f.agg.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, social.RatingSummary{}, summary)

	c, _ := f.docs.Courses.FindByID(context.Background(), "c1")
	assert.Zero(t, c.Rating)
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.comment(t, 1)
	f.comment(t, 2)

	first, err := f.agg.Recompute(context.Background(), "c1")
	require.NoError(t, err)
	second, err := f.agg.Recompute(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1.5, second.AverageRating)
}

func TestRecompute_ReadFailureLeavesRatingUntouched(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.Courses.UpdateRating(context.Background(), "c1", 4.5))
	f.graph.FailOn(memory.OpCourseRatings, shared.StoreUnavailable("graph", "CourseRatings", errors.New("bolt: connection refused")))

	_, err := f.agg.Recompute(context.Background(), "c1")
	assert.True(t, shared.IsStoreUnavailable(err))
	assert.Equal(t, 1, f.docs.Calls(memory.OpUpdateRating), "only the setup write")

	c, _ := f.docs.Courses.FindByID(context.Background(), "c1")
	assert.Equal(t, 4.5, c.Rating)
}

func TestRecompute_UnknownCourse(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.Recompute(context.Background(), "nope")
	assert.True(t, shared.IsNotFound(err))
}

func TestRead_DoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.comment(t, 5)

	summary, err := f.agg.Read(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, social.RatingSummary{AverageRating: 5, TotalRatings: 1}, summary)
	assert.Zero(t, f.docs.Calls(memory.OpUpdateRating))
}

func TestRecompute_AllIntegerRatingSets(t *testing.T) {
	sets := [][]int{{1}, {5, 5, 5}, {1, 2}, {3, 3, 4}, {1, 1, 1, 2}, {2, 2, 3}}
	for _, set := range sets {
		f := newFixture(t)
		sum := 0
		for _, r := range set {
			f.comment(t, r)
			sum += r
		}
		summary, err := f.agg.Recompute(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, shared.RoundTo(float64(sum)/float64(len(set)), 1), summary.AverageRating, "%v", set)
		assert.Equal(t, len(set), summary.TotalRatings)
	}
}

// gatedGraph blocks CourseRatings until released and records whether the
// context it was given had been cancelled by then.
type gatedGraph struct {
	*memory.GraphStore
	entered     chan struct{}
	enteredOnce sync.Once
	release     chan struct{}

	mu      sync.Mutex
	ctxErrs []error
}

func (g *gatedGraph) CourseRatings(ctx context.Context, courseID string) ([]shared.Rating, error) {
	g.enteredOnce.Do(func() { close(g.entered) })
	<-g.release
	g.mu.Lock()
	g.ctxErrs = append(g.ctxErrs, ctx.Err())
	g.mu.Unlock()
	return g.GraphStore.CourseRatings(ctx, courseID)
}

func TestRead_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := newFixture(t)
	f.comment(t, 4)
	graph := &gatedGraph{GraphStore: f.graph, entered: make(chan struct{}), release: make(chan struct{})}
	agg := NewAggregator(graph, f.docs.Courses, nil, nil, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := agg.Read(ctx, "c1")
		firstErr <- err
	}()
	<-graph.entered

	type result struct {
		summary social.RatingSummary
		err     error
	}
	second := make(chan result, 1)
	go func() {
		s, err := agg.Read(context.Background(), "c1")
		second <- result{s, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(graph.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, social.RatingSummary{AverageRating: 4, TotalRatings: 1}, got.summary)

	graph.mu.Lock()
	defer graph.mu.Unlock()
	for _, err := range graph.ctxErrs {
		assert.NoError(t, err, "shared read saw a cancelled context")
	}
}
