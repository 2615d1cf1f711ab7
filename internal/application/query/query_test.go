package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub/internal/application/rating"
	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/pkg/logger"
)

type fixture struct {
	docs  *memory.DocumentStore
	graph *memory.GraphStore
	cache *memory.CacheStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		docs:  memory.NewDocumentStore(),
		graph: memory.NewGraphStore(),
		cache: memory.NewCacheStore(),
	}
	require.NoError(t, f.docs.Users.Create(ctx, &user.User{ID: "u1", Email: "ann@example.com", Name: "Ann"}))
	for _, id := range []string{"c1", "c2"} {
		c := &course.Course{ID: id, Name: "Course " + id, Units: []course.Unit{{Name: "U", Lessons: []course.Lesson{{Name: "L1"}, {Name: "L2"}}}}}
		require.NoError(t, f.docs.Courses.Create(ctx, c))
	}
	return f
}

func (f *fixture) comment(t *testing.T, userID, courseID string, rating int, at time.Time) *social.Comment {
	t.Helper()
	c, err := social.NewComment(userID, courseID, "text", rating, at)
	require.NoError(t, err)
	require.NoError(t, f.graph.CreateComment(context.Background(), c))
	return c
}

func (f *fixture) progress(t *testing.T, courseID string, value float64) {
	t.Helper()
	_, _, err := f.docs.Users.UpsertProgress(context.Background(), "u1", courseID, value, time.Now())
	require.NoError(t, err)
}

func TestGetCourseComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := f.comment(t, "u1", "c1", 2, base)
	newer := f.comment(t, "u1", "c1", 5, base.Add(time.Hour))
	f.comment(t, "u1", "c2", 3, base)

	h := NewGetCourseCommentsHandler(f.docs.Courses, f.graph)

	got, err := h.Handle(ctx, GetCourseCommentsQuery{CourseID: "c1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	_, err = h.Handle(ctx, GetCourseCommentsQuery{CourseID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, GetCourseCommentsQuery{CourseID: "bad id"})
	assert.True(t, shared.IsValidation(err))
}

func TestGetUserComments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.comment(t, "u1", "c1", 4, time.Now())
	f.comment(t, "u1", "c2", 1, time.Now())
	f.comment(t, "u2", "c2", 1, time.Now())

	h := NewGetUserCommentsHandler(f.docs.Users, f.graph)

	got, err := h.Handle(ctx, GetUserCommentsQuery{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = h.Handle(ctx, GetUserCommentsQuery{UserID: "u2"})
	assert.True(t, shared.IsNotFound(err), "u2 has edges but no document")
}

func TestGetCourseRating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, r := range []int{2, 4, 5} {
		f.comment(t, "u1", "c1", r, time.Now())
	}
	agg := rating.NewAggregator(f.graph, f.docs.Courses, nil, nil, logger.Discard())
	h := NewGetCourseRatingHandler(f.docs.Courses, agg)

	got, err := h.Handle(ctx, GetCourseRatingQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 3.7, got.AverageRating)
	assert.Equal(t, 3, got.TotalRatings)

	got, err = h.Handle(ctx, GetCourseRatingQuery{CourseID: "c2"})
	require.NoError(t, err)
	assert.Zero(t, got.AverageRating)
	assert.Zero(t, got.TotalRatings)

	f.graph.FailOn(memory.OpCourseRatings, shared.StoreUnavailable(shared.StoreGraph, "CourseRatings", errors.New("down")))
	_, err = h.Handle(ctx, GetCourseRatingQuery{CourseID: "c1"})
	assert.True(t, shared.IsStoreUnavailable(err))
}

func TestGetUserCourses_SkipsRemovedCourses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.progress(t, "c1", 100)
	f.progress(t, "removed", 50)

	h := NewGetUserCoursesHandler(f.docs.Users, f.docs.Courses, logger.Discard())
	got, err := h.Handle(ctx, GetUserCoursesQuery{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].Course.ID)
	assert.Equal(t, user.StatusCompleted.String(), got[0].Status)

	_, err = h.Handle(ctx, GetUserCoursesQuery{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}

func TestGetCourseProgress_CacheThenReadRepair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.progress(t, "c1", 50)
	h := NewGetCourseProgressHandler(f.docs.Users, f.cache, logger.Discard())

	got, err := h.Handle(ctx, GetCourseProgressQuery{UserID: "u1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, SourceDocument, got.Source)
	assert.Equal(t, "IN_PROGRESS", got.Status)

	mirror, err := f.cache.GetProgressMirror(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, mirror.Progress, "mirror repaired from the document")

	reads := f.docs.Calls(memory.OpFindUser)
	got, err = h.Handle(ctx, GetCourseProgressQuery{UserID: "u1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, got.Source)
	assert.Equal(t, reads, f.docs.Calls(memory.OpFindUser), "second read served from cache")
}

// lateWriterCache reports a miss on the first mirror read and, right after
// it, stores a newer mirror the way a concurrent progress update would.
type lateWriterCache struct {
	*memory.CacheStore
	newer session.ProgressMirror
	reads int
}

func (c *lateWriterCache) GetProgressMirror(ctx context.Context, userID, courseID string) (*session.ProgressMirror, error) {
	c.reads++
	m, err := c.CacheStore.GetProgressMirror(ctx, userID, courseID)
	if c.reads == 1 {
		if setErr := c.CacheStore.SetProgressMirror(ctx, c.newer); setErr != nil {
			return nil, setErr
		}
	}
	return m, err
}

func TestGetCourseProgress_ReadRepairKeepsNewerMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.progress(t, "c1", 50)
	cache := &lateWriterCache{
		CacheStore: f.cache,
		newer:      session.ProgressMirror{UserID: "u1", CourseID: "c1", Status: "COMPLETED", Progress: 100},
	}

	h := NewGetCourseProgressHandler(f.docs.Users, cache, logger.Discard())
	got, err := h.Handle(ctx, GetCourseProgressQuery{UserID: "u1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, SourceDocument, got.Source)

	mirror, err := f.cache.GetProgressMirror(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, mirror.Progress)
	assert.Equal(t, "COMPLETED", mirror.Status)
}

func TestGetCourseProgress_CacheDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.progress(t, "c1", 100)
	down := shared.StoreUnavailable(shared.StoreCache, "test", errors.New("dial tcp: refused"))
	f.cache.FailOn(memory.OpGetMirror, down)
	f.cache.FailOn(memory.OpSetMirror, down)

	h := NewGetCourseProgressHandler(f.docs.Users, f.cache, logger.Discard())
	got, err := h.Handle(ctx, GetCourseProgressQuery{UserID: "u1", CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, SourceDocument, got.Source)
	assert.Equal(t, "COMPLETED", got.Status)

	_, err = h.Handle(ctx, GetCourseProgressQuery{UserID: "u1", CourseID: "c2"})
	assert.True(t, shared.IsNotFound(err))
}

func TestListCourses_WithMirrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.cache.SetProgressMirror(ctx, session.ProgressMirror{UserID: "u1", CourseID: "c2", Status: "IN_PROGRESS", Progress: 50}))
	h := NewListCoursesHandler(f.docs.Courses, f.cache, logger.Discard())

	anon, err := h.Handle(ctx, ListCoursesQuery{})
	require.NoError(t, err)
	require.Len(t, anon, 2)
	for _, item := range anon {
		assert.Nil(t, item.Progress)
	}

	mine, err := h.Handle(ctx, ListCoursesQuery{UserID: "u1"})
	require.NoError(t, err)
	byID := map[string]CatalogItemDTO{}
	for _, item := range mine {
		byID[item.ID] = item
	}
	assert.Nil(t, byID["c1"].Progress)
	require.NotNil(t, byID["c2"].Progress)
	assert.Equal(t, 50.0, *byID["c2"].Progress)

	f.cache.FailOn(memory.OpGetMirrors, shared.StoreUnavailable(shared.StoreCache, "test", errors.New("down")))
	mine, err = h.Handle(ctx, ListCoursesQuery{UserID: "u1"})
	require.NoError(t, err, "cache outage degrades, does not fail")
	assert.Len(t, mine, 2)
}

func TestGetCourseDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.comment(t, "u1", "c1", 4, time.Now())
	f.comment(t, "u1", "c1", 5, time.Now())

	h := NewGetCourseDetailHandler(f.docs.Courses, f.graph)
	got, err := h.Handle(ctx, GetCourseDetailQuery{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalLessons)
	assert.Equal(t, 4.5, got.Rating)
	assert.Equal(t, 2, got.TotalRatings)
	assert.Len(t, got.Comments, 2)

	_, err = h.Handle(ctx, GetCourseDetailQuery{CourseID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}
