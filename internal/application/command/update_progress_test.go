package command

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
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/pkg/logger"
	"github.com/coursehub/coursehub/pkg/retry"
)

type countingRecorder struct {
	shared.NoopRecorder
	partial  map[string]int
	statuses []string
}

func (r *countingRecorder) PartialWrite(store, op string) {
	if r.partial == nil {
		r.partial = make(map[string]int)
	}
	r.partial[store+"."+op]++
}

func (r *countingRecorder) ProgressUpdated(status string) {
	r.statuses = append(r.statuses, status)
}

func newProgressHandler(s *stores, attempts int, pub shared.EventPublisher, rec shared.Recorder) *UpdateProgressHandler {
	h := NewUpdateProgressHandler(
		s.docs.Users, s.docs.Courses, s.cache, s.graph,
		retry.MirrorRetrier(attempts, shared.IsStoreUnavailable),
		pub, rec, logger.Discard(),
	)
	h.now = func() time.Time { return fixedNow }
	return h
}

func outage(store string) error {
	return shared.StoreUnavailable(store, "test", errors.New("connection refused"))
}

func TestUpdateProgress_HalfwayIsInProgress(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	pub := &recordingPublisher{}
	h := newProgressHandler(s, 1, pub, nil)

	res, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 3})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Progress)
	assert.Equal(t, user.StatusInProgress, res.Status)
	assert.True(t, res.Created)
	assert.False(t, res.HasWarnings())

	stored, err := s.docs.Users.FindByID(ctx, "u1")
	require.NoError(t, err)
	entry, ok := stored.ProgressFor("c1")
	require.True(t, ok)
	assert.Equal(t, 50.0, entry.Progress)
	assert.Equal(t, fixedNow, entry.StartDate)

	mirror, err := s.cache.GetProgressMirror(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "IN_PROGRESS", mirror.Status)
	assert.Equal(t, 50.0, mirror.Progress)

	enrollment, ok := s.graph.Enrollment("u1", "c1")
	require.True(t, ok)
	assert.Equal(t, "IN_PROGRESS", enrollment.Status)

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventProgressUpdated, pub.events[0].EventType())
}

func TestUpdateProgress_IdempotentAndKeepsStartDate(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	h := newProgressHandler(s, 1, nil, nil)

	first, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 6})
	require.NoError(t, err)

	h.now = func() time.Time { return fixedNow.Add(time.Hour) }
	second, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 6})
	require.NoError(t, err)

	assert.Equal(t, 100.0, second.Progress)
	assert.Equal(t, user.StatusCompleted, second.Status)
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, first.StartDate, second.StartDate)
	assert.False(t, second.Created)

	stored, _ := s.docs.Users.FindByID(ctx, "u1")
	assert.Len(t, stored.CoursesProgress, 1)
}

func TestUpdateProgress_RegressionIsAllowed(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	h := newProgressHandler(s, 1, nil, nil)

	_, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 6})
	require.NoError(t, err)
	res, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 2})
	require.NoError(t, err)
	assert.Equal(t, user.StatusInProgress, res.Status)
}

func TestUpdateProgress_Clamps(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		progress  float64
		status    user.Status
	}{
		{"more than total", 99, 100, user.StatusCompleted},
		{"negative", -3, 0, user.StatusNotStarted},
		{"zero", 0, 0, user.StatusNotStarted},
		{"one of six", 1, 100.0 / 6, user.StatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStores(t)
			h := newProgressHandler(s, 1, nil, nil)
			res, err := h.Handle(context.Background(), UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: tt.completed})
			require.NoError(t, err)
			assert.InDelta(t, tt.progress, res.Progress, 1e-9)
			assert.Equal(t, tt.status, res.Status)
		})
	}
}

func TestUpdateProgress_DocumentFailureSkipsMirrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed outage", outage(shared.StoreDocument)},
		{"raw driver error", errors.New("write tcp: broken pipe")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStores(t)
			pub := &recordingPublisher{}
			s.docs.FailOn(memory.OpUpsertProgress, tt.err)
			h := newProgressHandler(s, 3, pub, nil)

			_, err := h.Handle(context.Background(), UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 3})
			require.Error(t, err)
			assert.True(t, shared.IsStoreUnavailable(err))
			assert.Zero(t, s.cache.TotalCalls(), "cache must not be touched")
			assert.Zero(t, s.graph.TotalCalls(), "graph must not be touched")
			assert.Empty(t, pub.events)
		})
	}
}

func TestUpdateProgress_CacheFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	rec := &countingRecorder{}
	s.cache.FailOn(memory.OpSetMirror, outage(shared.StoreCache))
	h := newProgressHandler(s, 3, nil, rec)

	res, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 3})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, shared.StoreCache, res.Warnings[0].Store)
	assert.True(t, errors.Is(res.Warnings[0], shared.ErrPartialWrite))
	assert.Equal(t, 3, s.cache.Calls(memory.OpSetMirror), "retried up to the attempt limit")
	assert.Equal(t, 1, rec.partial["cache.SetProgressMirror"])

	stored, _ := s.docs.Users.FindByID(ctx, "u1")
	entry, ok := stored.ProgressFor("c1")
	require.True(t, ok)
	assert.Equal(t, 50.0, entry.Progress, "document write is not rolled back")

	_, ok = s.graph.Enrollment("u1", "c1")
	assert.True(t, ok, "graph write still attempted")
}

func TestUpdateProgress_GraphFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	rec := &countingRecorder{}
	s.graph.FailOn(memory.OpUpsertEnrollment, outage(shared.StoreGraph))
	h := newProgressHandler(s, 1, nil, rec)

	res, err := h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "c1", CompletedLessons: 6})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, shared.StoreGraph, res.Warnings[0].Store)
	assert.Equal(t, []string{"COMPLETED"}, rec.statuses)

	mirror, err := s.cache.GetProgressMirror(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", mirror.Status)
}

func TestUpdateProgress_Failures(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	require.NoError(t, s.docs.Courses.Create(ctx, &course.Course{ID: "empty", Name: "Empty"}))
	h := newProgressHandler(s, 1, nil, nil)

	_, err := h.Handle(ctx, UpdateProgressCommand{UserID: "ghost", CourseID: "c1", CompletedLessons: 1})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "ghost", CompletedLessons: 1})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(ctx, UpdateProgressCommand{UserID: "u 1", CourseID: "c1", CompletedLessons: 1})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, UpdateProgressCommand{UserID: "u1", CourseID: "empty", CompletedLessons: 1})
	assert.True(t, shared.IsValidation(err))
	assert.True(t, errors.Is(err, shared.ErrCourseHasNoLessons))

	assert.Zero(t, s.docs.Calls(memory.OpUpsertProgress))
}

// loadBarrier holds every FindByID caller until all expected callers have
// loaded the user, so their writes happen after both reads.
type loadBarrier struct {
	user.Repository
	loaded *sync.WaitGroup
}

func (r loadBarrier) FindByID(ctx context.Context, id string) (*user.User, error) {
	u, err := r.Repository.FindByID(ctx, id)
	r.loaded.Done()
	r.loaded.Wait()
	return u, err
}

func TestUpdateProgress_InterleavedUpdatesKeepBothCourses(t *testing.T) {
	ctx := context.Background()
	s := newStores(t)
	require.NoError(t, s.docs.Courses.Create(ctx, sixLessonCourse("c2")))

	var loaded sync.WaitGroup
	loaded.Add(2)
	h := NewUpdateProgressHandler(
		loadBarrier{Repository: s.docs.Users, loaded: &loaded}, s.docs.Courses, s.cache, s.graph,
		nil, nil, nil, logger.Discard(),
	)

	var wg sync.WaitGroup
	for _, cmd := range []UpdateProgressCommand{
		{UserID: "u1", CourseID: "c1", CompletedLessons: 3},
		{UserID: "u1", CourseID: "c2", CompletedLessons: 6},
	} {
		wg.Add(1)
		go func(cmd UpdateProgressCommand) {
			defer wg.Done()
			_, err := h.Handle(ctx, cmd)
			assert.NoError(t, err)
		}(cmd)
	}
	wg.Wait()

	u, err := s.docs.Users.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u.CoursesProgress, 2)

	c1, ok := u.ProgressFor("c1")
	require.True(t, ok)
	assert.Equal(t, user.StatusInProgress, c1.Status)
	c2, ok := u.ProgressFor("c2")
	require.True(t, ok)
	assert.Equal(t, user.StatusCompleted, c2.Status)
}
