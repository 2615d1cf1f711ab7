package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub/internal/application/command"
	"github.com/coursehub/coursehub/internal/application/rating"
	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/internal/infrastructure/messaging"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/pkg/logger"
)

type env struct {
	docs    *memory.DocumentStore
	graph   *memory.GraphStore
	bus     *messaging.InMemoryEventBus
	comment *command.CreateCommentHandler
}

func newEnv(t *testing.T, async bool) *env {
	t.Helper()
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	graph := memory.NewGraphStore()
	require.NoError(t, docs.Users.Create(ctx, &user.User{ID: "u1", Email: "ann@example.com", Name: "Ann"}))
	require.NoError(t, docs.Courses.Create(ctx, &course.Course{ID: "c1", Name: "Go"}))

	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = async
	cfg.Logger = logger.Discard()
	bus := messaging.NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	agg := rating.NewAggregator(graph, docs.Courses, nil, nil, logger.Discard())
	require.NoError(t, Register(bus, NewOnCommentCreatedHandler(agg, logger.Discard())))

	return &env{
		docs:    docs,
		graph:   graph,
		bus:     bus,
		comment: command.NewCreateCommentHandler(docs.Users, docs.Courses, graph, bus, nil, logger.Discard()),
	}
}

func (e *env) post(t *testing.T, rating int) {
	t.Helper()
	_, err := e.comment.Handle(context.Background(), command.CreateCommentCommand{
		UserID: "u1", CourseID: "c1", Content: "review", Rating: rating,
	})
	require.NoError(t, err)
}

func (e *env) courseRating(t *testing.T) float64 {
	t.Helper()
	c, err := e.docs.Courses.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	return c.Rating
}

func TestCommentCreated_UpdatesRatingInline(t *testing.T) {
	e := newEnv(t, false)
	for _, r := range []int{2, 4, 5} {
		e.post(t, r)
	}
	assert.Equal(t, 3.7, e.courseRating(t))
}

func TestCommentCreated_UpdatesRatingAsync(t *testing.T) {
	e := newEnv(t, true)
	e.post(t, 5)
	e.bus.Wait()
	assert.Equal(t, 5.0, e.courseRating(t))

	e.post(t, 4)
	e.bus.Wait()
	assert.Equal(t, 4.5, e.courseRating(t))
}

func TestCommentCreated_RecomputeFailureKeepsComment(t *testing.T) {
	e := newEnv(t, false)
	e.docs.FailOn(memory.OpUpdateRating, shared.StoreUnavailable(shared.StoreDocument, "UpdateRating", errors.New("timeout")))

	e.post(t, 3)

	comments, err := e.graph.CourseComments(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	assert.Zero(t, e.courseRating(t))
}

func TestOnCommentCreated_IgnoresOtherEvents(t *testing.T) {
	h := NewOnCommentCreatedHandler(nil, logger.Discard())
	assert.NoError(t, h.Handle(context.Background(), shared.NewRatingRecomputedEvent("c1", 1, 1)))
}
