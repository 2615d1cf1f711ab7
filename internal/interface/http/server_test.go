package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub/internal/application/command"
	"github.com/coursehub/coursehub/internal/application/eventhandler"
	"github.com/coursehub/coursehub/internal/application/query"
	"github.com/coursehub/coursehub/internal/application/rating"
	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/infrastructure/messaging"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/internal/infrastructure/security"
	"github.com/coursehub/coursehub/internal/interface/http/handlers"
	"github.com/coursehub/coursehub/pkg/logger"
	"github.com/coursehub/coursehub/pkg/retry"
)

type observedRequest struct {
	method, route string
	code          int
}

type fakeObserver struct {
	mu   sync.Mutex
	seen []observedRequest
}

func (o *fakeObserver) ObserveHTTP(method, route string, code int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observedRequest{method, route, code})
}

type testEnv struct {
	docs     *memory.DocumentStore
	graph    *memory.GraphStore
	cache    *memory.CacheStore
	health   *handlers.CompositeHealthChecker
	observer *fakeObserver
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Discard()
	env := &testEnv{
		docs:     memory.NewDocumentStore(),
		graph:    memory.NewGraphStore(),
		cache:    memory.NewCacheStore(),
		health:   handlers.NewCompositeHealthChecker("test"),
		observer: &fakeObserver{},
	}

	c := &course.Course{ID: "c1", Name: "Go in Practice"}
	for u := 0; u < 2; u++ {
		unit := course.Unit{Name: "Unit"}
		for l := 0; l < 3; l++ {
			unit.Lessons = append(unit.Lessons, course.Lesson{Name: "Lesson"})
		}
		c.Units = append(c.Units, unit)
	}
	require.NoError(t, env.docs.Courses.Create(context.Background(), c))

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: log})
	aggregator := rating.NewAggregator(env.graph, env.docs.Courses, bus, nil, log)
	require.NoError(t, bus.Subscribe(shared.EventCommentCreated, eventhandler.NewOnCommentCreatedHandler(aggregator, log).Handle))

	hasher := security.NewPasswordHasher(bcrypt.MinCost)
	tokens := security.NewTokenManager("test-secret", "coursehub", time.Hour)

	env.health.AddCriticalCheck("document", handlers.NewPingCheck(env.docs))
	env.health.AddCheck("cache", handlers.NewPingCheck(env.cache))

	srv := NewServer(DefaultConfig(), Dependencies{
		RegisterUser:   command.NewRegisterUserHandler(env.docs.Users, hasher, bus, log),
		Login:          command.NewLoginHandler(env.docs.Users, env.cache, hasher, tokens, log),
		CreateCourse:   command.NewCreateCourseHandler(env.docs.Courses, log),
		CreateComment:  command.NewCreateCommentHandler(env.docs.Users, env.docs.Courses, env.graph, bus, nil, log),
		Interactions:   command.NewCommentInteractionsHandler(env.graph, log),
		UpdateProgress: command.NewUpdateProgressHandler(env.docs.Users, env.docs.Courses, env.cache, env.graph, retry.MirrorRetrier(1, shared.IsStoreUnavailable), bus, nil, log),

		ListCourses:       query.NewListCoursesHandler(env.docs.Courses, env.cache, log),
		GetCourseDetail:   query.NewGetCourseDetailHandler(env.docs.Courses, env.graph),
		GetCourseComments: query.NewGetCourseCommentsHandler(env.docs.Courses, env.graph),
		GetUserComments:   query.NewGetUserCommentsHandler(env.docs.Users, env.graph),
		GetCourseRating:   query.NewGetCourseRatingHandler(env.docs.Courses, aggregator),
		GetUserCourses:    query.NewGetUserCoursesHandler(env.docs.Users, env.docs.Courses, log),
		GetCourseProgress: query.NewGetCourseProgressHandler(env.docs.Users, env.cache, log),

		Authenticator: query.NewAuthenticator(tokens, env.cache),
		HealthChecker: env.health,
		Observer:      env.observer,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
		Logger: log,
	})
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp JSONResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// signUp registers and logs in a user and returns the bearer token.
func (e *testEnv) signUp(t *testing.T, email string) string {
	t.Helper()
	rec, _ := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret-pass", "name": "Ann",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, resp := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "secret-pass",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := resp.Data.(map[string]interface{})
	return data["token"].(string)
}

func dataMap(t *testing.T, resp JSONResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "ann@example.com")

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		rec, resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "ANN@example.com", "password": "secret-pass", "name": "Ann",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "already_exists", resp.Error.Code)
	})

	t.Run("weak password is rejected", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"email": "bob@example.com", "password": "123", "name": "Bob",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong, wrongResp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ann@example.com", "password": "nope-nope",
		})
		unknown, unknownResp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "ghost@example.com", "password": "nope-nope",
		})
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrongResp.Error.Message, unknownResp.Error.Message)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"login": "x"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionGate(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "ann@example.com")

	rec, _ := env.do(t, http.MethodGet, "/api/me/courses", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/me/courses", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/me/courses", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")

	require.NoError(t, env.cache.FlushAll(context.Background()))
	rec, _ = env.do(t, http.MethodGet, "/api/me/courses", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "flushed cache revokes sessions")
}

func TestProgressFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "ann@example.com")

	rec, resp := env.do(t, http.MethodPost, "/api/courses/c1/progress", token, map[string]int{"completedLessons": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataMap(t, resp)
	assert.Equal(t, 50.0, data["progress"])
	assert.Equal(t, "IN_PROGRESS", data["status"])
	assert.NotContains(t, data, "warnings")

	rec, resp = env.do(t, http.MethodGet, "/api/courses/c1/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", dataMap(t, resp)["source"])

	rec, _ = env.do(t, http.MethodPost, "/api/courses/c1/progress", token, map[string]int{"completedLessons": 6})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/me/courses", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := resp.Data.([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "COMPLETED", items[0].(map[string]interface{})["status"])
	assert.Equal(t, 1, resp.Meta.TotalCount)

	rec, resp = env.do(t, http.MethodGet, "/api/courses", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := resp.Data.([]interface{})
	require.Len(t, catalog, 1)
	assert.Equal(t, 100.0, catalog[0].(map[string]interface{})["progress"])

	rec, resp = env.do(t, http.MethodGet, "/api/courses", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, resp.Data.([]interface{})[0].(map[string]interface{}), "progress")
}

func TestProgressErrors(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "ann@example.com")

	rec, _ := env.do(t, http.MethodPost, "/api/courses/c1/progress", token, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "completedLessons is required")

	rec, _ = env.do(t, http.MethodPost, "/api/courses/ghost/progress", token, map[string]int{"completedLessons": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.docs.FailOn(memory.OpUpsertProgress, errors.New("write tcp: broken pipe"))
	rec, resp := env.do(t, http.MethodPost, "/api/courses/c1/progress", token, map[string]int{"completedLessons": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "store_unavailable", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "broken pipe", "driver errors stay server-side")
	assert.Zero(t, env.cache.Calls(memory.OpSetMirror))
}

func TestCommentsFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "ann@example.com")

	rec, _ := env.do(t, http.MethodPost, "/api/courses/c1/comments", "", map[string]interface{}{"content": "x", "rating": 3})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	for _, bad := range []int{0, 6} {
		rec, _ = env.do(t, http.MethodPost, "/api/courses/c1/comments", token, map[string]interface{}{"content": "x", "rating": bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "rating %d", bad)
	}

	var ids []string
	for _, r := range []int{2, 4, 5} {
		rec, resp := env.do(t, http.MethodPost, "/api/courses/c1/comments", token, map[string]interface{}{"content": "useful", "rating": r})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, dataMap(t, resp)["id"].(string))
	}

	rec, resp := env.do(t, http.MethodGet, "/api/courses/c1/rating", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.7, dataMap(t, resp)["averageRating"])
	assert.Equal(t, 3.0, dataMap(t, resp)["totalRatings"])

	stored, err := env.docs.Courses.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 3.7, stored.Rating, "sync bus recomputed the stored rating")

	rec, _ = env.do(t, http.MethodPost, "/api/comments/"+ids[0]+"/like", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/comments/"+ids[0]+"/dislike", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/comments/"+ids[0]+"/reactions", token, map[string]string{"type": "helpful"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/comments/"+ids[0]+"/replies", token, map[string]string{"content": "agreed"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/courses/c1/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first map[string]interface{}
	for _, item := range resp.Data.([]interface{}) {
		if m := item.(map[string]interface{}); m["id"] == ids[0] {
			first = m
		}
	}
	require.NotNil(t, first)
	assert.Equal(t, 0.0, first["likes"])
	assert.Equal(t, 1.0, first["dislikes"])
	assert.Equal(t, 1.0, first["replies"])

	rec, resp = env.do(t, http.MethodGet, "/api/me/comments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, resp.Meta.TotalCount)

	rec, _ = env.do(t, http.MethodPost, "/api/comments/missing/like", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCourses(t *testing.T) {
	env := newTestEnv(t)

	rec, resp := env.do(t, http.MethodPost, "/api/courses", "", map[string]interface{}{
		"name":  "Distributed Systems",
		"units": []map[string]interface{}{{"name": "Intro", "lessons": []map[string]string{{"name": "Clocks"}}}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := dataMap(t, resp)["id"].(string)
	assert.NotEmpty(t, id)

	rec, resp = env.do(t, http.MethodGet, "/api/courses/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, dataMap(t, resp)["totalLessons"])

	rec, _ = env.do(t, http.MethodPost, "/api/courses", "", map[string]interface{}{"name": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/courses", "", map[string]interface{}{"id": "c1", "name": "Dup"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/courses/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.health.AddCheck("cache", func(context.Context) error { return errors.New("dial tcp: refused") })
	rec, _ = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "cache outage degrades, does not unready")

	env.health.AddCriticalCheck("document", func(context.Context) error { return errors.New("no reachable servers") })
	rec, resp := env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, resp.Error.Message, "document")

	rec, _ = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsUseRoutePattern(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/courses/c1/rating", "", nil)
	env.do(t, http.MethodGet, "/api/courses/ghost/rating", "", nil)

	env.observer.mu.Lock()
	defer env.observer.mu.Unlock()
	require.Len(t, env.observer.seen, 2)
	assert.Equal(t, env.observer.seen[0].route, env.observer.seen[1].route)
	assert.Contains(t, env.observer.seen[0].route, "{courseID}")
	assert.Equal(t, http.StatusOK, env.observer.seen[0].code)
	assert.Equal(t, http.StatusNotFound, env.observer.seen[1].code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{shared.ErrCourseNotFound, http.StatusNotFound},
		{shared.ErrInvalidRating, http.StatusBadRequest},
		{shared.ErrSessionNotFound, http.StatusUnauthorized},
		{shared.ErrEmailTaken, http.StatusConflict},
		{shared.StoreUnavailable(shared.StoreGraph, "CreateComment", errors.New("x")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := statusFor(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
}
