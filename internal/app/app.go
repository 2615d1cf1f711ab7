package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursehub/coursehub/config"
	"github.com/coursehub/coursehub/internal/application/command"
	"github.com/coursehub/coursehub/internal/application/eventhandler"
	"github.com/coursehub/coursehub/internal/application/query"
	"github.com/coursehub/coursehub/internal/application/rating"
	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/internal/infrastructure/messaging"
	"github.com/coursehub/coursehub/internal/infrastructure/metrics"
	"github.com/coursehub/coursehub/internal/infrastructure/scheduler"
	"github.com/coursehub/coursehub/internal/infrastructure/scheduler/jobs"
	"github.com/coursehub/coursehub/internal/infrastructure/security"
	httpapi "github.com/coursehub/coursehub/internal/interface/http"
	"github.com/coursehub/coursehub/internal/interface/http/handlers"
	"github.com/coursehub/coursehub/pkg/logger"
	"github.com/coursehub/coursehub/pkg/retry"
)

const tokenIssuer = "coursehub"

// Application is the wired set of services on top of Stores.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	Stores   *Stores
	Bus      *messaging.InMemoryEventBus
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	Ratings  *rating.Aggregator
	Hasher   *security.PasswordHasher
	Tokens   *security.TokenManager
}

// New wires the application on top of already opened stores.
func New(cfg *config.Config, stores *Stores, log *slog.Logger) (*Application, error) {
	log = logger.OrDefault(log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Events.Mode == config.EventsAsync,
		WorkerPoolSize: cfg.Events.Workers,
		HandlerTimeout: cfg.Events.HandlerTimeout,
		Logger:         log,
		EnableMetrics:  true,
	})

	ratings := rating.NewAggregator(stores.Graph, stores.Courses, bus, recorder, log)
	onComment := eventhandler.NewOnCommentCreatedHandler(ratings, log)
	if err := eventhandler.Register(bus, onComment); err != nil {
		return nil, err
	}

	return &Application{
		cfg:      cfg,
		logger:   log,
		Stores:   stores,
		Bus:      bus,
		Registry: registry,
		Metrics:  recorder,
		Ratings:  ratings,
		Hasher:   security.NewPasswordHasher(cfg.Auth.BcryptCost),
		Tokens:   security.NewTokenManager(cfg.Auth.JWTSecret, tokenIssuer, cfg.Auth.TokenTTL),
	}, nil
}

// Close drains the event bus. Stores are closed by their owner.
func (a *Application) Close() error {
	return a.Bus.Close()
}

// HTTPDependencies builds every command and query handler the API serves.
func (a *Application) HTTPDependencies(health handlers.HealthChecker) httpapi.Dependencies {
	s := a.Stores
	log := a.logger
	mirrorRetrier := retry.MirrorRetrier(a.cfg.Resilience.MirrorRetryAttempts, shared.IsStoreUnavailable,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Debug("retrying mirror write",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)

	deps := httpapi.Dependencies{
		RegisterUser:   command.NewRegisterUserHandler(s.Users, a.Hasher, a.Bus, log),
		Login:          command.NewLoginHandler(s.Users, s.Cache, a.Hasher, a.Tokens, log),
		CreateCourse:   command.NewCreateCourseHandler(s.Courses, log),
		CreateComment:  command.NewCreateCommentHandler(s.Users, s.Courses, s.Graph, a.Bus, a.Metrics, log),
		Interactions:   command.NewCommentInteractionsHandler(s.Graph, log),
		UpdateProgress: command.NewUpdateProgressHandler(s.Users, s.Courses, s.Cache, s.Graph, mirrorRetrier, a.Bus, a.Metrics, log),

		ListCourses:       query.NewListCoursesHandler(s.Courses, s.Cache, log),
		GetCourseDetail:   query.NewGetCourseDetailHandler(s.Courses, s.Graph),
		GetCourseComments: query.NewGetCourseCommentsHandler(s.Courses, s.Graph),
		GetUserComments:   query.NewGetUserCommentsHandler(s.Users, s.Graph),
		GetCourseRating:   query.NewGetCourseRatingHandler(s.Courses, a.Ratings),
		GetUserCourses:    query.NewGetUserCoursesHandler(s.Users, s.Courses, log),
		GetCourseProgress: query.NewGetCourseProgressHandler(s.Users, s.Cache, log),

		Authenticator: query.NewAuthenticator(a.Tokens, s.Cache),
		HealthChecker: health,
		Logger:        log,
	}
	if a.cfg.HTTP.EnableMetrics {
		deps.Observer = a.Metrics
		deps.MetricsHandler = a.MetricsHandler()
	}
	return deps
}

// HealthChecker returns a checker pinging every store.
func (a *Application) HealthChecker() *handlers.CompositeHealthChecker {
	h := handlers.NewCompositeHealthChecker(a.cfg.App.Version)
	if a.cfg.Resilience.StoreTimeout > 0 {
		h.SetTimeout(a.cfg.Resilience.StoreTimeout)
	}
	a.Stores.RegisterHealthChecks(h)
	return h
}

// MetricsHandler exposes the application registry.
func (a *Application) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry})
}

// RecomputeRatingsJob returns the rating reconciliation job.
func (a *Application) RecomputeRatingsJob() *jobs.RecomputeRatingsJob {
	return jobs.NewRecomputeRatingsJob(a.Stores.Courses, a.Ratings, a.cfg.Scheduler.Concurrency, a.logger)
}

// RepairMirrorsJob returns the progress mirror repair job.
func (a *Application) RepairMirrorsJob() *jobs.RepairMirrorsJob {
	return jobs.NewRepairMirrorsJob(a.Stores.Users, a.Stores.Cache, a.Stores.Graph, a.cfg.Scheduler.Concurrency, a.logger)
}

// Scheduler builds a scheduler with both reconciliation jobs registered.
func (a *Application) Scheduler() (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(a.cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         a.logger,
		Timezone:       loc,
		Observer:       a.Metrics,
		TickInterval:   time.Second,
		MaxHistorySize: 100,
	})

	entries := []struct {
		job  scheduler.Job
		spec string
	}{
		{a.RecomputeRatingsJob(), a.cfg.Scheduler.RatingSpec()},
		{a.RepairMirrorsJob(), a.cfg.Scheduler.MirrorRepairSpec()},
	}
	for _, e := range entries {
		schedule, err := scheduler.ParseSchedule(e.spec)
		if err != nil {
			return nil, fmt.Errorf("schedule for %s: %w", e.job.Name(), err)
		}
		if err := sched.Register(e.job, schedule); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
