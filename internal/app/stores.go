// Package app assembles the course platform from configuration: it opens
// the configured stores and wires the application handlers on top of them.
// Both the API server and the worker CLI start from here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coursehub/coursehub/config"
	"github.com/coursehub/coursehub/internal/domain/course"
	"github.com/coursehub/coursehub/internal/domain/session"
	"github.com/coursehub/coursehub/internal/domain/social"
	"github.com/coursehub/coursehub/internal/domain/user"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/memory"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/mongo"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/neo4j"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/postgres"
	"github.com/coursehub/coursehub/internal/infrastructure/persistence/redis"
	"github.com/coursehub/coursehub/internal/interface/http/handlers"
	"github.com/coursehub/coursehub/pkg/logger"
)

// Stores holds the three backing stores behind their domain ports.
type Stores struct {
	Users   user.Repository
	Courses course.Repository
	Graph   social.Graph
	Cache   session.Store

	// Migrator is set only when the document store is PostgreSQL.
	Migrator *postgres.Migrator

	pingers map[string]handlers.Pinger
	closers []func(context.Context) error
}

// OpenStores connects every store selected in cfg.Stores. On failure the
// stores opened so far are closed again.
func OpenStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Stores, error) {
	log = logger.OrDefault(log)
	s := &Stores{pingers: make(map[string]handlers.Pinger, 3)}

	if err := s.openDocument(ctx, cfg, log); err != nil {
		return nil, s.abort(err)
	}
	if err := s.openGraph(ctx, cfg, log); err != nil {
		return nil, s.abort(err)
	}
	if err := s.openCache(ctx, cfg, log); err != nil {
		return nil, s.abort(err)
	}
	return s, nil
}

// MemoryStores returns a fully in-memory set of stores.
func MemoryStores() *Stores {
	docs := memory.NewDocumentStore()
	graph := memory.NewGraphStore()
	cache := memory.NewCacheStore()
	return &Stores{
		Users:   docs.Users,
		Courses: docs.Courses,
		Graph:   graph,
		Cache:   cache,
		pingers: map[string]handlers.Pinger{
			"document": docs,
			"graph":    graph,
			"cache":    cache,
		},
	}
}

func (s *Stores) openDocument(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	switch cfg.Stores.Document {
	case config.BackendMongo:
		client, err := mongo.Connect(ctx, mongo.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout,
			MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		})
		if err != nil {
			return err
		}
		s.Users, s.Courses = client.Users(), client.Courses()
		s.pingers["document"] = client
		s.closers = append(s.closers, client.Close)
		log.Info("document store connected", slog.String("backend", "mongo"), slog.String("database", cfg.Mongo.Database))

	case config.BackendPostgres:
		conn, err := postgres.NewConnection(ctx, postgres.Config{
			URL:               cfg.Postgres.URL,
			MaxConns:          int32(cfg.Postgres.MaxConns),
			MinConns:          int32(cfg.Postgres.MinConns),
			MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
			HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		})
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func(context.Context) error {
			conn.Close()
			return nil
		})
		s.Migrator = postgres.NewMigrator(conn)
		if cfg.Postgres.AutoMigrate {
			applied, err := s.Migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			log.Info("migrations applied", slog.Int("count", applied))
		}
		s.Users, s.Courses = postgres.NewUserRepository(conn), postgres.NewCourseRepository(conn)
		s.pingers["document"] = conn
		log.Info("document store connected", slog.String("backend", "postgres"))

	case config.BackendMemory:
		docs := memory.NewDocumentStore()
		s.Users, s.Courses = docs.Users, docs.Courses
		s.pingers["document"] = docs
		log.Warn("document store is in-memory; data is lost on restart")

	default:
		return fmt.Errorf("app: unknown document backend %q", cfg.Stores.Document)
	}
	return nil
}

func (s *Stores) openGraph(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	switch cfg.Stores.Graph {
	case config.BackendNeo4j:
		graph, err := neo4j.New(ctx, neo4j.Config{
			URI:             cfg.Neo4j.URI,
			Username:        cfg.Neo4j.Username,
			Password:        cfg.Neo4j.Password,
			Database:        cfg.Neo4j.Database,
			BreakerFailures: cfg.Resilience.BreakerFailureThreshold,
			BreakerTimeout:  cfg.Resilience.BreakerTimeout,
		}, log)
		if err != nil {
			return err
		}
		s.Graph = graph
		s.pingers["graph"] = graph
		s.closers = append(s.closers, graph.Close)
		log.Info("graph store connected", slog.String("backend", "neo4j"))

	case config.BackendMemory:
		graph := memory.NewGraphStore()
		s.Graph = graph
		s.pingers["graph"] = graph
		log.Warn("graph store is in-memory; data is lost on restart")

	default:
		return fmt.Errorf("app: unknown graph backend %q", cfg.Stores.Graph)
	}
	return nil
}

func (s *Stores) openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	switch cfg.Stores.Cache {
	case config.BackendRedis:
		rcfg := redis.DefaultConfig()
		rcfg.Host = cfg.Redis.Host
		rcfg.Port = cfg.Redis.Port
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			rcfg.PoolSize = cfg.Redis.PoolSize
		}

		cache, err := redis.NewCache(rcfg)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func(context.Context) error { return cache.Close() })
		if err := cache.Ping(ctx); err != nil {
			return fmt.Errorf("redis: ping: %w", err)
		}
		store := redis.NewStore(cache)
		s.Cache = store
		s.pingers["cache"] = store
		log.Info("cache connected", slog.String("backend", "redis"), slog.String("host", rcfg.Host))

	case config.BackendMemory:
		cache := memory.NewCacheStore()
		s.Cache = cache
		s.pingers["cache"] = cache
		log.Warn("cache is in-memory; sessions are lost on restart")

	default:
		return fmt.Errorf("app: unknown cache backend %q", cfg.Stores.Cache)
	}
	return nil
}

// RegisterHealthChecks adds a ping check per store. Only the document store
// gates readiness: without it nothing can be served.
func (s *Stores) RegisterHealthChecks(h *handlers.CompositeHealthChecker) {
	for name, p := range s.pingers {
		if name == "document" {
			h.AddCriticalCheck(name, handlers.NewPingCheck(p))
			continue
		}
		h.AddCheck(name, handlers.NewPingCheck(p))
	}
}

// Close releases every store connection in reverse opening order.
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Stores) abort(err error) error {
	if closeErr := s.Close(context.Background()); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}
