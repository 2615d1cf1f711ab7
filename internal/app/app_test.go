package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub/config"
	"github.com/coursehub/coursehub/internal/infrastructure/scheduler/jobs"
	"github.com/coursehub/coursehub/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "coursehub", Environment: config.EnvDevelopment, Version: "test"},
		HTTP: config.HTTPConfig{
			Host:          "127.0.0.1",
			Port:          0,
			EnableMetrics: true,
		},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret-with-enough-length-123",
			TokenTTL:   time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
		Stores: config.StoresConfig{
			Document: config.BackendMemory,
			Graph:    config.BackendMemory,
			Cache:    config.BackendMemory,
		},
		Scheduler: config.SchedulerConfig{
			RatingInterval:       time.Minute,
			MirrorRepairInterval: 5 * time.Minute,
			Concurrency:          2,
			Timezone:             "UTC",
		},
		Events:     config.EventsConfig{Mode: config.EventsSync, Workers: 1},
		Resilience: config.ResilienceConfig{StoreTimeout: time.Second, MirrorRetryAttempts: 2},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	stores, err := OpenStores(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close(context.Background()) })

	a, err := New(cfg, stores, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpenStores_Memory(t *testing.T) {
	a := newTestApp(t, testConfig())

	assert.NotNil(t, a.Stores.Users)
	assert.NotNil(t, a.Stores.Courses)
	assert.NotNil(t, a.Stores.Graph)
	assert.NotNil(t, a.Stores.Cache)
	assert.Nil(t, a.Stores.Migrator)

	status := a.HealthChecker().Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Len(t, status.Checks, 3)
	assert.True(t, status.Checks["document"].Critical)
	assert.False(t, status.Checks["cache"].Critical)
}

func TestOpenStores_UnknownBackend(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"document", func(c *config.Config) { c.Stores.Document = "sqlite" }, `unknown document backend "sqlite"`},
		{"graph", func(c *config.Config) { c.Stores.Graph = "dgraph" }, `unknown graph backend "dgraph"`},
		{"cache", func(c *config.Config) { c.Stores.Cache = "memcached" }, `unknown cache backend "memcached"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := OpenStores(context.Background(), cfg, logger.Discard())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScheduler_RegistersReconciliationJobs(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.MirrorRepairSchedule = "*/15 * * * *"
	a := newTestApp(t, cfg)

	sched, err := a.Scheduler()
	require.NoError(t, err)

	infos := sched.ListJobs()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{jobs.RecomputeRatingsName, jobs.RepairMirrorsName}, names)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.RatingSchedule = "every now and then"
	a := newTestApp(t, cfg)

	_, err := a.Scheduler()
	require.Error(t, err)
	assert.Contains(t, err.Error(), jobs.RecomputeRatingsName)
}

func TestJobs_RunOnEmptyStores(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := context.Background()

	require.NoError(t, a.RecomputeRatingsJob().Run(ctx))
	require.NoError(t, a.RepairMirrorsJob().Run(ctx))
}

func TestHTTPDependencies_Metrics(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		a := newTestApp(t, testConfig())
		deps := a.HTTPDependencies(a.HealthChecker())
		require.NotNil(t, deps.MetricsHandler)
		require.NotNil(t, deps.Observer)
		assert.NotNil(t, deps.Authenticator)
		assert.NotNil(t, deps.UpdateProgress)

		a.Metrics.JobRun(jobs.RecomputeRatingsName, true)

		rec := httptest.NewRecorder()
		deps.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
		assert.Contains(t, rec.Body.String(), "coursehub_")
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.HTTP.EnableMetrics = false
		a := newTestApp(t, cfg)
		deps := a.HTTPDependencies(a.HealthChecker())
		assert.Nil(t, deps.MetricsHandler)
		assert.Nil(t, deps.Observer)
	})
}
