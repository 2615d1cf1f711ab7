// Package metrics exposes prometheus collectors for the application.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coursehub/coursehub/internal/domain/shared"
)

const namespace = "coursehub"

// Recorder implements shared.Recorder with prometheus collectors.
type Recorder struct {
	partialWrites    *prometheus.CounterVec
	ratingRecomputes *prometheus.CounterVec
	ratingDuration   prometheus.Histogram
	progressUpdates  *prometheus.CounterVec
	commentsCreated  prometheus.Counter

	httpDuration *prometheus.HistogramVec
	jobRuns      *prometheus.CounterVec
}

var _ shared.Recorder = (*Recorder)(nil)

// NewRecorder registers the collectors on reg.
// Pass prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		// Labels: store (cache, graph), op
		partialWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "partial_writes_total",
			Help:      "Mirror writes that failed after the document store write succeeded",
		}, []string{"store", "op"}),

		// Labels: result (success, error)
		ratingRecomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rating",
			Name:      "recomputations_total",
			Help:      "Course rating recomputations by result",
		}, []string{"result"}),

		ratingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rating",
			Name:      "recompute_duration_seconds",
			Help:      "Time to read ratings and write the course average",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		// Labels: status (NOT_STARTED, IN_PROGRESS, COMPLETED)
		progressUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "updates_total",
			Help:      "Progress updates by resulting status",
		}, []string{"status"}),

		commentsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "comments_created_total",
			Help:      "Comments created",
		}),

		// Labels: method, route (chi pattern), code
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),

		// Labels: job, result
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Background job runs by result",
		}, []string{"job", "result"}),
	}
}

// PartialWrite counts a failed mirror write.
func (r *Recorder) PartialWrite(store, op string) {
	r.partialWrites.WithLabelValues(store, op).Inc()
}

// RatingRecomputed counts a recomputation and observes its duration.
func (r *Recorder) RatingRecomputed(success bool, duration time.Duration) {
	r.ratingRecomputes.WithLabelValues(result(success)).Inc()
	r.ratingDuration.Observe(duration.Seconds())
}

// ProgressUpdated counts a progress update by status.
func (r *Recorder) ProgressUpdated(status string) {
	r.progressUpdates.WithLabelValues(status).Inc()
}

// CommentCreated counts a new comment.
func (r *Recorder) CommentCreated() {
	r.commentsCreated.Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(method, route string, code int, duration time.Duration) {
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(duration.Seconds())
}

// JobRun counts one background job run.
func (r *Recorder) JobRun(job string, success bool) {
	r.jobRuns.WithLabelValues(job, result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
