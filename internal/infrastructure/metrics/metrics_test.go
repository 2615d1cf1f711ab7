package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.PartialWrite("cache", "SetProgressMirror")
	r.PartialWrite("cache", "SetProgressMirror")
	r.PartialWrite("graph", "UpsertEnrollment")
	r.RatingRecomputed(true, 20*time.Millisecond)
	r.RatingRecomputed(false, time.Millisecond)
	r.ProgressUpdated("COMPLETED")
	r.CommentCreated()
	r.ObserveHTTP("GET", "/api/courses", 200, 5*time.Millisecond)
	r.JobRun("recompute_ratings", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.partialWrites.WithLabelValues("cache", "SetProgressMirror")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.partialWrites.WithLabelValues("graph", "UpsertEnrollment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ratingRecomputes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.progressUpdates.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commentsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobRuns.WithLabelValues("recompute_ratings", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.httpDuration))
}
