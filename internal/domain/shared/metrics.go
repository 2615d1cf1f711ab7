package shared

import "time"

// Recorder receives operational counters from the application layer.
// The prometheus implementation lives in infrastructure/metrics.
type Recorder interface {
	PartialWrite(store, op string)
	RatingRecomputed(success bool, duration time.Duration)
	ProgressUpdated(status string)
	CommentCreated()
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) PartialWrite(string, string)          {}
func (NoopRecorder) RatingRecomputed(bool, time.Duration) {}
func (NoopRecorder) ProgressUpdated(string)               {}
func (NoopRecorder) CommentCreated()                      {}
