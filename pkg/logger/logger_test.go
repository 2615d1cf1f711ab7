package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestNew_JSONCarriesServiceAndEnv(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: slog.LevelInfo, Format: FormatJSON, Service: "coursehub", Env: "test"})

	log.Info("progress updated", UserID("u1"), CourseID("c1"), Err(errors.New("boom")))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "coursehub", rec["service"])
	assert.Equal(t, "test", rec["env"])
	assert.Equal(t, "u1", rec["user_id"])
	assert.Equal(t, "c1", rec["course_id"])
	assert.Equal(t, "boom", rec["error"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: slog.LevelWarn, Format: FormatText})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept", Store("cache"))
	assert.Contains(t, buf.String(), "store=cache")
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
	assert.Same(t, slog.Default(), OrDefault(nil))
}
