package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errDown = errors.New("connection refused")
	errMiss = errors.New("not found")
)

// fakeClock lets tests move past the cooldown without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(s Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	b := New(s)
	b.now = clock.now
	return b, clock
}

func fail(context.Context) (int, error) { return 0, errDown }
func ok(context.Context) (int, error)   { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	var transitions []State
	b, _ := newTestBreaker(Settings{
		Name:             "graph",
		FailureThreshold: 2,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := Do(ctx, b, fail)
		assert.ErrorIs(t, err, errDown)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, []State{StateOpen}, transitions)

	called := false
	_, err := Do(ctx, b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Settings{FailureThreshold: 2})
	ctx := context.Background()

	_, _ = Do(ctx, b, fail)
	_, _ = Do(ctx, b, ok)
	_, _ = Do(ctx, b, fail)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	b, _ := newTestBreaker(Settings{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errMiss) },
	})

	for i := 0; i < 3; i++ {
		_, err := Do(context.Background(), b, func(context.Context) (int, error) { return 0, errMiss })
		assert.ErrorIs(t, err, errMiss)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_TrialAfterCooldown(t *testing.T) {
	var transitions []State
	b, clock := newTestBreaker(Settings{
		FailureThreshold: 1,
		Cooldown:         time.Minute,
		OnStateChange:    func(_ string, _, to State) { transitions = append(transitions, to) },
	})
	ctx := context.Background()

	_, _ = Do(ctx, b, fail)
	require.Equal(t, StateOpen, b.State())

	clock.advance(30 * time.Second)
	_, err := Do(ctx, b, ok)
	assert.ErrorIs(t, err, ErrOpen, "still cooling down")

	clock.advance(time.Minute)
	_, err = Do(ctx, b, fail)
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, StateOpen, b.State(), "failed trial reopens")

	clock.advance(time.Minute)
	got, err := Do(ctx, b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestBreaker_OneTrialAtATime(t *testing.T) {
	b, clock := newTestBreaker(Settings{FailureThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	_, _ = Do(ctx, b, fail)
	clock.advance(time.Minute)

	_, err := Do(ctx, b, func(ctx context.Context) (int, error) {
		_, inner := Do(ctx, b, ok)
		assert.ErrorIs(t, inner, ErrOpen)
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
