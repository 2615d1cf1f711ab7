// Package circuitbreaker stops calling a store that keeps failing.
//
// After FailureThreshold consecutive failures the breaker opens and rejects
// calls with ErrOpen for Cooldown. The first call after the cooldown is a
// trial: success closes the breaker, failure opens it again. Other calls are
// rejected while the trial is in flight.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the store while the breaker is open
// or a half-open trial is already running.
var ErrOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker. Zero values fall back to 5 failures and a
// 30s cooldown.
type Settings struct {
	Name             string
	FailureThreshold int
	Cooldown         time.Duration

	// IsFailure decides which errors count toward opening. Nil counts every
	// non-nil error; errors it rejects are treated as successes.
	IsFailure func(error) bool

	// OnStateChange runs under the breaker lock and must not call back into it.
	OnStateChange func(name string, from, to State)
}

// Breaker guards calls to one store.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// New creates a closed breaker.
func New(s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	return &Breaker{settings: s, now: time.Now}
}

// State returns the current state. An open breaker whose cooldown has passed
// still reports open until the next call starts the trial.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn through b and returns its result.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	if err := b.admit(); err != nil {
		var zero T
		return zero, err
	}
	v, err := fn(ctx)
	b.record(err)
	return v, err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.settings.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.trial = true
	case StateHalfOpen:
		if b.trial {
			return ErrOpen
		}
		b.trial = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	failed := err != nil && (b.settings.IsFailure == nil || b.settings.IsFailure(err))

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trial = false
		if failed {
			b.transition(StateOpen)
		} else {
			b.transition(StateClosed)
		}
	case StateClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.transition(StateOpen)
		}
	}
	// StateOpen: a call admitted before the breaker opened; its outcome is
	// already reflected by the failures that opened it.
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.failures = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.settings.OnStateChange != nil && from != to {
		b.settings.OnStateChange(b.settings.Name, from, to)
	}
}
