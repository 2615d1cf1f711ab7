// Package retry repeats store calls with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt for a Retrier without a
// RetryIf predicate. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxAttempts sets the total number of calls, first one included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithRetryIf replaces the Retryable marker check with fn.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry registers fn to run before each wait. attempt is the call
// that just failed, starting at 1.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// Retrier runs an operation until it succeeds, fails with an error that is
// not retried, or runs out of attempts.
type Retrier struct {
	attempts int
	base     time.Duration
	max      time.Duration
	jitter   float64
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
}

// New returns a Retrier making 3 attempts with delays starting at 100ms,
// doubling up to 30s, with 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{attempts: 3, base: 100 * time.Millisecond, max: 30 * time.Second, jitter: 0.1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MirrorRetrier gives up fast: mirror writes run after the document write has
// already succeeded and the repair job picks up whatever is left behind.
func MirrorRetrier(attempts int, retryIf func(error) bool, opts ...Option) *Retrier {
	r := New(append([]Option{WithMaxAttempts(attempts), WithRetryIf(retryIf)}, opts...)...)
	r.base = 25 * time.Millisecond
	r.max = 250 * time.Millisecond
	return r
}

// DatabaseRetrier waits for a database to accept connections at startup.
// Errors must be marked with Retryable.
func DatabaseRetrier(opts ...Option) *Retrier {
	r := New(append([]Option{WithMaxAttempts(5)}, opts...)...)
	r.base = 200 * time.Millisecond
	r.max = 3 * time.Second
	r.jitter = 0.05
	return r
}

// Do calls op until it succeeds or the Retrier stops. The returned error is
// the last one op produced, with any Retryable marker removed. A context
// cancelled between attempts ends the loop with that last error.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		last = unmark(err)

		if attempt >= r.attempts || !r.shouldRetry(err) {
			return last
		}

		delay := r.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, last, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.retryIf != nil {
		return r.retryIf(err)
	}
	return IsRetryable(err)
}

// backoff is base*2^(attempt-1), capped at max, then spread by ±jitter.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.base
	for i := 1; i < attempt && d < r.max; i++ {
		d *= 2
	}
	if d > r.max {
		d = r.max
	}
	if r.jitter > 0 {
		d += time.Duration(float64(d) * r.jitter * (rand.Float64()*2 - 1))
	}
	if d < 0 {
		d = 0
	}
	return d
}

func unmark(err error) error {
	if re, ok := err.(*retryableError); ok {
		return re.err
	}
	return err
}
