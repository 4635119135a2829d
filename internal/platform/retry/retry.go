// Package retry repeats startup operations, such as dialing Postgres or
// Redis, until they succeed, fail permanently or run out of attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

type Action int

const (
	Stop  Action = iota // permanent error, abort immediately
	Retry               // transient error, back off and try again
)

// Classify decides whether an error is worth another attempt.
type Classify func(err error) Action

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration // zero means uncapped
	Clock          clockwork.Clock

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

var errNoAttempts = errors.New("retry: MaxAttempts must be >= 1")

// Transient retries everything except context cancellation.
func Transient(err error) Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Stop
	}
	return Retry
}

// PermanentError marks an error the classifier refused to retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every attempt failed. Err is the last one.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}
func (e *ExhaustedError) Unwrap() error { return e.Err }

func (p Policy) wait(prev time.Duration) time.Duration {
	if prev == 0 {
		return p.InitialBackoff
	}
	next := prev * 2
	if p.MaxBackoff > 0 && next > p.MaxBackoff {
		return p.MaxBackoff
	}
	return next
}

// Do calls op until it returns nil, classify says Stop, MaxAttempts is
// reached or ctx is done.
func Do[T any](ctx context.Context, p Policy, classify Classify, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		return zero, errNoAttempts
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var backoff time.Duration
	for attempt := 1; ; attempt++ {
		val, err := op(ctx)
		switch {
		case err == nil:
			return val, nil
		case classify(err) == Stop:
			return zero, &PermanentError{Err: err}
		case attempt >= p.MaxAttempts:
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		backoff = p.wait(backoff)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, backoff)
		}

		timer := clock.NewTimer(backoff)
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}
