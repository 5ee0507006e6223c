// Package retry runs remote calls under an explicit exponential-backoff
// policy. Every component that talks to Google APIs or the model backend owns
// a Policy instead of wrapping calls ad hoc, so the schedule can be tested
// without a network or a real clock.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// NotifyFunc is called before each wait with the failed attempt number
// (1-based), the error, and the delay about to be slept.
type NotifyFunc func(attempt int, err error, delay time.Duration)

// Policy describes how many times to try an operation and how long to wait
// between tries. The zero value is not useful; start from Default or Step.
type Policy struct {
	// Name labels log lines, e.g. "drive.export".
	Name string

	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Initial is the delay after the first failure.
	Initial time.Duration

	// Max caps every delay.
	Max time.Duration

	// Multiplier grows the delay after each failure. Values below 1 are treated as 1.
	Multiplier float64

	// AttemptTimeout bounds each individual try. Zero means no per-try timeout.
	AttemptTimeout time.Duration

	// Retryable decides whether an error is worth another try. Nil retries everything
	// except context cancellation.
	Retryable func(error) bool

	// Sleep waits between tries. Nil uses a context-aware timer.
	Sleep SleepFunc

	// Notify observes each retry. Nil logs a warning.
	Notify NotifyFunc
}

// Default returns the run-wide policy for transient upstream failures:
// 5 attempts, 1s doubling, capped at 60s, retrying only IsTransient errors.
func Default() Policy {
	return Policy{
		Name:        "upstream",
		MaxAttempts: 5,
		Initial:     time.Second,
		Max:         60 * time.Second,
		Multiplier:  2,
		Retryable:   IsTransient,
	}
}

// Step returns the per-review-step send policy: the first send plus up to
// three retries waiting 1s, 2s and 4s.
func Step() Policy {
	return Policy{
		Name:        "review.step",
		MaxAttempts: 4,
		Initial:     time.Second,
		Max:         4 * time.Second,
		Multiplier:  2,
		Retryable:   NotCanceled,
	}
}

// With returns a copy of p with the given name.
func (p Policy) With(name string) Policy {
	p.Name = name
	return p
}

// Delays returns the wait schedule the policy would follow if every attempt failed.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, p.delay(i))
	}
	return out
}

// delay returns the wait after the given failed attempt (1-based).
func (p Policy) delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.Initial)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.Max > 0 && d >= float64(p.Max) {
			return p.Max
		}
	}
	if p.Max > 0 && time.Duration(d) > p.Max {
		return p.Max
	}
	return time.Duration(d)
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do runs op until it succeeds, returns a non-retryable error, the context is
// done, or MaxAttempts is reached.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = NotCanceled
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			if attempt > 1 {
				log.Debug().Str("op", p.Name).Int("attempt", attempt).Msg("Call succeeded after retry")
			}
			return v, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		d := p.delay(attempt)
		if p.Notify != nil {
			p.Notify(attempt, err, d)
		} else {
			log.Warn().
				Err(err).
				Str("op", p.Name).
				Int("attempt", attempt).
				Int("max_attempts", attempts).
				Dur("backoff", d).
				Msg("Transient failure, retrying")
		}
		if err := sleep(ctx, d); err != nil {
			return zero, err
		}
	}

	return zero, &ExhaustedError{Name: p.Name, Attempts: attempts, Err: lastErr}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NotCanceled retries every error except context cancellation and permanent
// configuration or state errors.
func NotCanceled(err error) bool {
	return !errors.Is(err, context.Canceled) && !grading.IsPermanent(err)
}
