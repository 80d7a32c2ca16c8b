// Package retry runs an operation a bounded number of times, each attempt
// under its own deadline.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrAttemptTimeout is returned when an attempt exceeds its deadline.
// It also matches context.DeadlineExceeded.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Observer is notified after every attempt. err is nil on success.
type Observer func(name string, attempt int, err error)

// Policy describes how an operation is retried.
type Policy struct {
	Name     string        // Used in logs and passed to Observer
	Attempts int           // Total attempts, values below 1 mean 1
	Timeout  time.Duration // Per-attempt deadline, zero disables it
	Observer Observer
}

// Do runs op until it succeeds or the attempts are exhausted. The error of
// the final attempt is returned. A deadline firing counts as a failed
// attempt, even when op does not watch its context. Cancelling ctx stops any
// further attempts.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		last = p.run(ctx, attempt, op)
		if p.Observer != nil {
			p.Observer(p.Name, attempt, last)
		}
		if last == nil {
			return nil
		}
		log.Ctx(ctx).Debug().
			Err(last).
			Str("op", p.Name).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("attempt failed")
	}
	return last
}

func (p Policy) run(ctx context.Context, attempt int, op func(ctx context.Context, attempt int) error) error {
	if p.Timeout <= 0 {
		return op(ctx, attempt)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(attemptCtx, attempt)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return p.timeoutError()
		}
		return err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return p.timeoutError()
	}
}

func (p Policy) timeoutError() error {
	return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, p.Timeout, context.DeadlineExceeded)
}
