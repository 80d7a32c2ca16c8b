package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Policy{Attempts: 2, Timeout: time.Second}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_FirstFailureSwallowed(t *testing.T) {
	var attempts []int
	err := Policy{Attempts: 2, Timeout: time.Second}.Do(context.Background(), func(_ context.Context, attempt int) error {
		attempts = append(attempts, attempt)
		if attempt == 1 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPolicy_ReturnsLastError(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	err := Policy{Attempts: 2}.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt == 1 {
			return first
		}
		return second
	})
	require.ErrorIs(t, err, second)
	assert.NotErrorIs(t, err, first)
}

func TestPolicy_AttemptsBelowOneRunOnce(t *testing.T) {
	calls := 0
	err := Policy{Attempts: 0}.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_TimeoutCountsAsAttempt(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	defer close(release)

	// The operation ignores its context, so only the deadline can end it.
	err := Policy{Attempts: 2, Timeout: 20 * time.Millisecond}.Do(context.Background(), func(context.Context, int) error {
		calls.Add(1)
		<-release
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPolicy_TimeoutThenSuccess(t *testing.T) {
	err := Policy{Attempts: 2, Timeout: 20 * time.Millisecond}.Do(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	require.NoError(t, err)
}

func TestPolicy_ParentCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Policy{Attempts: 3, Timeout: time.Second}.Do(ctx, func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("failed while cancelling")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_ObserverSeesEveryAttempt(t *testing.T) {
	type outcome struct {
		name    string
		attempt int
		failed  bool
	}
	var seen []outcome

	p := Policy{
		Name:     "identity_update",
		Attempts: 2,
		Observer: func(name string, attempt int, err error) {
			seen = append(seen, outcome{name, attempt, err != nil})
		},
	}
	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		if attempt == 1 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []outcome{
		{"identity_update", 1, true},
		{"identity_update", 2, false},
	}, seen)
}
