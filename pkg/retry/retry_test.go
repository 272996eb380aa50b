package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		fatal     bool
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "recovers", failures: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantCalls: 3, wantErr: true},
		{name: "fatal stops at once", failures: 5, fatal: true, attempts: 3, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastPolicy(tt.attempts), func() error {
				calls++
				if calls > tt.failures {
					return nil
				}
				if tt.fatal {
					return NewFatalError(boom)
				}
				return boom
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, boom)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryWithCallback_ReportsEachRetry(t *testing.T) {
	var attempts []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("down")
	}, func(attempt int, err error, next time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, next, 5*time.Millisecond)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, Policy{MaxAttempts: 10, InitialInterval: time.Second, MaxInterval: time.Second, Multiplier: 1}, func() error {
		calls++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestPolicy_Delay(t *testing.T) {
	policy := Policy{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: 100 * time.Millisecond},
		{attempt: 2, want: 400 * time.Millisecond},
		{attempt: 10, want: time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetry_MaxElapsedTimeStopsEarly(t *testing.T) {
	policy := Policy{
		MaxAttempts:     100,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Multiplier:      1,
		MaxElapsedTime:  30 * time.Millisecond,
	}

	calls := 0
	err := Retry(context.Background(), policy, func() error {
		calls++
		return errors.New("down")
	})

	require.Error(t, err)
	assert.Less(t, calls, 100)
}
