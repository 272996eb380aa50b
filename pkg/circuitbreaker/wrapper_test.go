package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioTrip(t *testing.T) {
	trip := RatioTrip(3, 0.5)

	assert.False(t, trip(gobreaker.Counts{}))
	assert.False(t, trip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
	assert.False(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 1}))
	assert.True(t, trip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
}

func TestWrapper_OpensAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	w := NewWrapper(Config{
		Name:        "test-open",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: RatioTrip(2, 0.5),
		OnStateChange: func(_ string, _, to gobreaker.State) {
			transitions = append(transitions, to)
		},
	})

	boom := errors.New("smtp down")
	for i := 0; i < 2; i++ {
		err := w.Do(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	called := false
	err := w.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.False(t, called)
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := w.Do(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.True(t, w.IsClosed())
}
