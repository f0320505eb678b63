package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(extra ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, extra...)
}

func TestDo_SucceedsAfterRetryableErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("temporary"))
		}
		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustedReturnsUnwrappedError(t *testing.T) {
	base := errors.New("still down")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return Retryable(base)
	}, fast(WithMaxAttempts(4))...)

	assert.Equal(t, base, err)
	assert.Equal(t, 4, attempts)
}

func TestDo_PlainErrorNotRetriedByDefault(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("bad request")
	}, fast()...)

	assert.EqualError(t, err, "bad request")
	assert.Equal(t, 1, attempts)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	base := errors.New("auth failed")
	attempts := 0
	err := Do(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(base)
	}, fast(WithRetryIf(func(error) bool { return true }))...)

	assert.Equal(t, base, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), func(context.Context) error {
		return Retryable(errors.New("x"))
	}, fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		seen = append(seen, attempt)
	}))...)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Do(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	v, err := DoWithData(context.Background(), func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, Retryable(errors.New("once"))
		}
		return 42, nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDelay_BackoffIsCapped(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.delay(1))
	assert.Equal(t, 200*time.Millisecond, r.delay(2))
	assert.Equal(t, 300*time.Millisecond, r.delay(3))
	assert.Equal(t, 300*time.Millisecond, r.delay(10))
}
