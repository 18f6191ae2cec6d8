package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		RetryableCodes: DefaultRetryableCodes,
	}
}

func TestRetrierSucceedsFirstAttempt(t *testing.T) {
	r := NewRetrier(fastConfig(3), nil)

	calls := 0
	result, err := Execute(context.Background(), r, func(ctx context.Context) (string, *AttemptError) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetrierExhaustsRetryableFailures(t *testing.T) {
	r := NewRetrier(fastConfig(3), nil)

	calls := 0
	_, err := Execute(context.Background(), r, func(ctx context.Context) (string, *AttemptError) {
		calls++
		return "", NewStatusError("unavailable", 503)
	})

	assert.Equal(t, 4, calls, "expect 1 + max_retries attempts")

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 4, retryErr.Attempts)
	assert.Equal(t, "unavailable", retryErr.LastError)
	require.NotNil(t, retryErr.LastStatusCode)
	assert.Equal(t, 503, *retryErr.LastStatusCode)
}

func TestRetrierNonRetryableFailsImmediately(t *testing.T) {
	for _, code := range []int{400, 401, 403, 404} {
		r := NewRetrier(fastConfig(3), nil)

		calls := 0
		start := time.Now()
		_, err := Execute(context.Background(), r, func(ctx context.Context) (string, *AttemptError) {
			calls++
			return "", NewStatusError("client error", code)
		})

		assert.Equal(t, 1, calls, "status %d", code)
		assert.Less(t, time.Since(start), 50*time.Millisecond, "no sleep on non-retryable errors")

		var retryErr *RetryError
		require.ErrorAs(t, err, &retryErr)
		assert.Equal(t, 1, retryErr.Attempts)
	}
}

func TestRetrierNoStatusCodeIsRetryable(t *testing.T) {
	r := NewRetrier(fastConfig(2), nil)

	calls := 0
	_, err := Execute(context.Background(), r, func(ctx context.Context) (string, *AttemptError) {
		calls++
		if calls < 3 {
			return "", NewAttemptError("connection reset")
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrierContextCancellation(t *testing.T) {
	cfg := fastConfig(5)
	cfg.BaseDelay = time.Hour
	cfg.MaxDelay = time.Hour
	r := NewRetrier(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Execute(ctx, r, func(ctx context.Context) (string, *AttemptError) {
		return "", NewStatusError("unavailable", 503)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffSequenceWithoutJitter(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries: 6,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
	}, nil)
	r.jitterFactor = func() float64 { return 0 }

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second, // capped
		10 * time.Second,
	}
	assert.Equal(t, want, r.BackoffSequence())

	for i := 1; i < len(want); i++ {
		assert.GreaterOrEqual(t, want[i], want[i-1], "backoff is monotonically non-decreasing")
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	base := time.Second
	for _, factor := range []float64{0, 0.25, 0.5, 0.999} {
		r := NewRetrier(RetryConfig{
			MaxRetries: 3,
			BaseDelay:  base,
			MaxDelay:   time.Hour,
		}, nil)

		noJitter := NewRetrier(r.config, nil)
		noJitter.jitterFactor = func() float64 { return 0 }
		r.jitterFactor = func() float64 { return factor }

		for attempt := 0; attempt < 3; attempt++ {
			plain := noJitter.Backoff(attempt)
			jittered := r.Backoff(attempt)
			assert.GreaterOrEqual(t, jittered, plain)
			assert.LessOrEqual(t, jittered-plain, base)
		}
	}
}

func TestIsRetryableRespectsConfiguredCodes(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     1,
		BaseDelay:      time.Millisecond,
		MaxDelay:       time.Millisecond,
		RetryableCodes: []int{429},
	}, nil)

	assert.True(t, r.IsRetryable(NewStatusError("rate limited", 429)))
	assert.False(t, r.IsRetryable(NewStatusError("unavailable", 503)))
	assert.True(t, r.IsRetryable(NewAttemptError("no response")))
}
