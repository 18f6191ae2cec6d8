// Package resilience provides retry with bounded exponential backoff and
// failure classification for credential failover.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// DefaultRetryableCodes are the HTTP statuses worth retrying.
var DefaultRetryableCodes = []int{408, 429, 500, 502, 503, 504}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxRetries     int           `json:"max_retries" yaml:"max_retries" koanf:"max_retries"`
	BaseDelay      time.Duration `json:"base_delay" yaml:"base_delay" koanf:"base_delay"`
	MaxDelay       time.Duration `json:"max_delay" yaml:"max_delay" koanf:"max_delay"`
	RetryableCodes []int         `json:"retryable_codes" yaml:"retryable_codes" koanf:"retryable_codes"`
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		RetryableCodes: DefaultRetryableCodes,
	}
}

// AttemptError is what a retried operation reports on failure. StatusCode
// is nil for transport-level failures that never got an HTTP response.
type AttemptError struct {
	Message    string
	StatusCode *int
}

func (e *AttemptError) Error() string {
	if e.StatusCode != nil {
		return fmt.Sprintf("%s (status %d)", e.Message, *e.StatusCode)
	}
	return e.Message
}

// NewAttemptError builds an AttemptError without a status code.
func NewAttemptError(message string) *AttemptError {
	return &AttemptError{Message: message}
}

// NewStatusError builds an AttemptError carrying an HTTP status.
func NewStatusError(message string, statusCode int) *AttemptError {
	return &AttemptError{Message: message, StatusCode: &statusCode}
}

// RetryError is returned once the retry loop gives up. Attempts counts every
// execution of the operation, so Attempts == 1 + retries performed.
type RetryError struct {
	Attempts       int
	LastError      string
	LastStatusCode *int
}

func (e *RetryError) Error() string {
	if e.LastStatusCode != nil {
		return fmt.Sprintf("operation failed after %d attempts: %s (status %d)", e.Attempts, e.LastError, *e.LastStatusCode)
	}
	return fmt.Sprintf("operation failed after %d attempts: %s", e.Attempts, e.LastError)
}

// Retrier executes operations with exponential backoff and jitter. The
// jitter source is injectable so tests can pin it.
type Retrier struct {
	config RetryConfig
	logger *slog.Logger
	// jitterFactor returns a value in [0, 1); the delay gains
	// jitterFactor * BaseDelay.
	jitterFactor func() float64
}

func NewRetrier(config RetryConfig, logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RetryableCodes == nil {
		config.RetryableCodes = DefaultRetryableCodes
	}
	return &Retrier{
		config:       config,
		logger:       logger,
		jitterFactor: rand.Float64,
	}
}

// Operation is one attempt of the retried work. It must be idempotent per
// attempt: issue a fresh call each time, never resume partial state.
type Operation[T any] func(ctx context.Context) (T, *AttemptError)

// Execute runs the operation until it succeeds, the error is non-retryable,
// or the retry budget is exhausted. Non-retryable errors return immediately
// without sleeping.
func Execute[T any](ctx context.Context, r *Retrier, op Operation[T]) (T, error) {
	var zero T
	var lastErr *AttemptError

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.IsRetryable(err) {
			r.logger.Debug("Error is not retryable, giving up",
				"attempt", attempt+1,
				"error", err.Message,
			)
			return zero, &RetryError{
				Attempts:       attempt + 1,
				LastError:      err.Message,
				LastStatusCode: err.StatusCode,
			}
		}

		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.Backoff(attempt)
		r.logger.Warn("Retrying after failure",
			"attempt", attempt+1,
			"max_attempts", r.config.MaxRetries+1,
			"delay", delay,
			"error", err.Message,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, &RetryError{
		Attempts:       r.config.MaxRetries + 1,
		LastError:      lastErr.Message,
		LastStatusCode: lastErr.StatusCode,
	}
}

// IsRetryable applies the status-code policy: no status means a transient
// transport failure, retryable; otherwise the status must be configured.
func (r *Retrier) IsRetryable(err *AttemptError) bool {
	if err.StatusCode == nil {
		return true
	}
	for _, code := range r.config.RetryableCodes {
		if code == *err.StatusCode {
			return true
		}
	}
	return false
}

// Backoff computes the delay after the n-th failed attempt (0-indexed):
// min(base * 2^n + jitter, max) with jitter in [0, base).
func (r *Retrier) Backoff(attempt int) time.Duration {
	base := float64(r.config.BaseDelay)
	delay := base * float64(uint64(1)<<uint(attempt))
	delay += r.jitterFactor() * base

	if max := float64(r.config.MaxDelay); delay > max {
		delay = max
	}
	return time.Duration(delay)
}

// BackoffSequence returns the full delay schedule for the configured retry
// budget, useful for logging and diagnostics.
func (r *Retrier) BackoffSequence() []time.Duration {
	seq := make([]time.Duration, r.config.MaxRetries)
	for i := range seq {
		seq[i] = r.Backoff(i)
	}
	return seq
}
