package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menubot_upstream_retries_total",
		Help: "Total number of upstream retry attempts by error class",
	}, []string{"error_class"})

	upstreamRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "menubot_upstream_retry_backoff_seconds",
		Help:    "Backoff duration before an upstream retry by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 10},
	}, []string{"error_class"})

	upstreamRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menubot_upstream_retry_exhausted_total",
		Help: "Total number of fetches that exhausted their retry budget by last error class",
	}, []string{"error_class"})
)

// RetryPolicy decides how many attempts a fetch gets and how long to wait
// between them. All error classes share one attempt counter.
type RetryPolicy struct {
	// MaxAttempts includes the initial request.
	MaxAttempts int

	// RateLimitBase is doubled per attempt after a 429: base * 2^attempt.
	RateLimitBase time.Duration

	// RateLimitMax caps the 429 backoff.
	RateLimitMax time.Duration

	// FlatBackoff is the wait after network and server errors.
	FlatBackoff time.Duration
}

// DefaultRetryPolicy returns the default retry policy: 3 attempts, 429 waits
// of 2s/4s/8s capped at 10s, and 1s after any other retriable error.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		RateLimitBase: 1 * time.Second,
		RateLimitMax:  10 * time.Second,
		FlatBackoff:   1 * time.Second,
	}
}

// Backoff returns the wait after a failed 1-based attempt.
func (p RetryPolicy) Backoff(errorClass ErrorClass, attempt int) time.Duration {
	if errorClass != ErrorClassRateLimit {
		return p.FlatBackoff
	}

	wait := p.RateLimitBase
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= p.RateLimitMax {
			return p.RateLimitMax
		}
	}
	return wait
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryWithBackoff runs fn until it succeeds, returns a non-retriable error,
// or the policy's attempt budget is spent. fn receives the 1-based attempt.
func retryWithBackoff(ctx context.Context, policy RetryPolicy, sleep sleepFunc, logger zerolog.Logger, fn func(attempt int) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	var errorClass ErrorClass

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		lastErr = err
		errorClass = classify(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		wait := policy.Backoff(errorClass, attempt)
		upstreamRetriesTotal.WithLabelValues(string(errorClass)).Inc()
		upstreamRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(wait.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := sleep(ctx, wait); err != nil {
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}

	upstreamRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(errorClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}

// isContextErr reports whether err came from a cancelled or expired context.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
