package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	remoteRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_remote_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	remoteRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transit_remote_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	remoteRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transit_remote_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// forClass scales the backoff for error classes that need more time.
func (c RetryConfig) forClass(errorClass ErrorClass) RetryConfig {
	if errorClass == ErrorClassRateLimit {
		// 429 - give the upstream budget time to refill
		c.InitialBackoff *= 4
		c.MaxBackoff *= 4
	}
	return c
}

// retryWithBackoff executes fn with exponential backoff. classify maps fn's
// error to its class; only retriable classes are attempted again.
// It respects context cancellation and adds ±20% jitter.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() error, classify func(error) ErrorClass) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var (
		lastErr    error
		errorClass ErrorClass
		backoff    time.Duration
	)

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass = classify(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		classCfg := cfg.forClass(errorClass)
		if backoff == 0 {
			backoff = classCfg.InitialBackoff
		}

		remoteRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		remoteRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w (last error: %w)", ErrContextCancelled, ctx.Err(), lastErr)
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * classCfg.BackoffMultiplier)
		if backoff > classCfg.MaxBackoff {
			backoff = classCfg.MaxBackoff
		}
	}

	remoteRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Warn().
		Str("error_class", string(errorClass)).
		Int("max_attempts", cfg.MaxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
}
