package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config defines retry parameters.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64 // 0-1, percentage of jitter to add
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.1,
	}
}

// Operation is a function that may be retried.
type Operation func() error

// RetryableError indicates whether an error can be retried.
type RetryableError interface {
	IsRetryable() bool
}

// Do executes operation with bounded retries and exponential backoff.
func Do(ctx context.Context, config Config, operation Operation) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable, ok := err.(RetryableError); ok && !retryable.IsRetryable() {
			return err
		}

		if attempt < config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt, config)):
			}
		}
	}

	return lastErr
}

// DoWithResult executes operation with retry logic and returns its result.
func DoWithResult[T any](ctx context.Context, config Config, operation func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := operation()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if retryable, ok := err.(RetryableError); ok && !retryable.IsRetryable() {
			return zero, err
		}

		if attempt < config.MaxRetries {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff(attempt, config)):
			}
		}
	}

	return zero, lastErr
}

func backoff(attempt int, config Config) time.Duration {
	d := float64(config.InitialInterval) * math.Pow(config.Multiplier, float64(attempt))
	if d > float64(config.MaxInterval) {
		d = float64(config.MaxInterval)
	}
	if config.Jitter > 0 {
		jitterRange := d * config.Jitter
		d += (rand.Float64() * 2 * jitterRange) - jitterRange
	}
	return time.Duration(d)
}
