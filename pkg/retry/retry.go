// Package retry wraps flaky outbound calls, chiefly the component
// generation API, with exponential backoff and a circuit breaker.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Common retry errors.
var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64

	// Jitter randomizes delays by up to this fraction.
	Jitter float64

	// RetryIf decides whether an error is worth retrying. Nil retries
	// everything.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig suits short interactive calls: three quick retries,
// never more than a few seconds of waiting in total.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Do executes fn until it succeeds, retries are exhausted, or ctx is
// done.
func Do(ctx context.Context, config *Config, fn func() error) error {
	_, err := DoWithResult(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn until it succeeds, retries are exhausted, or
// ctx is done, returning the last result.
func DoWithResult[T any](ctx context.Context, config *Config, fn func() (T, error)) (T, error) {
	var zero T
	if config == nil {
		config = DefaultConfig()
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, errors.Join(ErrContextCanceled, ctx.Err())
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if config.RetryIf != nil && !config.RetryIf(err) {
			return zero, err
		}
		if attempt == config.MaxRetries {
			break
		}

		delay := Backoff(attempt, config)
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, errors.Join(ErrContextCanceled, ctx.Err())
		case <-time.After(delay):
		}
	}

	return zero, errors.Join(ErrMaxRetriesExceeded, lastErr)
}

// Backoff returns the delay before retrying after the given attempt,
// exponential with jitter.
func Backoff(attempt int, config *Config) time.Duration {
	if config == nil {
		config = DefaultConfig()
	}

	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}
	if config.Jitter > 0 {
		jitter := delay * config.Jitter
		delay = delay - jitter + rand.Float64()*2*jitter
	}
	return time.Duration(delay)
}

// RetryableError marks an error as worth retrying.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error as retryable.
func Retryable(err error) *RetryableError {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether the error is marked retryable.
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}

// PermanentError marks an error as not worth retrying, such as a
// rejected API key.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error as permanent.
func Permanent(err error) *PermanentError {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether the error is marked permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

// OnlyRetryable is a RetryIf that retries only marked errors.
func OnlyRetryable() func(error) bool {
	return IsRetryable
}

// UnlessPermanent is a RetryIf that retries everything except marked
// permanent errors.
func UnlessPermanent() func(error) bool {
	return func(err error) bool {
		return !IsPermanent(err)
	}
}
