package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Veraticus/sift/internal/service"
)

// ErrMaxRetries indicates that all retry attempts have been exhausted.
var ErrMaxRetries = errors.New("max retries exceeded")

// Retry defaults used when RetryOptions leaves a field unset.
const (
	DefaultMaxRetries = 4
	DefaultBaseDelay  = 2 * time.Second
	DefaultMaxDelay   = 60 * time.Second
	DefaultMaxJitter  = time.Second
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retrier runs an operation, retrying transient failures with exponential
// backoff and jitter. The zero value is usable; Sleep and Jitter exist so
// tests can observe waits without sleeping.
type Retrier struct {
	Sleep   func(ctx context.Context, d time.Duration) error
	Jitter  func(limit time.Duration) time.Duration
	OnRetry func(retry int, delay time.Duration, err error)
	Logger  *slog.Logger
	Options service.RetryOptions
}

// Do executes operation until it succeeds, fails with a non-retryable error,
// or the retry budget is spent. Retry n (0-based) waits
// min(base*2^n + jitter, max), never less than the previous wait.
func (r Retrier) Do(ctx context.Context, operation func(context.Context) error) error {
	opts := withRetryDefaults(r.Options)
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := r.Jitter
	if jitter == nil {
		jitter = randomJitter
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var previous time.Duration
	for retry := 0; ; retry++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return err
		}

		if retry >= opts.MaxRetries {
			return fmt.Errorf("%w after %d retries: %w", ErrMaxRetries, retry, err)
		}

		delay := Backoff(opts, retry, jitter(opts.MaxJitter))
		if delay < previous {
			delay = previous
		}
		previous = delay

		logger.Warn("Operation failed, retrying",
			"retry", retry+1,
			"max_retries", opts.MaxRetries,
			"delay", delay,
			"error", err)

		if r.OnRetry != nil {
			r.OnRetry(retry+1, delay, err)
		}

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry aborted: %w", sleepErr)
		}
	}
}

// Backoff computes the wait before retry n (0-based) given a jitter sample.
func Backoff(opts service.RetryOptions, retry int, jitter time.Duration) time.Duration {
	opts = withRetryDefaults(opts)
	if retry > 30 {
		return opts.MaxDelay
	}

	delay := opts.BaseDelay*time.Duration(1<<uint(retry)) + jitter
	if delay > opts.MaxDelay || delay < 0 {
		return opts.MaxDelay
	}
	return delay
}

func withRetryDefaults(opts service.RetryOptions) service.RetryOptions {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxJitter < 0 {
		opts.MaxJitter = 0
	} else if opts.MaxJitter == 0 {
		opts.MaxJitter = DefaultMaxJitter
	}
	return opts
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

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
