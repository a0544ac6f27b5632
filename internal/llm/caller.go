package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/sift/internal/common"
	"github.com/Veraticus/sift/internal/metrics"
	"github.com/Veraticus/sift/internal/service"
)

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 60 * time.Second

// Caller sends requests to a provider, retrying transient failures with
// exponential backoff. It is the only path to the model; every call site
// shares its retry policy.
type Caller struct {
	client         Client
	limiter        *rateLimiter
	metrics        *metrics.Metrics
	logger         *slog.Logger
	retrier        common.Retrier
	attemptTimeout time.Duration
}

// CallerOption customizes a Caller.
type CallerOption func(*Caller)

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) CallerOption {
	return func(c *Caller) {
		c.logger = logger
	}
}

// WithMetrics records attempts and retries on m.
func WithMetrics(m *metrics.Metrics) CallerOption {
	return func(c *Caller) {
		c.metrics = m
	}
}

// WithSleep replaces the backoff sleep. Tests use it to record waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) CallerOption {
	return func(c *Caller) {
		c.retrier.Sleep = sleep
	}
}

// WithJitter replaces the random jitter source.
func WithJitter(jitter func(limit time.Duration) time.Duration) CallerOption {
	return func(c *Caller) {
		c.retrier.Jitter = jitter
	}
}

// NewCaller wraps client with the retry policy described by cfg.
func NewCaller(client Client, cfg Config, opts ...CallerOption) *Caller {
	c := &Caller{
		client:         client,
		limiter:        newRateLimiter(cfg.RateLimit),
		logger:         slog.Default(),
		attemptTimeout: cfg.AttemptTimeout,
		retrier: common.Retrier{
			Options: service.RetryOptions{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  cfg.RetryBaseDelay,
				MaxDelay:   common.DefaultMaxDelay,
				MaxJitter:  common.DefaultMaxJitter,
			},
		},
	}
	if c.attemptTimeout <= 0 {
		c.attemptTimeout = DefaultAttemptTimeout
	}

	for _, opt := range opts {
		opt(c)
	}

	c.retrier.Logger = c.logger
	c.retrier.OnRetry = func(int, time.Duration, error) {
		c.metrics.IncRetry()
	}
	return c
}

// Call returns the model's raw text for req. Transient failures are retried;
// anything else is returned on the first occurrence. Once the retry budget is
// spent the error wraps common.ErrMaxRetries and the last *APIError.
func (c *Caller) Call(ctx context.Context, req Request) (string, error) {
	var text string
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()

		start := time.Now()
		resp, err := c.client.Complete(attemptCtx, req)
		elapsed := time.Since(start)

		if err == nil {
			c.metrics.ObserveAICall(metrics.CallOutcomeSuccess, elapsed)
			text = resp.Text
			return nil
		}

		err = classifyCallError(ctx, attemptCtx, err)
		if common.IsRetryable(err) {
			c.metrics.ObserveAICall(metrics.CallOutcomeTransient, elapsed)
		} else {
			c.metrics.ObserveAICall(metrics.CallOutcomeTerminal, elapsed)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("AI call failed: %w", err)
	}
	return text, nil
}

// classifyCallError marks rate limiting, overload and per-attempt deadlines
// as retryable. A deadline only counts when the parent context is still live.
func classifyCallError(parent, attempt context.Context, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &common.RetryableError{Err: err, Retryable: apiErr.Transient()}
	}

	if parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return &common.RetryableError{
			Err:       fmt.Errorf("attempt timed out: %w", err),
			Retryable: true,
		}
	}

	return err
}
