package httpclient

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"aibos-connector-sync/internal/domain"
)

// RetryConfig defines retry behavior with exponential backoff
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0, +/- fraction applied to each delay
}

// DefaultRetryConfig returns defaults for provider REST calls:
// 3 retries starting at 500ms, capped at 30s, doubling each time, with 10% jitter
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// IsRetryable determines if an error is transient and worth retrying.
// Errors that declare IsRetryable() anywhere in their chain decide for
// themselves; everything else is matched against known transient messages.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"timed out",
		"temporary failure",
		"network is unreachable",
		"unexpected eof",
		"tls handshake timeout",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// retryDelay honors a provider's Retry-After hint when it exceeds the backoff delay
func retryDelay(err error, backoff time.Duration, maxDelay time.Duration) time.Duration {
	if pe, ok := domain.AsProviderError(err); ok && pe.RetryAfter > backoff {
		if maxDelay > 0 && pe.RetryAfter > maxDelay {
			return maxDelay
		}
		return pe.RetryAfter
	}
	return backoff
}

// DoIfRetryable executes fn, retrying only transient failures.
// Permanent errors (auth failures, validation errors) return immediately.
// Respects context cancellation during wait periods.
func DoIfRetryable(ctx context.Context, cfg *RetryConfig, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is DoIfRetryable for functions that return a value
func DoWithResult[T any](ctx context.Context, cfg *RetryConfig, fn func() (T, error)) (T, error) {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var result T
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		r, err := fn()
		if err == nil {
			return r, nil
		}
		result, lastErr = r, err

		if !IsRetryable(err) || attempt == cfg.MaxRetries {
			break
		}

		wait := applyJitter(retryDelay(err, delay, cfg.MaxDelay), cfg.JitterFactor)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		}
	}

	return result, lastErr
}
