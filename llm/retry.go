package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures boundary retries with exponential backoff. The story
// loops never retry on their own; this only runs when MaxAttempts > 1.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryPolicy makes a single attempt.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:   1,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// Delay returns the wait before the given attempt (1-based). The first attempt
// never waits.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt-2)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		// ±10%
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	return delay
}

// WithRetry retries retryable failures according to policy. It returns nil
// (no middleware) when the policy allows a single attempt.
func WithRetry(policy RetryPolicy, logger *zap.Logger) Middleware {
	if policy.MaxAttempts <= 1 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Client) Client {
		return WrapClient(next, func(ctx context.Context, req Request) (string, error) {
			var lastErr error
			for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
				if delay := policy.Delay(attempt); delay > 0 {
					timer := time.NewTimer(delay)
					select {
					case <-ctx.Done():
						timer.Stop()
						return "", fmt.Errorf("retry cancelled: %w", ctx.Err())
					case <-timer.C:
					}
				}

				out, err := next.Complete(ctx, req)
				if err == nil {
					return out, nil
				}
				lastErr = err

				kind := Classify(err)
				if !kind.Retryable() || attempt == policy.MaxAttempts {
					break
				}
				logger.Info("retrying llm call",
					zap.String("purpose", string(req.Purpose)),
					zap.Int("attempt", attempt),
					zap.String("error_kind", string(kind)),
					zap.Error(err))
			}
			return "", lastErr
		})
	}
}
