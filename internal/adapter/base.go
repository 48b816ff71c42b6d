package adapter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryPolicy configures the bounded exponential backoff shared by every
// concrete adapter's Execute implementation.
type RetryPolicy struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy mirrors the teacher's router retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		BackoffFactor:  2.0,
		AttemptTimeout: 30 * time.Second,
	}
}

// delayFor returns the backoff delay before attempt n (0-indexed).
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if attempt == 0 {
		return 0
	}
	multiplier := math.Pow(p.BackoffFactor, float64(attempt-1))
	return time.Duration(float64(p.InitialDelay) * multiplier)
}

// Retry runs fn up to policy.MaxAttempts times, sleeping with exponential
// backoff between attempts, and wrapping each attempt in a per-attempt
// timeout derived from ctx. It returns the last error wrapped as an
// *Error once attempts are exhausted.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(policy.delayFor(attempt)):
			case <-ctx.Done():
				return &Error{Message: "retry cancelled", Cause: ctx.Err()}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, policy.AttemptTimeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(ctx.Err(), context.Canceled) {
			return &Error{Message: "request cancelled", Cause: ctx.Err()}
		}
	}
	return &Error{Message: fmt.Sprintf("exhausted %d attempts", policy.MaxAttempts), Cause: lastErr}
}

// CalculateCost computes a call's USD cost from token counts and per-token
// rates, rounded to six decimal places.
func CalculateCost(inputTokens, outputTokens int, inputRatePerMillion, outputRatePerMillion float64) float64 {
	cost := float64(inputTokens)/1_000_000*inputRatePerMillion + float64(outputTokens)/1_000_000*outputRatePerMillion
	return math.Round(cost*1_000_000) / 1_000_000
}
