// Package errors provides retry utilities for Otto.
package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// ============================================================
// Retry Configuration
// ============================================================

// Policy defines retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int

	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2)
	Multiplier float64

	// Jitter adds randomized jitter to prevent thundering herd
	Jitter bool

	// RetryIf determines if an error is retryable
	RetryIf func(error) bool
}

// DefaultPolicy returns a reasonable default retry policy.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryIf:      IsRetryable,
	}
}

// FastPolicy returns a policy for quick retries against local
// dependencies.
func FastPolicy() *Policy {
	return &Policy{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   1.5,
		Jitter:       true,
		RetryIf:      IsRetryable,
	}
}

// ============================================================
// Retry Execution
// ============================================================

// Do executes fn under the policy, retrying retryable failures with
// exponential backoff.
func Do(ctx context.Context, policy *Policy, fn func() error) error {
	_, err := DoWithResult(ctx, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult executes fn under the policy and returns its result.
// The wait between attempts starts at InitialDelay and grows by
// Multiplier up to MaxDelay; the context is honored while waiting.
func DoWithResult[T any](ctx context.Context, policy *Policy, fn func() (T, error)) (T, error) {
	var zero T
	if policy == nil {
		policy = DefaultPolicy()
	}
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	delay := policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay = nextDelay(policy, delay)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if policy.RetryIf != nil && !policy.RetryIf(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// nextDelay advances the backoff delay, capped and optionally jittered.
func nextDelay(policy *Policy, delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * policy.Multiplier)
	if delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	if policy.Jitter {
		delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
	}
	return delay
}
