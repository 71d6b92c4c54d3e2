package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultInterval    = 1 * time.Second
)

// Policy describes how a call site retries a failing operation. It is passed
// explicitly to the operation instead of being hidden behind a wrapper, so the
// retry behavior is visible where the call happens.
type Policy struct {
	MaxAttempts     int           // total attempts, including the first
	InitialInterval time.Duration // first backoff delay
	Multiplier      float64       // backoff growth factor per attempt
	MaxInterval     time.Duration // backoff cap
	Retryable       func(error) bool
	OnRetry         func(error, time.Duration)
}

// DefaultPolicy retries every error three times with 1s..8s exponential backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInterval,
		Multiplier:      2.0,
		MaxInterval:     8 * time.Second,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, the error is
// classified non-retryable, or ctx is done.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.Multiplier > 0 {
		bo.Multiplier = p.Multiplier
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	bo.MaxElapsedTime = 0 // attempts are the only budget

	wrapped := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1)), ctx)

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(op, wrapped, func(err error, next time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(err, next)
		}
	})
}

// Constant retries fn with a fixed interval between attempts.
func Constant(fn func() error, interval time.Duration, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}

// IsPermanent reports whether err was marked non-retryable by a policy.
func IsPermanent(err error) bool {
	var pe *backoff.PermanentError
	return errors.As(err, &pe)
}
