package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"messaging/internal/config"
	apperrors "messaging/pkg/errors"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
	Jitter          float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
		Jitter:          backoff.DefaultRandomizationFactor,
	}
}

// Merge overlays the non-zero fields of override on p.
func (p Policy) Merge(override Policy) Policy {
	if override.MaxAttempts > 0 {
		p.MaxAttempts = override.MaxAttempts
	}
	if override.InitialInterval > 0 {
		p.InitialInterval = override.InitialInterval
	}
	if override.MaxInterval > 0 {
		p.MaxInterval = override.MaxInterval
	}
	if override.Multiplier > 0 {
		p.Multiplier = override.Multiplier
	}
	if override.MaxElapsedTime > 0 {
		p.MaxElapsedTime = override.MaxElapsedTime
	}
	if override.Jitter > 0 {
		p.Jitter = override.Jitter
	}
	return p
}

// FromConfig overlays a configured retry section on DefaultPolicy.
func FromConfig(cfg config.RetryConfig) Policy {
	return DefaultPolicy().Merge(Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		MaxElapsedTime:  cfg.MaxElapsedTime,
	})
}

// OnRetry is called before sleeping ahead of the next attempt.
type OnRetry func(attempt int, err error, nextDelay time.Duration)

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback runs fn until it succeeds, the policy is exhausted or fn
// returns a fatal error. Errors that do not classify themselves are retried.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry OnRetry) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}

	var b backoff.BackOff = exponential(policy)
	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, DelayFor(attempt-1, policy.InitialInterval, policy.Multiplier, policy.MaxInterval))
		}
		return err
	}

	return backoff.Retry(operation, b)
}

// IsPermanent reports whether err says it must not be retried.
func IsPermanent(err error) bool {
	var fatal apperrors.FatalError
	if errors.As(err, &fatal) && fatal.IsFatal() {
		return true
	}
	var retryable apperrors.RetryableError
	if errors.As(err, &retryable) {
		return !retryable.IsRetryable()
	}
	return false
}
