package application

import (
	"context"
	"errors"
	"time"

	"raffle/domain/entities"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// RetryPolicy bounds how long an operation that lost a lock race is retried
type RetryPolicy struct {
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// NewRetryPolicy creates a policy that gives up after maxElapsed
func NewRetryPolicy(maxElapsed time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxElapsed:      maxElapsed,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Run executes op, retrying only on ErrLockTimeout. Other errors are returned at once.
// A zero MaxElapsed runs op exactly once.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context) error) error {
	if p.MaxElapsed <= 0 {
		return op(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, entities.ErrLockTimeout) {
			log.WithFields(log.Fields{
				"attempt": attempt,
				"error":   err,
			}).Debug("Lock not acquired, retrying")
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}
