package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"raffle/domain/entities"

	"github.com/stretchr/testify/assert"
)

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxElapsed:      200 * time.Millisecond,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestRetryPolicy_RetriesLockTimeouts(t *testing.T) {
	calls := 0
	err := fastRetryPolicy().Run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("lock giveaway: %w", entities.ErrLockTimeout)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_DoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	err := fastRetryPolicy().Run(context.Background(), func(ctx context.Context) error {
		calls++
		return entities.ErrCapacityExceeded
	})

	assert.ErrorIs(t, err, entities.ErrCapacityExceeded)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_GivesUp(t *testing.T) {
	start := time.Now()
	err := fastRetryPolicy().Run(context.Background(), func(ctx context.Context) error {
		return entities.ErrLockTimeout
	})

	assert.ErrorIs(t, err, entities.ErrLockTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRetryPolicy_ZeroRunsOnce(t *testing.T) {
	calls := 0
	err := RetryPolicy{}.Run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
