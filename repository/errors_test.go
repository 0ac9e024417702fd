package repository

import (
	"errors"
	"fmt"
	"testing"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, entities.ErrLockTimeout},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, entities.ErrLockTimeout},
		{"serialization", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"}), entities.ErrLockTimeout},
		{"number collision", &pgconn.PgError{Code: "23505", ConstraintName: "ticket_numbers_pkey"}, entities.ErrNumberCollision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			assert.ErrorIs(t, got, tt.target)

			var pgErr *pgconn.PgError
			assert.True(t, errors.As(got, &pgErr), "driver error should stay in the chain")
		})
	}

	t.Run("other unique violations pass through", func(t *testing.T) {
		err := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		got := translateError(err)
		assert.NotErrorIs(t, got, entities.ErrNumberCollision)
		assert.Equal(t, error(err), got)
	})

	t.Run("non driver errors pass through", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, err, translateError(err))
	})
}
