package repository

import (
	"errors"
	"fmt"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgCodeUniqueViolation      = "23505"
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"

	ticketNumbersPrimaryKey = "ticket_numbers_pkey"
)

// translateError maps driver errors onto domain errors, keeping the original in the chain
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgCodeLockNotAvailable, pgCodeDeadlockDetected, pgCodeSerializationFailure:
		return fmt.Errorf("%w: %w", entities.ErrLockTimeout, err)
	case pgCodeUniqueViolation:
		if pgErr.ConstraintName == ticketNumbersPrimaryKey {
			return fmt.Errorf("%w: %w", entities.ErrNumberCollision, err)
		}
	}
	return err
}
