package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle/database"
	"raffle/domain/interfaces"
	"raffle/events"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                     *database.DB
	tx                     pgx.Tx
	ctx                    context.Context
	lockTimeout            time.Duration
	transactionalPublisher *events.TransactionalPublisher
	userRepo               interfaces.UserRepository
	giveawayRepo           interfaces.GiveawayRepository
	orderRepo              interfaces.OrderRepository
	ticketRepo             interfaces.TicketAssignmentRepository
	creditRepo             interfaces.CreditTransactionRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Events published inside a
// unit of work reach the publisher only after a successful commit.
func NewUnitOfWorkFactory(db *database.DB, publisher events.Publisher, lockTimeout time.Duration) interfaces.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:          db,
		publisher:   publisher,
		lockTimeout: lockTimeout,
	}
}

type unitOfWorkFactory struct {
	db          *database.DB
	publisher   events.Publisher
	lockTimeout time.Duration
}

func (f *unitOfWorkFactory) Create() interfaces.UnitOfWork {
	return &unitOfWork{
		db:                     f.db,
		lockTimeout:            f.lockTimeout,
		transactionalPublisher: events.NewTransactionalPublisher(f.publisher),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginWithLockTimeout(ctx, u.lockTimeout)
	if err != nil {
		return err
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.userRepo = newUserRepositoryWithTx(tx)
	u.giveawayRepo = newGiveawayRepositoryWithTx(tx)
	u.orderRepo = newOrderRepositoryWithTx(tx)
	u.ticketRepo = newTicketAssignmentRepositoryWithTx(tx)
	u.creditRepo = newCreditTransactionRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalPublisher.Discard()
		return fmt.Errorf("failed to commit transaction: %w", translateError(err))
	}

	// Flush pending events after successful commit
	u.transactionalPublisher.Flush(u.ctx)

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil

	// Discard pending events on rollback
	u.transactionalPublisher.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// GiveawayRepository returns the giveaway repository for this unit of work
func (u *unitOfWork) GiveawayRepository() interfaces.GiveawayRepository {
	if u.giveawayRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.giveawayRepo
}

// OrderRepository returns the order repository for this unit of work
func (u *unitOfWork) OrderRepository() interfaces.OrderRepository {
	if u.orderRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.orderRepo
}

// TicketAssignmentRepository returns the ticket ledger repository for this unit of work
func (u *unitOfWork) TicketAssignmentRepository() interfaces.TicketAssignmentRepository {
	if u.ticketRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ticketRepo
}

// CreditTransactionRepository returns the credit ledger repository for this unit of work
func (u *unitOfWork) CreditTransactionRepository() interfaces.CreditTransactionRepository {
	if u.creditRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.creditRepo
}

// EventBus returns the transactional publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	return u.transactionalPublisher
}
