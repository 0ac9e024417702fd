package application

import (
	"context"
	"fmt"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/domain/services"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// AdminActions are operator overrides. Each runs the same ledgers and state machine
// as the automated paths, but illegal requests are returned as errors.
type AdminActions struct {
	uowFactory interfaces.UnitOfWorkFactory
	allocator  *services.NumberAllocator
	rng        services.RandomSource
	retry      RetryPolicy
	settler    *settler
	now        func() time.Time
}

// NewAdminActions creates the admin action set. rng drives winner draws; nil uses the process generator.
func NewAdminActions(uowFactory interfaces.UnitOfWorkFactory, allocator *services.NumberAllocator, rng services.RandomSource, retry RetryPolicy) *AdminActions {
	return &AdminActions{
		uowFactory: uowFactory,
		allocator:  allocator,
		rng:        rng,
		retry:      retry,
		settler:    &settler{uowFactory: uowFactory, allocator: allocator, retry: retry},
		now:        utcNow,
	}
}

// CompleteOrder marks an order as paid and allocates its tickets
func (a *AdminActions) CompleteOrder(ctx context.Context, orderID int64) (*services.TransitionResult, error) {
	return a.transition(ctx, orderID, entities.OrderStatusCompleted, entities.TriggerAdminComplete)
}

// FailOrder fails an order, revoking tickets and refunding credit
func (a *AdminActions) FailOrder(ctx context.Context, orderID int64) (*services.TransitionResult, error) {
	return a.transition(ctx, orderID, entities.OrderStatusFailed, entities.TriggerAdminFail)
}

func (a *AdminActions) transition(ctx context.Context, orderID int64, to entities.OrderStatus, trigger entities.TransitionTrigger) (*services.TransitionResult, error) {
	result, err := a.settler.apply(ctx, transitionRequest{
		lookup:  byOrderID(orderID),
		to:      to,
		trigger: trigger,
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrOrderNotFound, orderID)
	}

	log.WithFields(log.Fields{
		"orderID": orderID,
		"from":    result.From,
		"to":      result.To,
		"changed": result.Changed,
	}).Info("Admin order transition")
	return result, nil
}

// ReassignTickets re-runs allocation for every cart line of a live order
func (a *AdminActions) ReassignTickets(ctx context.Context, orderID int64, strategy services.ReassignStrategy) ([]*entities.TicketAssignment, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("unknown reassign strategy %q", strategy)
	}

	var assignments []*entities.TicketAssignment
	err := a.withLockedOrder(ctx, orderID, func(ctx context.Context, uow interfaces.UnitOfWork, order *entities.Order) error {
		var err error
		assignments, err = newTxServices(uow, a.allocator).ledger.Reassign(ctx, order, strategy)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"orderID":  orderID,
		"strategy": strategy,
		"lines":    len(assignments),
	}).Info("Tickets reassigned")
	return assignments, nil
}

// RemoveTickets releases specific numbers from an order
func (a *AdminActions) RemoveTickets(ctx context.Context, orderID int64, numbers []int) ([]*entities.TicketAssignment, error) {
	if len(numbers) == 0 {
		return nil, fmt.Errorf("no ticket numbers given")
	}

	var changed []*entities.TicketAssignment
	err := a.withLockedOrder(ctx, orderID, func(ctx context.Context, uow interfaces.UnitOfWork, order *entities.Order) error {
		var err error
		changed, err = newTxServices(uow, a.allocator).ledger.RemoveNumbers(ctx, order.ID, numbers)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"orderID": orderID,
		"numbers": numbers,
		"rows":    len(changed),
	}).Info("Tickets removed")
	return changed, nil
}

// withLockedOrder runs fn holding the settlement lock of an order that still holds tickets
func (a *AdminActions) withLockedOrder(ctx context.Context, orderID int64, fn func(ctx context.Context, uow interfaces.UnitOfWork, order *entities.Order) error) error {
	return a.retry.Run(ctx, func(ctx context.Context) error {
		uow := a.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		order, err := uow.OrderRepository().GetByIDForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if order == nil {
			return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, orderID)
		}
		if !order.Status.HoldsTickets() {
			return fmt.Errorf("%w: order %d is %s", entities.ErrInvalidTransition, orderID, order.Status)
		}

		if err := fn(ctx, uow, order); err != nil {
			return err
		}
		return uow.Commit()
	})
}

// AddCredit grants wallet credit
func (a *AdminActions) AddCredit(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*entities.CreditTransaction, error) {
	return a.moveCredit(ctx, entities.CreditTransactionAdd, services.CreditChange{
		UserID:      userID,
		Amount:      amount,
		Kind:        entities.CreditKindManual,
		Description: description,
	})
}

// DeductCredit takes wallet credit away, failing with ErrInsufficientCredit below zero
func (a *AdminActions) DeductCredit(ctx context.Context, userID int64, amount decimal.Decimal, description string) (*entities.CreditTransaction, error) {
	return a.moveCredit(ctx, entities.CreditTransactionDeduct, services.CreditChange{
		UserID:      userID,
		Amount:      amount,
		Kind:        entities.CreditKindManual,
		Description: description,
	})
}

func (a *AdminActions) moveCredit(ctx context.Context, txType entities.CreditTransactionType, change services.CreditChange) (*entities.CreditTransaction, error) {
	var entry *entities.CreditTransaction
	err := a.retry.Run(ctx, func(ctx context.Context) error {
		uow := a.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		credit := newTxServices(uow, a.allocator).credit
		var err error
		if txType == entities.CreditTransactionDeduct {
			entry, err = credit.Deduct(ctx, change)
		} else {
			entry, err = credit.Add(ctx, change)
		}
		if err != nil {
			return err
		}
		return uow.Commit()
	})
	return entry, err
}

// CreditBalance returns the materialized balance and the ledger sum for a user
func (a *AdminActions) CreditBalance(ctx context.Context, userID int64) (balance, ledgerSum decimal.Decimal, err error) {
	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return newTxServices(uow, a.allocator).credit.Balance(ctx, userID)
}

// CreateUser registers a customer with an empty wallet
func (a *AdminActions) CreateUser(ctx context.Context, email string) (*entities.User, error) {
	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().Create(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// CreateGiveaway adds a giveaway to the catalog
func (a *AdminActions) CreateGiveaway(ctx context.Context, giveaway *entities.Giveaway) error {
	if giveaway.TicketsTotal < 0 || giveaway.TicketsPerUser < 0 {
		return fmt.Errorf("%w: ticket limits cannot be negative", entities.ErrInvalidAmount)
	}
	if giveaway.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", entities.ErrInvalidAmount)
	}

	uow := a.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GiveawayRepository().Create(ctx, giveaway); err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	return uow.Commit()
}

// DrawWinners draws a closed giveaway now, regardless of its auto-draw setting
func (a *AdminActions) DrawWinners(ctx context.Context, giveawayID int64) (*services.DrawResult, error) {
	var result *services.DrawResult
	err := a.retry.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = drawGiveaway(ctx, a.uowFactory, a.rng, giveawayID, a.now())
		return err
	})
	return result, err
}

// drawGiveaway runs one draw in its own unit of work
func drawGiveaway(ctx context.Context, uowFactory interfaces.UnitOfWorkFactory, rng services.RandomSource, giveawayID int64, now time.Time) (*services.DrawResult, error) {
	uow := uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	drawService := services.NewWinnerDrawService(
		uow.GiveawayRepository(),
		uow.TicketAssignmentRepository(),
		uow.EventBus(),
		rng,
	)
	result, err := drawService.Draw(ctx, giveawayID, now)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
