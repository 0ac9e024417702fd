package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/domain/services"

	log "github.com/sirupsen/logrus"
)

// txServices bundles the domain services bound to one unit of work
type txServices struct {
	ledger  *services.TicketLedger
	credit  *services.CreditLedger
	machine *services.OrderStateMachine
}

func newTxServices(uow interfaces.UnitOfWork, allocator *services.NumberAllocator) *txServices {
	ledger := services.NewTicketLedger(uow.GiveawayRepository(), uow.TicketAssignmentRepository(), allocator)
	credit := services.NewCreditLedger(uow.UserRepository(), uow.CreditTransactionRepository(), uow.EventBus())
	machine := services.NewOrderStateMachine(
		uow.OrderRepository(),
		uow.TicketAssignmentRepository(),
		ledger,
		credit,
		uow.EventBus(),
	)
	return &txServices{
		ledger:  ledger,
		credit:  credit,
		machine: machine,
	}
}

// orderLookup locks and returns the order a transition applies to, or nil if unknown
type orderLookup func(ctx context.Context, orders interfaces.OrderRepository) (*entities.Order, error)

func byOrderID(id int64) orderLookup {
	return func(ctx context.Context, orders interfaces.OrderRepository) (*entities.Order, error) {
		return orders.GetByIDForUpdate(ctx, id)
	}
}

func byCheckoutID(checkoutID string) orderLookup {
	return func(ctx context.Context, orders interfaces.OrderRepository) (*entities.Order, error) {
		return orders.GetByCheckoutIDForUpdate(ctx, checkoutID)
	}
}

// transitionRequest is one trip through the order state machine
type transitionRequest struct {
	lookup  orderLookup
	to      entities.OrderStatus
	trigger entities.TransitionTrigger
	// guard, when set, is checked against the locked order; false skips the transition
	guard func(order *entities.Order) bool
}

// settler runs order transitions in their own unit of work with lock retry
type settler struct {
	uowFactory interfaces.UnitOfWorkFactory
	allocator  *services.NumberAllocator
	retry      RetryPolicy
}

// apply locks the order, runs the transition and commits. A nil result with a nil
// error means the order was unknown or the guard declined.
func (s *settler) apply(ctx context.Context, req transitionRequest) (*services.TransitionResult, error) {
	var result *services.TransitionResult
	err := s.retry.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.applyOnce(ctx, req)
		return err
	})
	return result, err
}

func (s *settler) applyOnce(ctx context.Context, req transitionRequest) (*services.TransitionResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	order, err := req.lookup(ctx, uow.OrderRepository())
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order == nil {
		return nil, nil
	}
	if req.guard != nil && !req.guard(order) {
		log.WithFields(log.Fields{
			"orderID": order.ID,
			"status":  order.Status,
			"trigger": req.trigger,
		}).Debug("Order no longer eligible, skipping transition")
		return nil, nil
	}

	txs := newTxServices(uow, s.allocator)
	result, err := txs.machine.Transition(ctx, order, req.to, req.trigger)
	if err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}

// isIgnorableTransition reports whether an error is a transition-validity violation
// that intake paths log and acknowledge
func isIgnorableTransition(err error) bool {
	return errors.Is(err, entities.ErrInvalidTransition)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
