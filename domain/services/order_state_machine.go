package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type transitionRule struct {
	from     entities.OrderStatus
	to       entities.OrderStatus
	triggers []entities.TransitionTrigger
}

// transitionTable lists every legal edge. failed has no outgoing edges.
var transitionTable = []transitionRule{
	{
		from:     entities.OrderStatusCreated,
		to:       entities.OrderStatusPending,
		triggers: []entities.TransitionTrigger{entities.TriggerCheckoutSessionStarted, entities.TriggerPaymentPending},
	},
	{
		from:     entities.OrderStatusCreated,
		to:       entities.OrderStatusCompleted,
		triggers: []entities.TransitionTrigger{entities.TriggerZeroTotal, entities.TriggerPaymentSuccess, entities.TriggerAdminComplete},
	},
	{
		from:     entities.OrderStatusPending,
		to:       entities.OrderStatusCompleted,
		triggers: []entities.TransitionTrigger{entities.TriggerZeroTotal, entities.TriggerPaymentSuccess, entities.TriggerAdminComplete},
	},
	{
		from:     entities.OrderStatusCreated,
		to:       entities.OrderStatusFailed,
		triggers: []entities.TransitionTrigger{entities.TriggerTimeout, entities.TriggerPaymentFailure, entities.TriggerAdminFail},
	},
	{
		from:     entities.OrderStatusPending,
		to:       entities.OrderStatusFailed,
		triggers: []entities.TransitionTrigger{entities.TriggerTimeout, entities.TriggerPaymentFailure, entities.TriggerChargeback, entities.TriggerAdminFail},
	},
	{
		from:     entities.OrderStatusCompleted,
		to:       entities.OrderStatusFailed,
		triggers: []entities.TransitionTrigger{entities.TriggerChargeback, entities.TriggerAdminFail},
	},
}

// CanTransition reports whether any trigger moves an order from one status to another
func CanTransition(from, to entities.OrderStatus) bool {
	for _, rule := range transitionTable {
		if rule.from == from && rule.to == to {
			return true
		}
	}
	return false
}

// IsTransitionAllowed reports whether the trigger moves an order from one status to another
func IsTransitionAllowed(from, to entities.OrderStatus, trigger entities.TransitionTrigger) bool {
	for _, rule := range transitionTable {
		if rule.from == from && rule.to == to {
			return slices.Contains(rule.triggers, trigger)
		}
	}
	return false
}

// TransitionResult describes the outcome of a transition attempt
type TransitionResult struct {
	Order     *entities.Order
	From      entities.OrderStatus
	To        entities.OrderStatus
	Trigger   entities.TransitionTrigger
	Changed   bool
	Allocated []*entities.TicketAssignment
	Revoked   []*entities.TicketAssignment
	Refund    *entities.CreditTransaction
}

// OrderStateMachine applies status transitions and their side effects. Callers hold
// the order row lock for the duration of Transition. It is the only component that
// emits settlement notifications.
type OrderStateMachine struct {
	orderRepo  interfaces.OrderRepository
	ticketRepo interfaces.TicketAssignmentRepository
	ledger     *TicketLedger
	credit     *CreditLedger
	publisher  interfaces.EventPublisher
	now        func() time.Time
}

// NewOrderStateMachine creates a new order state machine
func NewOrderStateMachine(
	orderRepo interfaces.OrderRepository,
	ticketRepo interfaces.TicketAssignmentRepository,
	ledger *TicketLedger,
	credit *CreditLedger,
	publisher interfaces.EventPublisher,
) *OrderStateMachine {
	return &OrderStateMachine{
		orderRepo:  orderRepo,
		ticketRepo: ticketRepo,
		ledger:     ledger,
		credit:     credit,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Transition moves the order to the target status. A transition into the current
// status is a no-op with Changed=false. Illegal edges return ErrInvalidTransition
// without touching state.
func (m *OrderStateMachine) Transition(ctx context.Context, order *entities.Order, to entities.OrderStatus, trigger entities.TransitionTrigger) (*TransitionResult, error) {
	result := &TransitionResult{
		Order:   order,
		From:    order.Status,
		To:      to,
		Trigger: trigger,
	}

	if order.Status == to {
		log.WithFields(log.Fields{
			"orderID": order.ID,
			"status":  to,
			"trigger": trigger,
		}).Info("Order already in target status, skipping")
		return result, nil
	}

	if !IsTransitionAllowed(order.Status, to, trigger) {
		return result, fmt.Errorf("%w: order %d %s -> %s (%s)", entities.ErrInvalidTransition, order.ID, order.Status, to, trigger)
	}

	if trigger.IsAdmin() {
		log.WithFields(log.Fields{
			"orderID": order.ID,
			"from":    order.Status,
			"to":      to,
		}).Warn("Operator override of order status")
	}

	switch to {
	case entities.OrderStatusCompleted:
		allocated, err := m.allocateOrder(ctx, order)
		if err != nil {
			return nil, err
		}
		result.Allocated = allocated

	case entities.OrderStatusFailed:
		revoked, err := m.ledger.Revoke(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		result.Revoked = revoked

		refund, err := m.credit.RefundOrder(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("failed to refund order credit: %w", err)
		}
		result.Refund = refund
	}

	var settledAt *time.Time
	if to.IsTerminal() {
		now := m.now()
		settledAt = &now
	}
	if err := m.orderRepo.UpdateStatus(ctx, order.ID, to, settledAt); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = to
	order.SettledAt = settledAt
	result.Changed = true

	if to.IsTerminal() {
		if err := m.notifySettled(ctx, result); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"orderID": order.ID,
		"from":    result.From,
		"to":      to,
		"trigger": trigger,
	}).Info("Order transitioned")

	return result, nil
}

// allocateOrder reserves numbers for every cart line that has none yet
func (m *OrderStateMachine) allocateOrder(ctx context.Context, order *entities.Order) ([]*entities.TicketAssignment, error) {
	var allocated []*entities.TicketAssignment
	for _, line := range order.CartLinesByGiveaway() {
		existing, err := m.ticketRepo.GetByOrderAndGiveaway(ctx, order.ID, line.GiveawayID)
		if err != nil {
			return nil, fmt.Errorf("failed to get existing tickets: %w", err)
		}
		if existing != nil && existing.IsAllocated() {
			continue
		}

		assignment, err := m.ledger.Reserve(ctx, ReserveRequest{
			OrderID:    order.ID,
			UserID:     order.UserID,
			GiveawayID: line.GiveawayID,
			Amount:     line.Amount,
			Preferred:  line.Numbers,
		})
		if err != nil {
			return nil, err
		}
		if !assignment.IsFinalized() {
			return nil, fmt.Errorf("order %d giveaway %d: %d numbers allocated for %d tickets",
				order.ID, line.GiveawayID, len(assignment.Numbers), assignment.Amount)
		}
		allocated = append(allocated, assignment)
	}
	return allocated, nil
}

func (m *OrderStateMachine) notifySettled(ctx context.Context, result *TransitionResult) error {
	if m.publisher == nil {
		return nil
	}

	tickets := make(map[int64][]int)
	if result.To == entities.OrderStatusCompleted {
		assignments, err := m.ticketRepo.GetByOrder(ctx, result.Order.ID)
		if err != nil {
			return fmt.Errorf("failed to get order tickets: %w", err)
		}
		for _, a := range assignments {
			tickets[a.GiveawayID] = a.SortedNumbers()
		}
	} else {
		for _, a := range result.Revoked {
			tickets[a.GiveawayID] = a.SortedNumbers()
		}
	}

	refunded := decimal.Zero
	if result.Refund != nil {
		refunded = result.Refund.Amount
	}

	if err := m.publisher.Publish(events.OrderSettledEvent{
		OrderID:    result.Order.ID,
		UserID:     result.Order.UserID,
		FromStatus: result.From,
		Status:     result.To,
		Trigger:    result.Trigger,
		Tickets:    tickets,
		Refunded:   refunded,
	}); err != nil {
		log.WithError(err).WithField("orderID", result.Order.ID).Warn("Failed to publish order settled event")
	}
	return nil
}
