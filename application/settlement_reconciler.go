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

// ErrNoPaymentGateway is returned by PollOrder when no gateway is configured
var ErrNoPaymentGateway = errors.New("no payment gateway configured")

// PaymentEvent is one authenticated payment result delivered by the gateway
type PaymentEvent struct {
	CheckoutID string                  `json:"checkout_id"`
	ResultCode string                  `json:"result_code"`
	Payload    services.PaymentPayload `json:"payload"`
}

// DedupKey identifies the event for duplicate suppression
func (e PaymentEvent) DedupKey() string {
	return e.CheckoutID + ":" + e.ResultCode
}

// DedupCache remembers recently processed event keys
type DedupCache interface {
	// Claim stores the key for ttl and returns false if it was already present
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets a key so a redelivery is processed again
	Release(ctx context.Context, key string) error
}

// PaymentGateway is queried for the current result of a checkout session
type PaymentGateway interface {
	FetchStatus(ctx context.Context, checkoutID string) (*PaymentEvent, error)
}

// SettlementOutcome reports what the reconciler did with an event
type SettlementOutcome struct {
	Decision  services.PaymentDecision
	Result    *services.TransitionResult
	Duplicate bool
	// Ignored is set when the order was unknown or the transition was not legal
	Ignored bool
}

// SettlementReconciler maps payment results onto order transitions
type SettlementReconciler struct {
	settler     *settler
	dedup       DedupCache
	dedupWindow time.Duration
	gateway     PaymentGateway
}

// NewSettlementReconciler creates a new reconciler. dedup and gateway may be nil.
func NewSettlementReconciler(
	uowFactory interfaces.UnitOfWorkFactory,
	allocator *services.NumberAllocator,
	retry RetryPolicy,
	dedup DedupCache,
	dedupWindow time.Duration,
	gateway PaymentGateway,
) *SettlementReconciler {
	return &SettlementReconciler{
		settler:     &settler{uowFactory: uowFactory, allocator: allocator, retry: retry},
		dedup:       dedup,
		dedupWindow: dedupWindow,
		gateway:     gateway,
	}
}

// HasGateway returns true if orders can be polled
func (r *SettlementReconciler) HasGateway() bool {
	return r.gateway != nil
}

// HandlePaymentEvent applies one inbound payment result. Duplicates within the dedup
// window, unknown checkouts and illegal transitions are acknowledged without error.
// A returned error means the event should be redelivered.
func (r *SettlementReconciler) HandlePaymentEvent(ctx context.Context, event PaymentEvent) (*SettlementOutcome, error) {
	if event.CheckoutID == "" {
		return nil, fmt.Errorf("payment event has no checkout id")
	}

	fields := log.Fields{
		"checkoutID": event.CheckoutID,
		"resultCode": event.ResultCode,
	}

	key := event.DedupKey()
	claimed := false
	if r.dedup != nil {
		ok, err := r.dedup.Claim(ctx, key, r.dedupWindow)
		if err != nil {
			log.WithFields(fields).WithError(err).Warn("Dedup cache unavailable, processing event anyway")
		} else if !ok {
			log.WithFields(fields).Info("Duplicate payment event discarded")
			return &SettlementOutcome{Duplicate: true}, nil
		} else {
			claimed = true
		}
	}

	decision := services.MapPaymentResult(event.ResultCode, event.Payload)
	outcome, err := r.apply(ctx, byCheckoutID(event.CheckoutID), decision, fields)
	if err != nil && claimed {
		if relErr := r.dedup.Release(ctx, key); relErr != nil {
			log.WithFields(fields).WithError(relErr).Warn("Failed to release dedup key")
		}
	}
	return outcome, err
}

// PollOrder asks the gateway for the order's current payment result and applies it.
// Gateway errors leave the order untouched.
func (r *SettlementReconciler) PollOrder(ctx context.Context, order *entities.Order) (*SettlementOutcome, error) {
	if r.gateway == nil {
		return nil, ErrNoPaymentGateway
	}
	if order.CheckoutID == nil {
		return nil, fmt.Errorf("order %d has no checkout session", order.ID)
	}

	event, err := r.gateway.FetchStatus(ctx, *order.CheckoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment status: %w", err)
	}

	fields := log.Fields{
		"orderID":    order.ID,
		"checkoutID": *order.CheckoutID,
		"resultCode": event.ResultCode,
	}
	decision := services.MapPaymentResult(event.ResultCode, event.Payload)
	return r.apply(ctx, byOrderID(order.ID), decision, fields)
}

func (r *SettlementReconciler) apply(ctx context.Context, lookup orderLookup, decision services.PaymentDecision, fields log.Fields) (*SettlementOutcome, error) {
	fields["targetStatus"] = decision.Status
	fields["trigger"] = decision.Trigger

	outcome := &SettlementOutcome{Decision: decision}
	result, err := r.settler.apply(ctx, transitionRequest{
		lookup:  lookup,
		to:      decision.Status,
		trigger: decision.Trigger,
	})
	if err != nil {
		if isIgnorableTransition(err) {
			log.WithFields(fields).WithError(err).Warn("Payment result does not apply to order, ignoring")
			outcome.Ignored = true
			return outcome, nil
		}
		log.WithFields(fields).WithError(err).Error("Failed to settle order")
		return nil, err
	}
	if result == nil {
		log.WithFields(fields).Warn("No order for checkout session, acknowledging")
		outcome.Ignored = true
		return outcome, nil
	}

	outcome.Result = result
	fields["orderID"] = result.Order.ID
	fields["changed"] = result.Changed
	if decision.IsReversal() && result.Changed {
		log.WithFields(fields).Warn("Payment reversed, order failed")
	}
	log.WithFields(fields).Info("Payment result applied")
	return outcome, nil
}
