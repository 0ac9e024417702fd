package application

import (
	"context"
	"fmt"
	"time"

	"raffle/domain/entities"
	"raffle/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// PendingOrderSweeper fails orders that never received a terminal payment signal
type PendingOrderSweeper struct {
	uowFactory interfaces.UnitOfWorkFactory
	reconciler *SettlementReconciler
	timeout    time.Duration
	interval   time.Duration
	batchSize  int
	now        func() time.Time
}

// NewPendingOrderSweeper creates a sweeper. Orders untouched for longer than timeout
// are polled through the reconciler's gateway when one is configured, else failed.
func NewPendingOrderSweeper(uowFactory interfaces.UnitOfWorkFactory, reconciler *SettlementReconciler, timeout, interval time.Duration, batchSize int) *PendingOrderSweeper {
	if batchSize < 1 {
		batchSize = 100
	}
	return &PendingOrderSweeper{
		uowFactory: uowFactory,
		reconciler: reconciler,
		timeout:    timeout,
		interval:   interval,
		batchSize:  batchSize,
		now:        utcNow,
	}
}

// Start begins the sweep loop and returns a function that stops it
func (s *PendingOrderSweeper) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithFields(log.Fields{
			"interval": s.interval,
			"timeout":  s.timeout,
		}).Info("Pending order sweeper started")

		for {
			if _, err := s.SweepOnce(ctx); err != nil {
				log.WithError(err).Error("Error sweeping pending orders")
			}

			select {
			case <-ctx.Done():
				log.Info("Pending order sweeper shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Pending order sweeper shutting down (stop requested)...")
				return
			case <-time.After(s.interval):
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// SweepOnce processes one batch of stale orders and returns how many were failed
func (s *PendingOrderSweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.timeout)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	stale, err := uow.OrderRepository().GetStale(ctx,
		[]entities.OrderStatus{entities.OrderStatusCreated, entities.OrderStatusPending},
		cutoff, s.batchSize)
	uow.Rollback()
	if err != nil {
		return 0, fmt.Errorf("failed to get stale orders: %w", err)
	}

	if len(stale) == 0 {
		log.Debug("No stale orders to sweep")
		return 0, nil
	}

	var failedCount, skippedCount, errorCount int
	for _, order := range stale {
		failed, err := s.sweepOrder(ctx, order, cutoff)
		switch {
		case err != nil:
			log.WithFields(log.Fields{
				"orderID": order.ID,
				"error":   err,
			}).Error("Failed to sweep order")
			errorCount++
		case failed:
			failedCount++
		default:
			skippedCount++
		}
	}

	log.WithFields(log.Fields{
		"stale":   len(stale),
		"failed":  failedCount,
		"skipped": skippedCount,
		"errors":  errorCount,
	}).Info("Completed pending order sweep")

	return failedCount, nil
}

// sweepOrder asks the gateway first when the order has a session. A fetch error leaves
// the order for a later sweep; a non-terminal answer does not stop the timeout.
func (s *PendingOrderSweeper) sweepOrder(ctx context.Context, order *entities.Order, cutoff time.Time) (bool, error) {
	if s.reconciler.HasGateway() && order.CheckoutID != nil {
		outcome, err := s.reconciler.PollOrder(ctx, order)
		if err != nil {
			log.WithFields(log.Fields{
				"orderID": order.ID,
				"error":   err,
			}).Warn("Payment status poll failed, leaving order as is")
			return false, nil
		}
		if outcome.Result != nil && outcome.Result.To.IsTerminal() {
			return outcome.Result.Changed && outcome.Result.To == entities.OrderStatusFailed, nil
		}
	}

	result, err := s.reconciler.settler.apply(ctx, transitionRequest{
		lookup:  byOrderID(order.ID),
		to:      entities.OrderStatusFailed,
		trigger: entities.TriggerTimeout,
		guard: func(locked *entities.Order) bool {
			return !locked.Status.IsTerminal() && locked.UpdatedAt.Before(cutoff)
		},
	})
	if err != nil {
		if isIgnorableTransition(err) {
			return false, nil
		}
		return false, err
	}
	if result == nil || !result.Changed {
		return false, nil
	}

	log.WithFields(log.Fields{
		"orderID": order.ID,
		"from":    result.From,
	}).Info("Abandoned order failed")
	return true, nil
}
