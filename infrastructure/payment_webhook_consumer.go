package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raffle/application"
	"raffle/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

var (
	_ application.DedupCache = (*RedisDedupCache)(nil)
	_ application.DedupCache = (*MemoryDedupCache)(nil)
	_ PaymentEventHandler    = (*application.SettlementReconciler)(nil)
)

// PaymentEventHandler applies one payment result
type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, event application.PaymentEvent) (*application.SettlementOutcome, error)
}

// PaymentWebhookConsumer feeds gateway results published by the payment collaborator
// into the settlement reconciler
type PaymentWebhookConsumer struct {
	client     *NATSClient
	handler    PaymentEventHandler
	metrics    *observability.MetricsProvider
	maxDeliver int
}

// NewPaymentWebhookConsumer creates a new consumer
func NewPaymentWebhookConsumer(client *NATSClient, handler PaymentEventHandler) *PaymentWebhookConsumer {
	return &PaymentWebhookConsumer{
		client:     client,
		handler:    handler,
		metrics:    observability.GetMetrics(),
		maxDeliver: 5,
	}
}

// Start ensures the payment stream exists and subscribes to it
func (c *PaymentWebhookConsumer) Start(ctx context.Context) error {
	if err := c.client.EnsureStream(PaymentStream, []string{PaymentResultSubject}, 24*time.Hour); err != nil {
		return fmt.Errorf("failed to ensure payment stream: %w", err)
	}
	if err := c.client.Subscribe(PaymentResultSubject, c.maxDeliver, c.HandleMessage); err != nil {
		return err
	}

	log.WithField("subject", PaymentResultSubject).Info("Payment webhook consumer started")
	return nil
}

// HandleMessage decodes one delivery and runs it through the reconciler. Malformed
// payloads are acknowledged since redelivery cannot fix them.
func (c *PaymentWebhookConsumer) HandleMessage(ctx context.Context, data []byte) error {
	var event application.PaymentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.WithError(err).WithField("size", len(data)).Error("Discarding malformed payment event")
		c.metrics.RecordPaymentEvent(observability.PaymentOutcomeMalformed)
		return nil
	}
	if event.CheckoutID == "" {
		log.WithField("resultCode", event.ResultCode).Error("Discarding payment event without checkout id")
		c.metrics.RecordPaymentEvent(observability.PaymentOutcomeMalformed)
		return nil
	}

	outcome, err := c.handler.HandlePaymentEvent(ctx, event)
	if err != nil {
		c.metrics.RecordPaymentEvent(observability.PaymentOutcomeError)
		return fmt.Errorf("failed to handle payment event for %s: %w", event.CheckoutID, err)
	}

	switch {
	case outcome.Duplicate:
		c.metrics.RecordPaymentEvent(observability.PaymentOutcomeDuplicate)
	case outcome.Ignored:
		c.metrics.RecordPaymentEvent(observability.PaymentOutcomeIgnored)
	default:
		c.metrics.RecordPaymentEvent(observability.PaymentOutcomeApplied)
	}

	log.WithFields(log.Fields{
		"checkoutID": event.CheckoutID,
		"resultCode": event.ResultCode,
		"duplicate":  outcome.Duplicate,
		"ignored":    outcome.Ignored,
	}).Debug("Payment event acknowledged")
	return nil
}
