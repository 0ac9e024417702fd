package services

import (
	"testing"

	"raffle/domain/entities"

	"github.com/stretchr/testify/assert"
)

func TestMapPaymentResult(t *testing.T) {
	risk := func(score int) *int { return &score }

	tests := []struct {
		name        string
		code        string
		payload     PaymentPayload
		wantStatus  entities.OrderStatus
		wantTrigger entities.TransitionTrigger
	}{
		{"success", "000.000.000", PaymentPayload{}, entities.OrderStatusCompleted, entities.TriggerPaymentSuccess},
		{"success test mode", "000.100.110", PaymentPayload{}, entities.OrderStatusCompleted, entities.TriggerPaymentSuccess},
		{"success 3ds", "000.300.000", PaymentPayload{}, entities.OrderStatusCompleted, entities.TriggerPaymentSuccess},
		{"success after review", "000.400.110", PaymentPayload{}, entities.OrderStatusCompleted, entities.TriggerPaymentSuccess},
		{"manual review", "000.400.000", PaymentPayload{}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"manual review 100", "000.400.100", PaymentPayload{}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"awaiting capture", "000.200.000", PaymentPayload{}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"waiting for bank", "800.400.500", PaymentPayload{}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"waiting for confirmation", "100.400.500", PaymentPayload{}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"session expired", "200.300.404", PaymentPayload{}, entities.OrderStatusFailed, entities.TriggerTimeout},
		{"declined", "800.100.151", PaymentPayload{}, entities.OrderStatusFailed, entities.TriggerPaymentFailure},
		{"3ds rejected review code", "000.400.030", PaymentPayload{}, entities.OrderStatusFailed, entities.TriggerPaymentFailure},
		{"empty code", "", PaymentPayload{}, entities.OrderStatusFailed, entities.TriggerPaymentFailure},
		{"garbage", "not-a-code", PaymentPayload{}, entities.OrderStatusFailed, entities.TriggerPaymentFailure},
		{"chargeback code", "000.100.200", PaymentPayload{}, entities.OrderStatusFailed, entities.TriggerChargeback},
		{"reversal flag", "000.000.000", PaymentPayload{Flags: []string{"reversal"}}, entities.OrderStatusFailed, entities.TriggerChargeback},
		{"hold flag beats success", "000.000.000", PaymentPayload{Flags: []string{"HOLD"}}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"review flag", "800.100.151", PaymentPayload{Flags: []string{" review "}}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"high risk", "000.000.000", PaymentPayload{RiskScore: risk(81)}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"risk at threshold", "000.000.000", PaymentPayload{RiskScore: risk(80)}, entities.OrderStatusCompleted, entities.TriggerPaymentSuccess},
		{"3ds challenge", "000.000.000", PaymentPayload{ThreeDSecureStatus: "CHALLENGE"}, entities.OrderStatusPending, entities.TriggerPaymentPending},
		{"3ds authenticated", "000.000.000", PaymentPayload{ThreeDSecureStatus: "Y"}, entities.OrderStatusCompleted, entities.TriggerPaymentSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := MapPaymentResult(tt.code, tt.payload)
			assert.Equal(t, tt.wantStatus, decision.Status)
			assert.Equal(t, tt.wantTrigger, decision.Trigger)
		})
	}
}

func TestPaymentDecision_IsReversal(t *testing.T) {
	assert.True(t, MapPaymentResult("000.100.201", PaymentPayload{}).IsReversal())
	assert.False(t, MapPaymentResult("800.100.151", PaymentPayload{}).IsReversal())
}
