package services

import (
	"regexp"
	"strings"

	"raffle/domain/entities"
)

// HighRiskScore is the risk score above which a payment is held for review
const HighRiskScore = 80

// Result code families of the payment gateway
var (
	successCodePattern  = regexp.MustCompile(`^(000\.000\.|000\.100\.1|000\.[36]|000\.400\.1[12]0)`)
	reviewCodePattern   = regexp.MustCompile(`^(000\.400\.0[^3]|000\.400\.100)`)
	pendingCodePattern  = regexp.MustCompile(`^(000\.200)`)
	waitingCodePattern  = regexp.MustCompile(`^(800\.400\.5|100\.400\.500)`)
	expiredCodePattern  = regexp.MustCompile(`^(200\.300\.404|900\.100\.300)`)
	reversalCodePattern = regexp.MustCompile(`^(000\.100\.2)`)
)

var (
	holdFlags     = []string{"HOLD", "PENDING", "REVIEW"}
	reversalFlags = []string{"CHARGEBACK", "REVERSAL"}
	// 3-D Secure states where the cardholder has not finished authentication
	pendingThreeDSStates = []string{"PENDING", "CHALLENGE", "C"}
)

// PaymentPayload is the contextual part of a gateway result
type PaymentPayload struct {
	RiskScore          *int     `json:"risk_score,omitempty"`
	ThreeDSecureStatus string   `json:"three_d_secure_status,omitempty"`
	Flags              []string `json:"flags,omitempty"`
}

// PaymentDecision is the status a gateway result maps to
type PaymentDecision struct {
	Status  entities.OrderStatus
	Trigger entities.TransitionTrigger
	Reason  string
}

// IsReversal returns true when the decision reverses an earlier payment
func (d PaymentDecision) IsReversal() bool {
	return d.Trigger == entities.TriggerChargeback
}

// MapPaymentResult classifies a gateway result code plus payload. Unrecognized codes fail closed.
func MapPaymentResult(resultCode string, payload PaymentPayload) PaymentDecision {
	code := strings.TrimSpace(resultCode)

	switch {
	case hasFlag(payload.Flags, reversalFlags) || reversalCodePattern.MatchString(code):
		return PaymentDecision{Status: entities.OrderStatusFailed, Trigger: entities.TriggerChargeback, Reason: "reversal"}
	case hasFlag(payload.Flags, holdFlags):
		return PaymentDecision{Status: entities.OrderStatusPending, Trigger: entities.TriggerPaymentPending, Reason: "hold flag"}
	case payload.RiskScore != nil && *payload.RiskScore > HighRiskScore:
		return PaymentDecision{Status: entities.OrderStatusPending, Trigger: entities.TriggerPaymentPending, Reason: "risk score"}
	case hasFlag([]string{payload.ThreeDSecureStatus}, pendingThreeDSStates):
		return PaymentDecision{Status: entities.OrderStatusPending, Trigger: entities.TriggerPaymentPending, Reason: "3-D Secure pending"}
	case successCodePattern.MatchString(code):
		return PaymentDecision{Status: entities.OrderStatusCompleted, Trigger: entities.TriggerPaymentSuccess, Reason: "success"}
	case reviewCodePattern.MatchString(code):
		return PaymentDecision{Status: entities.OrderStatusPending, Trigger: entities.TriggerPaymentPending, Reason: "manual review"}
	case pendingCodePattern.MatchString(code), waitingCodePattern.MatchString(code):
		return PaymentDecision{Status: entities.OrderStatusPending, Trigger: entities.TriggerPaymentPending, Reason: "awaiting completion"}
	case expiredCodePattern.MatchString(code):
		return PaymentDecision{Status: entities.OrderStatusFailed, Trigger: entities.TriggerTimeout, Reason: "session expired"}
	default:
		return PaymentDecision{Status: entities.OrderStatusFailed, Trigger: entities.TriggerPaymentFailure, Reason: "rejected"}
	}
}

func hasFlag(flags []string, wanted []string) bool {
	for _, flag := range flags {
		flag = strings.ToUpper(strings.TrimSpace(flag))
		for _, w := range wanted {
			if flag == w {
				return true
			}
		}
	}
	return false
}
