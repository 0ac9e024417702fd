package entities

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsValid returns true if the status is one of the known order statuses
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPending, OrderStatusCompleted, OrderStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for completed and failed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// HoldsTickets returns true if orders in this status keep their ticket numbers reserved
func (s OrderStatus) HoldsTickets() bool {
	return s == OrderStatusCreated || s == OrderStatusPending || s == OrderStatusCompleted
}

// String returns the string representation of the status
func (s OrderStatus) String() string {
	return string(s)
}

// TransitionTrigger identifies what caused an order status change
type TransitionTrigger string

const (
	TriggerCheckoutSessionStarted TransitionTrigger = "checkout_session_started"
	TriggerZeroTotal              TransitionTrigger = "zero_total"
	TriggerPaymentSuccess         TransitionTrigger = "payment_success"
	TriggerPaymentFailure         TransitionTrigger = "payment_failure"
	TriggerPaymentPending         TransitionTrigger = "payment_pending"
	TriggerTimeout                TransitionTrigger = "timeout"
	TriggerChargeback             TransitionTrigger = "chargeback"
	TriggerAdminComplete          TransitionTrigger = "admin_complete"
	TriggerAdminFail              TransitionTrigger = "admin_fail"
)

// IsAdmin returns true for operator-initiated triggers
func (t TransitionTrigger) IsAdmin() bool {
	return t == TriggerAdminComplete || t == TriggerAdminFail
}
