package observability

// Metric name prefixes
const (
	MetricPrefix = "raffle"
)

// Metric names
const (
	// Order metrics
	OrdersSettledTotal    = MetricPrefix + ".orders.settled_total"
	TicketsAllocatedTotal = MetricPrefix + ".tickets.allocated_total"
	TicketsRevokedTotal   = MetricPrefix + ".tickets.revoked_total"

	// Payment metrics
	PaymentEventsTotal = MetricPrefix + ".payments.events_total"

	// Draw metrics
	WinnersDrawnTotal = MetricPrefix + ".draws.winners_total"

	// Credit metrics
	CreditTransactionsTotal = MetricPrefix + ".credit.transactions_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelStatus    = "status"
	LabelTrigger   = "trigger"
	LabelOutcome   = "outcome"
)

// Payment event outcomes
const (
	PaymentOutcomeApplied   = "applied"
	PaymentOutcomeDuplicate = "duplicate"
	PaymentOutcomeIgnored   = "ignored"
	PaymentOutcomeMalformed = "malformed"
	PaymentOutcomeError     = "error"
)
