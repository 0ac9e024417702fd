package infrastructure

import (
	"fmt"

	"raffle/events"
)

// PaymentResultSubject is where the payment collaborator publishes decrypted webhook results
const PaymentResultSubject = "raffle.payments.result"

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeOrderReceived:
		return "raffle.orders.received"
	case events.EventTypeOrderSettled:
		return "raffle.orders.settled"
	case events.EventTypeWinnersDrawn:
		return "raffle.giveaways.winners_drawn"
	case events.EventTypeCreditChanged:
		return "raffle.credit.changed"
	default:
		return fmt.Sprintf("raffle.unknown.%s", event.Type())
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"raffle.orders.received",
		"raffle.orders.settled",
		"raffle.giveaways.winners_drawn",
		"raffle.credit.changed",
	}
}
