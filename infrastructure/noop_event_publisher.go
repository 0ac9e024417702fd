package infrastructure

import (
	"raffle/events"

	log "github.com/sirupsen/logrus"
)

// NoopEventPublisher drops events. Used when no broker is configured and by admin commands.
type NoopEventPublisher struct{}

// NewNoopEventPublisher creates a new no-op event publisher
func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

// Publish logs the event and discards it
func (n *NoopEventPublisher) Publish(event events.Event) error {
	log.WithField("eventType", event.Type()).Debug("Dropping event, no broker configured")
	return nil
}
