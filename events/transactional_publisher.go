package events

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// TransactionalPublisher holds events until the owning transaction commits.
// Flush forwards them to the real publisher, Discard drops them on rollback.
type TransactionalPublisher struct {
	real    Publisher
	pending []Event
}

// NewTransactionalPublisher creates a publisher that buffers until Flush
func NewTransactionalPublisher(real Publisher) *TransactionalPublisher {
	return &TransactionalPublisher{real: real}
}

// Publish stores an event in the pending queue
func (p *TransactionalPublisher) Publish(event Event) error {
	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"pendingCount": len(p.pending),
	}).Debug("Adding event to transactional publisher pending queue")

	p.pending = append(p.pending, event)
	return nil
}

// Pending returns the number of buffered events
func (p *TransactionalPublisher) Pending() int {
	return len(p.pending)
}

// Flush publishes all pending events. Called after a successful commit;
// delivery failures are logged and do not stop the remaining events.
func (p *TransactionalPublisher) Flush(ctx context.Context) {
	log.WithFields(log.Fields{
		"pendingEventCount": len(p.pending),
	}).Debug("Flushing pending events")

	pending := p.pending
	p.pending = nil

	if p.real == nil {
		return
	}
	for _, event := range pending {
		if err := p.real.Publish(event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
				"error":     err,
			}).Error("Failed to publish event during flush")
		}
	}
}

// Discard clears all pending events without publishing them
func (p *TransactionalPublisher) Discard() {
	if len(p.pending) > 0 {
		log.WithField("discardedEventCount", len(p.pending)).Debug("Discarding pending events")
	}
	p.pending = nil
}
