package infrastructure

import (
	"testing"

	"raffle/events"

	"github.com/stretchr/testify/assert"
)

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	tests := []struct {
		event   events.Event
		subject string
	}{
		{events.OrderReceivedEvent{}, "raffle.orders.received"},
		{events.OrderSettledEvent{}, "raffle.orders.settled"},
		{events.WinnersDrawnEvent{}, "raffle.giveaways.winners_drawn"},
		{events.CreditChangedEvent{}, "raffle.credit.changed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.event.Type()), func(t *testing.T) {
			subject := mapper.MapEventToSubject(tt.event)
			assert.Equal(t, tt.subject, subject)
			assert.Contains(t, mapper.GetAllSubjects(), subject)
		})
	}
}
