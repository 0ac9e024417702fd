package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"raffle/domain/entities"
	"raffle/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedMessage struct {
	subject string
	data    []byte
}

type capturingPublisher struct {
	messages []capturedMessage
	err      error
}

func (c *capturingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, capturedMessage{subject: subject, data: data})
	return nil
}

func TestNATSEventPublisher_Envelope(t *testing.T) {
	client := &capturingPublisher{}
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	err := publisher.Publish(events.OrderSettledEvent{
		OrderID:  12,
		UserID:   3,
		Status:   entities.OrderStatusFailed,
		Trigger:  entities.TriggerTimeout,
		Tickets:  map[int64][]int{5: {1, 2}},
		Refunded: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.Len(t, client.messages, 1)
	assert.Equal(t, "raffle.orders.settled", client.messages[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(client.messages[0].data, &envelope))
	assert.Equal(t, "order_settled", envelope.EventType)
	assert.Equal(t, "raffle", envelope.SourceService)
	_, err = uuid.Parse(envelope.EventID)
	assert.NoError(t, err)

	var payload events.OrderSettledEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, int64(12), payload.OrderID)
	assert.Equal(t, []int{1, 2}, payload.Tickets[5])
	assert.True(t, payload.Refunded.Equal(decimal.NewFromInt(10)))
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	client := &capturingPublisher{err: errors.New("no responders")}
	publisher := NewNATSEventPublisher(client, NewEventSubjectMapper())

	err := publisher.Publish(events.OrderReceivedEvent{OrderID: 1})
	assert.ErrorContains(t, err, "no responders")
}
