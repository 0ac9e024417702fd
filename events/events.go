package events

import (
	"context"
	"sync"

	"raffle/domain/entities"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeOrderReceived EventType = "order_received"
	EventTypeOrderSettled  EventType = "order_settled"
	EventTypeWinnersDrawn  EventType = "winners_drawn"
	EventTypeCreditChanged EventType = "credit_changed"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// Publisher accepts events for delivery
type Publisher interface {
	Publish(event Event) error
}

// OrderReceivedEvent is emitted when a new order awaits payment
type OrderReceivedEvent struct {
	OrderID       int64                `json:"order_id"`
	UserID        int64                `json:"user_id"`
	Status        entities.OrderStatus `json:"status"`
	Total         decimal.Decimal      `json:"total"`
	OriginalTotal decimal.Decimal      `json:"original_total"`
	CreditUsed    decimal.Decimal      `json:"credit_used"`
	Cart          []entities.CartLine  `json:"cart"`
}

func (e OrderReceivedEvent) Type() EventType {
	return EventTypeOrderReceived
}

// OrderSettledEvent is emitted exactly once per actual terminal status change
type OrderSettledEvent struct {
	OrderID    int64                      `json:"order_id"`
	UserID     int64                      `json:"user_id"`
	FromStatus entities.OrderStatus       `json:"from_status"`
	Status     entities.OrderStatus       `json:"status"`
	Trigger    entities.TransitionTrigger `json:"trigger"`
	Tickets    map[int64][]int            `json:"tickets,omitempty"`
	Refunded   decimal.Decimal            `json:"refunded"`
}

func (e OrderSettledEvent) Type() EventType {
	return EventTypeOrderSettled
}

// DrawnWinner is one winning ticket of a draw
type DrawnWinner struct {
	OrderID      int64 `json:"order_id"`
	UserID       int64 `json:"user_id"`
	AssignmentID int64 `json:"assignment_id"`
	Number       int   `json:"number"`
}

// WinnersDrawnEvent is emitted after a giveaway draw commits
type WinnersDrawnEvent struct {
	GiveawayID int64         `json:"giveaway_id"`
	Winners    []DrawnWinner `json:"winners"`
}

func (e WinnersDrawnEvent) Type() EventType {
	return EventTypeWinnersDrawn
}

// CreditChangedEvent represents a credit ledger entry that was recorded
type CreditChangedEvent struct {
	UserID        int64                          `json:"user_id"`
	TransactionID int64                          `json:"transaction_id"`
	TxType        entities.CreditTransactionType `json:"type"`
	Kind          entities.CreditKind            `json:"kind"`
	Amount        decimal.Decimal                `json:"amount"`
	BalanceAfter  decimal.Decimal                `json:"balance_after"`
	OrderID       *int64                         `json:"order_id,omitempty"`
}

func (e CreditChangedEvent) Type() EventType {
	return EventTypeCreditChanged
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus fans events out to in-process handlers
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Publish delivers the event to every handler registered for its type.
// Handlers run synchronously and a panicking handler does not stop the others.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Dispatching event to handlers")

	ctx := context.Background()
	for i, handler := range handlers {
		func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
	return nil
}
