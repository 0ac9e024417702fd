package interfaces

import (
	"context"
	"time"

	"raffle/domain/entities"
	"raffle/events"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	// GetByIDForUpdate locks the user row until the transaction ends
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.User, error)
	// Create inserts a user with zero credit; credit is only ever granted through the credit ledger
	Create(ctx context.Context, email string) (*entities.User, error)
	UpdateCredit(ctx context.Context, id int64, newCredit decimal.Decimal) error
}

// GiveawayRepository defines the interface for giveaway catalog access
type GiveawayRepository interface {
	GetByID(ctx context.Context, id int64) (*entities.Giveaway, error)
	// GetByIDForUpdate takes the per-giveaway allocation lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Giveaway, error)
	Create(ctx context.Context, giveaway *entities.Giveaway) error
	// GetDueForDraw returns closed auto-draw giveaways with completed tickets and no winners
	GetDueForDraw(ctx context.Context, now time.Time) ([]*entities.Giveaway, error)
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *entities.Order) error
	GetByID(ctx context.Context, id int64) (*entities.Order, error)
	// GetByIDForUpdate takes the per-order settlement lock
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Order, error)
	GetByCheckoutIDForUpdate(ctx context.Context, checkoutID string) (*entities.Order, error)
	UpdateStatus(ctx context.Context, id int64, status entities.OrderStatus, settledAt *time.Time) error
	SetCheckoutID(ctx context.Context, id int64, checkoutID string) error
	// GetStale returns orders in the given statuses last updated before the cutoff
	GetStale(ctx context.Context, statuses []entities.OrderStatus, before time.Time, limit int) ([]*entities.Order, error)
}

// TicketAssignmentRepository defines the interface for the ticket ledger rows
type TicketAssignmentRepository interface {
	// AssignedNumbers returns the union of numbers for a giveaway across orders in scope
	AssignedNumbers(ctx context.Context, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) ([]int, error)
	// ReservedCount returns the declared ticket count for a giveaway across orders in scope
	ReservedCount(ctx context.Context, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) (int, error)
	CountForUser(ctx context.Context, userID, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) (int, error)
	GetByOrder(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error)
	GetByOrderAndGiveaway(ctx context.Context, orderID, giveawayID int64) (*entities.TicketAssignment, error)
	// Upsert creates or replaces the (order, giveaway) row and its claimed numbers
	Upsert(ctx context.Context, assignment *entities.TicketAssignment) error
	DeleteByOrder(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error)
	Delete(ctx context.Context, assignmentID int64) error
	GetCompletedPool(ctx context.Context, giveawayID int64) ([]entities.TicketPoolEntry, error)
	HasWinners(ctx context.Context, giveawayID int64) (bool, error)
	MarkWinner(ctx context.Context, assignmentID int64, winningTicket int) error
}

// CreditTransactionRepository defines the interface for the credit ledger rows
type CreditTransactionRepository interface {
	Record(ctx context.Context, tx *entities.CreditTransaction) error
	GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.CreditTransaction, error)
	FindByOrderAndKind(ctx context.Context, orderID int64, kind entities.CreditKind) (*entities.CreditTransaction, error)
	// SumForUser returns adds minus deducts, used to reconcile the materialized balance
	SumForUser(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(event events.Event) error
}
