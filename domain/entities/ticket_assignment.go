package entities

import (
	"sort"
	"time"
)

// TicketScope selects which orders count when reading the ticket ledger
type TicketScope int

const (
	// TicketScopeCompleted counts numbers owned by completed orders only
	TicketScopeCompleted TicketScope = iota
	// TicketScopeHeld counts numbers owned by completed orders plus the
	// provisional reservations of created and pending orders
	TicketScopeHeld
)

// Statuses returns the order statuses included in the scope
func (s TicketScope) Statuses() []OrderStatus {
	if s == TicketScopeHeld {
		return []OrderStatus{OrderStatusCreated, OrderStatusPending, OrderStatusCompleted}
	}
	return []OrderStatus{OrderStatusCompleted}
}

// TicketAssignment is the order x giveaway pivot holding the assigned numbers
type TicketAssignment struct {
	ID            int64     `db:"id"`
	OrderID       int64     `db:"order_id"`
	GiveawayID    int64     `db:"giveaway_id"`
	Numbers       []int     `db:"numbers"`
	Amount        int       `db:"amount"`
	IsWinner      bool      `db:"is_winner"`
	WinningTicket *int      `db:"winning_ticket"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// IsAllocated returns true if numbers have been assigned
func (t *TicketAssignment) IsAllocated() bool {
	return len(t.Numbers) > 0
}

// IsFinalized returns true if the assigned numbers match the declared amount
func (t *TicketAssignment) IsFinalized() bool {
	return len(t.Numbers) == t.Amount
}

// Owns returns true if the assignment holds the given number
func (t *TicketAssignment) Owns(number int) bool {
	for _, n := range t.Numbers {
		if n == number {
			return true
		}
	}
	return false
}

// SortedNumbers returns a sorted copy of the assigned numbers
func (t *TicketAssignment) SortedNumbers() []int {
	out := make([]int, len(t.Numbers))
	copy(out, t.Numbers)
	sort.Ints(out)
	return out
}

// TicketPoolEntry is one completed ticket eligible for a winner draw
type TicketPoolEntry struct {
	AssignmentID int64
	OrderID      int64
	UserID       int64
	Number       int
}
