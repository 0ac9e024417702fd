package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Giveaway represents a raffle product with a fixed ticket pool
type Giveaway struct {
	ID             int64           `db:"id"`
	Title          string          `db:"title"`
	Price          decimal.Decimal `db:"price"`
	TicketsTotal   int             `db:"tickets_total"`
	TicketsPerUser int             `db:"tickets_per_user"`
	ClosesAt       time.Time       `db:"closes_at"`
	AutoDraw       bool            `db:"auto_draw"`
	ManyWinners    int             `db:"many_winners"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// IsUnbounded returns true if the giveaway has no capacity limit
func (g *Giveaway) IsUnbounded() bool {
	return g.TicketsTotal <= 0
}

// HasPerUserCap returns true if the giveaway limits tickets per user
func (g *Giveaway) HasPerUserCap() bool {
	return g.TicketsPerUser > 0
}

// IsClosed returns true once the closing time has passed
func (g *Giveaway) IsClosed(now time.Time) bool {
	return !g.ClosesAt.IsZero() && !now.Before(g.ClosesAt)
}

// WinnerCount returns how many winners should be drawn
func (g *Giveaway) WinnerCount() int {
	if g.ManyWinners < 1 {
		return 1
	}
	return g.ManyWinners
}

// LineTotal returns the price of the given number of tickets
func (g *Giveaway) LineTotal(amount int) decimal.Decimal {
	return g.Price.Mul(decimal.NewFromInt(int64(amount)))
}
