package entities

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one {giveaway, amount, requested numbers} entry of an order's cart snapshot
type CartLine struct {
	GiveawayID int64 `json:"giveaway_id"`
	Amount     int   `json:"amount"`
	Numbers    []int `json:"numbers,omitempty"`
}

// Address holds the postal fields captured at checkout
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Order represents a purchase of tickets across one or more giveaways
type Order struct {
	ID            int64           `db:"id"`
	UserID        int64           `db:"user_id"`
	Status        OrderStatus     `db:"status"`
	Total         decimal.Decimal `db:"total"`
	OriginalTotal decimal.Decimal `db:"original_total"`
	CreditUsed    decimal.Decimal `db:"credit_used"`
	Cart          []CartLine      `db:"cart"`
	Address       Address         `db:"address"`
	CheckoutID    *string         `db:"checkout_id"`
	SettledAt     *time.Time      `db:"settled_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// IsZeroTotal returns true if nothing is owed to the payment gateway
func (o *Order) IsZeroTotal() bool {
	return !o.Total.IsPositive()
}

// HasCreditUsed returns true if wallet credit funded part of the order
func (o *Order) HasCreditUsed() bool {
	return o.CreditUsed.IsPositive()
}

// CartLinesByGiveaway returns the cart lines ordered by giveaway ID.
// Giveaway locks are always taken in this order.
func (o *Order) CartLinesByGiveaway() []CartLine {
	lines := make([]CartLine, len(o.Cart))
	copy(lines, o.Cart)
	sort.Slice(lines, func(i, j int) bool { return lines[i].GiveawayID < lines[j].GiveawayID })
	return lines
}

// CartLine returns the cart line for a giveaway, if present
func (o *Order) CartLine(giveawayID int64) (CartLine, bool) {
	for _, line := range o.Cart {
		if line.GiveawayID == giveawayID {
			return line, true
		}
	}
	return CartLine{}, false
}

// TicketCount returns the total number of tickets declared in the cart
func (o *Order) TicketCount() int {
	total := 0
	for _, line := range o.Cart {
		total += line.Amount
	}
	return total
}
