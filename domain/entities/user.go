package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a customer with a prepaid credit balance
type User struct {
	ID        int64           `db:"id"`
	Email     string          `db:"email"`
	Credit    decimal.Decimal `db:"credit"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// CanAfford returns true if the balance covers the amount
func (u *User) CanAfford(amount decimal.Decimal) bool {
	return u.Credit.GreaterThanOrEqual(amount)
}
