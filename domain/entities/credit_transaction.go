package entities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CreditTransactionType is the direction of a credit ledger entry
type CreditTransactionType string

const (
	CreditTransactionAdd    CreditTransactionType = "add"
	CreditTransactionDeduct CreditTransactionType = "deduct"
)

// CreditKind records why credit moved
type CreditKind string

const (
	CreditKindManual       CreditKind = "manual"
	CreditKindOrderPayment CreditKind = "order_payment"
	CreditKindOrderRefund  CreditKind = "order_refund"
)

// CreditTransaction is one append-only entry of the credit ledger
type CreditTransaction struct {
	ID           int64                 `db:"id"`
	UserID       int64                 `db:"user_id"`
	Amount       decimal.Decimal       `db:"amount"`
	Type         CreditTransactionType `db:"type"`
	Kind         CreditKind            `db:"kind"`
	Description  string                `db:"description"`
	OrderID      *int64                `db:"order_id"`
	BalanceAfter decimal.Decimal       `db:"balance_after"`
	CreatedAt    time.Time             `db:"created_at"`
}

// SignedAmount returns the amount as it affects the balance
func (ct *CreditTransaction) SignedAmount() decimal.Decimal {
	if ct.Type == CreditTransactionDeduct {
		return ct.Amount.Neg()
	}
	return ct.Amount
}

// Validate performs basic validation on the entry
func (ct *CreditTransaction) Validate() error {
	if !ct.Amount.IsPositive() {
		return errors.New("credit amount must be positive")
	}
	if ct.Type != CreditTransactionAdd && ct.Type != CreditTransactionDeduct {
		return errors.New("unknown credit transaction type")
	}
	if ct.BalanceAfter.IsNegative() {
		return errors.New("balance after cannot be negative")
	}
	return nil
}
