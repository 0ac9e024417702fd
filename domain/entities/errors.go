package entities

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrGiveawayNotFound = errors.New("giveaway not found")
	ErrOrderNotFound    = errors.New("order not found")

	ErrGiveawayClosed       = errors.New("giveaway is closed")
	ErrGiveawayOpen         = errors.New("giveaway is still open")
	ErrInsufficientCapacity = errors.New("insufficient ticket capacity")
	ErrCapacityExceeded     = errors.New("giveaway capacity exceeded")
	ErrPerUserLimitExceeded = errors.New("per-user ticket limit exceeded")
	ErrNumberCollision      = errors.New("ticket number already taken")
	ErrWinningAssignment    = errors.New("assignment holds a winning ticket")

	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrInvalidAmount      = errors.New("amount must be positive")

	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrLockTimeout       = errors.New("timed out waiting for lock")
	ErrEmptyCart         = errors.New("cart is empty")
)

// IsCapacityError returns true for errors raised when a giveaway cannot fit the request
func IsCapacityError(err error) bool {
	return errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrPerUserLimitExceeded)
}

// FieldError describes one rejected cart field
type FieldError struct {
	Line       int    `json:"line"`
	GiveawayID int64  `json:"giveaway_id,omitempty"`
	Field      string `json:"field"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

// CartValidationError is returned by checkout when the cart cannot be accepted
type CartValidationError struct {
	Fields []FieldError `json:"errors"`
}

// Add appends a field error
func (e *CartValidationError) Add(line int, giveawayID int64, field string, err error, message string) {
	e.Fields = append(e.Fields, FieldError{
		Line:       line,
		GiveawayID: giveawayID,
		Field:      field,
		Message:    message,
		Err:        err,
	})
}

// HasErrors returns true if any field was rejected
func (e *CartValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *CartValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("cart[%d].%s: %s", f.Line, f.Field, f.Message))
	}
	return "invalid cart: " + strings.Join(parts, "; ")
}

// Unwrap exposes the underlying sentinel errors to errors.Is
func (e *CartValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
