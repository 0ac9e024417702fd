package services

import (
	"context"
	"fmt"

	"raffle/domain/entities"
	"raffle/domain/interfaces"
	"raffle/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CreditLedger moves wallet credit. Every movement locks the user row, appends a
// ledger entry carrying the resulting balance and updates the materialized balance.
type CreditLedger struct {
	userRepo   interfaces.UserRepository
	creditRepo interfaces.CreditTransactionRepository
	publisher  interfaces.EventPublisher
}

// NewCreditLedger creates a new credit ledger
func NewCreditLedger(
	userRepo interfaces.UserRepository,
	creditRepo interfaces.CreditTransactionRepository,
	publisher interfaces.EventPublisher,
) *CreditLedger {
	return &CreditLedger{
		userRepo:   userRepo,
		creditRepo: creditRepo,
		publisher:  publisher,
	}
}

// CreditChange describes a single movement request
type CreditChange struct {
	UserID      int64
	Amount      decimal.Decimal
	Kind        entities.CreditKind
	Description string
	OrderID     *int64
}

// Add credits a user's wallet
func (c *CreditLedger) Add(ctx context.Context, change CreditChange) (*entities.CreditTransaction, error) {
	return c.apply(ctx, entities.CreditTransactionAdd, change)
}

// Deduct debits a user's wallet, failing with ErrInsufficientCredit rather than going negative
func (c *CreditLedger) Deduct(ctx context.Context, change CreditChange) (*entities.CreditTransaction, error) {
	return c.apply(ctx, entities.CreditTransactionDeduct, change)
}

// RefundOrder returns the credit an order spent. It is a no-op when the order used
// no credit or a refund entry already exists for it.
func (c *CreditLedger) RefundOrder(ctx context.Context, order *entities.Order) (*entities.CreditTransaction, error) {
	if !order.HasCreditUsed() {
		return nil, nil
	}

	existing, err := c.creditRepo.FindByOrderAndKind(ctx, order.ID, entities.CreditKindOrderRefund)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing refund: %w", err)
	}
	if existing != nil {
		log.WithFields(log.Fields{
			"orderID":       order.ID,
			"transactionID": existing.ID,
		}).Info("Credit already refunded for order")
		return nil, nil
	}

	orderID := order.ID
	return c.Add(ctx, CreditChange{
		UserID:      order.UserID,
		Amount:      order.CreditUsed,
		Kind:        entities.CreditKindOrderRefund,
		Description: fmt.Sprintf("Refund for order #%d", order.ID),
		OrderID:     &orderID,
	})
}

// Balance returns the materialized balance and the ledger sum for a user
func (c *CreditLedger) Balance(ctx context.Context, userID int64) (balance, ledgerSum decimal.Decimal, err error) {
	user, err := c.userRepo.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %d", entities.ErrUserNotFound, userID)
	}

	sum, err := c.creditRepo.SumForUser(ctx, userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to sum credit ledger: %w", err)
	}

	return user.Credit, sum, nil
}

func (c *CreditLedger) apply(ctx context.Context, txType entities.CreditTransactionType, change CreditChange) (*entities.CreditTransaction, error) {
	if !change.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive, got %s", entities.ErrInvalidAmount, change.Amount)
	}

	user, err := c.userRepo.GetByIDForUpdate(ctx, change.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %d", entities.ErrUserNotFound, change.UserID)
	}

	newBalance := user.Credit.Add(change.Amount)
	if txType == entities.CreditTransactionDeduct {
		if !user.CanAfford(change.Amount) {
			return nil, fmt.Errorf("%w: have %s, need %s", entities.ErrInsufficientCredit, user.Credit, change.Amount)
		}
		newBalance = user.Credit.Sub(change.Amount)
	}

	entry := &entities.CreditTransaction{
		UserID:       user.ID,
		Amount:       change.Amount,
		Type:         txType,
		Kind:         change.Kind,
		Description:  change.Description,
		OrderID:      change.OrderID,
		BalanceAfter: newBalance,
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credit transaction: %w", err)
	}

	if err := c.userRepo.UpdateCredit(ctx, user.ID, newBalance); err != nil {
		return nil, fmt.Errorf("failed to update credit: %w", err)
	}
	if err := c.creditRepo.Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record credit transaction: %w", err)
	}
	user.Credit = newBalance

	if c.publisher != nil {
		if err := c.publisher.Publish(events.CreditChangedEvent{
			UserID:        user.ID,
			TransactionID: entry.ID,
			TxType:        txType,
			Kind:          change.Kind,
			Amount:        change.Amount,
			BalanceAfter:  newBalance,
			OrderID:       change.OrderID,
		}); err != nil {
			log.WithError(err).WithField("userID", user.ID).Warn("Failed to publish credit change event")
		}
	}

	log.WithFields(log.Fields{
		"userID":       user.ID,
		"type":         txType,
		"kind":         change.Kind,
		"amount":       change.Amount.String(),
		"balanceAfter": newBalance.String(),
	}).Info("Credit balance changed")

	return entry, nil
}
