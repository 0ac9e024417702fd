package repository

import (
	"context"
	"errors"
	"fmt"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CreditTransactionRepository implements the append-only credit ledger
type CreditTransactionRepository struct {
	q Queryable
}

func newCreditTransactionRepositoryWithTx(tx Queryable) *CreditTransactionRepository {
	return &CreditTransactionRepository{q: tx}
}

const creditTransactionColumns = `
	id, user_id, amount, type, kind, description, order_id, balance_after, created_at`

// Record appends a ledger entry
func (r *CreditTransactionRepository) Record(ctx context.Context, tx *entities.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (user_id, amount, type, kind, description, order_id, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		tx.UserID,
		tx.Amount,
		string(tx.Type),
		string(tx.Kind),
		tx.Description,
		tx.OrderID,
		tx.BalanceAfter,
	).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", translateError(err))
	}

	return nil
}

// GetByUser returns the most recent entries of a user
func (r *CreditTransactionRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.CreditTransaction, error) {
	query := `
		SELECT ` + creditTransactionColumns + `
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get credit transactions: %w", err)
	}
	defer rows.Close()

	var txs []*entities.CreditTransaction
	for rows.Next() {
		tx, err := scanCreditTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate credit transactions: %w", err)
	}

	return txs, nil
}

// FindByOrderAndKind returns the entry of the given kind for an order, if any
func (r *CreditTransactionRepository) FindByOrderAndKind(ctx context.Context, orderID int64, kind entities.CreditKind) (*entities.CreditTransaction, error) {
	query := `
		SELECT ` + creditTransactionColumns + `
		FROM credit_transactions
		WHERE order_id = $1 AND kind = $2
		ORDER BY id ASC
		LIMIT 1
	`

	tx, err := scanCreditTransaction(r.q.QueryRow(ctx, query, orderID, string(kind)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credit transaction: %w", err)
	}
	return tx, nil
}

// SumForUser returns adds minus deducts for a user
func (r *CreditTransactionRepository) SumForUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'add' THEN amount ELSE -amount END), 0)
		FROM credit_transactions
		WHERE user_id = $1
	`

	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum credit transactions: %w", err)
	}
	return sum, nil
}

func scanCreditTransaction(row pgx.Row) (*entities.CreditTransaction, error) {
	var (
		tx     entities.CreditTransaction
		txType string
		txKind string
	)
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&txType,
		&txKind,
		&tx.Description,
		&tx.OrderID,
		&tx.BalanceAfter,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Type = entities.CreditTransactionType(txType)
	tx.Kind = entities.CreditKind(txKind)
	return &tx, nil
}
