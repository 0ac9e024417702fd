package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"raffle/database"
	"raffle/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var emailSeq atomic.Int64

// CreateTestUser inserts a user and, for a positive credit, the matching ledger entry
func CreateTestUser(t *testing.T, db *database.DB, credit string) *entities.User {
	t.Helper()
	ctx := context.Background()

	amount := decimal.RequireFromString(credit)
	email := fmt.Sprintf("user%d@example.com", emailSeq.Add(1))

	var user entities.User
	err := db.QueryRow(ctx, `
		INSERT INTO users (email, credit) VALUES ($1, $2)
		RETURNING id, email, credit, created_at, updated_at`,
		email, amount,
	).Scan(&user.ID, &user.Email, &user.Credit, &user.CreatedAt, &user.UpdatedAt)
	require.NoError(t, err)

	if amount.IsPositive() {
		_, err = db.Exec(ctx, `
			INSERT INTO credit_transactions (user_id, amount, type, kind, description, balance_after)
			VALUES ($1, $2, 'add', 'manual', 'opening balance', $2)`,
			user.ID, amount,
		)
		require.NoError(t, err)
	}

	return &user
}

// GiveawayOption customizes a test giveaway
type GiveawayOption func(*entities.Giveaway)

// WithPerUserCap limits tickets per user
func WithPerUserCap(n int) GiveawayOption {
	return func(g *entities.Giveaway) { g.TicketsPerUser = n }
}

// WithPrice sets the ticket price
func WithPrice(price string) GiveawayOption {
	return func(g *entities.Giveaway) { g.Price = decimal.RequireFromString(price) }
}

// WithClosesAt sets the closing time
func WithClosesAt(closesAt time.Time) GiveawayOption {
	return func(g *entities.Giveaway) { g.ClosesAt = closesAt }
}

// WithAutoDraw enables the periodic draw with the given number of winners
func WithAutoDraw(winners int) GiveawayOption {
	return func(g *entities.Giveaway) {
		g.AutoDraw = true
		g.ManyWinners = winners
	}
}

// CreateTestGiveaway inserts an open giveaway priced at 1.00 per ticket
func CreateTestGiveaway(t *testing.T, db *database.DB, ticketsTotal int, opts ...GiveawayOption) *entities.Giveaway {
	t.Helper()

	g := &entities.Giveaway{
		Title:        "Test giveaway",
		Price:        decimal.NewFromInt(1),
		TicketsTotal: ticketsTotal,
		ClosesAt:     time.Now().Add(24 * time.Hour),
		ManyWinners:  1,
	}
	for _, opt := range opts {
		opt(g)
	}

	err := db.QueryRow(context.Background(), `
		INSERT INTO giveaways (title, price, tickets_total, tickets_per_user, closes_at, auto_draw, many_winners)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		g.Title, g.Price, g.TicketsTotal, g.TicketsPerUser, g.ClosesAt, g.AutoDraw, g.ManyWinners,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	require.NoError(t, err)

	return g
}

// CreditBalance reads a user's materialized credit
func CreditBalance(t *testing.T, db *database.DB, userID int64) decimal.Decimal {
	t.Helper()
	var credit decimal.Decimal
	require.NoError(t, db.QueryRow(context.Background(), `SELECT credit FROM users WHERE id = $1`, userID).Scan(&credit))
	return credit
}

// CountCreditTransactions counts ledger entries of a user
func CountCreditTransactions(t *testing.T, db *database.DB, userID int64) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT COUNT(*) FROM credit_transactions WHERE user_id = $1`, userID).Scan(&count))
	return count
}
