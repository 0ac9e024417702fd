package repository

import (
	"context"
	"errors"
	"fmt"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5"
)

// TicketAssignmentRepository implements the ticket ledger rows. order_giveaway holds one row
// per cart line; ticket_numbers mirrors its numbers so the database rejects duplicates.
type TicketAssignmentRepository struct {
	q Queryable
}

func newTicketAssignmentRepositoryWithTx(tx Queryable) *TicketAssignmentRepository {
	return &TicketAssignmentRepository{q: tx}
}

const assignmentColumns = `
	og.id, og.order_id, og.giveaway_id, og.numbers, og.amount,
	og.is_winner, og.winning_ticket, og.created_at, og.updated_at`

// AssignedNumbers returns the numbers held for a giveaway by orders in scope
func (r *TicketAssignmentRepository) AssignedNumbers(ctx context.Context, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) ([]int, error) {
	query := `
		SELECT tn.number
		FROM ticket_numbers tn
		JOIN order_giveaway og ON og.id = tn.assignment_id
		JOIN orders o ON o.id = og.order_id
		WHERE tn.giveaway_id = $1
		  AND o.status = ANY($2)
		  AND ($3::bigint IS NULL OR o.id <> $3)
		ORDER BY tn.number ASC
	`

	rows, err := r.q.Query(ctx, query, giveawayID, scopeStatuses(scope), excludeOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assigned numbers for giveaway %d: %w", giveawayID, translateError(err))
	}
	defer rows.Close()

	numbers := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan ticket number: %w", err)
		}
		numbers = append(numbers, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket numbers: %w", translateError(err))
	}

	return numbers, nil
}

// ReservedCount returns the declared ticket amount held for a giveaway by orders in scope
func (r *TicketAssignmentRepository) ReservedCount(ctx context.Context, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(og.amount), 0)
		FROM order_giveaway og
		JOIN orders o ON o.id = og.order_id
		WHERE og.giveaway_id = $1
		  AND o.status = ANY($2)
		  AND ($3::bigint IS NULL OR o.id <> $3)
	`

	var count int
	err := r.q.QueryRow(ctx, query, giveawayID, scopeStatuses(scope), excludeOrderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reserved tickets for giveaway %d: %w", giveawayID, translateError(err))
	}

	return count, nil
}

// CountForUser returns the declared ticket amount a user holds for a giveaway
func (r *TicketAssignmentRepository) CountForUser(ctx context.Context, userID, giveawayID int64, scope entities.TicketScope, excludeOrderID *int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(og.amount), 0)
		FROM order_giveaway og
		JOIN orders o ON o.id = og.order_id
		WHERE o.user_id = $1
		  AND og.giveaway_id = $2
		  AND o.status = ANY($3)
		  AND ($4::bigint IS NULL OR o.id <> $4)
	`

	var count int
	err := r.q.QueryRow(ctx, query, userID, giveawayID, scopeStatuses(scope), excludeOrderID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets for user %d: %w", userID, translateError(err))
	}

	return count, nil
}

// GetByOrder returns every assignment row of an order
func (r *TicketAssignmentRepository) GetByOrder(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM order_giveaway og
		WHERE og.order_id = $1
		ORDER BY og.giveaway_id ASC
	`

	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets for order %d: %w", orderID, translateError(err))
	}
	return collectAssignments(rows)
}

// GetByOrderAndGiveaway returns the assignment row of one cart line
func (r *TicketAssignmentRepository) GetByOrderAndGiveaway(ctx context.Context, orderID, giveawayID int64) (*entities.TicketAssignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM order_giveaway og
		WHERE og.order_id = $1 AND og.giveaway_id = $2
	`

	assignment, err := scanAssignment(r.q.QueryRow(ctx, query, orderID, giveawayID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets for order %d giveaway %d: %w", orderID, giveawayID, translateError(err))
	}
	return assignment, nil
}

// Upsert creates or replaces the (order, giveaway) row and re-claims its numbers.
// A number held by another row fails with ErrNumberCollision.
func (r *TicketAssignmentRepository) Upsert(ctx context.Context, assignment *entities.TicketAssignment) error {
	numbers := assignment.Numbers
	if numbers == nil {
		numbers = []int{}
	}

	query := `
		INSERT INTO order_giveaway (order_id, giveaway_id, numbers, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, giveaway_id) DO UPDATE
		SET numbers = EXCLUDED.numbers, amount = EXCLUDED.amount, updated_at = NOW()
		RETURNING id, is_winner, winning_ticket, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		assignment.OrderID,
		assignment.GiveawayID,
		numbers,
		assignment.Amount,
	).Scan(
		&assignment.ID,
		&assignment.IsWinner,
		&assignment.WinningTicket,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ticket assignment: %w", translateError(err))
	}

	if _, err := r.q.Exec(ctx, `DELETE FROM ticket_numbers WHERE assignment_id = $1`, assignment.ID); err != nil {
		return fmt.Errorf("failed to release previous numbers: %w", translateError(err))
	}

	claim := `
		INSERT INTO ticket_numbers (giveaway_id, number, assignment_id)
		SELECT $1, n, $3 FROM unnest($2::int[]) AS n
	`
	if _, err := r.q.Exec(ctx, claim, assignment.GiveawayID, numbers, assignment.ID); err != nil {
		return fmt.Errorf("failed to claim ticket numbers for giveaway %d: %w", assignment.GiveawayID, translateError(err))
	}

	return nil
}

// DeleteByOrder removes every assignment row of an order and returns what was removed
func (r *TicketAssignmentRepository) DeleteByOrder(ctx context.Context, orderID int64) ([]*entities.TicketAssignment, error) {
	query := `
		DELETE FROM order_giveaway og
		WHERE og.order_id = $1
		RETURNING ` + assignmentColumns

	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke tickets for order %d: %w", orderID, translateError(err))
	}
	return collectAssignments(rows)
}

// Delete removes a single assignment row
func (r *TicketAssignmentRepository) Delete(ctx context.Context, assignmentID int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM order_giveaway WHERE id = $1`, assignmentID); err != nil {
		return fmt.Errorf("failed to delete ticket assignment %d: %w", assignmentID, translateError(err))
	}
	return nil
}

// GetCompletedPool returns every ticket of completed orders for a giveaway
func (r *TicketAssignmentRepository) GetCompletedPool(ctx context.Context, giveawayID int64) ([]entities.TicketPoolEntry, error) {
	query := `
		SELECT og.id, og.order_id, o.user_id, tn.number
		FROM ticket_numbers tn
		JOIN order_giveaway og ON og.id = tn.assignment_id
		JOIN orders o ON o.id = og.order_id
		WHERE tn.giveaway_id = $1 AND o.status = 'completed'
		ORDER BY tn.number ASC
	`

	rows, err := r.q.Query(ctx, query, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket pool for giveaway %d: %w", giveawayID, translateError(err))
	}
	defer rows.Close()

	var pool []entities.TicketPoolEntry
	for rows.Next() {
		var entry entities.TicketPoolEntry
		if err := rows.Scan(&entry.AssignmentID, &entry.OrderID, &entry.UserID, &entry.Number); err != nil {
			return nil, fmt.Errorf("failed to scan pool entry: %w", err)
		}
		pool = append(pool, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket pool: %w", err)
	}

	return pool, nil
}

// HasWinners returns true if any assignment of the giveaway has been marked as a winner
func (r *TicketAssignmentRepository) HasWinners(ctx context.Context, giveawayID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM order_giveaway WHERE giveaway_id = $1 AND is_winner)`

	var exists bool
	if err := r.q.QueryRow(ctx, query, giveawayID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check winners for giveaway %d: %w", giveawayID, translateError(err))
	}
	return exists, nil
}

// MarkWinner flags an assignment row as a winner with its winning number
func (r *TicketAssignmentRepository) MarkWinner(ctx context.Context, assignmentID int64, winningTicket int) error {
	query := `
		UPDATE order_giveaway
		SET is_winner = TRUE, winning_ticket = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, assignmentID, winningTicket)
	if err != nil {
		return fmt.Errorf("failed to mark winner: %w", translateError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("ticket assignment %d not found", assignmentID)
	}
	return nil
}

func scopeStatuses(scope entities.TicketScope) []string {
	statuses := scope.Statuses()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return names
}

func scanAssignment(row pgx.Row) (*entities.TicketAssignment, error) {
	var a entities.TicketAssignment
	err := row.Scan(
		&a.ID,
		&a.OrderID,
		&a.GiveawayID,
		&a.Numbers,
		&a.Amount,
		&a.IsWinner,
		&a.WinningTicket,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAssignments(rows pgx.Rows) ([]*entities.TicketAssignment, error) {
	defer rows.Close()

	var assignments []*entities.TicketAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ticket assignments: %w", translateError(err))
	}

	return assignments, nil
}
