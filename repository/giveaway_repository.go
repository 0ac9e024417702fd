package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5"
)

// GiveawayRepository implements giveaway catalog access
type GiveawayRepository struct {
	q Queryable
}

func newGiveawayRepositoryWithTx(tx Queryable) *GiveawayRepository {
	return &GiveawayRepository{q: tx}
}

const giveawayColumns = `
	id, title, price, tickets_total, tickets_per_user, closes_at,
	auto_draw, many_winners, created_at, updated_at`

// GetByID retrieves a giveaway by ID
func (r *GiveawayRepository) GetByID(ctx context.Context, id int64) (*entities.Giveaway, error) {
	return r.get(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a giveaway and locks its row. Every allocation for the
// giveaway goes through this lock.
func (r *GiveawayRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Giveaway, error) {
	return r.get(ctx, `SELECT `+giveawayColumns+` FROM giveaways WHERE id = $1 FOR UPDATE`, id)
}

func (r *GiveawayRepository) get(ctx context.Context, query string, id int64) (*entities.Giveaway, error) {
	giveaway, err := scanGiveaway(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway %d: %w", id, translateError(err))
	}
	return giveaway, nil
}

// Create inserts a giveaway and fills in its generated fields
func (r *GiveawayRepository) Create(ctx context.Context, giveaway *entities.Giveaway) error {
	query := `
		INSERT INTO giveaways (title, price, tickets_total, tickets_per_user, closes_at, auto_draw, many_winners)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		giveaway.Title,
		giveaway.Price,
		giveaway.TicketsTotal,
		giveaway.TicketsPerUser,
		giveaway.ClosesAt,
		giveaway.AutoDraw,
		giveaway.WinnerCount(),
	).Scan(&giveaway.ID, &giveaway.CreatedAt, &giveaway.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}

	return nil
}

// GetDueForDraw returns closed auto-draw giveaways that have completed tickets and no winners
func (r *GiveawayRepository) GetDueForDraw(ctx context.Context, now time.Time) ([]*entities.Giveaway, error) {
	query := `
		SELECT ` + giveawayColumns + `
		FROM giveaways g
		WHERE g.auto_draw
		  AND g.closes_at <= $1
		  AND EXISTS (
			SELECT 1 FROM order_giveaway og
			JOIN orders o ON o.id = og.order_id
			WHERE og.giveaway_id = g.id AND o.status = 'completed' AND cardinality(og.numbers) > 0
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM order_giveaway og
			WHERE og.giveaway_id = g.id AND og.is_winner
		  )
		ORDER BY g.closes_at ASC, g.id ASC
	`

	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaways due for draw: %w", err)
	}
	defer rows.Close()

	var giveaways []*entities.Giveaway
	for rows.Next() {
		giveaway, err := scanGiveaway(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan giveaway: %w", err)
		}
		giveaways = append(giveaways, giveaway)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate giveaways: %w", err)
	}

	return giveaways, nil
}

func scanGiveaway(row pgx.Row) (*entities.Giveaway, error) {
	var g entities.Giveaway
	err := row.Scan(
		&g.ID,
		&g.Title,
		&g.Price,
		&g.TicketsTotal,
		&g.TicketsPerUser,
		&g.ClosesAt,
		&g.AutoDraw,
		&g.ManyWinners,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
