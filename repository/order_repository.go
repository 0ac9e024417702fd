package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raffle/domain/entities"

	"github.com/jackc/pgx/v5"
)

// OrderRepository implements order data access
type OrderRepository struct {
	q Queryable
}

func newOrderRepositoryWithTx(tx Queryable) *OrderRepository {
	return &OrderRepository{q: tx}
}

const orderColumns = `
	id, user_id, status, total, original_total, credit_used, cart, address,
	checkout_id, settled_at, created_at, updated_at`

// Create inserts an order and fills in its generated fields
func (r *OrderRepository) Create(ctx context.Context, order *entities.Order) error {
	query := `
		INSERT INTO orders (user_id, status, total, original_total, credit_used, cart, address, checkout_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	cart := order.Cart
	if cart == nil {
		cart = []entities.CartLine{}
	}

	err := r.q.QueryRow(ctx, query,
		order.UserID,
		string(order.Status),
		order.Total,
		order.OriginalTotal,
		order.CreditUsed,
		cart,
		order.Address,
		order.CheckoutID,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", translateError(err))
	}

	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*entities.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves an order and locks its row for the settlement
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

// GetByCheckoutIDForUpdate retrieves the order attached to a gateway checkout session and locks it
func (r *OrderRepository) GetByCheckoutIDForUpdate(ctx context.Context, checkoutID string) (*entities.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_id = $1 FOR UPDATE`, checkoutID)
}

func (r *OrderRepository) get(ctx context.Context, query string, arg any) (*entities.Order, error) {
	order, err := scanOrder(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %v: %w", arg, translateError(err))
	}
	return order, nil
}

// UpdateStatus sets the order status. A nil settledAt keeps the previous settlement time.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status entities.OrderStatus, settledAt *time.Time) error {
	query := `
		UPDATE orders
		SET status = $2, settled_at = COALESCE($3, settled_at), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, string(status), settledAt)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", translateError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}

	return nil
}

// SetCheckoutID attaches a gateway checkout session to the order
func (r *OrderRepository) SetCheckoutID(ctx context.Context, id int64, checkoutID string) error {
	query := `
		UPDATE orders
		SET checkout_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.q.Exec(ctx, query, id, checkoutID)
	if err != nil {
		return fmt.Errorf("failed to set checkout id: %w", translateError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", entities.ErrOrderNotFound, id)
	}

	return nil
}

// GetStale returns orders in the given statuses whose last update is older than the cutoff
func (r *OrderRepository) GetStale(ctx context.Context, statuses []entities.OrderStatus, before time.Time, limit int) ([]*entities.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`

	statusNames := make([]string, len(statuses))
	for i, s := range statuses {
		statusNames[i] = string(s)
	}

	rows, err := r.q.Query(ctx, query, statusNames, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stale orders: %w", err)
	}
	defer rows.Close()

	var orders []*entities.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*entities.Order, error) {
	var (
		order  entities.Order
		status string
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&status,
		&order.Total,
		&order.OriginalTotal,
		&order.CreditUsed,
		&order.Cart,
		&order.Address,
		&order.CheckoutID,
		&order.SettledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.Status = entities.OrderStatus(status)
	return &order, nil
}
