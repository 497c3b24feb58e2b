package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/database"
	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemUnavailable means the item was sold, unapproved or missing when
	// the reservation ran
	ErrItemUnavailable = errors.New("item is no longer available")
)

const orderColumns = `id, buyer_id, item_id, total_cents, status, checkout_session_id, created_at, updated_at`

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	CreateReserving(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FinalizeIfPending(ctx context.Context, id uuid.UUID, outcome domain.OrderStatus) (bool, error)
	SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func scanOrder(row scanner) (*domain.Order, error) {
	o := &domain.Order{}
	var sessionID sql.NullString
	err := row.Scan(&o.ID, &o.BuyerID, &o.ItemID, &o.TotalCents, &o.Status, &sessionID, &o.CreatedAt, &o.UpdatedAt)
	if sessionID.Valid {
		o.CheckoutSessionID = &sessionID.String
	}
	return o, err
}

// CreateReserving marks the item sold and inserts the PENDING order in one
// transaction. The sold flag is flipped with a compare-and-swap; if another
// buyer got there first no row matches and ErrItemUnavailable is returned.
// order.TotalCents is filled from the item's price and shipping as read by
// the same statement.
func (r *orderRepository) CreateReserving(ctx context.Context, order *domain.Order) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE items
			SET is_sold = TRUE, updated_at = NOW()
			WHERE id = $1 AND is_sold = FALSE AND status = 'APPROVED'
			RETURNING price_cents + shipping_cents
		`, order.ItemID).Scan(&order.TotalCents)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrItemUnavailable
			}
			return fmt.Errorf("failed to reserve item: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			order.ID,
			order.BuyerID,
			order.ItemID,
			order.TotalCents,
			order.Status,
			order.CheckoutSessionID,
			order.CreatedAt,
			order.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrItemUnavailable
			}
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}
	return order, nil
}

// FinalizeIfPending moves a PENDING order to outcome and reports whether it
// did. A FAILED outcome releases the item in the same transaction, so a sold
// item always has a PENDING or PAID order.
func (r *orderRepository) FinalizeIfPending(ctx context.Context, id uuid.UUID, outcome domain.OrderStatus) (bool, error) {
	transitioned := false

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var itemID uuid.UUID
		err := tx.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'PENDING'
			RETURNING item_id
		`, id, outcome).Scan(&itemID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to finalize order: %w", err)
		}

		if outcome == domain.OrderStatusFailed {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET is_sold = FALSE, updated_at = NOW() WHERE id = $1`, itemID,
			); err != nil {
				return fmt.Errorf("failed to release item: %w", err)
			}
		}

		transitioned = true
		return nil
	})

	return transitioned, err
}

// SetCheckoutSession stores the payment provider's session id on the order
func (r *orderRepository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET checkout_session_id = $2, updated_at = NOW() WHERE id = $1`,
		id, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to store checkout session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListByBuyer returns the buyer's orders, newest first
func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC, id DESC`,
		buyerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return collectOrders(rows)
}

// ListPendingOlderThan returns orders still PENDING that were created before cutoff
func (r *orderRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = 'PENDING' AND created_at < $1 ORDER BY created_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}
