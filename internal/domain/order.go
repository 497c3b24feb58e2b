package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the state of a purchase. PAID and FAILED are terminal.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusPaid || s == OrderStatusFailed
}

// Order is a purchase record. TotalCents is snapshotted at creation.
type Order struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	BuyerID           uuid.UUID   `json:"buyer_id" db:"buyer_id"`
	ItemID            uuid.UUID   `json:"item_id" db:"item_id"`
	TotalCents        int64       `json:"total_cents" db:"total_cents"`
	Status            OrderStatus `json:"status" db:"status"`
	CheckoutSessionID *string     `json:"checkout_session_id,omitempty" db:"checkout_session_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}
