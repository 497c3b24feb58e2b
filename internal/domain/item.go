package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemStatus is the moderation state of a listing
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "PENDING"
	ItemStatusApproved ItemStatus = "APPROVED"
	ItemStatusRejected ItemStatus = "REJECTED"
)

// Valid reports whether s is one of the known item statuses
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusApproved, ItemStatusRejected:
		return true
	}
	return false
}

// ValidObjectKey reports whether key names an object inside the media bucket:
// non-empty, relative and free of parent references.
func ValidObjectKey(key string) bool {
	return key != "" && !strings.Contains(key, "..") && !strings.HasPrefix(key, "/")
}

// Item represents a single marketplace listing
type Item struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Description   string     `json:"description" db:"description"`
	CategoryID    uuid.UUID  `json:"category_id" db:"category_id"`
	PriceCents    int64      `json:"price_cents" db:"price_cents"`
	ShippingCents int64      `json:"shipping_cents" db:"shipping_cents"`
	Status        ItemStatus `json:"status" db:"status"`
	IsSold        bool       `json:"is_sold" db:"is_sold"`
	SellerID      uuid.UUID  `json:"seller_id" db:"seller_id"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// TotalCents is the amount a buyer pays: price plus shipping
func (i *Item) TotalCents() int64 {
	return i.PriceCents + i.ShippingCents
}

// Available reports whether the item can currently be bought
func (i *Item) Available() bool {
	return i.Status == ItemStatusApproved && !i.IsSold
}

// ItemImage is an ordered reference to an externally stored image
type ItemImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ItemID    uuid.UUID `json:"item_id" db:"item_id"`
	ObjectKey string    `json:"object_key" db:"object_key"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PriceChange is one append-only entry of an item's price history
type PriceChange struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ItemID        uuid.UUID `json:"item_id" db:"item_id"`
	OldPriceCents int64     `json:"old_price_cents" db:"old_price_cents"`
	NewPriceCents int64     `json:"new_price_cents" db:"new_price_cents"`
	ChangedAt     time.Time `json:"changed_at" db:"changed_at"`
}

// Category groups items and backs user interests
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ItemViewEvent records that a user opened an item's detail page
type ItemViewEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ItemID    uuid.UUID `json:"item_id" db:"item_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
