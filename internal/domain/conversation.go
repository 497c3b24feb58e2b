package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the thread for exactly one (item, buyer, seller) triple
type Conversation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ItemID    uuid.UUID `json:"item_id" db:"item_id"`
	BuyerID   uuid.UUID `json:"buyer_id" db:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id" db:"seller_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasParticipant reports whether userID is the buyer or the seller
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return userID == c.BuyerID || userID == c.SellerID
}

// Message belongs to one conversation
type Message struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ConversationID uuid.UUID `json:"conversation_id" db:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	IsHidden       bool      `json:"is_hidden" db:"is_hidden"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
