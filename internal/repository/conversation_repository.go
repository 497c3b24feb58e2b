package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace/internal/database"
	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrSelfConversation     = errors.New("buyer and seller must differ")
)

const conversationColumns = `id, item_id, buyer_id, seller_id, created_at, updated_at`

// ConversationRepository defines the interface for conversation data access
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, itemID, buyerID, sellerID uuid.UUID) (*domain.Conversation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	AppendMessage(ctx context.Context, message *domain.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error)
	SetMessageHidden(ctx context.Context, messageID uuid.UUID, hidden bool) (*domain.Message, error)
}

type conversationRepository struct {
	db *sql.DB
}

// NewConversationRepository creates a new instance of ConversationRepository
func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func scanConversation(row scanner) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := row.Scan(&c.ID, &c.ItemID, &c.BuyerID, &c.SellerID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanMessage(row scanner) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsHidden, &m.CreatedAt)
	return m, err
}

// GetOrCreate returns the conversation of the (item, buyer, seller) triple,
// creating it if needed. The upsert is a single statement, so concurrent first
// contacts converge on one row. The no-op DO UPDATE makes RETURNING yield the
// existing row.
func (r *conversationRepository) GetOrCreate(ctx context.Context, itemID, buyerID, sellerID uuid.UUID) (*domain.Conversation, error) {
	query := `
		INSERT INTO conversations (id, item_id, buyer_id, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (item_id, buyer_id, seller_id)
		DO UPDATE SET item_id = EXCLUDED.item_id
		RETURNING ` + conversationColumns

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, uuid.New(), itemID, buyerID, sellerID))
	if err != nil {
		if isCheckViolation(err) {
			return nil, ErrSelfConversation
		}
		if isForeignKeyViolation(err) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get or create conversation: %w", err)
	}
	return conv, nil
}

// FindByID retrieves a conversation by ID
func (r *conversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	conv, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation by ID: %w", err)
	}
	return conv, nil
}

// ListByParticipant returns the user's inbox, most recently active first
func (r *conversationRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY updated_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*domain.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}
	return conversations, nil
}

// AppendMessage inserts the message and bumps the conversation's updated_at
// to the message time, atomically
func (r *conversationRepository) AppendMessage(ctx context.Context, message *domain.Message) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, is_hidden, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, message.ID, message.ConversationID, message.SenderID, message.Content, message.IsHidden, message.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrConversationNotFound
			}
			return fmt.Errorf("failed to insert message: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
			message.ConversationID, message.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		} else if n == 0 {
			return ErrConversationNotFound
		}
		return nil
	})
}

// ListMessages returns every message of a conversation in creation order,
// hidden ones included
func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, is_hidden, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// SetMessageHidden flips the moderation flag of a message
func (r *conversationRepository) SetMessageHidden(ctx context.Context, messageID uuid.UUID, hidden bool) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		UPDATE messages SET is_hidden = $2
		WHERE id = $1
		RETURNING id, conversation_id, sender_id, content, is_hidden, created_at
	`, messageID, hidden))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to update message visibility: %w", err)
	}
	return m, nil
}
