package repository

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace/internal/domain"

	"github.com/google/uuid"
)

// ViewEventRepository is the append-only log of item views
type ViewEventRepository interface {
	Record(ctx context.Context, event *domain.ItemViewEvent) error
	ViewedCategoryIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type viewEventRepository struct {
	db *sql.DB
}

// NewViewEventRepository creates a new instance of ViewEventRepository
func NewViewEventRepository(db *sql.DB) ViewEventRepository {
	return &viewEventRepository{db: db}
}

// Record appends a view event. Repeated views are kept.
func (r *viewEventRepository) Record(ctx context.Context, event *domain.ItemViewEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO item_view_events (id, user_id, item_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, event.ID, event.UserID, event.ItemID, event.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to record view: %w", err)
	}
	return nil
}

// ViewedCategoryIDs returns the category of every item the user viewed, one
// entry per view event, most recent first
func (r *viewEventRepository) ViewedCategoryIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.category_id
		FROM item_view_events v
		JOIN items i ON i.id = v.item_id
		WHERE v.user_id = $1
		ORDER BY v.created_at DESC, v.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewed categories: %w", err)
	}
	return collectIDs(rows)
}
