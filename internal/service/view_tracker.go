package service

import (
	"context"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// ViewTracker records item detail views per user
type ViewTracker interface {
	RecordView(ctx context.Context, viewer domain.Identity, itemID uuid.UUID) error
	ViewedCategoriesOf(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type viewTracker struct {
	views repository.ViewEventRepository
}

// NewViewTracker creates a new instance of ViewTracker
func NewViewTracker(views repository.ViewEventRepository) ViewTracker {
	return &viewTracker{views: views}
}

// RecordView appends one event per call. Anonymous viewers are ignored.
func (t *viewTracker) RecordView(ctx context.Context, viewer domain.Identity, itemID uuid.UUID) error {
	if viewer.Anonymous() {
		return nil
	}

	event := &domain.ItemViewEvent{
		ID:        uuid.New(),
		UserID:    viewer.ID,
		ItemID:    itemID,
		CreatedAt: time.Now(),
	}
	if err := t.views.Record(ctx, event); err != nil {
		return err
	}

	metrics.RecordItemView()
	return nil
}

// ViewedCategoriesOf returns one category per view event, newest first
func (t *viewTracker) ViewedCategoriesOf(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return t.views.ViewedCategoryIDs(ctx, userID)
}
