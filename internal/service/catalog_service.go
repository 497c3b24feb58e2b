package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
	"marketplace/internal/slug"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage bounds the page number so the computed offset stays in range
	MaxPage = 10000
)

// MediaStore resolves image object keys. A nil MediaStore disables key checks.
type MediaStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// ItemPage is one page of a catalog listing
type ItemPage struct {
	Items    []*domain.Item `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// NewItem carries the seller-supplied fields of a listing
type NewItem struct {
	Title         string
	Description   string
	CategoryID    uuid.UUID
	PriceCents    int64
	ShippingCents int64
}

// ItemImageView is an image with its resolved URL
type ItemImageView struct {
	*domain.ItemImage
	URL string `json:"url,omitempty"`
}

// CatalogService defines the interface for catalog business logic
type CatalogService interface {
	ListApproved(ctx context.Context, filter repository.ItemFilter) (*ItemPage, error)
	Search(ctx context.Context, query string, filter repository.ItemFilter) (*ItemPage, error)
	GetApprovedByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	CreateItem(ctx context.Context, sellerID uuid.UUID, input NewItem) (*domain.Item, error)
	ListMine(ctx context.Context, sellerID uuid.UUID) ([]*domain.Item, error)
	UpdatePrice(ctx context.Context, requester, itemID uuid.UUID, priceCents int64) (*domain.PriceChange, error)
	PriceHistory(ctx context.Context, itemID uuid.UUID) ([]*domain.PriceChange, error)
	AddImage(ctx context.Context, requester, itemID uuid.UUID, objectKey string) (*ItemImageView, error)
	ListImages(ctx context.Context, itemID uuid.UUID) ([]*ItemImageView, error)
	SetItemStatus(ctx context.Context, itemID uuid.UUID, status domain.ItemStatus) (*domain.Item, error)
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	items      repository.ItemRepository
	categories repository.CategoryRepository
	media      MediaStore
	logger     *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	items repository.ItemRepository,
	categories repository.CategoryRepository,
	media MediaStore,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		items:      items,
		categories: categories,
		media:      media,
		logger:     logger,
	}
}

func normalizeFilter(f repository.ItemFilter) repository.ItemFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (s *catalogService) ListApproved(ctx context.Context, filter repository.ItemFilter) (*ItemPage, error) {
	filter = normalizeFilter(filter)
	items, total, err := s.items.ListApproved(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ItemPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (s *catalogService) Search(ctx context.Context, query string, filter repository.ItemFilter) (*ItemPage, error) {
	filter = normalizeFilter(filter)
	items, total, err := s.items.Search(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	return &ItemPage{Items: items, Total: total, Page: filter.Page, PageSize: filter.PageSize}, nil
}

// GetApprovedByID returns an APPROVED item, sold or not
func (s *catalogService) GetApprovedByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	item, err := s.items.FindApprovedByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return item, nil
}

// CreateItem stores a new listing awaiting moderation
func (s *catalogService) CreateItem(ctx context.Context, sellerID uuid.UUID, input NewItem) (*domain.Item, error) {
	now := time.Now()
	item := &domain.Item{
		ID:            uuid.New(),
		Title:         strings.TrimSpace(input.Title),
		Description:   strings.TrimSpace(input.Description),
		CategoryID:    input.CategoryID,
		PriceCents:    input.PriceCents,
		ShippingCents: input.ShippingCents,
		Status:        domain.ItemStatusPending,
		SellerID:      sellerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.items.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	s.logger.Info("Item listed", zap.String("item_id", item.ID.String()), zap.String("seller_id", sellerID.String()))
	return item, nil
}

func (s *catalogService) ListMine(ctx context.Context, sellerID uuid.UUID) ([]*domain.Item, error) {
	return s.items.ListBySeller(ctx, sellerID)
}

// ownedItem loads an item of any status and checks the requester sells it
func (s *catalogService) ownedItem(ctx context.Context, requester, itemID uuid.UUID) (*domain.Item, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	if item.SellerID != requester {
		return nil, fmt.Errorf("%w: only the seller can change this item", ErrForbidden)
	}
	return item, nil
}

// UpdatePrice changes the price and records the change. Setting the current
// price again returns (nil, nil).
func (s *catalogService) UpdatePrice(ctx context.Context, requester, itemID uuid.UUID, priceCents int64) (*domain.PriceChange, error) {
	if _, err := s.ownedItem(ctx, requester, itemID); err != nil {
		return nil, err
	}

	change, err := s.items.UpdatePrice(ctx, itemID, priceCents)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	if change != nil {
		s.logger.Info("Item price changed",
			zap.String("item_id", itemID.String()),
			zap.Int64("old_price_cents", change.OldPriceCents),
			zap.Int64("new_price_cents", change.NewPriceCents),
		)
	}
	return change, nil
}

func (s *catalogService) PriceHistory(ctx context.Context, itemID uuid.UUID) ([]*domain.PriceChange, error) {
	if _, err := s.GetApprovedByID(ctx, itemID); err != nil {
		return nil, err
	}
	return s.items.PriceHistory(ctx, itemID)
}

// AddImage appends an image reference after the item's existing images
func (s *catalogService) AddImage(ctx context.Context, requester, itemID uuid.UUID, objectKey string) (*ItemImageView, error) {
	objectKey = strings.TrimSpace(objectKey)
	if !domain.ValidObjectKey(objectKey) {
		return nil, fmt.Errorf("%w: invalid object key", ErrInvalidInput)
	}

	if _, err := s.ownedItem(ctx, requester, itemID); err != nil {
		return nil, err
	}

	if s.media != nil {
		exists, err := s.media.Exists(ctx, objectKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: object %s is not in the media store", ErrNotFound, objectKey)
		}
	}

	image := &domain.ItemImage{
		ID:        uuid.New(),
		ItemID:    itemID,
		ObjectKey: objectKey,
		CreatedAt: time.Now(),
	}
	if err := s.items.AddImage(ctx, image); err != nil {
		return nil, err
	}
	return s.imageView(image), nil
}

func (s *catalogService) ListImages(ctx context.Context, itemID uuid.UUID) ([]*ItemImageView, error) {
	images, err := s.items.ListImages(ctx, itemID)
	if err != nil {
		return nil, err
	}

	views := make([]*ItemImageView, 0, len(images))
	for _, image := range images {
		views = append(views, s.imageView(image))
	}
	return views, nil
}

func (s *catalogService) imageView(image *domain.ItemImage) *ItemImageView {
	view := &ItemImageView{ItemImage: image}
	if s.media != nil {
		view.URL = s.media.URL(image.ObjectKey)
	}
	return view
}

// SetItemStatus is the moderation toggle for listings
func (s *catalogService) SetItemStatus(ctx context.Context, itemID uuid.UUID, status domain.ItemStatus) (*domain.Item, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	if err := s.items.SetStatus(ctx, itemID, status); err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	s.logger.Info("Item status changed", zap.String("item_id", itemID.String()), zap.String("status", string(status)))
	return s.items.FindByID(ctx, itemID)
}

// CreateCategory derives the slug from the name
func (s *catalogService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	category := &domain.Category{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug.Generate(name),
		CreatedAt: time.Now(),
	}
	if category.Slug == "" {
		return nil, fmt.Errorf("%w: category name has no usable characters", ErrConflict)
	}

	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, err
	}
	return category, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.categories.List(ctx)
}

// DeleteCategory refuses while any item still references the category
func (s *catalogService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	err := s.categories.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrCategoryNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrCategoryInUse):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
