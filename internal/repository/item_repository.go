package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/database"
	"marketplace/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound = errors.New("item not found")
)

const itemColumns = `id, title, description, category_id, price_cents, shipping_cents, status, is_sold, seller_id, created_at, updated_at`

// availableClause restricts a query to items that can be listed and bought
const availableClause = `status = 'APPROVED' AND is_sold = FALSE`

// ItemFilter narrows catalog listings
type ItemFilter struct {
	CategoryID *uuid.UUID
	Page       int
	PageSize   int
}

func (f ItemFilter) offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// ItemRepository defines the interface for item data access
type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	FindApprovedByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
	ListApproved(ctx context.Context, filter ItemFilter) ([]*domain.Item, int, error)
	Search(ctx context.Context, query string, filter ItemFilter) ([]*domain.Item, int, error)
	ListAvailableByCategories(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]*domain.Item, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Item, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ItemStatus) error
	UpdatePrice(ctx context.Context, id uuid.UUID, newPriceCents int64) (*domain.PriceChange, error)
	PriceHistory(ctx context.Context, id uuid.UUID) ([]*domain.PriceChange, error)
	AddImage(ctx context.Context, image *domain.ItemImage) error
	ListImages(ctx context.Context, itemID uuid.UUID) ([]*domain.ItemImage, error)
}

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new instance of ItemRepository
func NewItemRepository(db *sql.DB) ItemRepository {
	return &itemRepository{db: db}
}

func scanItem(row scanner) (*domain.Item, error) {
	item := &domain.Item{}
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.CategoryID,
		&item.PriceCents,
		&item.ShippingCents,
		&item.Status,
		&item.IsSold,
		&item.SellerID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	return item, err
}

func collectItems(rows *sql.Rows) ([]*domain.Item, error) {
	defer rows.Close()

	items := []*domain.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// Create inserts a new item
func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Title,
		item.Description,
		item.CategoryID,
		item.PriceCents,
		item.ShippingCents,
		item.Status,
		item.IsSold,
		item.SellerID,
		item.CreatedAt,
		item.UpdatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to create item: %w", err)
	}

	return nil
}

// FindByID retrieves an item regardless of its status
func (r *itemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindApprovedByID retrieves an APPROVED item. Sold items are still returned.
func (r *itemRepository) FindApprovedByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND status = 'APPROVED'`
	return r.findOne(ctx, query, id)
}

func (r *itemRepository) findOne(ctx context.Context, query string, id uuid.UUID) (*domain.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}
	return item, nil
}

// ListApproved retrieves available items, newest first, with the total count
func (r *itemRepository) ListApproved(ctx context.Context, filter ItemFilter) ([]*domain.Item, int, error) {
	return r.listAvailable(ctx, "", filter)
}

// Search matches query case-insensitively against title or description of
// available items. A blank query behaves like ListApproved.
func (r *itemRepository) Search(ctx context.Context, query string, filter ItemFilter) ([]*domain.Item, int, error) {
	return r.listAvailable(ctx, strings.TrimSpace(query), filter)
}

func (r *itemRepository) listAvailable(ctx context.Context, query string, filter ItemFilter) ([]*domain.Item, int, error) {
	whereClause := "WHERE " + availableClause
	args := []interface{}{}
	argIndex := 1

	if query != "" {
		whereClause += fmt.Sprintf(" AND (title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex)
		args = append(args, "%"+escapeLike(query)+"%")
		argIndex++
	}

	if filter.CategoryID != nil {
		whereClause += fmt.Sprintf(" AND category_id = $%d", argIndex)
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM items " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	listQuery := fmt.Sprintf(`
		SELECT %s
		FROM items
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, itemColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.PageSize, filter.offset())

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}

	items, err := collectItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListAvailableByCategories returns available items in any of the given
// categories, newest first. A limit of zero or less means no limit.
func (r *itemRepository) ListAvailableByCategories(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]*domain.Item, error) {
	if len(categoryIDs) == 0 {
		return []*domain.Item{}, nil
	}

	placeholders := make([]string, len(categoryIDs))
	args := make([]interface{}, 0, len(categoryIDs)+1)
	for i, id := range categoryIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM items
		WHERE %s AND category_id IN (%s)
		ORDER BY created_at DESC, id DESC
	`, itemColumns, availableClause, strings.Join(placeholders, ", "))

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items by categories: %w", err)
	}
	return collectItems(rows)
}

// ListBySeller returns every item of a seller whatever its status
func (r *itemRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE seller_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, sellerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller items: %w", err)
	}
	return collectItems(rows)
}

// SetStatus changes the moderation status of an item
func (r *itemRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ItemStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update item status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// UpdatePrice changes the price and appends a history entry in the same
// transaction. It returns nil, nil when the price is unchanged.
func (r *itemRepository) UpdatePrice(ctx context.Context, id uuid.UUID, newPriceCents int64) (*domain.PriceChange, error) {
	var change *domain.PriceChange

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var oldPrice int64
		err := tx.QueryRowContext(ctx,
			`SELECT price_cents FROM items WHERE id = $1 FOR UPDATE`, id,
		).Scan(&oldPrice)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to lock item: %w", err)
		}

		if oldPrice == newPriceCents {
			return nil
		}

		now := time.Now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET price_cents = $2, updated_at = $3 WHERE id = $1`,
			id, newPriceCents, now,
		); err != nil {
			return fmt.Errorf("failed to update price: %w", err)
		}

		change = &domain.PriceChange{
			ID:            uuid.New(),
			ItemID:        id,
			OldPriceCents: oldPrice,
			NewPriceCents: newPriceCents,
			ChangedAt:     now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO price_history (id, item_id, old_price_cents, new_price_cents, changed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, change.ID, change.ItemID, change.OldPriceCents, change.NewPriceCents, change.ChangedAt); err != nil {
			return fmt.Errorf("failed to append price history: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return change, nil
}

// PriceHistory lists price changes of an item, oldest first
func (r *itemRepository) PriceHistory(ctx context.Context, id uuid.UUID) ([]*domain.PriceChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, old_price_cents, new_price_cents, changed_at
		FROM price_history
		WHERE item_id = $1
		ORDER BY changed_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list price history: %w", err)
	}
	defer rows.Close()

	changes := []*domain.PriceChange{}
	for rows.Next() {
		c := &domain.PriceChange{}
		if err := rows.Scan(&c.ID, &c.ItemID, &c.OldPriceCents, &c.NewPriceCents, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price change: %w", err)
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}
	return changes, nil
}

// AddImage appends an image after the item's current last position
func (r *itemRepository) AddImage(ctx context.Context, image *domain.ItemImage) error {
	query := `
		INSERT INTO item_images (id, item_id, object_key, position, created_at)
		SELECT $1, $2, $3, COALESCE(MAX(position) + 1, 0), $4
		FROM item_images
		WHERE item_id = $2
		RETURNING position
	`

	err := r.db.QueryRowContext(ctx, query, image.ID, image.ItemID, image.ObjectKey, image.CreatedAt).Scan(&image.Position)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrItemNotFound
		}
		return fmt.Errorf("failed to add item image: %w", err)
	}
	return nil
}

// ListImages lists the images of an item in display order
func (r *itemRepository) ListImages(ctx context.Context, itemID uuid.UUID) ([]*domain.ItemImage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_id, object_key, position, created_at
		FROM item_images
		WHERE item_id = $1
		ORDER BY position ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list item images: %w", err)
	}
	defer rows.Close()

	images := []*domain.ItemImage{}
	for rows.Next() {
		img := &domain.ItemImage{}
		if err := rows.Scan(&img.ID, &img.ItemID, &img.ObjectKey, &img.Position, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item image: %w", err)
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item images: %w", err)
	}
	return images, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
