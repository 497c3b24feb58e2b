package transport

import (
	"net/http"
	"strings"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateItemRequest represents a new listing
type CreateItemRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description"`
	CategoryID    string `json:"category_id" validate:"required,uuid"`
	PriceCents    int64  `json:"price_cents" validate:"gte=0,lte=100000000000"`
	ShippingCents int64  `json:"shipping_cents" validate:"gte=0,lte=100000000000"`
}

// UpdatePriceRequest represents a price change
type UpdatePriceRequest struct {
	PriceCents int64 `json:"price_cents" validate:"gte=0,lte=100000000000"`
}

// AddImageRequest references an uploaded object in the media store
type AddImageRequest struct {
	ObjectKey string `json:"object_key" validate:"required,max=500,objectkey"`
}

// ItemResponse is an item with its derived total
type ItemResponse struct {
	*domain.Item
	TotalCents int64 `json:"total_cents"`
}

// ItemDetailResponse is the detail page payload
type ItemDetailResponse struct {
	ItemResponse
	Images []*service.ItemImageView `json:"images"`
}

// ItemPageResponse is one page of items
type ItemPageResponse struct {
	Items    []ItemResponse `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func newItemResponses(items []*domain.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ItemResponse{Item: item, TotalCents: item.TotalCents()})
	}
	return out
}

func newItemPageResponse(page *service.ItemPage) ItemPageResponse {
	return ItemPageResponse{
		Items:    newItemResponses(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
}

// CatalogHandler serves categories, listings and seller item operations
type CatalogHandler struct {
	catalog service.CatalogService
	views   service.ViewTracker
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog service.CatalogService, views service.ViewTracker, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		views:   views,
		logger:  logger,
	}
}

// RegisterRoutes registers catalog routes. Item detail runs under optional
// authentication so views of signed-in users can be recorded.
func (h *CatalogHandler) RegisterRoutes(r chi.Router, authMiddleware, optionalAuth func(http.Handler) http.Handler) {
	r.Get("/api/categories", h.ListCategories)
	r.Get("/api/items", h.ListItems)
	r.Get("/api/items/search", h.SearchItems)
	r.Get("/api/items/{id}/price-history", h.PriceHistory)
	r.With(optionalAuth).Get("/api/items/{id}", h.GetItem)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/items", h.CreateItem)
		r.Get("/api/items/mine", h.ListMine)
		r.Patch("/api/items/{id}/price", h.UpdatePrice)
		r.Post("/api/items/{id}/images", h.AddImage)
	})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// ListItems returns the public catalog, newest first
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter, ok := itemFilter(w, r)
	if !ok {
		return
	}

	page, err := h.catalog.ListApproved(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "list items")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newItemPageResponse(page))
}

func (h *CatalogHandler) SearchItems(w http.ResponseWriter, r *http.Request) {
	filter, ok := itemFilter(w, r)
	if !ok {
		return
	}

	page, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "search items")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newItemPageResponse(page))
}

// GetItem returns an approved item with its images and records the view
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	item, err := h.catalog.GetApprovedByID(r.Context(), itemID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get item")
		return
	}

	images, err := h.catalog.ListImages(r.Context(), itemID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get item")
		return
	}

	if identity, ok := middleware.GetIdentity(r.Context()); ok {
		if err := h.views.RecordView(r.Context(), identity, itemID); err != nil {
			h.logger.Warn("Failed to record item view",
				zap.Error(err),
				zap.String("item_id", itemID.String()),
				zap.String("user_id", identity.ID.String()),
			)
		}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ItemDetailResponse{
		ItemResponse: ItemResponse{Item: item, TotalCents: item.TotalCents()},
		Images:       images,
	})
}

func (h *CatalogHandler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	history, err := h.catalog.PriceHistory(r.Context(), itemID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get price history")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, history)
}

// CreateItem lists a new item for moderation
func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req CreateItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{{Field: "title", Message: "This field is required"}})
		return
	}

	item, err := h.catalog.CreateItem(r.Context(), identity.ID, service.NewItem{
		Title:         req.Title,
		Description:   req.Description,
		CategoryID:    uuid.MustParse(req.CategoryID),
		PriceCents:    req.PriceCents,
		ShippingCents: req.ShippingCents,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "create item")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, ItemResponse{Item: item, TotalCents: item.TotalCents()})
}

func (h *CatalogHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	items, err := h.catalog.ListMine(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list items")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newItemResponses(items))
}

// UpdatePrice answers 204 when the price did not change
func (h *CatalogHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdatePriceRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	change, err := h.catalog.UpdatePrice(r.Context(), identity.ID, itemID, req.PriceCents)
	if err != nil {
		respondServiceError(w, h.logger, err, "update price")
		return
	}
	if change == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, change)
}

func (h *CatalogHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req AddImageRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	image, err := h.catalog.AddImage(r.Context(), identity.ID, itemID, req.ObjectKey)
	if err != nil {
		respondServiceError(w, h.logger, err, "add image")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, image)
}
