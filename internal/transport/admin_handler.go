package transport

import (
	"net/http"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DefaultStaleAfter is used when older_than is absent
const DefaultStaleAfter = 24 * time.Hour

// CreateCategoryRequest represents a new category
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// SetItemStatusRequest is the listing moderation decision
type SetItemStatusRequest struct {
	Status domain.ItemStatus `json:"status" validate:"required,itemstatus"`
}

// SetVisibilityRequest hides or unhides a message
type SetVisibilityRequest struct {
	Hidden *bool `json:"hidden" validate:"required"`
}

// FinalizeOrderRequest records the payment outcome of an order
type FinalizeOrderRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required,oneof=PAID FAILED"`
}

// AdminHandler serves moderation and operations endpoints
type AdminHandler struct {
	catalog       service.CatalogService
	conversations service.ConversationService
	orders        service.OrderService
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	catalog service.CatalogService,
	conversations service.ConversationService,
	orders service.OrderService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		catalog:       catalog,
		conversations: conversations,
		orders:        orders,
		logger:        logger,
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireAdmin(h.logger))

		r.Post("/categories", h.CreateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)
		r.Patch("/items/{id}/status", h.SetItemStatus)
		r.Patch("/messages/{id}/visibility", h.SetMessageVisibility)
		r.Post("/orders/{id}/finalize", h.FinalizeOrder)
		r.Get("/orders/stale", h.StaleOrders)
	})
}

func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	category, err := h.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		respondServiceError(w, h.logger, err, "create category")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req SetItemStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	item, err := h.catalog.SetItemStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, h.logger, err, "set item status")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, ItemResponse{Item: item, TotalCents: item.TotalCents()})
}

func (h *AdminHandler) SetMessageVisibility(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req SetVisibilityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	msg, err := h.conversations.SetMessageHidden(r.Context(), id, *req.Hidden)
	if err != nil {
		respondServiceError(w, h.logger, err, "set message visibility")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, msg)
}

// FinalizeOrder stands in for the payment provider webhook
func (h *AdminHandler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req FinalizeOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	order, err := h.orders.FinalizeOrder(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, h.logger, err, "finalize order")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// StaleOrders lists PENDING orders older than ?older_than (a Go duration)
func (h *AdminHandler) StaleOrders(w http.ResponseWriter, r *http.Request) {
	olderThan := DefaultStaleAfter
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid older_than")
			return
		}
		olderThan = parsed
	}

	orders, err := h.orders.ListStalePending(r.Context(), olderThan)
	if err != nil {
		respondServiceError(w, h.logger, err, "list stale orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}
