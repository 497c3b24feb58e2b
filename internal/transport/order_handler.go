package transport

import (
	"net/http"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuyResponse is the result of a purchase. CheckoutURL points at the
// checkout endpoint when payment is still required.
type BuyResponse struct {
	Order            *domain.Order `json:"order"`
	CheckoutRequired bool          `json:"checkout_required"`
	CheckoutURL      string        `json:"checkout_url,omitempty"`
}

// OrderHandler serves the buyer side of the order lifecycle
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/items/{id}/buy", h.Buy)
		r.Get("/api/orders", h.ListMine)
		r.Post("/api/orders/{id}/checkout", h.Checkout)
	})
}

// Buy reserves the item for the caller
func (h *OrderHandler) Buy(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.orders.CreateOrder(r.Context(), identity, itemID)
	if err != nil {
		respondServiceError(w, h.logger, err, "create order")
		return
	}

	resp := BuyResponse{Order: result.Order, CheckoutRequired: result.CheckoutRequired}
	if result.CheckoutRequired {
		resp.CheckoutURL = "/api/orders/" + result.Order.ID.String() + "/checkout"
	}
	middleware.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListMine(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "list orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// Checkout opens a payment session, or reports demo mode
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	orderID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.orders.BeginCheckout(r.Context(), orderID, identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "start checkout")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}
