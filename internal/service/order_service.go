package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/notify"
	"marketplace/internal/payment"
	"marketplace/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DemoPaymentMessage is returned by BeginCheckout when no processor is configured
const DemoPaymentMessage = "payment disabled (demo)"

// PaymentSettings are the checkout parameters that do not depend on the order
type PaymentSettings struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// OrderResult is the outcome of CreateOrder
type OrderResult struct {
	Order            *domain.Order `json:"order"`
	CheckoutRequired bool          `json:"checkout_required"`
}

// CheckoutResult is the outcome of BeginCheckout
type CheckoutResult struct {
	RedirectURL string `json:"redirect_url,omitempty"`
	Demo        bool   `json:"demo"`
	Message     string `json:"message,omitempty"`
}

// OrderService defines the interface for the purchase lifecycle
type OrderService interface {
	CreateOrder(ctx context.Context, buyer domain.Identity, itemID uuid.UUID) (*OrderResult, error)
	BeginCheckout(ctx context.Context, orderID, requester uuid.UUID) (*CheckoutResult, error)
	FinalizeOrder(ctx context.Context, orderID uuid.UUID, outcome domain.OrderStatus) (*domain.Order, error)
	ListMine(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]*domain.Order, error)
}

type orderService struct {
	items     repository.ItemRepository
	orders    repository.OrderRepository
	processor payment.Processor
	settings  PaymentSettings
	sink      notify.Sink
	logger    *zap.Logger
}

// NewOrderService creates a new instance of OrderService. A nil processor
// runs the service in demo mode, where orders are paid on creation.
func NewOrderService(
	items repository.ItemRepository,
	orders repository.OrderRepository,
	processor payment.Processor,
	settings PaymentSettings,
	sink notify.Sink,
	logger *zap.Logger,
) OrderService {
	if settings.Currency == "" {
		settings.Currency = "eur"
	}
	if sink == nil {
		sink = notify.Discard{}
	}
	return &orderService{
		items:     items,
		orders:    orders,
		processor: processor,
		settings:  settings,
		sink:      sink,
		logger:    logger,
	}
}

func (s *orderService) demo() bool {
	return s.processor == nil
}

// CreateOrder reserves the item for the buyer and records a PENDING order
// priced at the item's current total
func (s *orderService) CreateOrder(ctx context.Context, buyer domain.Identity, itemID uuid.UUID) (*OrderResult, error) {
	item, err := s.items.FindApprovedByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	if item.SellerID == buyer.ID {
		return nil, fmt.Errorf("%w: cannot buy your own item", ErrForbidden)
	}
	if item.IsSold {
		return nil, fmt.Errorf("%w: item already sold", ErrConflict)
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.New(),
		BuyerID:   buyer.ID,
		ItemID:    item.ID,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateReserving(ctx, order); err != nil {
		if errors.Is(err, repository.ErrItemUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("item_id", item.ID.String()),
		zap.String("buyer_id", buyer.ID.String()),
		zap.Int64("total_cents", order.TotalCents),
	)
	metrics.RecordOrderCreated(s.demo())

	s.sink.NotifyOrderCreated(ctx, notify.OrderCreated{
		OrderID:       order.ID,
		BuyerUsername: buyer.Username,
		ItemTitle:     item.Title,
	})

	if !s.demo() {
		return &OrderResult{Order: order, CheckoutRequired: true}, nil
	}

	// the reservation is committed; a failed settle leaves a PENDING order
	// for operators to finalize instead of failing the purchase
	if _, err := s.orders.FinalizeIfPending(ctx, order.ID, domain.OrderStatusPaid); err != nil {
		s.logger.Error("Demo order left pending",
			zap.Error(err),
			zap.String("order_id", order.ID.String()),
		)
		return &OrderResult{Order: order, CheckoutRequired: false}, nil
	}
	metrics.RecordOrderFinalized(string(domain.OrderStatusPaid))
	order.Status = domain.OrderStatusPaid

	return &OrderResult{Order: order, CheckoutRequired: false}, nil
}

// BeginCheckout opens a hosted checkout session for a PENDING order. A
// processor failure leaves the order PENDING and the item reserved.
func (s *orderService) BeginCheckout(ctx context.Context, orderID, requester uuid.UUID) (*CheckoutResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	if order.BuyerID != requester {
		return nil, fmt.Errorf("%w: only the buyer can pay for this order", ErrForbidden)
	}

	if s.demo() {
		return &CheckoutResult{Demo: true, Message: DemoPaymentMessage}, nil
	}

	if order.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrConflict, order.Status)
	}

	item, err := s.items.FindByID(ctx, order.ItemID)
	if err != nil {
		return nil, err
	}

	req := payment.CheckoutRequest{
		Currency:   s.settings.Currency,
		ItemTitle:  item.Title,
		UnitAmount: order.TotalCents,
		SuccessURL: withOrderID(s.settings.SuccessURL, order.ID),
		CancelURL:  withOrderID(s.settings.CancelURL, order.ID),
		Metadata:   map[string]string{"order_id": order.ID.String()},
	}

	session, err := s.processor.CreateCheckoutSession(ctx, req)
	metrics.RecordCheckoutSession(err)
	if err != nil {
		s.logger.Error("Checkout session failed", zap.Error(err), zap.String("order_id", order.ID.String()))
		return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	if err := s.orders.SetCheckoutSession(ctx, order.ID, session.ID); err != nil {
		return nil, err
	}

	return &CheckoutResult{RedirectURL: session.URL}, nil
}

// FinalizeOrder moves a PENDING order to PAID or FAILED. Repeating the same
// outcome is a no-op; a different outcome on a finalized order is a conflict.
func (s *orderService) FinalizeOrder(ctx context.Context, orderID uuid.UUID, outcome domain.OrderStatus) (*domain.Order, error) {
	if !outcome.Terminal() {
		return nil, fmt.Errorf("%w: %s is not a final status", ErrConflict, outcome)
	}

	moved, err := s.orders.FinalizeIfPending(ctx, orderID, outcome)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	if moved {
		metrics.RecordOrderFinalized(string(outcome))
		s.logger.Info("Order finalized", zap.String("order_id", orderID.String()), zap.String("status", string(outcome)))
		return order, nil
	}

	if order.Status != outcome {
		return nil, fmt.Errorf("%w: order is already %s", ErrConflict, order.Status)
	}
	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return s.orders.ListByBuyer(ctx, buyerID)
}

// ListStalePending lists PENDING orders older than olderThan for operators.
// Nothing is cancelled automatically.
func (s *orderService) ListStalePending(ctx context.Context, olderThan time.Duration) ([]*domain.Order, error) {
	return s.orders.ListPendingOlderThan(ctx, time.Now().Add(-olderThan))
}

func withOrderID(base string, orderID uuid.UUID) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?order_id=" + orderID.String()
	}
	q := u.Query()
	q.Set("order_id", orderID.String())
	u.RawQuery = q.Encode()
	return u.String()
}
