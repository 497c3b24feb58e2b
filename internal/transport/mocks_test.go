package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

// Mock repository backing the real UserService

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// Stub services for handler tests. Unset fields return zero values.

type stubCatalog struct {
	service.CatalogService
	item   *domain.Item
	images []*service.ItemImageView
	err    error
}

func (s *stubCatalog) GetApprovedByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.item, nil
}

func (s *stubCatalog) ListImages(ctx context.Context, itemID uuid.UUID) ([]*service.ItemImageView, error) {
	return s.images, nil
}

func (s *stubCatalog) ListApproved(ctx context.Context, filter repository.ItemFilter) (*service.ItemPage, error) {
	return &service.ItemPage{Items: []*domain.Item{s.item}, Total: 1, Page: filter.Page, PageSize: filter.PageSize}, nil
}

type recordedView struct {
	viewer uuid.UUID
	item   uuid.UUID
}

type stubViews struct {
	views []recordedView
	err   error
}

func (s *stubViews) RecordView(ctx context.Context, viewer domain.Identity, itemID uuid.UUID) error {
	s.views = append(s.views, recordedView{viewer: viewer.ID, item: itemID})
	return s.err
}

func (s *stubViews) ViewedCategoriesOf(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

type stubOrders struct {
	service.OrderService
	result   *service.OrderResult
	checkout *service.CheckoutResult
	stale    time.Duration
	err      error
}

func (s *stubOrders) CreateOrder(ctx context.Context, buyer domain.Identity, itemID uuid.UUID) (*service.OrderResult, error) {
	return s.result, s.err
}

func (s *stubOrders) BeginCheckout(ctx context.Context, orderID, requester uuid.UUID) (*service.CheckoutResult, error) {
	return s.checkout, s.err
}

func (s *stubOrders) ListStalePending(ctx context.Context, olderThan time.Duration) ([]*domain.Order, error) {
	s.stale = olderThan
	return []*domain.Order{}, s.err
}

type stubConversations struct {
	service.ConversationService
	viewer   domain.Identity
	messages []*domain.Message
	err      error
}

func (s *stubConversations) ListVisible(ctx context.Context, conversationID uuid.UUID, viewer domain.Identity) ([]*domain.Message, error) {
	s.viewer = viewer
	return s.messages, s.err
}

// helpers

func bearer(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userID.String(),
		"username": "tester",
		"role":     role,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return "Bearer " + token
}

func authFor() func(http.Handler) http.Handler {
	return middleware.AuthMiddleware(testSecret, nopLogger)
}

func optionalAuthFor() func(http.Handler) http.Handler {
	return middleware.OptionalAuthMiddleware(testSecret, nopLogger)
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler)
}

func newRouter(handlers ...routeRegistrar) chi.Router {
	r := chi.NewRouter()
	auth := authFor()
	for _, h := range handlers {
		h.RegisterRoutes(r, auth)
	}
	return r
}

func approvedItem() *domain.Item {
	return &domain.Item{
		ID:            uuid.New(),
		Title:         "Bike",
		PriceCents:    10000,
		ShippingCents: 500,
		Status:        domain.ItemStatusApproved,
		SellerID:      uuid.New(),
		CreatedAt:     time.Now(),
	}
}

var nopLogger = zap.NewNop()
