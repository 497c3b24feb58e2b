package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/notify"
	"marketplace/internal/payment"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing

// mockUserRepository provisions the profile alongside the user, as the SQL
// repository does in one transaction. profileErr fails that step, leaving
// neither row behind.
type mockUserRepository struct {
	users      map[string]*domain.User
	profiles   *mockProfileRepository
	profileErr error
}

func newMockUserRepository(profiles *mockProfileRepository) *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User), profiles: profiles}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.ErrUserAlreadyExists
		}
	}
	if m.profileErr != nil {
		return fmt.Errorf("failed to create profile: %w", m.profileErr)
	}
	m.users[user.Email] = user
	return m.profiles.Create(ctx, user.ID)
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

type mockProfileRepository struct {
	profiles   map[uuid.UUID]*domain.UserProfile
	categories *mockCategoryRepository
	creates    int
}

func newMockProfileRepository(categories *mockCategoryRepository) *mockProfileRepository {
	return &mockProfileRepository{
		profiles:   make(map[uuid.UUID]*domain.UserProfile),
		categories: categories,
	}
}

func (m *mockProfileRepository) Create(ctx context.Context, userID uuid.UUID) error {
	m.creates++
	if _, exists := m.profiles[userID]; !exists {
		m.profiles[userID] = &domain.UserProfile{UserID: userID, InterestIDs: []uuid.UUID{}, CreatedAt: time.Now()}
	}
	return nil
}

func (m *mockProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	profile, exists := m.profiles[userID]
	if !exists {
		return nil, repository.ErrProfileNotFound
	}
	return profile, nil
}

func (m *mockProfileRepository) InterestCategoryIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	profile, exists := m.profiles[userID]
	if !exists {
		return []uuid.UUID{}, nil
	}
	return append([]uuid.UUID{}, profile.InterestIDs...), nil
}

func (m *mockProfileRepository) ReplaceInterests(ctx context.Context, userID uuid.UUID, categoryIDs []uuid.UUID) error {
	profile, exists := m.profiles[userID]
	if !exists {
		return repository.ErrProfileNotFound
	}
	for _, id := range categoryIDs {
		if _, ok := m.categories.categories[id]; !ok {
			return repository.ErrCategoryNotFound
		}
	}
	profile.InterestIDs = append([]uuid.UUID{}, categoryIDs...)
	return nil
}

type mockCategoryRepository struct {
	categories map[uuid.UUID]*domain.Category
	items      *mockItemRepository
}

func newMockCategoryRepository() *mockCategoryRepository {
	return &mockCategoryRepository{categories: make(map[uuid.UUID]*domain.Category)}
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.categories {
		if c.Name == category.Name || c.Slug == category.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories[category.ID] = category
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	out := make([]*domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return c, nil
}

func (m *mockCategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	if m.items != nil {
		for _, item := range m.items.items {
			if item.CategoryID == id {
				return repository.ErrCategoryInUse
			}
		}
	}
	delete(m.categories, id)
	return nil
}

type mockItemRepository struct {
	mu         sync.Mutex
	items      map[uuid.UUID]*domain.Item
	images     map[uuid.UUID][]*domain.ItemImage
	history    map[uuid.UUID][]*domain.PriceChange
	categories *mockCategoryRepository
}

func newMockItemRepository(categories *mockCategoryRepository) *mockItemRepository {
	m := &mockItemRepository{
		items:      make(map[uuid.UUID]*domain.Item),
		images:     make(map[uuid.UUID][]*domain.ItemImage),
		history:    make(map[uuid.UUID][]*domain.PriceChange),
		categories: categories,
	}
	if categories != nil {
		categories.items = m
	}
	return m
}

// put stores a copy so tests cannot mutate repository state by accident
func (m *mockItemRepository) put(item *domain.Item) *domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *item
	m.items[item.ID] = &stored
	return item
}

func (m *mockItemRepository) Create(ctx context.Context, item *domain.Item) error {
	if m.categories != nil {
		if _, ok := m.categories.categories[item.CategoryID]; !ok {
			return repository.ErrCategoryNotFound
		}
	}
	m.put(item)
	return nil
}

func (m *mockItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *mockItemRepository) FindApprovedByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	item, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.ItemStatusApproved {
		return nil, repository.ErrItemNotFound
	}
	return item, nil
}

func (m *mockItemRepository) available(match func(*domain.Item) bool) []*domain.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Item{}
	for _, item := range m.items {
		if item.Available() && match(item) {
			copied := *item
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(items []*domain.Item, filter repository.ItemFilter) []*domain.Item {
	start := (filter.Page - 1) * filter.PageSize
	if start >= len(items) {
		return []*domain.Item{}
	}
	end := start + filter.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (m *mockItemRepository) ListApproved(ctx context.Context, filter repository.ItemFilter) ([]*domain.Item, int, error) {
	items := m.available(func(item *domain.Item) bool {
		return filter.CategoryID == nil || item.CategoryID == *filter.CategoryID
	})
	return page(items, filter), len(items), nil
}

func (m *mockItemRepository) Search(ctx context.Context, query string, filter repository.ItemFilter) ([]*domain.Item, int, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	items := m.available(func(item *domain.Item) bool {
		if filter.CategoryID != nil && item.CategoryID != *filter.CategoryID {
			return false
		}
		return strings.Contains(strings.ToLower(item.Title), q) || strings.Contains(strings.ToLower(item.Description), q)
	})
	return page(items, filter), len(items), nil
}

func (m *mockItemRepository) ListAvailableByCategories(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]*domain.Item, error) {
	set := make(map[uuid.UUID]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		set[id] = true
	}
	items := m.available(func(item *domain.Item) bool { return set[item.CategoryID] })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *mockItemRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Item{}
	for _, item := range m.items {
		if item.SellerID == sellerID {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockItemRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ItemStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return repository.ErrItemNotFound
	}
	item.Status = status
	return nil
}

func (m *mockItemRepository) UpdatePrice(ctx context.Context, id uuid.UUID, newPriceCents int64) (*domain.PriceChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	if item.PriceCents == newPriceCents {
		return nil, nil
	}
	change := &domain.PriceChange{
		ID:            uuid.New(),
		ItemID:        id,
		OldPriceCents: item.PriceCents,
		NewPriceCents: newPriceCents,
		ChangedAt:     time.Now(),
	}
	item.PriceCents = newPriceCents
	m.history[id] = append(m.history[id], change)
	return change, nil
}

func (m *mockItemRepository) PriceHistory(ctx context.Context, id uuid.UUID) ([]*domain.PriceChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.PriceChange{}, m.history[id]...), nil
}

func (m *mockItemRepository) AddImage(ctx context.Context, image *domain.ItemImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	image.Position = len(m.images[image.ItemID])
	m.images[image.ItemID] = append(m.images[image.ItemID], image)
	return nil
}

func (m *mockItemRepository) ListImages(ctx context.Context, itemID uuid.UUID) ([]*domain.ItemImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ItemImage{}, m.images[itemID]...), nil
}

type mockViewEventRepository struct {
	events []*domain.ItemViewEvent
	items  *mockItemRepository
}

func (m *mockViewEventRepository) Record(ctx context.Context, event *domain.ItemViewEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockViewEventRepository) ViewedCategoryIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	out := []uuid.UUID{}
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.UserID != userID {
			continue
		}
		if item, err := m.items.FindByID(ctx, e.ItemID); err == nil {
			out = append(out, item.CategoryID)
		}
	}
	return out, nil
}

type mockConversationRepository struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID][]*domain.Message
	writes        int
}

func newMockConversationRepository() *mockConversationRepository {
	return &mockConversationRepository{
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID][]*domain.Message),
	}
}

func (m *mockConversationRepository) GetOrCreate(ctx context.Context, itemID, buyerID, sellerID uuid.UUID) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if buyerID == sellerID {
		return nil, repository.ErrSelfConversation
	}
	for _, c := range m.conversations {
		if c.ItemID == itemID && c.BuyerID == buyerID && c.SellerID == sellerID {
			return c, nil
		}
	}
	now := time.Now()
	c := &domain.Conversation{ID: uuid.New(), ItemID: itemID, BuyerID: buyerID, SellerID: sellerID, CreatedAt: now, UpdatedAt: now}
	m.conversations[c.ID] = c
	m.writes++
	return c, nil
}

func (m *mockConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	return c, nil
}

func (m *mockConversationRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Conversation{}
	for _, c := range m.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *mockConversationRepository) AppendMessage(ctx context.Context, message *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[message.ConversationID]
	if !ok {
		return repository.ErrConversationNotFound
	}
	m.messages[c.ID] = append(m.messages[c.ID], message)
	c.UpdatedAt = message.CreatedAt
	m.writes++
	return nil
}

func (m *mockConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Message{}, m.messages[conversationID]...), nil
}

func (m *mockConversationRepository) SetMessageHidden(ctx context.Context, messageID uuid.UUID, hidden bool) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msgs := range m.messages {
		for _, msg := range msgs {
			if msg.ID == messageID {
				msg.IsHidden = hidden
				return msg, nil
			}
		}
	}
	return nil, repository.ErrMessageNotFound
}

// mockOrderRepository reserves items in the shared item mock under its lock,
// mirroring the compare-and-swap of the SQL implementation
type mockOrderRepository struct {
	items       *mockItemRepository
	orders      map[uuid.UUID]*domain.Order
	finalizeErr error
}

func newMockOrderRepository(items *mockItemRepository) *mockOrderRepository {
	return &mockOrderRepository{items: items, orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepository) CreateReserving(ctx context.Context, order *domain.Order) error {
	m.items.mu.Lock()
	defer m.items.mu.Unlock()
	item, ok := m.items.items[order.ItemID]
	if !ok || !item.Available() {
		return repository.ErrItemUnavailable
	}
	item.IsSold = true
	order.TotalCents = item.TotalCents()
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.items.mu.Lock()
	defer m.items.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) FinalizeIfPending(ctx context.Context, id uuid.UUID, outcome domain.OrderStatus) (bool, error) {
	if m.finalizeErr != nil {
		return false, m.finalizeErr
	}
	m.items.mu.Lock()
	defer m.items.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = outcome
	if outcome == domain.OrderStatusFailed {
		m.items.items[o.ItemID].IsSold = false
	}
	return true, nil
}

func (m *mockOrderRepository) SetCheckoutSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	m.items.mu.Lock()
	defer m.items.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.CheckoutSessionID = &sessionID
	return nil
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	m.items.mu.Lock()
	defer m.items.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	m.items.mu.Lock()
	defer m.items.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakeProcessor struct {
	requests []payment.CheckoutRequest
	err      error
}

func (f *fakeProcessor) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.OrderCreated
}

func (s *recordingSink) NotifyOrderCreated(ctx context.Context, event notify.OrderCreated) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type fakeMediaStore struct {
	keys map[string]bool
}

func (f *fakeMediaStore) Exists(ctx context.Context, key string) (bool, error) {
	return f.keys[key], nil
}

func (f *fakeMediaStore) URL(key string) string {
	return "https://media.example/" + key
}

// marketplace fixture wiring the mocks together

type fixture struct {
	categories    *mockCategoryRepository
	items         *mockItemRepository
	profiles      *mockProfileRepository
	views         *mockViewEventRepository
	conversations *mockConversationRepository
	orders        *mockOrderRepository
}

func newFixture() *fixture {
	categories := newMockCategoryRepository()
	items := newMockItemRepository(categories)
	return &fixture{
		categories:    categories,
		items:         items,
		profiles:      newMockProfileRepository(categories),
		views:         &mockViewEventRepository{items: items},
		conversations: newMockConversationRepository(),
		orders:        newMockOrderRepository(items),
	}
}

func (f *fixture) category(name string) *domain.Category {
	c := &domain.Category{ID: uuid.New(), Name: name, Slug: strings.ToLower(name), CreatedAt: time.Now()}
	f.categories.categories[c.ID] = c
	return c
}

func (f *fixture) item(seller uuid.UUID, category uuid.UUID, status domain.ItemStatus, age time.Duration) *domain.Item {
	now := time.Now().Add(-age)
	return f.items.put(&domain.Item{
		ID:            uuid.New(),
		Title:         "item " + uuid.NewString()[:6],
		Description:   "description",
		CategoryID:    category,
		PriceCents:    1299,
		ShippingCents: 300,
		Status:        status,
		SellerID:      seller,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}
