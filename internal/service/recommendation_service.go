package service

import (
	"context"

	"marketplace/internal/domain"
	"marketplace/internal/metrics"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// RecommendationLimit caps both recommendation variants
const RecommendationLimit = 6

// CategorySource is the read side the recommendation engine depends on
type CategorySource interface {
	InterestCategories(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	ViewedCategories(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	// AvailableInCategories returns APPROVED unsold items, newest first.
	// limit <= 0 means no limit.
	AvailableInCategories(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]*domain.Item, error)
}

type repositorySource struct {
	profiles repository.ProfileRepository
	views    repository.ViewEventRepository
	items    repository.ItemRepository
}

// NewRepositorySource backs a CategorySource with the SQL repositories
func NewRepositorySource(
	profiles repository.ProfileRepository,
	views repository.ViewEventRepository,
	items repository.ItemRepository,
) CategorySource {
	return &repositorySource{profiles: profiles, views: views, items: items}
}

func (s *repositorySource) InterestCategories(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.profiles.InterestCategoryIDs(ctx, userID)
}

func (s *repositorySource) ViewedCategories(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return s.views.ViewedCategoryIDs(ctx, userID)
}

func (s *repositorySource) AvailableInCategories(ctx context.Context, categoryIDs []uuid.UUID, limit int) ([]*domain.Item, error) {
	return s.items.ListAvailableByCategories(ctx, categoryIDs, limit)
}

// RecommendationService suggests items from a user's interests (V1) and
// from interests plus browsing history (V2)
type RecommendationService interface {
	InterestBased(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error)
	InterestAndHistoryBased(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error)
	CandidatesV1(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error)
	CandidatesV2(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error)
}

type recommendationService struct {
	source CategorySource
}

// NewRecommendationService creates a new instance of RecommendationService
func NewRecommendationService(source CategorySource) RecommendationService {
	return &recommendationService{source: source}
}

func (s *recommendationService) InterestBased(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error) {
	categories, err := s.interestCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.itemsIn(ctx, categories, RecommendationLimit)
	if err != nil {
		return nil, err
	}
	metrics.RecordRecommendations("v1", len(items))
	return items, nil
}

func (s *recommendationService) InterestAndHistoryBased(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error) {
	categories, err := s.interestAndViewedCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.itemsIn(ctx, categories, RecommendationLimit)
	if err != nil {
		return nil, err
	}
	metrics.RecordRecommendations("v2", len(items))
	return items, nil
}

// CandidatesV1 is the untruncated V1 candidate set
func (s *recommendationService) CandidatesV1(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error) {
	categories, err := s.interestCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.itemsIn(ctx, categories, 0)
}

// CandidatesV2 is the untruncated V2 candidate set
func (s *recommendationService) CandidatesV2(ctx context.Context, userID uuid.UUID) ([]*domain.Item, error) {
	categories, err := s.interestAndViewedCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.itemsIn(ctx, categories, 0)
}

func (s *recommendationService) interestCategories(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	interests, err := s.source.InterestCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uniqueIDs(interests), nil
}

func (s *recommendationService) interestAndViewedCategories(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	interests, err := s.source.InterestCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	viewed, err := s.source.ViewedCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return uniqueIDs(append(append([]uuid.UUID{}, interests...), viewed...)), nil
}

// itemsIn returns no items for an empty category set, there is no fallback
func (s *recommendationService) itemsIn(ctx context.Context, categories []uuid.UUID, limit int) ([]*domain.Item, error) {
	if len(categories) == 0 {
		return []*domain.Item{}, nil
	}

	items, err := s.source.AvailableInCategories(ctx, categories, limit)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Item, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if !item.Available() {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// uniqueIDs keeps the first occurrence of each id
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
