package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// Recommendations holds both variants side by side
type Recommendations struct {
	V1 []*domain.Item `json:"v1"`
	V2 []*domain.Item `json:"v2"`
}

// ProfileService defines the interface for profile business logic
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error)
	SetInterests(ctx context.Context, userID uuid.UUID, categoryIDs []uuid.UUID) (*domain.UserProfile, error)
	Recommendations(ctx context.Context, userID uuid.UUID) (*Recommendations, error)
}

type profileService struct {
	profiles        repository.ProfileRepository
	recommendations RecommendationService
}

// NewProfileService creates a new instance of ProfileService
func NewProfileService(profiles repository.ProfileRepository, recommendations RecommendationService) ProfileService {
	return &profileService{
		profiles:        profiles,
		recommendations: recommendations,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.UserProfile, error) {
	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return profile, nil
}

// SetInterests replaces the whole interest set
func (s *profileService) SetInterests(ctx context.Context, userID uuid.UUID, categoryIDs []uuid.UUID) (*domain.UserProfile, error) {
	err := s.profiles.ReplaceInterests(ctx, userID, uniqueIDs(categoryIDs))
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) || errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}
	return s.GetProfile(ctx, userID)
}

func (s *profileService) Recommendations(ctx context.Context, userID uuid.UUID) (*Recommendations, error) {
	v1, err := s.recommendations.InterestBased(ctx, userID)
	if err != nil {
		return nil, err
	}
	v2, err := s.recommendations.InterestAndHistoryBased(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Recommendations{V1: v1, V2: v2}, nil
}
