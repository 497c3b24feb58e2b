package transport

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SetInterestsRequest replaces the caller's interest categories
type SetInterestsRequest struct {
	CategoryIDs []uuid.UUID `json:"category_ids" validate:"max=50"`
}

// RecommendationsResponse carries both recommendation variants
type RecommendationsResponse struct {
	V1 []ItemResponse `json:"v1"`
	V2 []ItemResponse `json:"v2"`
}

// ProfileHandler serves the caller's profile and recommendations
type ProfileHandler struct {
	profiles service.ProfileService
	logger   *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/profile", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetProfile)
		r.Put("/interests", h.SetInterests)
		r.Get("/recommendations", h.Recommendations)
	})
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get profile")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) SetInterests(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	var req SetInterestsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	profile, err := h.profiles.SetInterests(r.Context(), identity.ID, req.CategoryIDs)
	if err != nil {
		respondServiceError(w, h.logger, err, "set interests")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	recs, err := h.profiles.Recommendations(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get recommendations")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, RecommendationsResponse{
		V1: newItemResponses(recs.V1),
		V2: newItemResponses(recs.V2),
	})
}
