package transport

import (
	"errors"
	"net/http"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=150,alphanum"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	User        UserProfile `json:"user"`
}

// UserProfile is the public view of an account
type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	IsPrivileged bool      `json:"is_privileged"`
	CreatedAt    time.Time `json:"created_at"`
}

func newUserProfile(user *domain.User) UserProfile {
	return UserProfile{
		ID:           user.ID.String(),
		Email:        user.Email,
		Username:     user.Username,
		Role:         user.Role,
		IsPrivileged: user.IsPrivileged(),
		CreatedAt:    user.CreatedAt,
	}
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/me", h.Me)
		})
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrConflict) {
			middleware.RespondWithError(w, http.StatusConflict, "email or username already taken")
			return
		}
		respondServiceError(w, h.logger, err, "register user")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newUserProfile(user))
}

// Login handles user authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	accessToken, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			middleware.RespondWithError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondServiceError(w, h.logger, err, "login")
		return
	}

	h.logger.Info("User logged in", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken: accessToken,
		User:        newUserProfile(user),
	})
}

// Me returns the account behind the access token
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(r.Context(), identity.ID)
	if err != nil {
		respondServiceError(w, h.logger, err, "get user")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newUserProfile(user))
}
