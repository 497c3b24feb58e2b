package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"marketplace/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
	UserRoleKey contextKey = "user_role"
)

var (
	errMissingHeader = errors.New("missing authorization header")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errTokenExpired  = errors.New("token expired")
	errInvalidToken  = errors.New("invalid token")
	errInvalidClaims = errors.New("invalid token claims")
)

// AuthMiddleware validates JWT tokens and rejects requests without one
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, jwtSecret)
			if err != nil {
				logger.Debug("Authentication failed", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the caller identity when a valid token is
// present and lets anonymous requests through otherwise
func OptionalAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, err := authenticate(r, jwtSecret)
			if err != nil {
				if !errors.Is(err, errMissingHeader) {
					logger.Debug("Ignoring invalid token on public route", zap.Error(err))
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, jwtSecret string) (context.Context, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, errInvalidToken
	}
	if !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidClaims
	}

	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errInvalidClaims
	}
	role, ok := claims["role"].(string)
	if !ok {
		return nil, errInvalidClaims
	}
	username, _ := claims["username"].(string)

	identity := domain.Identity{
		ID:         userID,
		Username:   username,
		Privileged: role == domain.RoleAdmin,
	}

	ctx := context.WithValue(r.Context(), IdentityKey, identity)
	ctx = context.WithValue(ctx, UserRoleKey, role)
	return ctx, nil
}

// GetIdentity extracts the authenticated caller from request context
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	return identity, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	identity, ok := GetIdentity(ctx)
	return identity.ID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}
