package transport

import (
	"errors"
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"go.uber.org/zap"
)

// statusFor maps the service error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the error envelope for a failed service call.
// Unexpected errors are logged and never echoed to the client.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, status, "failed to "+action)
		return
	}

	logger.Debug("Request rejected", zap.String("action", action), zap.Int("status", status), zap.Error(err))
	middleware.RespondWithError(w, status, err.Error())
}
