package service

import "errors"

// Errors every service operation is classified into. Callers match them with
// errors.Is; the wrapped message carries the specific reason.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrExternalService = errors.New("external service error")
)
