// Package apperr defines the failure taxonomy shared by the booking core.
// Package-level sentinels wrap one of these so callers can branch with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound covers unknown tenants, providers and bookings.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a slot is already taken.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument covers malformed dates, times and blank identifiers.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAccessDenied is returned when an ownership check fails.
	ErrAccessDenied = errors.New("access denied")
)

// HTTPStatus maps an error to the status code handlers should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
