package submissions

import (
	"errors"
	"net/http"
)

// Domain errors for submission operations.
var (
	ErrNotFound         = errors.New("submission not found")
	ErrDuplicate        = errors.New("submission already exists")
	ErrInvalidStatus    = errors.New("invalid submission status")
	ErrInvalidID        = errors.New("invalid submission id")
	ErrNotPending       = errors.New("submission is no longer pending")
	ErrNotReprocessable = errors.New("submission can only be reprocessed from error status")
)

// MapHTTPStatus maps submission domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotReprocessable), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
