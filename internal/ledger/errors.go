package ledger

import (
	"errors"
	"net/http"
)

var (
	// ErrProfileNotFound aborts an award for a user without a profile.
	ErrProfileNotFound = errors.New("user profile not found")

	// ErrMalformedProfile aborts an award when stored totals are not
	// non-negative numbers or the badge set is not a list of ids.
	ErrMalformedProfile = errors.New("malformed user profile")

	// ErrConflict reports a serialization failure against a concurrent
	// writer of the same profile. The update had no effect and may be retried.
	ErrConflict = errors.New("concurrent profile update")

	ErrInvalidAward = errors.New("invalid award")
)

// MapHTTPStatus maps ledger errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidAward):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
