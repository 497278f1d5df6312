package domain

import "errors"

// Error kinds returned by the lifecycle core. Callers classify with errors.Is;
// the wrapped message carries the human-readable detail.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")
)

// IsKind reports whether err belongs to one of the domain error kinds.
func IsKind(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrInvalidState, ErrUnauthorized, ErrConflict, ErrUpstream} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
