package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every FinFolio component. Callers branch with errors.Is;
// concrete errors (client errors, ValidationError) match one of these sentinels.
var (
	// ErrNotFound: symbol, owner or record absent
	ErrNotFound = errors.New("not found")
	// ErrConflict: duplicate add
	ErrConflict = errors.New("conflict")
	// ErrUpstreamRateLimited: the quote provider is throttling us
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamUnavailable: network, timeout or parse failure talking to the quote provider
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrValidation: non-positive quantity, negative price, malformed symbol
	ErrValidation = errors.New("validation error")
	// ErrSuperseded is returned to a debounced request that a newer request replaced.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsUpstreamFailure reports whether err is a transient upstream condition
// (rate limit or unavailability) that a stale cached value may stand in for.
func IsUpstreamFailure(err error) bool {
	return errors.Is(err, ErrUpstreamRateLimited) || errors.Is(err, ErrUpstreamUnavailable)
}
