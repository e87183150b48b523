package alphavantage

import (
	"fmt"

	"github.com/aristath/finfolio/internal/domain"
)

// ErrRateLimitExceeded is returned when Alpha Vantage throttles the key.
type ErrRateLimitExceeded struct{}

func (e ErrRateLimitExceeded) Error() string {
	return "alpha vantage rate limit exceeded"
}

// Is maps the error onto the domain taxonomy.
func (e ErrRateLimitExceeded) Is(target error) bool {
	return target == domain.ErrUpstreamRateLimited
}

// ErrInvalidAPIKey is returned when the API key is rejected.
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alpha vantage: invalid API key"
}

// Is maps the error onto the domain taxonomy.
func (e ErrInvalidAPIKey) Is(target error) bool {
	return target == domain.ErrUpstreamUnavailable
}

// ErrSymbolNotFound is returned when the upstream does not know the symbol.
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("symbol not found: %s", e.Symbol)
}

// Is maps the error onto the domain taxonomy.
func (e ErrSymbolNotFound) Is(target error) bool {
	return target == domain.ErrNotFound
}

// ErrUnavailable covers transport failures, timeouts, non-2xx statuses and malformed bodies.
type ErrUnavailable struct {
	Symbol string
	Err    error
}

func (e ErrUnavailable) Error() string {
	return fmt.Sprintf("alpha vantage unavailable for %s: %v", e.Symbol, e.Err)
}

func (e ErrUnavailable) Unwrap() error {
	return e.Err
}

// Is maps the error onto the domain taxonomy.
func (e ErrUnavailable) Is(target error) bool {
	return target == domain.ErrUpstreamUnavailable
}
