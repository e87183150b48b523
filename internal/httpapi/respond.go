// Package httpapi holds the JSON response helpers shared by all HTTP handlers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/rs/zerolog"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes data as JSON with the given status
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes an error body with an explicit status and code
func WriteError(w http.ResponseWriter, log zerolog.Logger, status int, code, message string) {
	WriteJSON(w, log, status, ErrorResponse{Error: message, Code: code})
}

// StatusForError maps the domain error taxonomy onto HTTP status codes
func StatusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUpstreamRateLimited):
		return http.StatusTooManyRequests, "upstream_rate_limited"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusNoContent, "superseded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// WriteDomainError writes err using StatusForError. Internal errors are logged
// and their message is not exposed.
func WriteDomainError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, code := StatusForError(err)

	switch status {
	case http.StatusNoContent:
		w.WriteHeader(status)
		return
	case http.StatusInternalServerError:
		log.Error().Err(err).Msg("Request failed")
		WriteError(w, log, status, code, "internal server error")
		return
	}

	WriteError(w, log, status, code, err.Error())
}

// DecodeJSON decodes the request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}
