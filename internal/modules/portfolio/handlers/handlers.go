// Package handlers provides HTTP handlers for holdings and valuation.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HoldingStore is the PositionStore surface used by the handlers
type HoldingStore interface {
	Upsert(ctx context.Context, ownerID, symbol string, quantity int64, purchasePrice decimal.Decimal, purchaseDate time.Time) (domain.Holding, error)
	Remove(ctx context.Context, ownerID, symbol string) error
	ListFor(ctx context.Context, ownerID string) ([]domain.Holding, error)
}

// Valuator computes an owner's valuation
type Valuator interface {
	Valuate(ctx context.Context, ownerID string) (domain.ValuationResult, error)
}

// Handler handles portfolio HTTP requests
type Handler struct {
	store    HoldingStore
	valuator Valuator
	log      zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(store HoldingStore, valuator Valuator, log zerolog.Logger) *Handler {
	return &Handler{
		store:    store,
		valuator: valuator,
		log:      log.With().Str("handler", "portfolio").Logger(),
	}
}

// UpsertHoldingRequest is the body of POST /holdings.
// purchase_price is required and accepts a JSON number or string;
// purchase_date is YYYY-MM-DD.
type UpsertHoldingRequest struct {
	Symbol        string              `json:"symbol"`
	Quantity      int64               `json:"quantity"`
	PurchasePrice decimal.NullDecimal `json:"purchase_price"`
	PurchaseDate  string              `json:"purchase_date,omitempty"`
}

// HandleListHoldings returns the owner's holdings in insertion order
func (h *Handler) HandleListHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.store.ListFor(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"holdings": holdings,
		"count":    len(holdings),
	})
}

// HandleUpsertHolding creates or replaces a holding
func (h *Handler) HandleUpsertHolding(w http.ResponseWriter, r *http.Request) {
	var req UpsertHoldingRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}
	if !req.PurchasePrice.Valid {
		httpapi.WriteDomainError(w, h.log, domain.NewValidationError("purchase_price", "is required"))
		return
	}

	var purchaseDate time.Time
	if req.PurchaseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.PurchaseDate)
		if err != nil {
			httpapi.WriteDomainError(w, h.log, domain.NewValidationError("purchase_date", "expected YYYY-MM-DD"))
			return
		}
		purchaseDate = parsed
	}

	holding, err := h.store.Upsert(r.Context(), chi.URLParam(r, "ownerID"), req.Symbol, req.Quantity, req.PurchasePrice.Decimal, purchaseDate)
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, holding)
}

// HandleRemoveHolding deletes a holding
func (h *Handler) HandleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "ownerID"), chi.URLParam(r, "symbol")); err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleValuation returns per-holding and aggregate metrics.
// Partial market data still yields 200; see totals.partial.
func (h *Handler) HandleValuation(w http.ResponseWriter, r *http.Request) {
	result, err := h.valuator.Valuate(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}
	httpapi.WriteJSON(w, h.log, http.StatusOK, result)
}
