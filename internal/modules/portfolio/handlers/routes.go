package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio/{ownerID}", func(r chi.Router) {
		r.Get("/holdings", h.HandleListHoldings)
		r.Post("/holdings", h.HandleUpsertHolding)
		r.Delete("/holdings/{symbol}", h.HandleRemoveHolding)
		r.Get("/valuation", h.HandleValuation)
	})
}
