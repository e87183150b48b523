package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the watchlist REST routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/watchlist/{ownerID}", h.HandleList)
	r.Post("/watchlist/{ownerID}", h.HandleAdd)
	r.Delete("/watchlist/{ownerID}/{symbol}", h.HandleRemove)
}

// RegisterStreamRoutes registers the long-lived websocket route. It must be
// mounted outside any request-timeout middleware.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/watchlist/{ownerID}/stream", h.HandleStream)
}
