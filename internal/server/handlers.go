package server

import (
	"net/http"

	"github.com/aristath/finfolio/internal/httpapi"
)

// Version is reported by the health endpoint. Overridden at build time via -ldflags.
var Version = "dev"

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"service": "finfolio",
	}

	httpapi.WriteJSON(w, s.log, http.StatusOK, response)
}
