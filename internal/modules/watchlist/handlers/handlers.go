// Package handlers provides HTTP and websocket handlers for watchlists.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/finfolio/internal/domain"
	"github.com/aristath/finfolio/internal/httpapi"
	"github.com/aristath/finfolio/internal/modules/watchlist"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const writeWait = 10 * time.Second

// WatchlistService is the watchlist.Service surface used by the handlers
type WatchlistService interface {
	Add(ctx context.Context, ownerID, symbol string) (domain.WatchlistItem, error)
	Remove(ctx context.Context, ownerID, symbol string) error
	List(ctx context.Context, ownerID string) ([]domain.WatchlistItem, error)
}

// ViewOpener starts a live view on an owner's watchlist
type ViewOpener interface {
	Watch(ctx context.Context, ownerID string, opts ...watchlist.ViewOption) *watchlist.View
}

// Handler handles watchlist HTTP requests
type Handler struct {
	service        WatchlistService
	views          ViewOpener
	originPatterns []string
	log            zerolog.Logger
}

// NewHandler creates a new watchlist handler. originPatterns are the hosts
// allowed to open the websocket stream from a browser.
func NewHandler(service WatchlistService, views ViewOpener, originPatterns []string, log zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		views:          views,
		originPatterns: originPatterns,
		log:            log.With().Str("handler", "watchlist").Logger(),
	}
}

// AddItemRequest is the body of POST /watchlist/{ownerID}
type AddItemRequest struct {
	Symbol string `json:"symbol"`
}

// HandleList returns the owner's watchlist
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// HandleAdd adds a symbol; 409 when it is already on the list
func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	item, err := h.service.Add(r.Context(), chi.URLParam(r, "ownerID"), req.Symbol)
	if err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	httpapi.WriteJSON(w, h.log, http.StatusCreated, item)
}

// HandleRemove removes a symbol; 404 when it is not on the list
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "ownerID"), chi.URLParam(r, "symbol")); err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStream upgrades to a websocket and pushes view snapshots until the
// client disconnects. The view lives exactly as long as the connection.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		httpapi.WriteDomainError(w, h.log, err)
		return
	}

	var opts []watchlist.ViewOption
	if raw := r.URL.Query().Get("interval"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil || interval < time.Second {
			httpapi.WriteDomainError(w, h.log, domain.NewValidationError("interval", "expected a duration of at least 1s"))
			return
		}
		opts = append(opts, watchlist.WithInterval(interval))
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	// We never expect client messages; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())

	view := h.views.Watch(ctx, ownerID, opts...)
	defer view.Stop()

	h.log.Info().Str("owner_id", ownerID).Str("view_id", view.ID()).Msg("Watchlist stream opened")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("view_id", view.ID()).Msg("Watchlist stream closed by client")
			return
		case snap, ok := <-view.Updates():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.log.Warn().Err(err).Str("view_id", view.ID()).Msg("Failed to write snapshot")
				}
				return
			}
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap watchlist.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	return conn.Write(writeCtx, websocket.MessageText, data)
}
