package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jwebster45206/flimo-world/pkg/behavior"
)

const maxFeedLimit = 200

// FeedReader reads a game's mirrored event feed.
type FeedReader interface {
	Recent(ctx context.Context, gameID string, limit int) ([]behavior.Event, error)
}

type FeedResponse struct {
	GameID string           `json:"game_id"`
	Events []behavior.Event `json:"events"`
}

// FeedHandler serves GET /v1/events, newest first. It reads the Redis mirror
// and falls back to the local feed when the mirror is unavailable.
type FeedHandler struct {
	gameID string
	store  FeedReader
	local  *behavior.EventFeed
	logger *slog.Logger
}

// NewFeedHandler builds the feed handler. Either source may be nil, not both.
func NewFeedHandler(gameID string, store FeedReader, local *behavior.EventFeed, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{gameID: gameID, store: store, local: local, logger: logger}
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid limit.")
			return
		}
		limit = min(n, maxFeedLimit)
	}

	events, err := h.recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read event feed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to read event feed.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, FeedResponse{GameID: h.gameID, Events: events})
}

func (h *FeedHandler) recent(ctx context.Context, limit int) ([]behavior.Event, error) {
	if h.store != nil {
		events, err := h.store.Recent(ctx, h.gameID, limit)
		if err == nil || h.local == nil {
			return events, err
		}
		h.logger.Warn("Feed mirror unavailable, serving local feed", "error", err)
	}

	events := h.local.Events()
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
