package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/flimo-world/internal/services"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/queue"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

// NPCView is the read side of the NPC loop.
type NPCView interface {
	SessionSource
	Snapshot() []behavior.NPCStatus
	NPC(npcID string) (world.NPCRef, bool)
	Locations() *world.LocationIndex
}

// MoveQueue accepts player move commands for the driving instance.
type MoveQueue interface {
	Enqueue(ctx context.Context, cmd *queue.Command) error
}

type NPCListResponse struct {
	SessionID string               `json:"session_id,omitempty"`
	NPCs      []behavior.NPCStatus `json:"npcs"`
}

type MoveRequest struct {
	Location string `json:"location"`
}

type MoveResponse struct {
	CommandID string `json:"command_id"`
	NPCID     string `json:"npc_id"`
	Location  string `json:"location"`
}

// NPCHandler serves /v1/npcs and everything below it:
//
//	GET  /v1/npcs
//	GET  /v1/npcs/{id}
//	POST /v1/npcs/{id}/move
//	GET  /v1/npcs/{id}/details
//	POST /v1/npcs/{id}/interact
//	GET  /v1/npcs/{id}/chat
//	POST /v1/npcs/{id}/chat
//	POST /v1/npcs/{id}/chat/open
//	POST /v1/npcs/{id}/chat/close
type NPCHandler struct {
	gameID  string
	view    NPCView
	moves   MoveQueue
	backend services.NPCBackend
	logger  *slog.Logger
	now     func() time.Time
}

func NewNPCHandler(gameID string, view NPCView, moves MoveQueue, backend services.NPCBackend, logger *slog.Logger) *NPCHandler {
	return &NPCHandler{
		gameID:  gameID,
		view:    view,
		moves:   moves,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

func (h *NPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path)
	if len(parts) < 2 || parts[0] != "v1" || parts[1] != "npcs" {
		writeError(w, h.logger, http.StatusNotFound, "Not found.")
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			h.methodNotAllowed(w, r, "GET")
			return
		}
		h.list(w)
		return
	}

	npc, ok := h.view.NPC(parts[2])
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "NPC not found.")
		return
	}

	route := parts[3:]
	switch {
	case len(route) == 0:
		h.only(w, r, http.MethodGet, func() { h.get(w, npc) })
	case len(route) == 1 && route[0] == "move":
		h.only(w, r, http.MethodPost, func() { h.move(w, r, npc) })
	case len(route) == 1 && route[0] == "details":
		h.only(w, r, http.MethodGet, func() { h.details(w, r, npc) })
	case len(route) == 1 && route[0] == "interact":
		h.only(w, r, http.MethodPost, func() { h.interact(w, r, npc) })
	case len(route) == 1 && route[0] == "chat":
		switch r.Method {
		case http.MethodGet:
			h.chatDetails(w, r, npc)
		case http.MethodPost:
			h.chat(w, r, npc)
		default:
			h.methodNotAllowed(w, r, "GET, POST")
		}
	case len(route) == 2 && route[0] == "chat" && route[1] == "open":
		h.only(w, r, http.MethodPost, func() { h.openChat(w, r, npc) })
	case len(route) == 2 && route[0] == "chat" && route[1] == "close":
		h.only(w, r, http.MethodPost, func() { h.closeChat(w, r, npc) })
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found.")
	}
}

func (h *NPCHandler) only(w http.ResponseWriter, r *http.Request, method string, fn func()) {
	if r.Method != method {
		h.methodNotAllowed(w, r, method)
		return
	}
	fn()
}

func (h *NPCHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed string) {
	h.logger.Warn("Method not allowed for npcs endpoint",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)
	w.Header().Set("Allow", allowed)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Use "+allowed+".")
}

func (h *NPCHandler) list(w http.ResponseWriter) {
	writeJSON(w, h.logger, http.StatusOK, NPCListResponse{
		SessionID: h.view.SessionID(),
		NPCs:      h.view.Snapshot(),
	})
}

func (h *NPCHandler) get(w http.ResponseWriter, npc world.NPCRef) {
	for _, st := range h.view.Snapshot() {
		if st.NPC.ID == npc.ID {
			writeJSON(w, h.logger, http.StatusOK, st)
			return
		}
	}
	writeError(w, h.logger, http.StatusNotFound, "NPC not found.")
}

// move queues a command; the instance holding the game lock applies it.
func (h *NPCHandler) move(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid move request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'location' field.")
		return
	}
	if !h.view.Locations().IsValid(req.Location) {
		writeError(w, h.logger, http.StatusBadRequest, "Unknown location.")
		return
	}

	cmd := queue.NewMove(h.gameID, npc.ID, req.Location)
	if err := h.moves.Enqueue(r.Context(), cmd); err != nil {
		h.logger.Error("Failed to enqueue move command", "error", err, "npc_id", npc.ID)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue move. Please try again.")
		return
	}

	h.logger.Info("Move command queued",
		"command_id", cmd.CommandID,
		"npc_id", npc.ID,
		"location", req.Location)
	writeJSON(w, h.logger, http.StatusAccepted, MoveResponse{
		CommandID: cmd.CommandID,
		NPCID:     npc.ID,
		Location:  req.Location,
	})
}

// backendError maps an NPC backend failure onto a response.
func (h *NPCHandler) backendError(w http.ResponseWriter, npc world.NPCRef, what string, err error) {
	var apiErr *services.APIError
	switch {
	case errors.Is(err, services.ErrNoSession):
		writeError(w, h.logger, http.StatusServiceUnavailable, "NPC session has not started yet.")
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		writeError(w, h.logger, http.StatusNotFound, "NPC backend does not know this NPC.")
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest:
		writeError(w, h.logger, http.StatusBadRequest, apiErr.Body)
	default:
		h.logger.Error("NPC backend call failed", "call", what, "npc_id", npc.ID, "error", err)
		writeError(w, h.logger, http.StatusBadGateway, "NPC backend is unavailable. Please try again.")
	}
}
