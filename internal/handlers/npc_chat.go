package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

const backendTimeout = 30 * time.Second

type InteractBody struct {
	Action string `json:"action"`
	Item   string `json:"item,omitempty"`
}

type CloseChatResponse struct {
	Closed bool `json:"closed"`
}

// session returns the live session id, answering 503 itself when there is
// none yet.
func (h *NPCHandler) session(w http.ResponseWriter) (string, bool) {
	id := h.view.SessionID()
	if id == "" {
		writeError(w, h.logger, http.StatusServiceUnavailable, "NPC session has not started yet.")
		return "", false
	}
	return id, true
}

func (h *NPCHandler) chat(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	var req npcapi.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid chat request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'message' field.")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Message cannot be empty.")
		return
	}
	sessionID, ok := h.session(w)
	if !ok {
		return
	}
	if req.CurrentTime == "" {
		req.CurrentTime = npcapi.GameTime(h.now())
	}

	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	resp, err := h.backend.ChatWithNPC(ctx, sessionID, npc.ExternalID, req)
	if err != nil {
		h.backendError(w, npc, "chat", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *NPCHandler) openChat(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	sessionID, ok := h.session(w)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	resp, err := h.backend.OpenNPCChat(ctx, sessionID, npc.ExternalID)
	if err != nil {
		h.backendError(w, npc, "open_chat", err)
		return
	}
	h.logger.Info("Chat opened", "npc_id", npc.ID, "chat_id", resp.ChatID)
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *NPCHandler) closeChat(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	sessionID, ok := h.session(w)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	if err := h.backend.CloseUserChat(ctx, sessionID, npc.ExternalID); err != nil {
		h.backendError(w, npc, "close_chat", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, CloseChatResponse{Closed: true})
}

func (h *NPCHandler) chatDetails(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	sessionID, ok := h.session(w)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	resp, err := h.backend.GetChatDetails(ctx, sessionID, npc.ExternalID)
	if err != nil {
		h.backendError(w, npc, "chat_details", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *NPCHandler) details(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	sessionID, ok := h.session(w)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	resp, err := h.backend.GetNPCDetails(ctx, sessionID, npc.ExternalID)
	if err != nil {
		h.backendError(w, npc, "details", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *NPCHandler) interact(w http.ResponseWriter, r *http.Request, npc world.NPCRef) {
	var body InteractBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Action == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'action' field.")
		return
	}
	sessionID, ok := h.session(w)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), backendTimeout)
	defer cancel()
	resp, err := h.backend.InteractNPC(ctx, sessionID, npc.ExternalID, npcapi.InteractRequest{
		Action:      body.Action,
		Item:        body.Item,
		CurrentTime: npcapi.GameTime(h.now()),
	})
	if err != nil {
		h.backendError(w, npc, "interact", err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
