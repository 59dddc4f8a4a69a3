package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jwebster45206/flimo-world/internal/services/events"
	"github.com/redis/go-redis/v9"
)

// EventTypeSnapshot is the first message on a socket: every NPC's status.
const EventTypeSnapshot events.EventType = "snapshot"

const (
	socketWriteWait  = 10 * time.Second
	socketPingPeriod = 30 * time.Second
)

// FeedSocketHandler pushes a game's events over a websocket. It sends a
// snapshot first, then every message published on the game channel as is.
// GET /v1/ws
type FeedSocketHandler struct {
	redisClient *redis.Client
	gameID      string
	view        NPCView
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewFeedSocketHandler builds the handler. view may be nil, in which case
// the snapshot carries no NPCs.
func NewFeedSocketHandler(redisClient *redis.Client, gameID string, view NPCView, logger *slog.Logger) *FeedSocketHandler {
	return &FeedSocketHandler{
		redisClient: redisClient,
		gameID:      gameID,
		view:        view,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *FeedSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The request context is not cancelled once the connection is hijacked.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	channel := events.Channel(h.gameID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()
	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Error("Failed to subscribe to game events", "error", err, "channel", channel)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Event stream is unavailable.")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	log := h.logger.With("game_id", h.gameID, "remote_addr", r.RemoteAddr)
	log.Info("Websocket connection established")

	snapshot, err := h.snapshot()
	if err != nil {
		log.Error("Failed to marshal snapshot", "error", err)
		return
	}
	if err := h.write(conn, websocket.TextMessage, snapshot); err != nil {
		return
	}

	// Clients only ever send close frames; reading is how a hang-up is seen.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	msgChan := pubsub.Channel()
	ping := time.NewTicker(socketPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Websocket client disconnected")
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			if err := h.write(conn, websocket.TextMessage, []byte(msg.Payload)); err != nil {
				log.Warn("Websocket write failed", "error", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				log.Warn("Websocket ping failed", "error", err)
				return
			}
		}
	}
}

func (h *FeedSocketHandler) snapshot() ([]byte, error) {
	data := []byte(`{"npcs":[]}`)
	if h.view != nil {
		resp := NPCListResponse{SessionID: h.view.SessionID(), NPCs: h.view.Snapshot()}
		var err error
		if data, err = json.Marshal(resp); err != nil {
			return nil, err
		}
	}
	return json.Marshal(events.Event{Type: EventTypeSnapshot, GameID: h.gameID, Data: data})
}

func (h *FeedSocketHandler) write(conn *websocket.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(socketWriteWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}
