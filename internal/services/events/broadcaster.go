package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/world"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionStarted EventType = "session.started"
	EventTypeNPCBehavior    EventType = "npc.behavior"
	EventTypeNPCMoveStart   EventType = "npc.move_start"
	EventTypeNPCMoveArrive  EventType = "npc.move_arrive"
	EventTypeNPCPosition    EventType = "npc.position"
)

// TypeFor maps a feed event kind onto its broadcast type.
func TypeFor(kind behavior.EventKind) EventType {
	switch kind {
	case behavior.EventMoveStart:
		return EventTypeNPCMoveStart
	case behavior.EventMoveArrive:
		return EventTypeNPCMoveArrive
	default:
		return EventTypeNPCBehavior
	}
}

// Event is the envelope published on a game's channel.
type Event struct {
	Type   EventType       `json:"type"`
	GameID string          `json:"game_id"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Channel is the Pub/Sub channel carrying a game's events.
func Channel(gameID string) string {
	return fmt.Sprintf("game-events:%s", gameID)
}

// Broadcaster publishes events to Redis Pub/Sub for SSE and websocket
// distribution.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSessionStarted announces a new NPC session for a game.
func (b *Broadcaster) PublishSessionStarted(ctx context.Context, gameID, sessionID string, npcs int) error {
	return b.publish(ctx, gameID, EventTypeSessionStarted, map[string]any{
		"session_id": sessionID,
		"npcs":       npcs,
	})
}

// PublishNPCEvent forwards one feed entry.
func (b *Broadcaster) PublishNPCEvent(ctx context.Context, gameID string, e behavior.Event) error {
	return b.publish(ctx, gameID, TypeFor(e.Kind), e)
}

// PublishPosition forwards one position update.
func (b *Broadcaster) PublishPosition(ctx context.Context, gameID string, pos world.Position) error {
	return b.publish(ctx, gameID, EventTypeNPCPosition, pos)
}

func (b *Broadcaster) publish(ctx context.Context, gameID string, eventType EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	event := Event{Type: eventType, GameID: gameID, Data: data}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := Channel(gameID)
	if err := b.redisClient.Publish(ctx, channel, raw).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", eventType)
	return nil
}

// Decode parses a message received on a game channel.
func Decode(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}
