// Package queue defines the player commands handed from the HTTP surface to
// the process driving a game.
package queue

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CommandType identifies what a queued command asks for.
type CommandType string

const (
	// CommandMove sends an idle NPC to a location.
	CommandMove CommandType = "move"
)

// Command is one queued player command for a game.
type Command struct {
	CommandID  string      `json:"command_id"`
	Type       CommandType `json:"type"`
	GameID     string      `json:"game_id"`
	NPCID      string      `json:"npc_id"`
	Location   string      `json:"location,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

// NewMove builds a move command with a fresh id.
func NewMove(gameID, npcID, location string) *Command {
	return &Command{
		CommandID:  uuid.NewString(),
		Type:       CommandMove,
		GameID:     gameID,
		NPCID:      npcID,
		Location:   location,
		EnqueuedAt: time.Now().UTC(),
	}
}

func (c *Command) Validate() error {
	if c.GameID == "" {
		return errors.New("game_id is required")
	}
	if c.NPCID == "" {
		return errors.New("npc_id is required")
	}
	switch c.Type {
	case CommandMove:
		if c.Location == "" {
			return errors.New("location is required for a move")
		}
	default:
		return errors.New("unknown command type: " + string(c.Type))
	}
	return nil
}

// ToJSON converts the command to JSON bytes for Redis
func (c *Command) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// FromJSON parses a command from JSON bytes
func FromJSON(data []byte) (*Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
