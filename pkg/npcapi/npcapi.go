// Package npcapi holds the wire types exchanged with the NPC behaviour,
// navigation and game storage backends. Field names are part of the
// contract shared with other services and must not change.
package npcapi

import (
	"fmt"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/world"
)

// TimeLayout formats the wall-clock game time sent with every call.
const TimeLayout = "2006-01-02 15:04"

// GameTime renders t as the game time string the backend expects.
func GameTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Behavior is the backend's decision about what an NPC does next.
type Behavior struct {
	Action         string `json:"action"`
	TargetLocation string `json:"target_location"` // empty when the NPC stays put
	StartTime      string `json:"start_time"`
}

// SessionNPC describes one NPC in a session-create call.
type SessionNPC struct {
	ID              string        `json:"id"` // external id
	Name            string        `json:"name"`
	CurrentLocation string        `json:"current_location"`
	Profile         world.Profile `json:"profile"`
}

// CreateSessionRequest opens a session for one game-play instance.
type CreateSessionRequest struct {
	CurrentTime  string       `json:"current_time"`
	WorldSetting string       `json:"world_setting"`
	Locations    []string     `json:"locations"`
	NPCs         []SessionNPC `json:"npcs"`
}

// InitialState is the backend's starting point for one NPC.
type InitialState struct {
	CurrentLocation string    `json:"current_location"`
	Behavior        *Behavior `json:"behavior,omitempty"`
}

// CreateSessionResponse carries the new session and, optionally, initial
// per-NPC states keyed by external id.
type CreateSessionResponse struct {
	SessionID     string                  `json:"session_id"`
	InitialStates map[string]InitialState `json:"initial_states,omitempty"`
}

func (r *CreateSessionResponse) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("session_id is missing")
	}
	return nil
}

type ThinkRequest struct {
	CurrentTime string `json:"current_time"`
}

type ThinkResponse struct {
	Behavior Behavior `json:"behavior"`
}

type MoveStartRequest struct {
	CurrentTime  string `json:"current_time"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
}

type MoveArriveRequest struct {
	CurrentTime string `json:"current_time"`
	Location    string `json:"location"`
}

// Ack is the minimal body returned by notification endpoints.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

const (
	ChatRoleUser = "user" // the player
	ChatRoleNPC  = "npc"
)

// ChatMessage is one line of a player/NPC conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Speaker string `json:"speaker,omitempty"`
	Content string `json:"content"`
	Time    string `json:"time,omitempty"`
}

// ChatRequest is a player line addressed to an NPC.
type ChatRequest struct {
	Message     string `json:"message"`
	CurrentTime string `json:"current_time"`
}

func (cr *ChatRequest) Validate() error {
	if cr.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

type ChatResponse struct {
	Reply    string    `json:"reply"`
	Behavior *Behavior `json:"behavior,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// OpenChatResponse is returned when the player starts talking to an NPC.
type OpenChatResponse struct {
	ChatID   string        `json:"chat_id"`
	Greeting string        `json:"greeting,omitempty"`
	History  []ChatMessage `json:"history,omitempty"`
}

// NPCDetails is the backend's view of an NPC's memory and plans.
type NPCDetails struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	CurrentLocation string            `json:"current_location"`
	Behavior        *Behavior         `json:"behavior,omitempty"`
	Profile         world.Profile     `json:"profile"`
	Memories        []string          `json:"memories,omitempty"`
	Relationships   map[string]string `json:"relationships,omitempty"`
}

// ChatDetails is the full transcript of a player/NPC conversation.
type ChatDetails struct {
	ChatID   string        `json:"chat_id"`
	NPCID    string        `json:"npc_id"`
	Messages []ChatMessage `json:"messages"`
}

// InteractRequest asks an NPC to react to a non-dialogue player action.
type InteractRequest struct {
	Action      string `json:"action"`
	Item        string `json:"item,omitempty"`
	CurrentTime string `json:"current_time"`
}

type InteractResponse struct {
	Reaction string    `json:"reaction"`
	Behavior *Behavior `json:"behavior,omitempty"`
}

// NavigateRequest asks for a path between two named locations.
type NavigateRequest struct {
	WorldID      string `json:"world_id"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
}

// NavigateFromCoordRequest asks for a path from a pixel coordinate.
type NavigateFromCoordRequest struct {
	WorldID    string  `json:"world_id"`
	FromX      float64 `json:"from_x"`
	FromY      float64 `json:"from_y"`
	ToLocation string  `json:"to_location"`
}

type NavigateResponse struct {
	Success bool          `json:"success"`
	Path    []world.Point `json:"path"`
	Error   string        `json:"error,omitempty"`
}

type LocationsResponse struct {
	Success   bool             `json:"success"`
	Locations []world.Location `json:"locations"`
}
