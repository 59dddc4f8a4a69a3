package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
)

// NPCBackend is the NPC behaviour service. The first four calls drive the
// orchestration loop; the rest back the player-facing dialogue surface.
type NPCBackend interface {
	CreateSession(ctx context.Context, req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error)
	ThinkNPC(ctx context.Context, sessionID, npcID string, req npcapi.ThinkRequest) (*npcapi.ThinkResponse, error)
	MoveStart(ctx context.Context, sessionID, npcID string, req npcapi.MoveStartRequest) error
	MoveArrive(ctx context.Context, sessionID, npcID string, req npcapi.MoveArriveRequest) error

	ChatWithNPC(ctx context.Context, sessionID, npcID string, req npcapi.ChatRequest) (*npcapi.ChatResponse, error)
	OpenNPCChat(ctx context.Context, sessionID, npcID string) (*npcapi.OpenChatResponse, error)
	CloseUserChat(ctx context.Context, sessionID, npcID string) error
	GetNPCDetails(ctx context.Context, sessionID, npcID string) (*npcapi.NPCDetails, error)
	GetChatDetails(ctx context.Context, sessionID, npcID string) (*npcapi.ChatDetails, error)
	InteractNPC(ctx context.Context, sessionID, npcID string, req npcapi.InteractRequest) (*npcapi.InteractResponse, error)
}

// NPCClient talks HTTP/JSON to the NPC behaviour service.
type NPCClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ NPCBackend = (*NPCClient)(nil)

func NewNPCClient(baseURL string, timeout time.Duration, logger *slog.Logger) *NPCClient {
	return &NPCClient{
		baseURL:    baseURL,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func (c *NPCClient) npcURL(sessionID, npcID string, action ...string) (string, error) {
	if sessionID == "" {
		return "", ErrNoSession
	}
	parts := append([]string{"sessions", sessionID, "npcs", npcID}, action...)
	return joinURL(c.baseURL, parts...), nil
}

func (c *NPCClient) CreateSession(ctx context.Context, req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error) {
	var resp npcapi.CreateSessionResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, joinURL(c.baseURL, "sessions"), req, &resp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.logger.Debug("Session created", "session_id", resp.SessionID, "npcs", len(req.NPCs))
	return &resp, nil
}

func (c *NPCClient) ThinkNPC(ctx context.Context, sessionID, npcID string, req npcapi.ThinkRequest) (*npcapi.ThinkResponse, error) {
	u, err := c.npcURL(sessionID, npcID, "think")
	if err != nil {
		return nil, err
	}
	var resp npcapi.ThinkResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, req, &resp); err != nil {
		return nil, fmt.Errorf("think %s: %w", npcID, err)
	}
	return &resp, nil
}

func (c *NPCClient) MoveStart(ctx context.Context, sessionID, npcID string, req npcapi.MoveStartRequest) error {
	u, err := c.npcURL(sessionID, npcID, "move_start")
	if err != nil {
		return err
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, req, nil); err != nil {
		return fmt.Errorf("move start %s: %w", npcID, err)
	}
	return nil
}

func (c *NPCClient) MoveArrive(ctx context.Context, sessionID, npcID string, req npcapi.MoveArriveRequest) error {
	u, err := c.npcURL(sessionID, npcID, "move_arrive")
	if err != nil {
		return err
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, req, nil); err != nil {
		return fmt.Errorf("move arrive %s: %w", npcID, err)
	}
	return nil
}

func (c *NPCClient) ChatWithNPC(ctx context.Context, sessionID, npcID string, req npcapi.ChatRequest) (*npcapi.ChatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	u, err := c.npcURL(sessionID, npcID, "chat")
	if err != nil {
		return nil, err
	}
	var resp npcapi.ChatResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, req, &resp); err != nil {
		return nil, fmt.Errorf("chat with %s: %w", npcID, err)
	}
	return &resp, nil
}

func (c *NPCClient) OpenNPCChat(ctx context.Context, sessionID, npcID string) (*npcapi.OpenChatResponse, error) {
	u, err := c.npcURL(sessionID, npcID, "chat", "open")
	if err != nil {
		return nil, err
	}
	var resp npcapi.OpenChatResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("open chat with %s: %w", npcID, err)
	}
	return &resp, nil
}

func (c *NPCClient) CloseUserChat(ctx context.Context, sessionID, npcID string) error {
	u, err := c.npcURL(sessionID, npcID, "chat", "close")
	if err != nil {
		return err
	}
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, nil, nil); err != nil {
		return fmt.Errorf("close chat with %s: %w", npcID, err)
	}
	return nil
}

func (c *NPCClient) GetNPCDetails(ctx context.Context, sessionID, npcID string) (*npcapi.NPCDetails, error) {
	u, err := c.npcURL(sessionID, npcID)
	if err != nil {
		return nil, err
	}
	var resp npcapi.NPCDetails
	if err := doJSON(ctx, c.httpClient, http.MethodGet, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("npc details %s: %w", npcID, err)
	}
	return &resp, nil
}

func (c *NPCClient) GetChatDetails(ctx context.Context, sessionID, npcID string) (*npcapi.ChatDetails, error) {
	u, err := c.npcURL(sessionID, npcID, "chat")
	if err != nil {
		return nil, err
	}
	var resp npcapi.ChatDetails
	if err := doJSON(ctx, c.httpClient, http.MethodGet, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("chat details %s: %w", npcID, err)
	}
	return &resp, nil
}

func (c *NPCClient) InteractNPC(ctx context.Context, sessionID, npcID string, req npcapi.InteractRequest) (*npcapi.InteractResponse, error) {
	u, err := c.npcURL(sessionID, npcID, "interact")
	if err != nil {
		return nil, err
	}
	var resp npcapi.InteractResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, u, req, &resp); err != nil {
		return nil, fmt.Errorf("interact with %s: %w", npcID, err)
	}
	return &resp, nil
}
