package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/game"
)

// GameStore is the game storage backend.
type GameStore interface {
	ListGames(ctx context.Context) ([]game.Summary, error)
	GetGame(ctx context.Context, id string) (*game.Document, error)
	PublishGame(ctx context.Context, doc *game.Document, images map[string][]byte) (string, error)
}

// PublishResponse is the storage backend's answer to a publish.
type PublishResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error,omitempty"`
}

// GameStorageClient talks HTTP to the game storage backend.
type GameStorageClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ GameStore = (*GameStorageClient)(nil)

func NewGameStorageClient(baseURL string, timeout time.Duration, logger *slog.Logger) *GameStorageClient {
	return &GameStorageClient{
		baseURL:    baseURL,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func (c *GameStorageClient) ListGames(ctx context.Context) ([]game.Summary, error) {
	var games []game.Summary
	if err := doJSON(ctx, c.httpClient, http.MethodGet, joinURL(c.baseURL, "games"), nil, &games); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

func (c *GameStorageClient) GetGame(ctx context.Context, id string) (*game.Document, error) {
	if id == "" {
		return nil, errors.New("game id is required")
	}
	var doc game.Document
	if err := doJSON(ctx, c.httpClient, http.MethodGet, joinURL(c.baseURL, "games", id), nil, &doc); err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	if doc.ID == "" {
		doc.ID = id
	}
	return &doc, nil
}

// PublishGame uploads the document as a "game" JSON field plus one "images"
// file part per image, keyed by file name. It returns the stored game's id.
func (c *GameStorageClient) PublishGame(ctx context.Context, doc *game.Document, images map[string][]byte) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", fmt.Errorf("publish game: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal game: %w", err)
	}
	if err := mw.WriteField("game", string(docJSON)); err != nil {
		return "", fmt.Errorf("failed to write game field: %w", err)
	}

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		part, err := mw.CreateFormFile("images", name)
		if err != nil {
			return "", fmt.Errorf("failed to create image part %s: %w", name, err)
		}
		if _, err := part.Write(images[name]); err != nil {
			return "", fmt.Errorf("failed to write image %s: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.baseURL, "games"), &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp PublishResponse
	if err := send(c.httpClient, req, &resp); err != nil {
		return "", fmt.Errorf("publish game: %w", err)
	}
	if !resp.Success || resp.ID == "" {
		return "", fmt.Errorf("publish game: rejected by storage: %s", resp.Error)
	}

	c.logger.Info("Game published", "game_id", resp.ID, "title", doc.Title, "images", len(images))
	return resp.ID, nil
}
