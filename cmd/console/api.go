package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jwebster45206/flimo-world/internal/handlers"
	"github.com/jwebster45206/flimo-world/internal/services/events"
	"github.com/jwebster45206/flimo-world/pkg/npcapi"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// call sends an optional JSON body and decodes a JSON reply into out when
// the status matches want.
func call(ctx context.Context, client *http.Client, method, u string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp handlers.ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error == "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
		}
		return fmt.Errorf("%s", errorResp.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func npcURL(baseURL, npcID string, action ...string) string {
	parts := append([]string{baseURL, "v1", "npcs", url.PathEscape(npcID)}, action...)
	return strings.Join(parts, "/")
}

func listNPCs(ctx context.Context, client *http.Client, baseURL string) (*handlers.NPCListResponse, error) {
	var resp handlers.NPCListResponse
	if err := call(ctx, client, http.MethodGet, baseURL+"/v1/npcs", nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("failed to list NPCs: %w", err)
	}
	return &resp, nil
}

func getFeed(ctx context.Context, client *http.Client, baseURL string, limit int) (*handlers.FeedResponse, error) {
	var resp handlers.FeedResponse
	u := fmt.Sprintf("%s/v1/events?limit=%d", baseURL, limit)
	if err := call(ctx, client, http.MethodGet, u, nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return &resp, nil
}

func requestMove(ctx context.Context, client *http.Client, baseURL, npcID, location string) (*handlers.MoveResponse, error) {
	var resp handlers.MoveResponse
	req := handlers.MoveRequest{Location: location}
	if err := call(ctx, client, http.MethodPost, npcURL(baseURL, npcID, "move"), req, http.StatusAccepted, &resp); err != nil {
		return nil, fmt.Errorf("move failed: %w", err)
	}
	return &resp, nil
}

func openChat(ctx context.Context, client *http.Client, baseURL, npcID string) (*npcapi.OpenChatResponse, error) {
	var resp npcapi.OpenChatResponse
	if err := call(ctx, client, http.MethodPost, npcURL(baseURL, npcID, "chat", "open"), nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("failed to open chat: %w", err)
	}
	return &resp, nil
}

func closeChat(ctx context.Context, client *http.Client, baseURL, npcID string) error {
	if err := call(ctx, client, http.MethodPost, npcURL(baseURL, npcID, "chat", "close"), nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("failed to close chat: %w", err)
	}
	return nil
}

func sendChat(ctx context.Context, client *http.Client, baseURL, npcID, message string) (*npcapi.ChatResponse, error) {
	var resp npcapi.ChatResponse
	req := npcapi.ChatRequest{Message: message}
	if err := call(ctx, client, http.MethodPost, npcURL(baseURL, npcID, "chat"), req, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	return &resp, nil
}

// listenToSSE connects to the event stream and hands every event to send
// until ctx ends or the stream closes.
func listenToSSE(ctx context.Context, client *http.Client, baseURL string, send func(events.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/events/stream", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SSE connection failed with status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	var current events.Event

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			// Empty line signals end of event
			if current.Type != "" {
				send(current)
				current = events.Event{}
			}
			continue
		}

		if after, ok := strings.CutPrefix(line, "event: "); ok {
			current.Type = events.EventType(after)
		} else if after, ok := strings.CutPrefix(line, "data: "); ok {
			current.Data = json.RawMessage(after)
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	return ctx.Err()
}
