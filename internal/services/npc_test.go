package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type seenRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

// recordServer answers every request with status and reply, and records
// what it saw.
func recordServer(t *testing.T, status int, reply any) (*httptest.Server, *[]seenRequest) {
	t.Helper()
	var seen []seenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := seenRequest{Method: r.Method, Path: r.URL.EscapedPath()}
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req.Body))
		}
		seen = append(seen, req)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if reply != nil {
			_ = json.NewEncoder(w).Encode(reply)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestNPCClient_CreateSession(t *testing.T) {
	srv, seen := recordServer(t, http.StatusOK, map[string]any{
		"session_id": "s-1",
		"initial_states": map[string]any{
			"lila_hart": map[string]any{
				"current_location": "Bank",
				"behavior":         map[string]any{"action": "count coins", "target_location": "Bank", "start_time": "12:00"},
			},
		},
	})
	client := NewNPCClient(srv.URL, time.Second, testLogger())

	resp, err := client.CreateSession(context.Background(), npcapi.CreateSessionRequest{
		CurrentTime:  "1881-06-01 12:00",
		WorldSetting: "A frontier town",
		Locations:    []string{"Saloon", "Bank"},
		NPCs: []npcapi.SessionNPC{{
			ID: "lila_hart", Name: "Lila Hart", CurrentLocation: "Bank",
			Profile: world.Profile{Role: "banker", Trait: "nervous", Goal: "hide the ledger"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", resp.SessionID)
	require.Contains(t, resp.InitialStates, "lila_hart")
	assert.Equal(t, "count coins", resp.InitialStates["lila_hart"].Behavior.Action)

	require.Len(t, *seen, 1)
	got := (*seen)[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/sessions", got.Path)
	assert.Equal(t, "1881-06-01 12:00", got.Body["current_time"])
	assert.Equal(t, "A frontier town", got.Body["world_setting"])
	npcs := got.Body["npcs"].([]any)
	npc := npcs[0].(map[string]any)
	assert.Equal(t, "lila_hart", npc["id"])
	assert.Equal(t, "Bank", npc["current_location"])
	assert.Equal(t, map[string]any{"role": "banker", "trait": "nervous", "goal": "hide the ledger"}, npc["profile"])
}

func TestNPCClient_ThinkNPC(t *testing.T) {
	srv, seen := recordServer(t, http.StatusOK, map[string]any{
		"behavior": map[string]any{"action": "walk", "target_location": "Saloon", "start_time": "12:05"},
	})
	client := NewNPCClient(srv.URL+"/", time.Second, testLogger())

	resp, err := client.ThinkNPC(context.Background(), "s-1", "lila_hart", npcapi.ThinkRequest{CurrentTime: "1881-06-01 12:05"})
	require.NoError(t, err)
	assert.Equal(t, npcapi.Behavior{Action: "walk", TargetLocation: "Saloon", StartTime: "12:05"}, resp.Behavior)
	assert.Equal(t, "/sessions/s-1/npcs/lila_hart/think", (*seen)[0].Path)
	assert.Equal(t, "1881-06-01 12:05", (*seen)[0].Body["current_time"])
}

func TestNPCClient_MoveNotifications(t *testing.T) {
	srv, seen := recordServer(t, http.StatusOK, npcapi.Ack{Success: true})
	client := NewNPCClient(srv.URL, time.Second, testLogger())
	ctx := context.Background()

	require.NoError(t, client.MoveStart(ctx, "s-1", "lila_hart", npcapi.MoveStartRequest{
		CurrentTime: "t", FromLocation: "Bank", ToLocation: "Saloon",
	}))
	require.NoError(t, client.MoveArrive(ctx, "s-1", "lila_hart", npcapi.MoveArriveRequest{
		CurrentTime: "t", Location: "Saloon",
	}))

	require.Len(t, *seen, 2)
	assert.Equal(t, "/sessions/s-1/npcs/lila_hart/move_start", (*seen)[0].Path)
	assert.Equal(t, "Bank", (*seen)[0].Body["from_location"])
	assert.Equal(t, "Saloon", (*seen)[0].Body["to_location"])
	assert.Equal(t, "/sessions/s-1/npcs/lila_hart/move_arrive", (*seen)[1].Path)
	assert.Equal(t, "Saloon", (*seen)[1].Body["location"])
}

func TestNPCClient_DialogueRoutes(t *testing.T) {
	srv, seen := recordServer(t, http.StatusOK, map[string]any{})
	client := NewNPCClient(srv.URL, time.Second, testLogger())
	ctx := context.Background()

	_, err := client.ChatWithNPC(ctx, "s-1", "mo", npcapi.ChatRequest{Message: "howdy"})
	require.NoError(t, err)
	_, err = client.OpenNPCChat(ctx, "s-1", "mo")
	require.NoError(t, err)
	require.NoError(t, client.CloseUserChat(ctx, "s-1", "mo"))
	_, err = client.GetNPCDetails(ctx, "s-1", "mo")
	require.NoError(t, err)
	_, err = client.GetChatDetails(ctx, "s-1", "mo")
	require.NoError(t, err)
	_, err = client.InteractNPC(ctx, "s-1", "mo", npcapi.InteractRequest{Action: "give", Item: "whiskey"})
	require.NoError(t, err)

	var routes []string
	for _, r := range *seen {
		routes = append(routes, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{
		"POST /sessions/s-1/npcs/mo/chat",
		"POST /sessions/s-1/npcs/mo/chat/open",
		"POST /sessions/s-1/npcs/mo/chat/close",
		"GET /sessions/s-1/npcs/mo",
		"GET /sessions/s-1/npcs/mo/chat",
		"POST /sessions/s-1/npcs/mo/interact",
	}, routes)
}

func TestNPCClient_Errors(t *testing.T) {
	t.Run("non-2xx is an APIError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "session expired", http.StatusGone)
		}))
		defer srv.Close()
		client := NewNPCClient(srv.URL, time.Second, testLogger())

		_, err := client.ThinkNPC(context.Background(), "s-1", "mo", npcapi.ThinkRequest{})
		require.Error(t, err)
		assert.True(t, IsStatus(err, http.StatusGone))
		assert.Contains(t, err.Error(), "session expired")
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}))
		defer srv.Close()
		client := NewNPCClient(srv.URL, time.Second, testLogger())

		_, err := client.ThinkNPC(context.Background(), "s-1", "mo", npcapi.ThinkRequest{})
		assert.ErrorContains(t, err, "decode")
	})

	t.Run("no session", func(t *testing.T) {
		client := NewNPCClient("http://unused", time.Second, testLogger())
		_, err := client.ThinkNPC(context.Background(), "", "mo", npcapi.ThinkRequest{})
		assert.ErrorIs(t, err, ErrNoSession)
		assert.ErrorIs(t, client.MoveArrive(context.Background(), "", "mo", npcapi.MoveArriveRequest{}), ErrNoSession)
	})

	t.Run("empty chat message", func(t *testing.T) {
		client := NewNPCClient("http://unused", time.Second, testLogger())
		_, err := client.ChatWithNPC(context.Background(), "s-1", "mo", npcapi.ChatRequest{})
		assert.Error(t, err)
	})
}

func TestJoinURL_EscapesSegments(t *testing.T) {
	assert.Equal(t, "http://npc/sessions/a%2Fb/npcs/dr_a", joinURL("http://npc/", "sessions", "a/b", "npcs", "dr_a"))
}
