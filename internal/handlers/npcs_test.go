package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/flimo-world/internal/services"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNPCHandler(view *fakeView, moves *recordingQueue, backend *services.MockNPCBackend) *NPCHandler {
	h := NewNPCHandler("dust-town", view, moves, backend, testLogger())
	h.now = func() time.Time { return testNow }
	return h
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

func TestNPCHandler_List(t *testing.T) {
	h := newTestNPCHandler(newFakeView("s-1"), &recordingQueue{}, &services.MockNPCBackend{})

	w := serve(h, http.MethodGet, "/v1/npcs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp NPCListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "s-1", resp.SessionID)
	require.Len(t, resp.NPCs, 2)
	assert.Equal(t, "lila", resp.NPCs[0].NPC.ID)
	assert.Equal(t, "lila_hart", resp.NPCs[0].NPC.ExternalID)
	assert.Equal(t, "count the takings", resp.NPCs[0].Behavior.Action)
	assert.Equal(t, behavior.StateMoving, resp.NPCs[1].State)
	assert.Nil(t, resp.NPCs[1].Position)
}

func TestNPCHandler_ListWhileLoopNotRunning(t *testing.T) {
	h := NewNPCHandler("dust-town", standbyOrchestrator(), &recordingQueue{}, &services.MockNPCBackend{}, testLogger())

	w := serveWithin(t, h, httptest.NewRequest(http.MethodGet, "/v1/npcs", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp NPCListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "", resp.SessionID)
	require.Len(t, resp.NPCs, 2)
	assert.Equal(t, behavior.StateIdle, resp.NPCs[0].State)
	assert.Nil(t, resp.NPCs[0].Position)

	w = serveWithin(t, h, httptest.NewRequest(http.MethodGet, "/v1/npcs/harlan", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNPCHandler_Routes(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectedError  string
	}{
		{"get one", http.MethodGet, "/v1/npcs/lila", http.StatusOK, ""},
		{"list is read only", http.MethodPost, "/v1/npcs", http.StatusMethodNotAllowed, "Method not allowed. Use GET."},
		{"unknown npc", http.MethodGet, "/v1/npcs/ghost", http.StatusNotFound, "NPC not found."},
		{"unknown action", http.MethodGet, "/v1/npcs/lila/dance", http.StatusNotFound, "Not found."},
		{"move needs post", http.MethodGet, "/v1/npcs/lila/move", http.StatusMethodNotAllowed, "Method not allowed. Use POST."},
		{"chat is get or post", http.MethodDelete, "/v1/npcs/lila/chat", http.StatusMethodNotAllowed, "Method not allowed. Use GET, POST."},
		{"wrong prefix", http.MethodGet, "/v2/npcs", http.StatusNotFound, "Not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestNPCHandler(newFakeView("s-1"), &recordingQueue{}, &services.MockNPCBackend{})
			w := serve(h, tt.method, tt.path, "")
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, w))
			}
		})
	}
}

func TestNPCHandler_GetOne(t *testing.T) {
	h := newTestNPCHandler(newFakeView("s-1"), &recordingQueue{}, &services.MockNPCBackend{})

	w := serve(h, http.MethodGet, "/v1/npcs/lila", "")
	require.Equal(t, http.StatusOK, w.Code)

	var st behavior.NPCStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, "Bank", st.Location)
	require.NotNil(t, st.Position)
	assert.InDelta(t, 10.0, st.Position.XPct, 1e-9)
}

func TestNPCHandler_Move(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		queueErr       error
		expectedStatus int
		expectedError  string
		queued         bool
	}{
		{
			name:           "queues a move",
			body:           `{"location":"Saloon"}`,
			expectedStatus: http.StatusAccepted,
			queued:         true,
		},
		{
			name:           "unknown location",
			body:           `{"location":"Moon"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Unknown location.",
		},
		{
			name:           "invalid json",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid request body. Expected JSON with 'location' field.",
		},
		{
			name:           "queue down",
			body:           `{"location":"Saloon"}`,
			queueErr:       errors.New("redis unavailable"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Failed to queue move. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moves := &recordingQueue{err: tt.queueErr}
			h := newTestNPCHandler(newFakeView("s-1"), moves, &services.MockNPCBackend{})

			w := serve(h, http.MethodPost, "/v1/npcs/lila/move", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, decodeError(t, w))
			}
			if !tt.queued {
				assert.Empty(t, moves.cmds)
				return
			}

			var resp MoveResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.Len(t, moves.cmds, 1)
			cmd := moves.cmds[0]
			assert.Equal(t, queue.CommandMove, cmd.Type)
			assert.Equal(t, "dust-town", cmd.GameID)
			assert.Equal(t, "lila", cmd.NPCID)
			assert.Equal(t, "Saloon", cmd.Location)
			assert.Equal(t, cmd.CommandID, resp.CommandID)
		})
	}
}
