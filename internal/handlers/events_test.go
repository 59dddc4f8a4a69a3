package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jwebster45206/flimo-world/internal/services/events"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readSSE returns the next event name and data line.
func readSSE(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestEventsHandler_StreamsGameEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	srv := httptest.NewServer(NewEventsHandler(rdb, "dust-town", testLogger()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)
	name, data := readSSE(t, body)
	assert.Equal(t, "connected", name)
	assert.Contains(t, data, `"game_id":"dust-town"`)

	b := events.NewBroadcaster(rdb, testLogger())
	require.NoError(t, b.PublishNPCEvent(ctx, "gold-creek", behavior.Event{NPCID: "mo", Kind: behavior.EventBehavior}))
	require.NoError(t, b.PublishNPCEvent(ctx, "dust-town", behavior.Event{
		NPCID:          "lila",
		NPCName:        "Lila Hart",
		Kind:           behavior.EventMoveStart,
		Action:         "fetch the sheriff",
		TargetLocation: "Jail",
	}))

	name, data = readSSE(t, body)
	assert.Equal(t, "npc.move_start", name, "other games' events are not forwarded")
	assert.JSONEq(t, `{"npc_id":"lila","npc_name":"Lila Hart","kind":"move_start","action":"fetch the sheriff","target_location":"Jail","start_time":""}`, data)
}

func TestEventsHandler_Errors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	w := serve(NewEventsHandler(rdb, "dust-town", testLogger()), http.MethodPost, "/v1/events/stream", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(NewEventsHandler(rdb, "", testLogger()), http.MethodGet, "/v1/events/stream", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing game_id.", decodeError(t, w))
}
