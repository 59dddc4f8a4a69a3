package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jwebster45206/flimo-world/internal/services"
	"github.com/jwebster45206/flimo-world/pkg/behavior"
	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/queue"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// standbyOrchestrator is built but never run, like the loop of an instance
// still waiting for the game lock.
func standbyOrchestrator() *behavior.Orchestrator {
	locations := world.NewLocationIndex([]world.Location{
		{Name: "Saloon", Center: world.Point{X: 688, Y: 384}},
		{Name: "Bank", Center: world.Point{X: 137.6, Y: 76.8}},
	})
	return behavior.New(behavior.Config{WorldID: "dust-town"}, []world.NPCRef{lila, harlan}, locations, behavior.Deps{
		Backend:   &services.MockNPCBackend{},
		Navigator: &services.MockNavigator{},
		Logger:    testLogger(),
	})
}

// serveWithin fails the test instead of hanging when h does not answer.
func serveWithin(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	served := make(chan struct{})
	go func() {
		defer close(served)
		h.ServeHTTP(w, req)
	}()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s %s did not answer", req.Method, req.URL.Path)
	}
	return w
}

var (
	lila   = world.NewNPCRef("lila", "Lila Hart", "Bank", world.Profile{Role: "banker"})
	harlan = world.NewNPCRef("harlan", "Doc. Harlan", "Saloon", world.Profile{Role: "doctor"})

	testNow = time.Date(1881, time.October, 26, 15, 0, 0, 0, time.UTC)
)

type fakeView struct {
	sessionID string
	statuses  []behavior.NPCStatus
	locations *world.LocationIndex
}

func newFakeView(sessionID string) *fakeView {
	return &fakeView{
		sessionID: sessionID,
		statuses: []behavior.NPCStatus{
			{
				NPC:      lila,
				State:    behavior.StateIdle,
				Location: "Bank",
				Behavior: &npcapi.Behavior{Action: "count the takings", TargetLocation: "Bank"},
				Position: &world.Position{NPCID: "lila", XPct: 10, YPct: 10, Location: "Bank"},
			},
			{NPC: harlan, State: behavior.StateMoving, Location: "Saloon"},
		},
		locations: world.NewLocationIndex([]world.Location{
			{Name: "Saloon", Center: world.Point{X: 688, Y: 384}},
			{Name: "Bank", Center: world.Point{X: 137.6, Y: 76.8}},
		}),
	}
}

func (v *fakeView) SessionID() string               { return v.sessionID }
func (v *fakeView) Snapshot() []behavior.NPCStatus  { return v.statuses }
func (v *fakeView) Locations() *world.LocationIndex { return v.locations }

func (v *fakeView) NPC(npcID string) (world.NPCRef, bool) {
	for _, st := range v.statuses {
		if st.NPC.ID == npcID {
			return st.NPC, true
		}
	}
	return world.NPCRef{}, false
}

type recordingQueue struct {
	mu   sync.Mutex
	cmds []*queue.Command
	err  error
}

func (q *recordingQueue) Enqueue(ctx context.Context, cmd *queue.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.cmds = append(q.cmds, cmd)
	return nil
}
