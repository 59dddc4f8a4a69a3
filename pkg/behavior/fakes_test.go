package behavior

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
	"github.com/stretchr/testify/require"
)

// fakeClock only moves when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(1881, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and fires every timer that came due, oldest
// deadline first.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var keep []*fakeTimer
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type moveCall struct {
	SessionID string
	NPCID     string
	Start     *npcapi.MoveStartRequest
	Arrive    *npcapi.MoveArriveRequest
}

type fakeBackend struct {
	mu sync.Mutex

	CreateSessionFunc func(req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error)
	ThinkFunc         func(npcID string) (*npcapi.ThinkResponse, error)
	MoveErr           error

	sessionCalls []npcapi.CreateSessionRequest
	thinkCalls   []string
	moveCalls    []moveCall
}

func (b *fakeBackend) CreateSession(ctx context.Context, req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error) {
	b.mu.Lock()
	b.sessionCalls = append(b.sessionCalls, req)
	fn := b.CreateSessionFunc
	b.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &npcapi.CreateSessionResponse{SessionID: "session-1"}, nil
}

func (b *fakeBackend) ThinkNPC(ctx context.Context, sessionID, npcID string, req npcapi.ThinkRequest) (*npcapi.ThinkResponse, error) {
	b.mu.Lock()
	b.thinkCalls = append(b.thinkCalls, npcID)
	fn := b.ThinkFunc
	b.mu.Unlock()
	if fn != nil {
		return fn(npcID)
	}
	return &npcapi.ThinkResponse{Behavior: npcapi.Behavior{Action: "waiting"}}, nil
}

func (b *fakeBackend) MoveStart(ctx context.Context, sessionID, npcID string, req npcapi.MoveStartRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moveCalls = append(b.moveCalls, moveCall{SessionID: sessionID, NPCID: npcID, Start: &req})
	return b.MoveErr
}

func (b *fakeBackend) MoveArrive(ctx context.Context, sessionID, npcID string, req npcapi.MoveArriveRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moveCalls = append(b.moveCalls, moveCall{SessionID: sessionID, NPCID: npcID, Arrive: &req})
	return b.MoveErr
}

func (b *fakeBackend) SessionCalls() []npcapi.CreateSessionRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]npcapi.CreateSessionRequest(nil), b.sessionCalls...)
}

func (b *fakeBackend) ThinkCalls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.thinkCalls...)
}

func (b *fakeBackend) MoveCalls() []moveCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]moveCall(nil), b.moveCalls...)
}

func (b *fakeBackend) setThink(fn func(npcID string) (*npcapi.ThinkResponse, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ThinkFunc = fn
}

type navCall struct {
	Between *npcapi.NavigateRequest
	Coord   *npcapi.NavigateFromCoordRequest
}

type fakeNav struct {
	mu    sync.Mutex
	Path  []world.Point
	Err   error
	Gate  chan struct{} // when set, calls wait for it to close
	calls []navCall
}

func (n *fakeNav) record(c navCall) ([]world.Point, error) {
	n.mu.Lock()
	n.calls = append(n.calls, c)
	path, err, gate := n.Path, n.Err, n.Gate
	n.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return path, err
}

func (n *fakeNav) NavigateBetween(ctx context.Context, req npcapi.NavigateRequest) ([]world.Point, error) {
	return n.record(navCall{Between: &req})
}

func (n *fakeNav) NavigateFromCoord(ctx context.Context, req npcapi.NavigateFromCoordRequest) ([]world.Point, error) {
	return n.record(navCall{Coord: &req})
}

func (n *fakeNav) Calls() []navCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navCall(nil), n.calls...)
}

func (n *fakeNav) set(path []world.Point, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Path = path
	n.Err = err
}

// recordingPositions keeps every update in order.
type recordingPositions struct {
	mu      sync.Mutex
	updates []world.Position
}

func (r *recordingPositions) SetPosition(pos world.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, pos)
}

func (r *recordingPositions) For(npcID string) []world.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []world.Position
	for _, p := range r.updates {
		if p.NPCID == npcID {
			out = append(out, p)
		}
	}
	return out
}

var errBackendDown = errors.New("backend down")

var testLocations = []world.Location{
	{Name: "Saloon", Center: world.Point{X: 688, Y: 384}},
	{Name: "Bank", Center: world.Point{X: 137.6, Y: 76.8}},
	{Name: "Jail", Center: world.Point{X: 1376, Y: 768}},
}

type harness struct {
	t         *testing.T
	o         *Orchestrator
	clock     *fakeClock
	backend   *fakeBackend
	nav       *fakeNav
	positions *recordingPositions
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, npcs ...world.NPCRef) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		clock:     newFakeClock(),
		backend:   &fakeBackend{},
		nav:       &fakeNav{},
		positions: &recordingPositions{},
	}
	h.o = New(Config{WorldID: "dust-town", WorldSetting: "A frontier town"}, npcs, world.NewLocationIndex(testLocations), Deps{
		Backend:   h.backend,
		Navigator: h.nav,
		Positions: h.positions,
		Clock:     h.clock,
		Rand:      func() float64 { return 0 },
		Logger:    quietLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.o.Done()
	})
	return h
}

// onLoop runs fn on the orchestrator loop and waits for it.
func (h *harness) onLoop(fn func()) {
	h.t.Helper()
	require.True(h.t, h.o.call(fn), "loop is not running")
}

func (h *harness) eventually(cond func() bool, msg string) {
	h.t.Helper()
	require.Eventually(h.t, cond, 2*time.Second, time.Millisecond, msg)
}

func (h *harness) state(npcID string) State {
	var s State
	h.onLoop(func() { s = h.o.tracker.State(npcID) })
	return s
}

func (h *harness) thinkPending(npcID string) bool {
	var ok bool
	h.onLoop(func() { ok = h.o.thinkSlots.Pending(npcID) })
	return ok
}

func (h *harness) stepPending(npcID string) bool {
	var ok bool
	h.onLoop(func() { ok = h.o.stepSlots.Pending(npcID) })
	return ok
}

// withSession skips the bootstrap call and places npcs at the given
// locations, all idle with nothing armed.
func (h *harness) withSession(at map[string]string) {
	h.onLoop(func() {
		h.o.sessionID = "session-1"
		for id, loc := range at {
			h.o.tracker.SetLocation(id, loc)
			h.o.tracker.SetState(id, StateIdle)
		}
	})
}
