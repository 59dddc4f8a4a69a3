// Package behavior drives NPCs for one game-play session. Every NPC runs an
// independent think → move → think cycle against the remote behaviour and
// navigation backends. All state lives on a single loop goroutine; timers
// and remote calls hand their results back to that loop, so a slow backend
// call for one NPC never holds up another.
package behavior

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

var errEmptyResponse = errors.New("empty response from backend")

// Backend is the part of the NPC behaviour service the loop depends on.
type Backend interface {
	CreateSession(ctx context.Context, req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error)
	ThinkNPC(ctx context.Context, sessionID, npcID string, req npcapi.ThinkRequest) (*npcapi.ThinkResponse, error)
	MoveStart(ctx context.Context, sessionID, npcID string, req npcapi.MoveStartRequest) error
	MoveArrive(ctx context.Context, sessionID, npcID string, req npcapi.MoveArriveRequest) error
}

// Navigator computes paths between places on the map.
type Navigator interface {
	NavigateBetween(ctx context.Context, req npcapi.NavigateRequest) ([]world.Point, error)
	NavigateFromCoord(ctx context.Context, req npcapi.NavigateFromCoordRequest) ([]world.Point, error)
}

// Config tunes the loop. Zero fields take the defaults below.
type Config struct {
	WorldID      string // navigation backend world id
	WorldSetting string // sent with session creation

	ThinkBaseDelay  time.Duration
	ThinkJitter     time.Duration
	ThinkErrorDelay time.Duration

	// Bootstrap arming: InitialDelay + index*InitialStagger + U[0,InitialJitter),
	// capped at InitialMaxDelay.
	InitialDelay    time.Duration
	InitialStagger  time.Duration
	InitialJitter   time.Duration
	InitialMaxDelay time.Duration

	StepInterval time.Duration
	FeedCap      int
}

const (
	DefaultThinkBaseDelay  = 15 * time.Second
	DefaultThinkJitter     = 10 * time.Second
	DefaultThinkErrorDelay = 20 * time.Second
	DefaultInitialDelay    = 2 * time.Second
	DefaultInitialStagger  = 750 * time.Millisecond
	DefaultInitialJitter   = 2 * time.Second
	DefaultInitialMaxDelay = 8 * time.Second
	DefaultStepInterval    = 40 * time.Millisecond
)

func (c Config) withDefaults() Config {
	if c.ThinkBaseDelay <= 0 {
		c.ThinkBaseDelay = DefaultThinkBaseDelay
	}
	if c.ThinkJitter <= 0 {
		c.ThinkJitter = DefaultThinkJitter
	}
	if c.ThinkErrorDelay <= 0 {
		c.ThinkErrorDelay = DefaultThinkErrorDelay
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.InitialStagger <= 0 {
		c.InitialStagger = DefaultInitialStagger
	}
	if c.InitialJitter <= 0 {
		c.InitialJitter = DefaultInitialJitter
	}
	if c.InitialMaxDelay <= 0 {
		c.InitialMaxDelay = DefaultInitialMaxDelay
	}
	if c.StepInterval <= 0 {
		c.StepInterval = DefaultStepInterval
	}
	if c.FeedCap <= 0 {
		c.FeedCap = DefaultFeedCap
	}
	return c
}

// Deps are the collaborators of an Orchestrator. Backend and Navigator are
// required; the rest have in-memory or real-time defaults.
type Deps struct {
	Backend   Backend
	Navigator Navigator
	Positions PositionMutator
	Feed      *EventFeed
	Clock     Clock
	Rand      func() float64 // uniform in [0,1)
	Logger    *slog.Logger
}

// Orchestrator runs the per-NPC think/move cycles of one session.
type Orchestrator struct {
	cfg       Config
	npcs      []world.NPCRef
	byID      map[string]world.NPCRef
	locations *world.LocationIndex

	backend   Backend
	nav       Navigator
	positions PositionMutator
	feed      *EventFeed
	clock     Clock
	rand      func() float64
	log       *slog.Logger

	// loop-owned state
	tracker    *Tracker
	thinkSlots *Slots
	stepSlots  *Slots
	thinking   map[string]uint64 // npc id → ticket of the think in flight
	walks      map[string]*walk  // npc id → active navigation
	tickets    uint64
	sessionID  string
	creating   bool
	generation uint64
	remoteCtx  context.Context

	tasks    chan func()
	started  chan struct{}
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

// walk is one NPC's navigation in progress.
type walk struct {
	ticket uint64
	to     string
	path   []world.Point
	next   int
}

// New builds an orchestrator for the given NPCs and locations. Bootstrap and
// RequestMove wait for Run; the read methods answer with defaults until then.
func New(cfg Config, npcs []world.NPCRef, locations *world.LocationIndex, deps Deps) *Orchestrator {
	cfg = cfg.withDefaults()

	o := &Orchestrator{
		cfg:       cfg,
		npcs:      npcs,
		byID:      make(map[string]world.NPCRef, len(npcs)),
		locations: locations,
		backend:   deps.Backend,
		nav:       deps.Navigator,
		positions: deps.Positions,
		feed:      deps.Feed,
		clock:     deps.Clock,
		rand:      deps.Rand,
		log:       deps.Logger,
		tracker:   NewTracker(),
		thinking:  make(map[string]uint64),
		walks:     make(map[string]*walk),
		remoteCtx: context.Background(),
		tasks:     make(chan func(), 256),
		started:   make(chan struct{}),
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
	}
	for _, n := range npcs {
		o.byID[n.ID] = n
	}
	if o.positions == nil {
		o.positions = NewPositionStore()
	}
	if o.feed == nil {
		o.feed = NewEventFeed(cfg.FeedCap)
	}
	if o.clock == nil {
		o.clock = RealClock()
	}
	if o.rand == nil {
		o.rand = rand.Float64
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	o.thinkSlots = newSlots(o.clock, o.post)
	o.stepSlots = newSlots(o.clock, o.post)
	return o
}

// Run executes loop tasks until ctx is cancelled or Stop is called, then
// tears the session's timers down. Run may only be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := false
	o.runOnce.Do(func() { started = true })
	if !started {
		return nil
	}
	defer close(o.done)
	close(o.started)

	// Remote calls are not cancelled on teardown; their results are dropped.
	o.remoteCtx = context.WithoutCancel(ctx)

	o.log.Info("NPC loop started", "npcs", len(o.npcs), "locations", o.locations.Len())
	for {
		select {
		case <-ctx.Done():
			o.teardown()
			return nil
		case <-o.stop:
			o.teardown()
			return nil
		case fn := <-o.tasks:
			fn()
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

func (o *Orchestrator) teardown() {
	o.thinkSlots.CancelAll()
	o.stepSlots.CancelAll()
	clear(o.thinking)
	clear(o.walks)
	o.generation++
	o.log.Info("NPC loop stopped", "session_id", o.sessionID)
}

// running reports whether Run has started and not yet returned.
func (o *Orchestrator) running() bool {
	select {
	case <-o.started:
	default:
		return false
	}
	select {
	case <-o.done:
		return false
	default:
		return true
	}
}

// post queues fn for the loop. It reports false once the loop has exited.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.tasks <- fn:
		return true
	case <-o.done:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (o *Orchestrator) call(fn func()) bool {
	finished := make(chan struct{})
	if !o.post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-o.done:
		return false
	}
}

// async runs a remote call off the loop and delivers its outcome back on the
// loop, unless the loop has been torn down in the meantime.
func (o *Orchestrator) async(remote func(ctx context.Context) func()) {
	gen := o.generation
	ctx := o.remoteCtx
	go func() {
		apply := remote(ctx)
		if apply == nil {
			return
		}
		o.post(func() {
			if gen != o.generation {
				return
			}
			apply()
		})
	}()
}

// bestEffort fires a notification whose failure only gets logged.
func (o *Orchestrator) bestEffort(what, npcID string, fn func(ctx context.Context) error) {
	ctx := o.remoteCtx
	go func() {
		if err := fn(ctx); err != nil {
			o.log.Warn("Best-effort notification failed", "call", what, "npc_id", npcID, "error", err)
		}
	}()
}

func (o *Orchestrator) now() string {
	return npcapi.GameTime(o.clock.Now())
}

func (o *Orchestrator) nextTicket() uint64 {
	o.tickets++
	return o.tickets
}

func (o *Orchestrator) setPercent(npcID string, xPct, yPct float64, location string) {
	o.positions.SetPosition(world.Position{
		NPCID:    npcID,
		XPct:     xPct,
		YPct:     yPct,
		Location: location,
	})
}

func (o *Orchestrator) emit(npc world.NPCRef, kind EventKind, action, target, start string) {
	o.feed.Emit(Event{
		NPCID:          npc.ID,
		NPCName:        npc.DisplayName,
		Kind:           kind,
		Action:         action,
		TargetLocation: target,
		StartTime:      start,
	})
}

// Feed returns the event feed.
func (o *Orchestrator) Feed() *EventFeed {
	return o.feed
}

// NPCs returns the session's NPC references.
func (o *Orchestrator) NPCs() []world.NPCRef {
	out := make([]world.NPCRef, len(o.npcs))
	copy(out, o.npcs)
	return out
}

// NPC looks up an NPC by local id.
func (o *Orchestrator) NPC(npcID string) (world.NPCRef, bool) {
	n, ok := o.byID[npcID]
	return n, ok
}

// Locations returns the session's location index.
func (o *Orchestrator) Locations() *world.LocationIndex {
	return o.locations
}

// SessionID returns the current session id, or "" before bootstrap and
// whenever the loop is not running.
func (o *Orchestrator) SessionID() string {
	if !o.running() {
		return ""
	}
	var id string
	if !o.call(func() { id = o.sessionID }) {
		return ""
	}
	return id
}

// NPCStatus is a read model of one NPC.
type NPCStatus struct {
	NPC      world.NPCRef     `json:"npc"`
	State    State            `json:"state"`
	Location string           `json:"location"`
	Behavior *npcapi.Behavior `json:"behavior,omitempty"`
	Position *world.Position  `json:"position,omitempty"`
	Thinking bool             `json:"thinking"`
}

// Snapshot returns the status of every NPC in session order. While the loop
// is not running every NPC is reported idle and unplaced.
func (o *Orchestrator) Snapshot() []NPCStatus {
	if !o.running() {
		return o.idleStatuses()
	}
	out := make([]NPCStatus, 0, len(o.npcs))
	ok := o.call(func() {
		reader, _ := o.positions.(PositionReader)
		for _, n := range o.npcs {
			st := NPCStatus{
				NPC:      n,
				State:    o.tracker.State(n.ID),
				Location: o.tracker.Location(n.ID),
			}
			if b, ok := o.tracker.LatestBehavior(n.ID); ok {
				st.Behavior = &b
			}
			if reader != nil {
				if p, ok := reader.Position(n.ID); ok {
					st.Position = &p
				}
			}
			_, st.Thinking = o.thinking[n.ID]
			out = append(out, st)
		}
	})
	if !ok {
		return o.idleStatuses()
	}
	return out
}

func (o *Orchestrator) idleStatuses() []NPCStatus {
	out := make([]NPCStatus, 0, len(o.npcs))
	for _, n := range o.npcs {
		out = append(out, NPCStatus{NPC: n, State: StateIdle})
	}
	return out
}
