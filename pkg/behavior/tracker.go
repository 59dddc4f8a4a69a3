package behavior

import (
	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

// State is an NPC's logical movement state.
type State string

const (
	StateIdle   State = "idle"
	StateMoving State = "moving"
)

// Tracker holds per-NPC state keyed by local NPC id. Writes are
// last-write-wins. The orchestrator loop is the only writer and reader, so
// there is no locking.
type Tracker struct {
	states    map[string]State
	locations map[string]string
	behaviors map[string]npcapi.Behavior
	coords    map[string]world.Point
}

func NewTracker() *Tracker {
	return &Tracker{
		states:    make(map[string]State),
		locations: make(map[string]string),
		behaviors: make(map[string]npcapi.Behavior),
		coords:    make(map[string]world.Point),
	}
}

func (t *Tracker) SetState(npcID string, s State) {
	t.states[npcID] = s
}

// State returns the NPC's state, idle when never set.
func (t *Tracker) State(npcID string) State {
	if s, ok := t.states[npcID]; ok {
		return s
	}
	return StateIdle
}

func (t *Tracker) SetLocation(npcID, name string) {
	t.locations[npcID] = name
}

// Location returns the last location the NPC was known to be at, or "".
func (t *Tracker) Location(npcID string) string {
	return t.locations[npcID]
}

func (t *Tracker) SetLatestBehavior(npcID string, b npcapi.Behavior) {
	t.behaviors[npcID] = b
}

func (t *Tracker) LatestBehavior(npcID string) (npcapi.Behavior, bool) {
	b, ok := t.behaviors[npcID]
	return b, ok
}

// SetCoord records the NPC's last known pixel coordinate.
func (t *Tracker) SetCoord(npcID string, p world.Point) {
	t.coords[npcID] = p
}

func (t *Tracker) Coord(npcID string) (world.Point, bool) {
	p, ok := t.coords[npcID]
	return p, ok
}

// Reset forgets everything about every NPC.
func (t *Tracker) Reset() {
	clear(t.states)
	clear(t.locations)
	clear(t.behaviors)
	clear(t.coords)
}
