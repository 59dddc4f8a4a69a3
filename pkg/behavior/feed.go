package behavior

import "sync"

// DefaultFeedCap is the number of events kept for display.
const DefaultFeedCap = 50

// EventKind separates behaviour decisions from movement notices.
type EventKind string

const (
	EventBehavior   EventKind = "behavior"
	EventMoveStart  EventKind = "move_start"
	EventMoveArrive EventKind = "move_arrive"
)

// Event is one entry of the presentation feed.
type Event struct {
	NPCID          string    `json:"npc_id"`
	NPCName        string    `json:"npc_name"`
	Kind           EventKind `json:"kind"`
	Action         string    `json:"action"`
	TargetLocation string    `json:"target_location,omitempty"`
	StartTime      string    `json:"start_time"`
}

// EventFeed is a capped, newest-first list of events with callback fan-out.
// Order is insertion order; nothing is re-sorted by time.
type EventFeed struct {
	mu          sync.RWMutex
	cap         int
	events      []Event
	subscribers []func(Event)
}

func NewEventFeed(capacity int) *EventFeed {
	if capacity <= 0 {
		capacity = DefaultFeedCap
	}
	return &EventFeed{
		cap:    capacity,
		events: make([]Event, 0, capacity),
	}
}

// Emit prepends e, drops the oldest entry past capacity and notifies
// subscribers.
func (f *EventFeed) Emit(e Event) {
	f.mu.Lock()
	if len(f.events) < f.cap {
		f.events = append(f.events, Event{})
	}
	copy(f.events[1:], f.events[:len(f.events)-1])
	f.events[0] = e
	subs := f.subscribers
	f.mu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Subscribe registers fn to be called for every emitted event. Callbacks run
// on the emitting goroutine and must not block.
func (f *EventFeed) Subscribe(fn func(Event)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Copy on write so Emit can iterate without holding the lock.
	subs := make([]func(Event), len(f.subscribers), len(f.subscribers)+1)
	copy(subs, f.subscribers)
	f.subscribers = append(subs, fn)
}

// Events returns a copy of the feed, newest first.
func (f *EventFeed) Events() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func (f *EventFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}
