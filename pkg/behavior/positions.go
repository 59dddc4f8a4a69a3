package behavior

import (
	"sort"
	"sync"

	"github.com/jwebster45206/flimo-world/pkg/world"
)

// PositionMutator receives position updates from the orchestrator.
type PositionMutator interface {
	SetPosition(pos world.Position)
}

// PositionReader is implemented by mutators that can be read back.
type PositionReader interface {
	Position(npcID string) (world.Position, bool)
}

// PositionStore is the default in-memory position list. It is written by the
// orchestrator loop and read by request handlers.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]world.Position
	onChange  func(world.Position)
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]world.Position)}
}

// OnChange registers a hook called after every update.
func (s *PositionStore) OnChange(fn func(world.Position)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *PositionStore) SetPosition(pos world.Position) {
	s.mu.Lock()
	s.positions[pos.NPCID] = pos
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook(pos)
	}
}

func (s *PositionStore) Position(npcID string) (world.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[npcID]
	return p, ok
}

// Positions returns every position ordered by NPC id.
func (s *PositionStore) Positions() []world.Position {
	s.mu.RLock()
	out := make([]world.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].NPCID < out[j].NPCID })
	return out
}
