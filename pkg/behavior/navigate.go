package behavior

import (
	"context"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

// navigate walks an NPC from one named location to another along a path
// computed by the navigation backend. It owns the idle → moving → idle
// transition and re-arms the think on every way out.
func (o *Orchestrator) navigate(npcID, from, to string) {
	npc, ok := o.byID[npcID]
	if !ok || o.sessionID == "" {
		return
	}

	// A think still in flight would otherwise land mid-walk.
	o.thinkSlots.Cancel(npcID)
	delete(o.thinking, npcID)
	o.stepSlots.Cancel(npcID)

	ticket := o.nextTicket()
	o.walks[npcID] = &walk{ticket: ticket, to: to}
	o.tracker.SetState(npcID, StateMoving)

	now := o.now()
	o.emit(npc, EventMoveStart, "walking", to, now)

	sessionID := o.sessionID
	o.bestEffort("move_start", npcID, func(ctx context.Context) error {
		return o.backend.MoveStart(ctx, sessionID, npc.ExternalID, npcapi.MoveStartRequest{
			CurrentTime:  now,
			FromLocation: from,
			ToLocation:   to,
		})
	})

	coord, haveCoord := o.tracker.Coord(npcID)
	worldID := o.cfg.WorldID
	o.async(func(ctx context.Context) func() {
		var path []world.Point
		var err error
		if haveCoord {
			path, err = o.nav.NavigateFromCoord(ctx, npcapi.NavigateFromCoordRequest{
				WorldID:    worldID,
				FromX:      coord.X,
				FromY:      coord.Y,
				ToLocation: to,
			})
		} else {
			path, err = o.nav.NavigateBetween(ctx, npcapi.NavigateRequest{
				WorldID:      worldID,
				FromLocation: from,
				ToLocation:   to,
			})
		}
		return func() { o.walkPath(npcID, ticket, path, err) }
	})
}

func (o *Orchestrator) walkPath(npcID string, ticket uint64, path []world.Point, err error) {
	w, ok := o.walks[npcID]
	if !ok || w.ticket != ticket {
		return
	}

	if err != nil {
		o.log.Warn("Navigation failed, skipping move", "npc_id", npcID, "to", w.to, "error", err)
		delete(o.walks, npcID)
		o.tracker.SetState(npcID, StateIdle)
		o.armThink(npcID, o.thinkDelay())
		return
	}

	w.path = path
	if len(path) < 2 {
		o.arrive(npcID)
		return
	}

	o.setPoint(npcID, path[0])
	w.next = 1
	o.armStep(npcID)
}

func (o *Orchestrator) armStep(npcID string) {
	o.stepSlots.Arm(npcID, o.cfg.StepInterval, func() { o.step(npcID) })
}

// step advances one waypoint. The tick that reaches the final waypoint
// settles the NPC on the destination instead.
func (o *Orchestrator) step(npcID string) {
	w, ok := o.walks[npcID]
	if !ok {
		return
	}
	if w.next >= len(w.path)-1 {
		o.arrive(npcID)
		return
	}
	o.setPoint(npcID, w.path[w.next])
	w.next++
	o.armStep(npcID)
}

func (o *Orchestrator) arrive(npcID string) {
	w, ok := o.walks[npcID]
	if !ok {
		return
	}
	delete(o.walks, npcID)
	o.stepSlots.Cancel(npcID)

	npc := o.byID[npcID]
	x, y := o.locations.CenterToPercent(w.to)
	o.setPercent(npcID, x, y, w.to)
	o.tracker.SetLocation(npcID, w.to)
	if len(w.path) > 0 {
		o.tracker.SetCoord(npcID, w.path[len(w.path)-1])
	} else if c, ok := o.locations.Center(w.to); ok {
		o.tracker.SetCoord(npcID, c)
	}

	now := o.now()
	sessionID := o.sessionID
	o.bestEffort("move_arrive", npcID, func(ctx context.Context) error {
		return o.backend.MoveArrive(ctx, sessionID, npc.ExternalID, npcapi.MoveArriveRequest{
			CurrentTime: now,
			Location:    w.to,
		})
	})

	o.tracker.SetState(npcID, StateIdle)
	o.emit(npc, EventMoveArrive, "arrived", w.to, now)
	o.armThink(npcID, o.thinkDelay())
}

func (o *Orchestrator) setPoint(npcID string, p world.Point) {
	x, y := world.ToPercent(p)
	o.setPercent(npcID, x, y, "")
}

// RequestMove sends an idle NPC to a location on behalf of the player.
func (o *Orchestrator) RequestMove(npcID, target string) error {
	var err error
	ran := o.call(func() {
		npc, ok := o.byID[npcID]
		switch {
		case !ok:
			err = ErrUnknownNPC
		case o.sessionID == "":
			err = ErrNoSession
		case !o.locations.IsValid(target):
			err = ErrUnknownLocation
		case o.tracker.State(npcID) == StateMoving:
			err = ErrNPCBusy
		case o.tracker.Location(npcID) == target:
			// Already there.
		default:
			o.navigate(npc.ID, o.tracker.Location(npcID), target)
		}
	})
	if !ran {
		return ErrStopped
	}
	return err
}
