package behavior

import (
	"context"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

func (o *Orchestrator) jitter(base, spread time.Duration) time.Duration {
	return base + time.Duration(o.rand()*float64(spread))
}

// thinkDelay is the wait between two thinks of one NPC.
func (o *Orchestrator) thinkDelay() time.Duration {
	return o.jitter(o.cfg.ThinkBaseDelay, o.cfg.ThinkJitter)
}

// initialDelay staggers the first think of the index-th NPC so a large cast
// does not hit the backend all at once.
func (o *Orchestrator) initialDelay(index int) time.Duration {
	d := o.jitter(o.cfg.InitialDelay+time.Duration(index)*o.cfg.InitialStagger, o.cfg.InitialJitter)
	return min(d, o.cfg.InitialMaxDelay)
}

// armThink replaces whatever think is pending or in flight for the NPC.
func (o *Orchestrator) armThink(npcID string, d time.Duration) {
	delete(o.thinking, npcID)
	o.thinkSlots.Arm(npcID, d, func() { o.think(npcID) })
}

func (o *Orchestrator) think(npcID string) {
	if o.tracker.State(npcID) == StateMoving {
		// Arrival re-arms the think.
		return
	}
	if _, busy := o.thinking[npcID]; busy {
		return
	}
	if o.sessionID == "" {
		return
	}
	npc, ok := o.byID[npcID]
	if !ok || npc.ExternalID == "" {
		o.log.Debug("Skipping think for NPC without external id", "npc_id", npcID)
		return
	}

	ticket := o.nextTicket()
	o.thinking[npcID] = ticket
	sessionID := o.sessionID
	req := npcapi.ThinkRequest{CurrentTime: o.now()}

	o.async(func(ctx context.Context) func() {
		resp, err := o.backend.ThinkNPC(ctx, sessionID, npc.ExternalID, req)
		if err == nil && resp == nil {
			err = errEmptyResponse
		}
		return func() {
			if o.thinking[npcID] != ticket {
				// Superseded by a re-arm while the call was out.
				return
			}
			delete(o.thinking, npcID)
			if err != nil {
				o.log.Warn("NPC think failed", "npc_id", npcID, "external_id", npc.ExternalID, "error", err)
				o.armThink(npcID, o.cfg.ThinkErrorDelay)
				return
			}
			o.applyBehavior(npc, resp.Behavior)
		}
	})
}

// applyBehavior records a fresh behaviour and either starts the move it asks
// for or schedules the next think.
func (o *Orchestrator) applyBehavior(npc world.NPCRef, b npcapi.Behavior) {
	o.tracker.SetLatestBehavior(npc.ID, b)
	o.emit(npc, EventBehavior, b.Action, b.TargetLocation, b.StartTime)

	current := o.tracker.Location(npc.ID)
	if o.shouldMove(current, b.TargetLocation) {
		o.navigate(npc.ID, current, b.TargetLocation)
		return
	}
	if b.TargetLocation != "" && !o.locations.IsValid(b.TargetLocation) {
		o.log.Debug("Ignoring unknown target location", "npc_id", npc.ID, "target", b.TargetLocation)
	}
	o.armThink(npc.ID, o.thinkDelay())
}

func (o *Orchestrator) shouldMove(current, target string) bool {
	return target != "" && target != current && o.locations.IsValid(target)
}
