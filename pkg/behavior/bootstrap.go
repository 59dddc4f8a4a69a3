package behavior

import (
	"context"
	"fmt"

	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

// Bootstrap creates the remote session and starts every NPC's cycle. It is
// a no-op while a session exists or is being created. On failure the
// session stays unset and Bootstrap may be called again.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	skip := false
	var req npcapi.CreateSessionRequest
	if !o.call(func() {
		if o.sessionID != "" || o.creating {
			skip = true
			return
		}
		o.creating = true
		req = o.sessionRequest()
	}) {
		return ErrStopped
	}
	if skip {
		return nil
	}

	resp, err := o.backend.CreateSession(ctx, req)
	if err == nil {
		if resp == nil {
			err = errEmptyResponse
		} else {
			err = resp.Validate()
		}
	}

	if !o.call(func() {
		o.creating = false
		if err == nil {
			o.start(resp)
		}
	}) {
		return ErrStopped
	}
	if err != nil {
		o.log.Error("Failed to create NPC session", "error", err, "npcs", len(req.NPCs))
		return fmt.Errorf("failed to create session: %w", err)
	}

	o.log.Info("NPC session created", "session_id", resp.SessionID, "initial_states", len(resp.InitialStates))
	return nil
}

// startLocation is where an NPC is placed before the backend says otherwise.
func (o *Orchestrator) startLocation(npc world.NPCRef) string {
	if o.locations.IsValid(npc.Location) {
		return npc.Location
	}
	return o.locations.First()
}

func (o *Orchestrator) sessionRequest() npcapi.CreateSessionRequest {
	req := npcapi.CreateSessionRequest{
		CurrentTime:  o.now(),
		WorldSetting: o.cfg.WorldSetting,
		Locations:    o.locations.Names(),
		NPCs:         make([]npcapi.SessionNPC, 0, len(o.npcs)),
	}
	for _, npc := range o.npcs {
		if npc.ExternalID == "" {
			o.log.Warn("NPC has no external id, leaving it out of the session", "npc_id", npc.ID, "name", npc.DisplayName)
			continue
		}
		req.NPCs = append(req.NPCs, npcapi.SessionNPC{
			ID:              npc.ExternalID,
			Name:            npc.DisplayName,
			CurrentLocation: o.startLocation(npc),
			Profile:         npc.Profile,
		})
	}
	return req
}

// start seeds every NPC from the session response. NPCs the backend sent a
// move for start walking; the rest think after a staggered delay.
func (o *Orchestrator) start(resp *npcapi.CreateSessionResponse) {
	o.sessionID = resp.SessionID

	for i, npc := range o.npcs {
		loc := o.startLocation(npc)
		initial, hasInitial := resp.InitialStates[npc.ExternalID]
		if hasInitial && initial.CurrentLocation != "" {
			loc = initial.CurrentLocation
		}

		o.tracker.SetLocation(npc.ID, loc)
		o.tracker.SetState(npc.ID, StateIdle)
		x, y := o.locations.CenterToPercent(loc)
		o.setPercent(npc.ID, x, y, loc)

		if hasInitial && initial.Behavior != nil {
			b := *initial.Behavior
			o.tracker.SetLatestBehavior(npc.ID, b)
			o.emit(npc, EventBehavior, b.Action, b.TargetLocation, b.StartTime)
			if o.shouldMove(loc, b.TargetLocation) {
				o.navigate(npc.ID, loc, b.TargetLocation)
				continue
			}
		}
		o.armThink(npc.ID, o.initialDelay(i))
	}
}
