package behavior

import "errors"

var (
	ErrStopped         = errors.New("npc loop is not running")
	ErrNoSession       = errors.New("no session yet")
	ErrUnknownNPC      = errors.New("unknown npc")
	ErrUnknownLocation = errors.New("unknown location")
	ErrNPCBusy         = errors.New("npc is already moving")
)
