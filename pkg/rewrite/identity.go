package rewrite

import (
	"fmt"

	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// Identity rewrites a group call's slot and TG without touching call
// type or IDs beyond the destination. It is the shape XLX voice
// bridging uses on both directions: a single fixed (slot, TG) ->
// (slot, TG) mapping, constructed once when an XLX session opens,
// never reconfigured. Despite the name it does change dstId (to the
// XLX-side or repeater-side TG), so it is functionally a TG rule with
// Range fixed at 1 — kept as a distinct named type for its narrower,
// fixed-shape constructor.
type Identity struct {
	Network          string
	FromSlot, ToSlot int
	FromTG, ToTG     uint32
}

func NewIdentity(network string, fromSlot int, fromTG uint32, toSlot int, toTG uint32) *Identity {
	return &Identity{Network: network, FromSlot: fromSlot, FromTG: fromTG, ToSlot: toSlot, ToTG: toTG}
}

func (r *Identity) Process(f *protocol.Frame) bool {
	if f.Slot != r.FromSlot || f.DstID != r.FromTG || f.CallType != protocol.Group {
		return false
	}

	f.Slot = r.ToSlot
	f.DstID = r.ToTG
	f.CallType = protocol.Group
	return true
}

func (r *Identity) String() string {
	return fmt.Sprintf("%s: %d:TG%d -> %d:TG%d", r.Network, r.FromSlot, r.FromTG, r.ToSlot, r.ToTG)
}
