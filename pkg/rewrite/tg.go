package rewrite

import (
	"fmt"

	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// TG rewrites a contiguous block of talk-groups on one slot to a
// contiguous block on another slot, preserving the offset within the
// block.
type TG struct {
	Network             string
	FromSlot, ToSlot     int
	FromTG, ToTG, Range uint32
}

func NewTG(network string, fromSlot int, fromTG uint32, toSlot int, toTG uint32, rangeLen uint32) *TG {
	return &TG{Network: network, FromSlot: fromSlot, FromTG: fromTG, ToSlot: toSlot, ToTG: toTG, Range: rangeLen}
}

func (r *TG) Process(f *protocol.Frame) bool {
	if f.CallType != protocol.Group || f.Slot != r.FromSlot {
		return false
	}
	if !inRange(f.DstID, r.FromTG, r.Range) {
		return false
	}

	f.Slot = r.ToSlot
	f.DstID = r.ToTG + (f.DstID - r.FromTG)
	return true
}

func (r *TG) String() string {
	return fmt.Sprintf("%s: %d:TG%d-TG%d -> %d:TG%d-TG%d", r.Network,
		r.FromSlot, r.FromTG, r.FromTG+r.Range-1, r.ToSlot, r.ToTG, r.ToTG+r.Range-1)
}
