package rewrite

import (
	"fmt"

	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// PC rewrites a contiguous block of user-to-user (private call)
// destination IDs on one slot to a block on another slot.
type PC struct {
	Network          string
	FromSlot, ToSlot int
	FromID, ToID     uint32
	Range            uint32
}

func NewPC(network string, fromSlot int, fromID uint32, toSlot int, toID uint32, rangeLen uint32) *PC {
	return &PC{Network: network, FromSlot: fromSlot, FromID: fromID, ToSlot: toSlot, ToID: toID, Range: rangeLen}
}

func (r *PC) Process(f *protocol.Frame) bool {
	if f.CallType != protocol.UserToUser || f.Slot != r.FromSlot {
		return false
	}
	if !inRange(f.DstID, r.FromID, r.Range) {
		return false
	}

	f.Slot = r.ToSlot
	f.DstID = r.ToID + (f.DstID - r.FromID)
	return true
}

func (r *PC) String() string {
	return fmt.Sprintf("%s: %d:%d-%d -> %d:%d-%d", r.Network,
		r.FromSlot, r.FromID, r.FromID+r.Range-1, r.ToSlot, r.ToID, r.ToID+r.Range-1)
}
