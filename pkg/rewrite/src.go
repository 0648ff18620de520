package rewrite

import (
	"fmt"

	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// Src matches on a block of source IDs regardless of call type, and
// turns the frame into a group call to a fixed talk-group on another
// slot — used on the network-to-RF path to fold a block of subscriber
// IDs back onto a single local talk-group.
type Src struct {
	Network          string
	FromSlot, ToSlot int
	FromID           uint32
	ToTG             uint32
	Range            uint32
}

func NewSrc(network string, fromSlot int, fromID uint32, toSlot int, toTG uint32, rangeLen uint32) *Src {
	return &Src{Network: network, FromSlot: fromSlot, FromID: fromID, ToSlot: toSlot, ToTG: toTG, Range: rangeLen}
}

func (r *Src) Process(f *protocol.Frame) bool {
	if f.Slot != r.FromSlot {
		return false
	}
	if !inRange(f.SrcID, r.FromID, r.Range) {
		return false
	}

	f.Slot = r.ToSlot
	f.DstID = r.ToTG
	f.CallType = protocol.Group
	return true
}

func (r *Src) String() string {
	return fmt.Sprintf("%s: %d:%d-%d -> %d:TG%d", r.Network,
		r.FromSlot, r.FromID, r.FromID+r.Range-1, r.ToSlot, r.ToTG)
}
