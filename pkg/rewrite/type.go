package rewrite

import (
	"fmt"

	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// Type converts a single group call on one slot/TG into a user-to-user
// call on another slot/ID — used to fan a talk-group out to an
// individual subscriber's private-call address.
type Type struct {
	Network          string
	FromSlot, ToSlot int
	FromTG, ToID     uint32
}

func NewType(network string, fromSlot int, fromTG uint32, toSlot int, toID uint32) *Type {
	return &Type{Network: network, FromSlot: fromSlot, FromTG: fromTG, ToSlot: toSlot, ToID: toID}
}

func (r *Type) Process(f *protocol.Frame) bool {
	if f.CallType != protocol.Group || f.Slot != r.FromSlot || f.DstID != r.FromTG {
		return false
	}

	f.Slot = r.ToSlot
	f.DstID = r.ToID
	f.CallType = protocol.UserToUser
	return true
}

func (r *Type) String() string {
	return fmt.Sprintf("%s: %d:TG%d -> %d:%d", r.Network, r.FromSlot, r.FromTG, r.ToSlot, r.ToID)
}
