package protocol

import "fmt"

// CallType distinguishes a group (talk-group) call from a one-to-one
// user-to-user call. Named per the gateway's own vocabulary rather than
// the wire-level CallTypeGroup/CallTypePrivate pair in dmrd.go, which
// DataType this package still uses for HomeBrew wire framing.
type CallType int

const (
	Group CallType = iota
	UserToUser
)

func (c CallType) String() string {
	if c == Group {
		return "group"
	}
	return "user-to-user"
}

// DataType enumerates the kinds of frame the dispatcher cares about.
// Names follow the DMR Air Interface Data Type information element
// (ETSI TS 102 361-1 Table 9.2), the same table pd0mz-go-dmr/packet.go
// enumerates; the numeric values are this package's own sequence and
// are not the table's codes.
type DataType int

const (
	VoiceLCHeader DataType = iota
	TerminatorWithLC
	CSBK
	DataHeader
	Rate12Data
	Rate34Data
	Idle
	VoiceBurstA
	VoiceBurstB
	VoiceBurstC
	VoiceBurstD
	VoiceBurstE
	VoiceBurstF
)

func (d DataType) IsVoiceBurst() bool {
	return d >= VoiceBurstA && d <= VoiceBurstF
}

// Frame is the DMR data unit passed between peers. It is a plain value:
// callers must copy it (Clone) before handing it to more than one
// destination, since rewrite rules mutate frames in place.
type Frame struct {
	Slot       int
	SrcID      uint32
	DstID      uint32
	CallType   CallType
	DataType   DataType
	StreamID   uint32
	RepeaterID uint32
	Payload    []byte
}

// Clone returns a deep copy of the frame, so the copy's Payload can be
// mutated without affecting the original.
func (f Frame) Clone() Frame {
	clone := f
	if f.Payload != nil {
		clone.Payload = make([]byte, len(f.Payload))
		copy(clone.Payload, f.Payload)
	}
	return clone
}

func (f Frame) String() string {
	return fmt.Sprintf("slot=%d %s src=%d dst=%d datatype=%d stream=%d",
		f.Slot, f.CallType, f.SrcID, f.DstID, f.DataType, f.StreamID)
}

// ToDMRD converts an abstract Frame into the HomeBrew-wire DMRDPacket
// shape used by NetworkPeer, combining the abstract DataType back into
// the wire's split FrameType/DataType nibble.
func (f Frame) ToDMRD(sequence byte) *DMRDPacket {
	p := &DMRDPacket{
		Sequence:      sequence,
		SourceID:      f.SrcID,
		DestinationID: f.DstID,
		RepeaterID:    f.RepeaterID,
		Timeslot:      f.Slot,
		StreamID:      f.StreamID,
		Payload:       f.Payload,
	}

	if f.CallType == UserToUser {
		p.CallType = CallTypePrivate
	} else {
		p.CallType = CallTypeGroup
	}

	switch {
	case f.DataType.IsVoiceBurst():
		p.FrameType = FrameTypeVoice
		p.DataType = byte(f.DataType - VoiceBurstA)
	case f.DataType == VoiceLCHeader:
		p.FrameType = FrameTypeVoiceHeader
		p.DataType = 0
	case f.DataType == TerminatorWithLC:
		p.FrameType = FrameTypeVoiceTerminator
		p.DataType = 0
	default:
		p.FrameType = FrameTypeDataSync
		p.DataType = byte(f.DataType)
	}

	return p
}

// FrameFromDMRD converts a HomeBrew-wire DMRDPacket into the abstract
// Frame the dispatcher and rewrite rules operate on.
func FrameFromDMRD(p *DMRDPacket) Frame {
	f := Frame{
		Slot:       p.Timeslot,
		SrcID:      p.SourceID,
		DstID:      p.DestinationID,
		RepeaterID: p.RepeaterID,
		StreamID:   p.StreamID,
		Payload:    p.Payload,
	}

	if p.CallType == CallTypePrivate {
		f.CallType = UserToUser
	} else {
		f.CallType = Group
	}

	switch p.FrameType {
	case FrameTypeVoice:
		f.DataType = VoiceBurstA + DataType(p.DataType&0x07)
	case FrameTypeVoiceHeader:
		f.DataType = VoiceLCHeader
	case FrameTypeVoiceTerminator:
		f.DataType = TerminatorWithLC
	default:
		f.DataType = DataType(p.DataType)
	}

	return f
}
