package dispatch

import (
	"testing"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/peer"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
	"github.com/dl9xyz/dmrgateway/pkg/rewrite"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
	"github.com/dl9xyz/dmrgateway/pkg/xlx"
)

func groupFrame(slotNo int, src, dst uint32, dt protocol.DataType) protocol.Frame {
	return protocol.Frame{Slot: slotNo, SrcID: src, DstID: dst, CallType: protocol.Group, DataType: dt}
}

func pcFrame(slotNo int, src, dst uint32, dt protocol.DataType) protocol.Frame {
	return protocol.Frame{Slot: slotNo, SrcID: src, DstID: dst, CallType: protocol.UserToUser, DataType: dt}
}

func TestDispatcher_XLXVoiceRoundTrip(t *testing.T) {
	// Matches the XLX-1 worked example: primary slot 1, primary TG 8,
	// base 64000 -- distinct from the reflector's own fixed slot 2/TG 9,
	// so a rewrite that silently no-ops on (from==to) would fail this.
	modem := peer.NewTestPeer(0)
	xlx1Peer := peer.NewTestPeer(0)
	xlx1 := xlx.NewSession("XLX-1", 1, 8, 64000)
	outbound := rewrite.NewIdentity("XLX-1", 1, 8, xlx.ReflectorSlot, xlx.ReflectorTG)

	d := New(Config{
		Modem:               modem,
		XLX1Peer:            xlx1Peer,
		XLX1Session:         xlx1,
		XLX1OutboundRewrite: outbound,
		Slots:               slot.NewSlots(0),
	})

	modem.Push(groupFrame(1, 312001, 8, protocol.VoiceLCHeader))
	d.Tick(0)

	written := xlx1Peer.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 frame forwarded to XLX-1, got %d", len(written))
	}
	if written[0].Slot != xlx.ReflectorSlot || written[0].DstID != xlx.ReflectorTG {
		t.Errorf("frame to XLX-1 = slot %d, dst %d, want slot %d, dst %d",
			written[0].Slot, written[0].DstID, xlx.ReflectorSlot, xlx.ReflectorTG)
	}
	if got := d.cfg.Slots.Get(1).Owner(); got != slot.XlxRefl1 {
		t.Errorf("slot 1 owner = %v, want XlxRefl1", got)
	}
}

func TestDispatcher_XLXLinkCommandUpdatesSessionAndAnnounces(t *testing.T) {
	// Same XLX-1 worked example as the voice round trip: primary slot 1,
	// base 64000. Link-control frames only get their slot rewritten to
	// the reflector's fixed slot -- the destination ID is the link
	// command itself and must survive untouched.
	modem := peer.NewTestPeer(0)
	xlx1Peer := peer.NewTestPeer(0)
	xlx1 := xlx.NewSession("XLX-1", 1, 8, 64000)

	var linked []uint32
	obs := &recordingObserver{onLinkChanged: func(name string, reflector uint32) {
		linked = append(linked, reflector)
	}}

	d := New(Config{
		Modem:       modem,
		XLX1Peer:    xlx1Peer,
		XLX1Session: xlx1,
		Slots:       slot.NewSlots(0),
		Observer:    obs,
	})

	// Link command to reflector 4005 (offset 5), then a terminator to
	// commit it: the change latches until the transmission carrying it
	// closes out.
	modem.Push(pcFrame(1, 312001, 64005, protocol.CSBK))
	modem.Push(pcFrame(1, 312001, 64005, protocol.TerminatorWithLC))

	d.Tick(0)
	d.Tick(0)

	if xlx1.Reflector() != 4005 {
		t.Errorf("reflector = %d, want 4005", xlx1.Reflector())
	}
	if len(linked) != 1 || linked[0] != 4005 {
		t.Errorf("observer saw link changes %v, want [4005]", linked)
	}
	written := xlx1Peer.Written()
	if len(written) != 2 {
		t.Fatalf("expected both link-control frames forwarded to XLX-1, got %d", len(written))
	}
	for _, f := range written {
		if f.Slot != xlx.ReflectorSlot {
			t.Errorf("frame to XLX-1 has slot %d, want %d", f.Slot, xlx.ReflectorSlot)
		}
		if f.DstID != 64005 {
			t.Errorf("frame to XLX-1 has dst %d, want 64005 (link command untouched)", f.DstID)
		}
	}
}

func TestDispatcher_SlotClaimedObserverReceivesTriggeringFrame(t *testing.T) {
	modem := peer.NewTestPeer(0)
	dmr1Peer := peer.NewTestPeer(0)
	chain := rewrite.Chain{rewrite.NewTG("DMR-1", 1, 100, 1, 9, 1)}

	var claimed []protocol.Frame
	obs := &recordingObserver{onSlotClaimed: func(f protocol.Frame, owner slot.Owner) {
		claimed = append(claimed, f)
	}}

	d := New(Config{
		Modem:       modem,
		DMR1Peer:    dmr1Peer,
		DMR1RFChain: chain,
		Slots:       slot.NewSlots(60000),
		Observer:    obs,
	})

	modem.Push(groupFrame(1, 312001, 100, protocol.VoiceLCHeader))
	d.Tick(10 * time.Millisecond)

	if len(claimed) != 1 {
		t.Fatalf("expected 1 slot-claimed notification, got %d", len(claimed))
	}
	if claimed[0].SrcID != 312001 || claimed[0].DstID != 9 {
		t.Errorf("observer saw frame %+v, want the rewritten frame (src=312001, dst=9)", claimed[0])
	}
}

func TestDispatcher_SlotLockoutBlocksDMRWhileXLXOwnsSlot(t *testing.T) {
	modem := peer.NewTestPeer(0)
	xlx1Peer := peer.NewTestPeer(0)
	dmr1Peer := peer.NewTestPeer(0)
	xlx1 := xlx.NewSession("XLX-1", 2, 9, 4000)

	chain := rewrite.Chain{rewrite.NewTG("DMR-1", 2, 1, 2, 1, 1)}

	d := New(Config{
		Modem:       modem,
		XLX1Peer:    xlx1Peer,
		XLX1Session: xlx1,
		DMR1Peer:    dmr1Peer,
		DMR1RFChain: chain,
		Slots:       slot.NewSlots(60000),
	})

	// XLX-1 claims slot 2 first.
	modem.Push(groupFrame(2, 312001, 9, protocol.VoiceLCHeader))
	d.Tick(10 * time.Millisecond)

	if d.cfg.Slots.Get(2).Owner() != slot.XlxRefl1 {
		t.Fatalf("expected XLX-1 to own slot 2")
	}

	// A DMR-1 frame on the same slot is matched by the rewrite chain
	// but must be dropped, not forwarded, while XLX-1 holds the slot.
	modem.Push(groupFrame(2, 312002, 1, protocol.VoiceBurstA))
	d.Tick(10 * time.Millisecond)

	if written := dmr1Peer.Written(); len(written) != 0 {
		t.Errorf("expected DMR-1 forward to be blocked by slot lockout, got %d frames", len(written))
	}
}

func TestDispatcher_DMRRFChainRewritesAndForwards(t *testing.T) {
	modem := peer.NewTestPeer(0)
	dmr1Peer := peer.NewTestPeer(0)
	chain := rewrite.Chain{rewrite.NewTG("DMR-1", 1, 100, 1, 9, 1)}

	d := New(Config{
		Modem:       modem,
		DMR1Peer:    dmr1Peer,
		DMR1RFChain: chain,
		Slots:       slot.NewSlots(60000),
	})

	modem.Push(groupFrame(1, 312001, 100, protocol.VoiceLCHeader))
	d.Tick(10 * time.Millisecond)

	written := dmr1Peer.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 frame forwarded to DMR-1, got %d", len(written))
	}
	if written[0].DstID != 9 {
		t.Errorf("forwarded dst = %d, want 9 (rewritten)", written[0].DstID)
	}
	if d.cfg.Slots.Get(1).Owner() != slot.DmrNet1 {
		t.Errorf("slot 1 owner = %v, want DmrNet1", d.cfg.Slots.Get(1).Owner())
	}
}

func TestDispatcher_NetworkToModemRewritesAndClaimsSlot(t *testing.T) {
	modem := peer.NewTestPeer(0)
	xlx1Peer := peer.NewTestPeer(0)
	inbound := rewrite.NewTG("XLX-1", 2, 9, 2, 9, 1)

	d := New(Config{
		Modem:              modem,
		XLX1Peer:           xlx1Peer,
		XLX1InboundRewrite: inbound,
		Slots:              slot.NewSlots(60000),
	})

	xlx1Peer.Push(groupFrame(2, 4005, 9, protocol.VoiceLCHeader))
	d.Tick(10 * time.Millisecond)

	if written := modem.Written(); len(written) != 1 {
		t.Fatalf("expected 1 frame forwarded to modem, got %d", len(written))
	}
	if d.cfg.Slots.Get(2).Owner() != slot.XlxRefl1 {
		t.Errorf("slot 2 owner = %v, want XlxRefl1", d.cfg.Slots.Get(2).Owner())
	}
}

func TestDispatcher_TelemetryFansOutToAllNetworksUnrewritten(t *testing.T) {
	modem := peer.NewTestPeer(0)
	dmr1Peer := peer.NewTestPeer(0)
	xlx1Peer := peer.NewTestPeer(0)

	d := New(Config{Modem: modem, DMR1Peer: dmr1Peer, XLX1Peer: xlx1Peer})

	modem.PushPosition([]byte("gps-report"))
	d.Tick(10 * time.Millisecond)

	if dmr1, xlx1 := len(dmr1Peer.WrittenPositions()), len(xlx1Peer.WrittenPositions()); dmr1 != 1 || xlx1 != 1 {
		t.Fatalf("expected position report fanned out to both networks, got dmr1=%d xlx1=%d", dmr1, xlx1)
	}
}

func TestDispatcher_ClockAdvancesPeersAndSlots(t *testing.T) {
	modem := peer.NewTestPeer(0)
	dmr1Peer := peer.NewTestPeer(0)
	slots := slot.NewSlots(50)
	slots.Get(1).Claim(slot.DmrNet1)

	d := New(Config{Modem: modem, DMR1Peer: dmr1Peer, Slots: slots})
	d.Tick(100 * time.Millisecond)

	if modem.Clocked() != 100 || dmr1Peer.Clocked() != 100 {
		t.Errorf("expected peers clocked by 100ms, got modem=%d dmr1=%d", modem.Clocked(), dmr1Peer.Clocked())
	}
	if slots.Get(1).Owner() != slot.None {
		t.Errorf("expected slot 1 to time out after 100ms > 50ms timeout")
	}
}

// recordingObserver lets tests assert on link-change notifications
// without needing a real pkg/web or pkg/mqtt collaborator.
type recordingObserver struct {
	onSlotClaimed func(f protocol.Frame, owner slot.Owner)
	onLinkChanged func(name string, reflector uint32)
}

func (o *recordingObserver) SlotClaimed(f protocol.Frame, owner slot.Owner) {
	if o.onSlotClaimed != nil {
		o.onSlotClaimed(f, owner)
	}
}

func (o *recordingObserver) XLXLinkChanged(name string, reflector uint32) {
	if o.onLinkChanged != nil {
		o.onLinkChanged(name, reflector)
	}
}
