// Package dispatch implements the gateway's single-threaded core loop:
// one tick polls the modem and all four upstream networks exactly once,
// in a fixed order, and moves frames between them through the rewrite
// chains, XLX link-control interpreter and slot-ownership tracker. One
// method per phase replaces what would otherwise be a single
// monolithic loop body.
package dispatch

import (
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/peer"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
	"github.com/dl9xyz/dmrgateway/pkg/rewrite"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
	"github.com/dl9xyz/dmrgateway/pkg/voice"
	"github.com/dl9xyz/dmrgateway/pkg/xlx"
)

// TickInterval is the pacing delay between ticks when running under
// Run, matching the original's 10ms usleep at the bottom of its loop.
const TickInterval = 10 * time.Millisecond

// Observer is notified of slot ownership and XLX link-state changes as
// they happen, for collaborators (pkg/web, pkg/mqtt, pkg/database) that
// want to react to the gateway's state without sitting on the
// frame-forwarding path itself. Implementations must return promptly;
// the dispatcher calls them inline, between frames. SlotClaimed carries
// the frame that earned the claim, not just the slot number, so a
// collaborator like a transmission logger can derive stream/radio/
// talkgroup identity from it without a second channel.
type Observer interface {
	SlotClaimed(f protocol.Frame, owner slot.Owner)
	XLXLinkChanged(name string, reflector uint32)
}

// NoopObserver implements Observer with no-op methods, so a Dispatcher
// built without a real one never needs a nil check.
type NoopObserver struct{}

// MultiObserver fans a single Dispatcher's notifications out to every
// Observer in the slice, in order, so cmd/dmrgateway/main.go can hand the
// Dispatcher one Observer even when the web dashboard, the MQTT publisher
// and the transmission logger all want to see the same events.
type MultiObserver []Observer

func (m MultiObserver) SlotClaimed(f protocol.Frame, owner slot.Owner) {
	for _, o := range m {
		o.SlotClaimed(f, owner)
	}
}

func (m MultiObserver) XLXLinkChanged(name string, reflector uint32) {
	for _, o := range m {
		o.XLXLinkChanged(name, reflector)
	}
}

func (NoopObserver) SlotClaimed(f protocol.Frame, owner slot.Owner)  {}
func (NoopObserver) XLXLinkChanged(name string, reflector uint32) {}

// Config collects everything a Dispatcher needs to wire together. Any
// of the four network peers, their chains, and the two voice sources
// may be nil/empty — each network is independently enable-able, and a
// nil peer is simply never polled.
type Config struct {
	Modem peer.ModemPeer

	DMR1Peer     peer.NetworkPeer
	DMR1RFChain  rewrite.Chain // modem -> DMR-1
	DMR1NetChain rewrite.Chain // DMR-1 -> modem

	DMR2Peer     peer.NetworkPeer
	DMR2RFChain  rewrite.Chain
	DMR2NetChain rewrite.Chain

	XLX1Peer            peer.NetworkPeer
	XLX1Session         *xlx.Session
	XLX1OutboundRewrite rewrite.Rule // fixed modem -> XLX talk-group rewrite
	XLX1InboundRewrite  rewrite.Rule // fixed XLX -> modem talk-group rewrite

	XLX2Peer            peer.NetworkPeer
	XLX2Session         *xlx.Session
	XLX2OutboundRewrite rewrite.Rule
	XLX2InboundRewrite  rewrite.Rule

	Voice1 *voice.Source
	Voice2 *voice.Source

	Slots *slot.Slots

	// FixXLX2ReflectorComparison, when true, makes XLX-2's link-change
	// detection compare against its own previous reflector instead of
	// XLX-1's, correcting the copy-paste comparison the original
	// carries from its XLX-1 branch. Defaults to false (the original's
	// behaviour), since real deployments have run with it for years.
	FixXLX2ReflectorComparison bool

	Observer Observer
	Log      *logger.Logger
}

// Dispatcher runs the gateway's single-threaded dispatch loop. None of
// its methods are safe to call concurrently; it is driven by exactly
// one goroutine.
type Dispatcher struct {
	cfg Config
	log *logger.Logger
	obs Observer
}

// New builds a Dispatcher from cfg. A nil Observer is replaced with
// NoopObserver so callers that don't care about notifications don't
// need to supply one.
func New(cfg Config) *Dispatcher {
	obs := cfg.Observer
	if obs == nil {
		obs = NoopObserver{}
	}
	log := cfg.Log
	if log == nil {
		log = logger.New(logger.Config{})
	}
	return &Dispatcher{cfg: cfg, log: log.WithComponent("dispatch"), obs: obs}
}

// Run polls the dispatcher in a loop, sleeping TickInterval between
// ticks, until stop is closed. It returns the number of ticks it ran,
// mainly so tests can assert it actually looped.
func (d *Dispatcher) Run(stop <-chan struct{}) int {
	ticks := 0
	last := time.Now()
	for {
		select {
		case <-stop:
			return ticks
		default:
		}
		now := time.Now()
		d.Tick(now.Sub(last))
		last = now
		ticks++
		time.Sleep(TickInterval)
	}
}

// Tick runs one full pass of the dispatch algorithm: modem-to-network,
// network-to-modem for every configured peer, auxiliary telemetry
// fan-out, local voice playback, and clocking by elapsed milliseconds.
func (d *Dispatcher) Tick(elapsed time.Duration) {
	d.modemToNetwork()
	d.networkToModem()
	d.fanOutTelemetry()
	d.playVoice()
	d.clock(elapsed.Milliseconds())
}

// modemToNetwork reads at most one frame from the modem this tick and
// routes it through steps 1a-1f: XLX-1 voice/link-control, XLX-2
// voice/link-control, then the DMR-1 and DMR-2 RF rewrite chains, in
// that strict priority order. The XLX steps assert slot ownership
// unconditionally, matching the original treating reflector traffic
// as always authoritative over a DMR master's claim.
func (d *Dispatcher) modemToNetwork() {
	if d.cfg.Modem == nil {
		return
	}
	f, ok, err := d.cfg.Modem.Read()
	if err != nil {
		d.log.Error("modem read failed", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	d.routeFromModem(f)
}

func (d *Dispatcher) routeFromModem(f protocol.Frame) {
	isGroup := f.CallType == protocol.Group

	if d.cfg.XLX1Session != nil && d.handleXLXFromModem(f, isGroup, d.cfg.XLX1Session, nil, d.cfg.XLX1Peer, d.cfg.XLX1OutboundRewrite, d.cfg.Voice1, slot.XlxRefl1) {
		return
	}
	if d.cfg.XLX2Session != nil {
		compareAgainst := d.cfg.XLX1Session
		if d.cfg.FixXLX2ReflectorComparison {
			compareAgainst = nil
		}
		if d.handleXLXFromModem(f, isGroup, d.cfg.XLX2Session, compareAgainst, d.cfg.XLX2Peer, d.cfg.XLX2OutboundRewrite, d.cfg.Voice2, slot.XlxRefl2) {
			return
		}
	}

	if d.routeDMRFromModem(f, d.cfg.DMR1Peer, d.cfg.DMR1RFChain, slot.DmrNet1) {
		return
	}
	if d.routeDMRFromModem(f, d.cfg.DMR2Peer, d.cfg.DMR2RFChain, slot.DmrNet2) {
		return
	}
}

// handleXLXFromModem implements one XLX session's share of steps
// 1a/1c (or 1b/1d for XLX-2): primary-TG voice traffic is rewritten
// onto the reflector's fixed slot/TG via outbound and forwarded
// unconditionally, claiming the slot; link-control destinations also
// claim the slot, have only their slot rewritten to the reflector slot
// (their destination ID is the link command itself, left untouched),
// update the session, and
// once confirmed by a terminator, queue a voice announcement.
// compareAgainst is the other session to check for a reflector change
// against, or nil to compare against the session's own previous value
// (XLX-1's case, and XLX-2's when FixXLX2ReflectorComparison is set).
func (d *Dispatcher) handleXLXFromModem(f protocol.Frame, isGroup bool, session, compareAgainst *xlx.Session, p peer.NetworkPeer, outbound rewrite.Rule, v *voice.Source, owner slot.Owner) bool {
	switch {
	case session.MatchesPrimary(f.Slot, f.DstID, isGroup):
		d.claimSlot(f, owner)
		if p != nil {
			rewritten := f.Clone()
			if outbound != nil {
				outbound.Process(&rewritten)
			}
			p.Write(rewritten)
		}
		return true

	case session.MatchesLinkControl(f.Slot, f.DstID, isGroup):
		d.claimSlot(f, owner)
		session.Interpret(f.DstID, compareAgainst)
		if p != nil {
			rewritten := f.Clone()
			rewritten.Slot = xlx.ReflectorSlot
			p.Write(rewritten)
		}
		if f.DataType == protocol.TerminatorWithLC && session.CommitIfChanged() {
			d.obs.XLXLinkChanged(session.Name, session.Reflector())
			if v != nil {
				if session.IsUnlinked() {
					v.Unlinked()
				} else {
					v.LinkedTo(session.Reflector())
				}
			}
		}
		return true
	}
	return false
}

// routeDMRFromModem implements one DMR network's share of steps 1e/1f:
// run the RF rewrite chain, and if it claims the frame, forward it on
// provided the slot isn't held by someone else.
func (d *Dispatcher) routeDMRFromModem(f protocol.Frame, p peer.NetworkPeer, chain rewrite.Chain, owner slot.Owner) bool {
	if p == nil || len(chain) == 0 {
		return false
	}
	rewritten := f.Clone()
	if !chain.Process(&rewritten) {
		return false
	}
	if !d.canClaim(rewritten.Slot, owner) {
		return true // matched the chain, but the slot belongs to someone else: drop, not fall through
	}
	d.claimSlot(rewritten, owner)
	p.Write(rewritten)
	return true
}

// networkToModem polls every configured upstream peer once for at most
// one frame each and routes it back to the modem: XLX peers through a
// fixed inbound rewrite, DMR peers through their Net-to-RF chain. Both
// are ownership-checked, since an upstream claiming a slot the modem
// itself is mid-transmission on would corrupt the over-the-air stream.
func (d *Dispatcher) networkToModem() {
	d.readXLX(d.cfg.XLX1Peer, d.cfg.XLX1InboundRewrite, slot.XlxRefl1)
	d.readXLX(d.cfg.XLX2Peer, d.cfg.XLX2InboundRewrite, slot.XlxRefl2)
	d.readDMR(d.cfg.DMR1Peer, d.cfg.DMR1NetChain, slot.DmrNet1)
	d.readDMR(d.cfg.DMR2Peer, d.cfg.DMR2NetChain, slot.DmrNet2)
}

func (d *Dispatcher) readXLX(p peer.NetworkPeer, inbound rewrite.Rule, owner slot.Owner) {
	if p == nil {
		return
	}
	f, ok, err := p.Read()
	if err != nil {
		d.log.Error("network read failed", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	rewritten := f.Clone()
	if inbound == nil || !inbound.Process(&rewritten) {
		d.log.Warn("unexpected data from XLX peer", logger.Int("slot", f.Slot), logger.Uint32("dst", f.DstID))
		return
	}
	if !d.canClaim(rewritten.Slot, owner) {
		d.log.Warn("XLX inbound data dropped, slot in use", logger.Int("slot", rewritten.Slot), logger.Uint32("dst", rewritten.DstID))
		return
	}
	d.claimSlot(rewritten, owner)
	if d.cfg.Modem != nil {
		d.cfg.Modem.Write(rewritten)
	}
}

func (d *Dispatcher) readDMR(p peer.NetworkPeer, chain rewrite.Chain, owner slot.Owner) {
	if p == nil {
		return
	}
	f, ok, err := p.Read()
	if err != nil {
		d.log.Error("network read failed", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	rewritten := f.Clone()
	if len(chain) == 0 || !chain.Process(&rewritten) {
		return
	}
	if !d.canClaim(rewritten.Slot, owner) {
		return
	}
	d.claimSlot(rewritten, owner)
	if d.cfg.Modem != nil {
		d.cfg.Modem.Write(rewritten)
	}
}

// fanOutTelemetry drains at most one position report and one
// talker-alias report from the modem this tick and broadcasts each to
// every configured network, unrewritten and without touching slot
// ownership.
func (d *Dispatcher) fanOutTelemetry() {
	if d.cfg.Modem == nil {
		return
	}
	peers := d.networkPeers()

	if buf, ok := d.cfg.Modem.ReadPosition(); ok {
		for _, p := range peers {
			p.WritePosition(buf)
		}
	}
	if buf, ok := d.cfg.Modem.ReadTalkerAlias(); ok {
		for _, p := range peers {
			p.WriteTalkerAlias(buf)
		}
	}
}

func (d *Dispatcher) networkPeers() []peer.NetworkPeer {
	var peers []peer.NetworkPeer
	for _, p := range []peer.NetworkPeer{d.cfg.DMR1Peer, d.cfg.DMR2Peer, d.cfg.XLX1Peer, d.cfg.XLX2Peer} {
		if p != nil {
			peers = append(peers, p)
		}
	}
	return peers
}

// playVoice drains one queued frame from each configured local voice
// announcement source and writes it to the modem, claiming the
// corresponding reflector's slot ownership so an announcement cannot
// be talked over by a DMR master mid-playback.
func (d *Dispatcher) playVoice() {
	d.playOne(d.cfg.Voice1, slot.XlxRefl1)
	d.playOne(d.cfg.Voice2, slot.XlxRefl2)
}

func (d *Dispatcher) playOne(v *voice.Source, owner slot.Owner) {
	if v == nil || d.cfg.Modem == nil {
		return
	}
	f, ok, err := v.Read()
	if err != nil || !ok {
		return
	}
	if !d.canClaim(f.Slot, owner) {
		return
	}
	d.claimSlot(f, owner)
	d.cfg.Modem.Write(f)
}

// clock advances every peer's timers and the slot inactivity
// countdowns by the elapsed tick duration, in the same order the
// original clocks repeater, DMR-1, DMR-2, XLX-1, XLX-2, voice1, voice2
// and its slot timers.
func (d *Dispatcher) clock(elapsedMs int64) {
	if d.cfg.Modem != nil {
		d.cfg.Modem.Clock(elapsedMs)
	}
	for _, p := range []peer.NetworkPeer{d.cfg.DMR1Peer, d.cfg.DMR2Peer, d.cfg.XLX1Peer, d.cfg.XLX2Peer} {
		if p != nil {
			p.Clock(elapsedMs)
		}
	}
	if d.cfg.Voice1 != nil {
		d.cfg.Voice1.Clock(elapsedMs)
	}
	if d.cfg.Voice2 != nil {
		d.cfg.Voice2.Clock(elapsedMs)
	}
	if d.cfg.Slots != nil {
		d.cfg.Slots.Clock(elapsedMs)
	}
}

func (d *Dispatcher) canClaim(ts int, owner slot.Owner) bool {
	if d.cfg.Slots == nil {
		return true
	}
	return d.cfg.Slots.Get(ts).CanClaim(owner)
}

func (d *Dispatcher) claimSlot(f protocol.Frame, owner slot.Owner) {
	if d.cfg.Slots != nil {
		d.cfg.Slots.Get(f.Slot).Claim(owner)
	}
	d.obs.SlotClaimed(f, owner)
}
