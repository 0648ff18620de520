package dispatch

import (
	"net"
	"testing"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/config"
	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/peer"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

// fakeMaster is the same minimal HomeBrew handshake stand-in
// pkg/peer/network_test.go uses, reused here because NewGateway drives
// a real peer.Network's Open (and therefore its RPTL/RPTK/RPTC
// handshake) for every enabled network.
type fakeMaster struct {
	conn *net.UDPConn
}

func newFakeMaster(t *testing.T) *fakeMaster {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeMaster{conn: conn}
}

func (f *fakeMaster) addr() *net.UDPAddr {
	return f.conn.LocalAddr().(*net.UDPAddr)
}

func (f *fakeMaster) serveHandshake(t *testing.T, radioID uint32) {
	buf := make([]byte, 1024)
	for i := 0; i < 3; i++ {
		f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, addr, err := f.conn.ReadFromUDP(buf); err != nil {
			t.Errorf("fake master read: %v", err)
			return
		} else {
			ack := &protocol.RPTACKPacket{RepeaterID: radioID}
			data, err := ack.Encode()
			if err != nil {
				t.Errorf("encode ack: %v", err)
				return
			}
			if _, err := f.conn.WriteToUDP(data, addr); err != nil {
				t.Errorf("fake master write: %v", err)
				return
			}
		}
	}
}

func TestNewGateway_NoNetworksEnabled(t *testing.T) {
	modem := peer.NewTestPeer(312000)
	cfg := &config.Config{InactivityTimeout: 10}

	gw, err := NewGateway(cfg, modem, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	if gw.Dispatcher == nil {
		t.Fatal("expected a non-nil Dispatcher")
	}
	if len(gw.networks) != 0 {
		t.Errorf("expected no networks opened, got %d", len(gw.networks))
	}

	if err := gw.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
}

func TestNewGateway_DMR1EnabledBuildsRewriteChains(t *testing.T) {
	master := newFakeMaster(t)
	defer master.conn.Close()
	done := make(chan struct{})
	go func() { master.serveHandshake(t, 312000); close(done) }()

	modem := peer.NewTestPeer(312000)
	cfg := &config.Config{
		InactivityTimeout: 10,
		DMR1: config.DMRNetworkConfig{
			BaseNetworkConfig: config.BaseNetworkConfig{
				Enabled: true,
				Address: master.addr().IP.String(),
				Port:    master.addr().Port,
			},
			TGRewrites: []config.TGRewriteSpec{
				{FromSlot: 1, FromTG: 8, ToSlot: 1, ToTG: 91, Range: 1},
			},
		},
	}

	gw, err := NewGateway(cfg, modem, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	defer gw.Close()
	<-done

	if gw.Dispatcher.cfg.DMR1Peer == nil {
		t.Fatal("expected DMR1Peer to be set")
	}
	if len(gw.Dispatcher.cfg.DMR1RFChain) != 1 {
		t.Fatalf("expected 1 RF rewrite rule, got %d", len(gw.Dispatcher.cfg.DMR1RFChain))
	}
	if len(gw.Dispatcher.cfg.DMR1NetChain) != 1 {
		t.Fatalf("expected 1 Net rewrite rule, got %d", len(gw.Dispatcher.cfg.DMR1NetChain))
	}
	if len(gw.networks) != 1 {
		t.Errorf("expected 1 network opened, got %d", len(gw.networks))
	}
}

func TestNewGateway_DMR1InheritsModemIDWhenUnset(t *testing.T) {
	master := newFakeMaster(t)
	defer master.conn.Close()
	done := make(chan struct{})
	go func() { master.serveHandshake(t, 312000); close(done) }()

	modem := peer.NewTestPeer(312000)
	cfg := &config.Config{
		InactivityTimeout: 10,
		DMR1: config.DMRNetworkConfig{
			BaseNetworkConfig: config.BaseNetworkConfig{
				Enabled: true,
				Address: master.addr().IP.String(),
				Port:    master.addr().Port,
				// ID left zero: should inherit from the modem.
			},
		},
	}

	gw, err := NewGateway(cfg, modem, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	defer gw.Close()
	<-done

	if got := gw.Dispatcher.cfg.DMR1Peer.(*peer.Network).RadioID; got != 312000 {
		t.Errorf("expected DMR1 to inherit modem ID 312000, got %d", got)
	}
}

func TestNewGateway_XLX1EnabledBuildsSessionAndInboundRewrite(t *testing.T) {
	master := newFakeMaster(t)
	defer master.conn.Close()
	done := make(chan struct{})
	go func() { master.serveHandshake(t, 312000); close(done) }()

	modem := peer.NewTestPeer(312000)
	cfg := &config.Config{
		InactivityTimeout: 10,
		XLX1: config.XLXNetworkConfig{
			BaseNetworkConfig: config.BaseNetworkConfig{
				Enabled: true,
				Address: master.addr().IP.String(),
				Port:    master.addr().Port,
			},
			// Worked example from the XLX-1 documentation: primary
			// slot/TG distinct from the reflector's own fixed slot
			// 2/TG 9, so a rewrite built with From==To would pass
			// this test only by accident.
			PrimarySlot: 1,
			PrimaryTG:   8,
			Base:        64000,
		},
	}

	gw, err := NewGateway(cfg, modem, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	defer gw.Close()
	<-done

	if gw.Dispatcher.cfg.XLX1Session == nil {
		t.Fatal("expected an XLX1 session")
	}

	outbound := gw.Dispatcher.cfg.XLX1OutboundRewrite
	if outbound == nil {
		t.Fatal("expected an XLX1 outbound rewrite rule")
	}
	f := protocol.Frame{Slot: 1, DstID: 8, CallType: protocol.Group}
	if !outbound.Process(&f) || f.Slot != 2 || f.DstID != 9 {
		t.Errorf("outbound rewrite produced %+v, want slot 2, dst 9", f)
	}

	inbound := gw.Dispatcher.cfg.XLX1InboundRewrite
	if inbound == nil {
		t.Fatal("expected an XLX1 inbound rewrite rule")
	}
	g := protocol.Frame{Slot: 2, DstID: 9, CallType: protocol.Group}
	if !inbound.Process(&g) || g.Slot != 1 || g.DstID != 8 {
		t.Errorf("inbound rewrite produced %+v, want slot 1, dst 8", g)
	}
}

func TestNewGateway_VoiceDisabledWithoutAnyXLXNetwork(t *testing.T) {
	modem := peer.NewTestPeer(312000)
	cfg := &config.Config{
		InactivityTimeout: 10,
		Voice:             config.VoiceConfig{Enabled: true},
	}

	gw, err := NewGateway(cfg, modem, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	defer gw.Close()

	if gw.Dispatcher.cfg.Voice1 != nil || gw.Dispatcher.cfg.Voice2 != nil {
		t.Error("expected no voice sources without an enabled XLX network")
	}
}
