package peer

import (
	"net"
	"testing"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

// fakeServer emulates just enough of a HomeBrew master to drive a
// Network through its handshake: it ACKs RPTL, RPTK and RPTC in
// sequence and then answers DMRD with nothing (no master ever echoes
// your own traffic back).
type fakeServer struct {
	conn *net.UDPConn
}

func newFakeServer(t *testing.T) *fakeServer {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeServer{conn: conn}
}

func (f *fakeServer) addr() *net.UDPAddr {
	return f.conn.LocalAddr().(*net.UDPAddr)
}

func (f *fakeServer) serveHandshake(t *testing.T, radioID uint32) {
	buf := make([]byte, 1024)
	for i := 0; i < 3; i++ {
		f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, addr, err := f.conn.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("fake server read: %v", err)
		}
		_ = n
		ack := &protocol.RPTACKPacket{RepeaterID: radioID}
		data, err := ack.Encode()
		if err != nil {
			t.Fatalf("encode ack: %v", err)
		}
		if _, err := f.conn.WriteToUDP(data, addr); err != nil {
			t.Fatalf("fake server write: %v", err)
		}
	}
}

func TestNetwork_OpenCompletesHandshake(t *testing.T) {
	server := newFakeServer(t)
	defer server.conn.Close()

	done := make(chan struct{})
	go func() {
		server.serveHandshake(t, 312000)
		close(done)
	}()

	n := NewNetwork("DMR-1", server.addr().IP.String(), server.addr().Port, 0, 312000, "passw0rd", testLogger())
	if err := n.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer n.Close()

	<-done

	if n.state != stateConnected {
		t.Fatalf("state = %v, want connected", n.state)
	}
}

func TestNetwork_ReadWriteDMRD(t *testing.T) {
	server := newFakeServer(t)
	defer server.conn.Close()

	done := make(chan struct{})
	go func() {
		server.serveHandshake(t, 312000)
		close(done)
	}()

	n := NewNetwork("DMR-1", server.addr().IP.String(), server.addr().Port, 0, 312000, "secret", testLogger())
	if err := n.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer n.Close()
	<-done

	f := protocol.Frame{Slot: 1, SrcID: 312001, DstID: 8, CallType: protocol.Group, DataType: protocol.VoiceBurstA, StreamID: 42}
	if !n.Write(f) {
		t.Fatal("Write returned false")
	}

	// The fake server never replies with DMRD, so Read should report
	// "nothing available" without blocking or erroring.
	_, ok, err := n.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok {
		t.Error("expected no frame available")
	}
}

func TestNetwork_WriteBeforeConnectedIsDropped(t *testing.T) {
	n := NewNetwork("DMR-1", "127.0.0.1", 62000, 0, 1, "x", testLogger())
	f := protocol.Frame{Slot: 1, DstID: 8, CallType: protocol.Group}
	if n.Write(f) {
		t.Error("expected Write to report dropped before Open")
	}
}
