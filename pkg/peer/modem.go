package peer

import (
	"net"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// Auxiliary packet signatures used between the local MMDVM repeater and
// the gateway for GPS position and talker-alias telemetry. These ride
// over the same HomeBrew-family socket as DMRD but are not part of the
// core DMR voice/data path, so they get their own short signatures in
// the same all-caps convention as RPTL/RPTC/DMRD rather than a new
// framing scheme.
const (
	packetTypePosition    = "DMRP"
	packetTypeTalkerAlias = "DMRT"
	auxHeaderLen          = 8 // 4-byte signature + 4-byte repeater ID
)

// Modem is the gateway's local-side peer: it plays the HomeBrew
// protocol's *master* role for exactly one connecting MMDVM repeater,
// accepting the RPTL/RPTK/RPTC handshake rather than initiating it, the
// mirror image of Network. There is no ACL or multi-peer bookkeeping:
// this gateway only ever serves the one local repeater.
type Modem struct {
	ListenAddr string
	ListenPort int

	conn       *net.UDPConn
	peerAddr   *net.UDPAddr
	authed     bool
	radioID    uint32
	config     []byte
	opts       string
	log        *logger.Logger

	positions     [][]byte
	talkerAliases [][]byte

	seq byte
}

// NewModem creates a modem-facing peer listening on the given local
// address.
func NewModem(listenAddr string, listenPort int, log *logger.Logger) *Modem {
	return &Modem{ListenAddr: listenAddr, ListenPort: listenPort, log: log.WithComponent("peer.modem")}
}

// Open binds the local listening socket. Unlike Network, there is no
// handshake to drive here: the repeater initiates it, and Read drives
// the server-side state machine one datagram at a time as they arrive.
func (m *Modem) Open() error {
	addr := &net.UDPAddr{IP: net.ParseIP(m.ListenAddr), Port: m.ListenPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	m.conn = conn
	m.log.Info("listening for repeater", logger.String("addr", conn.LocalAddr().String()))
	return nil
}

// WaitForConfig blocks until the repeater has completed its handshake
// (RPTL/RPTK/RPTC) and GetConfig/GetID/GetOptions report real values,
// or the deadline elapses. Networks need the repeater's identity
// before they can authenticate, so the original waits here at startup
// rather than racing the first few ticks.
func (m *Modem) WaitForConfig(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, _, err := m.Read(); err != nil {
			m.log.Error("error while waiting for repeater config", logger.Error(err))
		}
		if m.authed {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// GetConfig returns the RPTC-derived identity blob networks use to
// authenticate.
func (m *Modem) GetConfig() []byte {
	return m.config
}

// GetID returns the repeater's DMR ID, or 0 before the handshake
// completes.
func (m *Modem) GetID() uint32 {
	return m.radioID
}

// GetOptions returns the options string the repeater sent, if any.
func (m *Modem) GetOptions() string {
	return m.opts
}

// ReadPosition dequeues one buffered GPS position report.
func (m *Modem) ReadPosition() ([]byte, bool) {
	if len(m.positions) == 0 {
		return nil, false
	}
	buf := m.positions[0]
	m.positions = m.positions[1:]
	return buf, true
}

// ReadTalkerAlias dequeues one buffered talker-alias report.
func (m *Modem) ReadTalkerAlias() ([]byte, bool) {
	if len(m.talkerAliases) == 0 {
		return nil, false
	}
	buf := m.talkerAliases[0]
	m.talkerAliases = m.talkerAliases[1:]
	return buf, true
}

// Read dequeues at most one DMRD frame. Handshake packets (RPTL, RPTK,
// RPTC) and auxiliary telemetry (position, talker alias) are consumed
// internally and never surfaced as frames; ok is false for both "no
// datagram available" and "datagram consumed internally".
func (m *Modem) Read() (protocol.Frame, bool, error) {
	m.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, 512)
	n, addr, err := m.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return protocol.Frame{}, false, nil
		}
		return protocol.Frame{}, false, err
	}
	m.peerAddr = addr

	switch {
	case n == protocol.RPTLPacketSize && string(buf[0:4]) == protocol.PacketTypeRPTL:
		p := &protocol.RPTLPacket{}
		if err := p.Parse(buf[:n]); err != nil {
			return protocol.Frame{}, false, err
		}
		m.radioID = p.RepeaterID
		m.ack(p.RepeaterID)
		return protocol.Frame{}, false, nil

	case n == protocol.RPTKPacketSize && string(buf[0:4]) == protocol.PacketTypeRPTK:
		// The modem peer trusts the local repeater unconditionally; no
		// password is configured on this side of the link, so the
		// challenge is accepted without verification.
		m.ack(m.radioID)
		return protocol.Frame{}, false, nil

	case n == protocol.RPTCPacketSize && string(buf[0:4]) == protocol.PacketTypeRPTC:
		m.config = append([]byte(nil), buf[:n]...)
		m.authed = true
		m.ack(m.radioID)
		return protocol.Frame{}, false, nil

	case n >= protocol.RPTPINGPacketSize && string(buf[0:7]) == protocol.PacketTypeRPTPING:
		m.pong()
		return protocol.Frame{}, false, nil

	case n >= protocol.DMRDPacketSize && string(buf[0:4]) == protocol.PacketTypeDMRD:
		pkt := &protocol.DMRDPacket{}
		if err := pkt.Parse(buf[:protocol.DMRDPacketSize]); err != nil {
			return protocol.Frame{}, false, err
		}
		return protocol.FrameFromDMRD(pkt), true, nil

	case n > auxHeaderLen && string(buf[0:4]) == packetTypePosition:
		m.positions = append(m.positions, append([]byte(nil), buf[auxHeaderLen:n]...))
		return protocol.Frame{}, false, nil

	case n > auxHeaderLen && string(buf[0:4]) == packetTypeTalkerAlias:
		m.talkerAliases = append(m.talkerAliases, append([]byte(nil), buf[auxHeaderLen:n]...))
		return protocol.Frame{}, false, nil

	default:
		return protocol.Frame{}, false, nil
	}
}

func (m *Modem) ack(repeaterID uint32) {
	if m.peerAddr == nil {
		return
	}
	p := &protocol.RPTACKPacket{RepeaterID: repeaterID}
	data, err := p.Encode()
	if err != nil {
		return
	}
	m.conn.WriteToUDP(data, m.peerAddr)
}

func (m *Modem) pong() {
	if m.peerAddr == nil {
		return
	}
	p := &protocol.MSTPONGPacket{RepeaterID: m.radioID}
	data, err := p.Encode()
	if err != nil {
		return
	}
	m.conn.WriteToUDP(data, m.peerAddr)
}

// Write sends one frame to the repeater.
func (m *Modem) Write(f protocol.Frame) bool {
	if m.peerAddr == nil {
		return false
	}
	pkt := f.ToDMRD(m.seq)
	m.seq++

	data, err := pkt.Encode()
	if err != nil {
		m.log.Error("encode DMRD failed", logger.Error(err))
		return false
	}
	if _, err := m.conn.WriteToUDP(data, m.peerAddr); err != nil {
		m.log.Error("send DMRD failed", logger.Error(err))
		return false
	}
	return true
}

// Clock is a no-op for the modem side: it is the repeater that pings,
// not the master, per the HomeBrew protocol's keepalive direction.
func (m *Modem) Clock(elapsedMs int64) {}

// Close releases the listening socket.
func (m *Modem) Close() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}
