package peer

import (
	"crypto/sha256"
	"fmt"
	"net"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// networkState tracks a NetworkPeer's position in the RPTL/RPTK/RPTC
// handshake.
type networkState int

const (
	stateDisconnected networkState = iota
	stateAuthenticated
	stateConnected
)

// Network is a HomeBrew-protocol peer-mode client: one of DMR-1, DMR-2,
// XLX-1 or XLX-2. It performs the RPTL/RPTK/RPTC handshake once, at
// Open, and thereafter presents a strictly non-blocking Read/Write/Clock
// contract with no background goroutines — the dispatcher's own loop
// is the only thread driving it.
type Network struct {
	Name       string
	ServerAddr string
	ServerPort int
	LocalPort  int
	RadioID    uint32
	Password   string

	conn       *net.UDPConn
	serverAddr *net.UDPAddr
	state      networkState
	log        *logger.Logger

	seq            byte
	lastPingSent   time.Time
	lastPongRecvAt time.Time
	pingInterval   time.Duration
	sinceLastPing  time.Duration

	config []byte
	opts   string
}

// NewNetwork creates a HomeBrew peer-mode client. radioID of 0 means
// "inherit from the modem"; the caller resolves that before construction.
func NewNetwork(name, serverAddr string, serverPort, localPort int, radioID uint32, password string, log *logger.Logger) *Network {
	return &Network{
		Name:         name,
		ServerAddr:   serverAddr,
		ServerPort:   serverPort,
		LocalPort:    localPort,
		RadioID:      radioID,
		Password:     password,
		pingInterval: 5 * time.Second,
		log:          log.WithComponent("peer." + name),
	}
}

// SetConfig stores the repeater identity blob (RPTC fields) this peer
// authenticates with. Must be called before Open.
func (n *Network) SetConfig(buf []byte) {
	n.config = append([]byte(nil), buf...)
}

// SetOptions stores the options string sent to the server after the
// main handshake completes.
func (n *Network) SetOptions(opts string) {
	n.opts = opts
}

// WritePosition forwards a GPS position report to this network
// unmodified — position reports are broadcast as-is, never rewritten.
func (n *Network) WritePosition(buf []byte) {
	n.sendRaw(buf)
}

// WriteTalkerAlias forwards a talker-alias report with no rewriting.
func (n *Network) WriteTalkerAlias(buf []byte) {
	n.sendRaw(buf)
}

func (n *Network) sendRaw(buf []byte) {
	if n.state != stateConnected || n.conn == nil {
		return
	}
	_, _ = n.conn.WriteToUDP(buf, n.serverAddr)
}

// Open resolves the server address, binds the local socket and runs the
// RPTL/RPTK/RPTC handshake to completion. This is the one place a
// Network blocks (with short deadlines) — it happens once at startup
// or restart, never inside the dispatcher's tick.
func (n *Network) Open() error {
	serverAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", n.ServerAddr, n.ServerPort))
	if err != nil {
		return fmt.Errorf("peer %s: resolve server address: %w", n.Name, err)
	}
	n.serverAddr = serverAddr

	localAddr := &net.UDPAddr{IP: net.IPv4zero, Port: n.LocalPort}
	conn, err := net.ListenUDP("udp", localAddr)
	if err != nil {
		return fmt.Errorf("peer %s: listen: %w", n.Name, err)
	}
	n.conn = conn

	if err := n.authenticate(); err != nil {
		n.conn.Close()
		n.conn = nil
		return fmt.Errorf("peer %s: authenticate: %w", n.Name, err)
	}

	n.state = stateConnected
	n.lastPongRecvAt = time.Now()
	n.log.Info("connected", logger.String("server", n.serverAddr.String()))
	return nil
}

func (n *Network) authenticate() error {
	if err := n.step(&protocol.RPTLPacket{RepeaterID: n.RadioID}, "RPTL"); err != nil {
		return err
	}
	n.state = stateAuthenticated

	salt := make([]byte, protocol.SaltLength)
	for i := range salt {
		salt[i] = byte(time.Now().UnixNano() >> uint(i*8))
	}
	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(n.Password))
	challenge := h.Sum(nil)

	if err := n.step(&protocol.RPTKPacket{RepeaterID: n.RadioID, Challenge: challenge}, "RPTK"); err != nil {
		return err
	}

	rptc := &protocol.RPTCPacket{RepeaterID: n.RadioID}
	if len(n.config) >= protocol.RPTCPacketSize {
		if err := rptc.Parse(n.config); err != nil {
			return fmt.Errorf("parse inherited RPTC config: %w", err)
		}
		rptc.RepeaterID = n.RadioID
	}
	return n.step(rptc, "RPTC")
}

// step encodes and sends one handshake packet, then waits up to five
// seconds for the RPTACK that must follow it, matching the original's
// handshake pacing.
func (n *Network) step(p interface{ Encode() ([]byte, error) }, label string) error {
	data, err := p.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", label, err)
	}
	if _, err := n.conn.WriteToUDP(data, n.serverAddr); err != nil {
		return fmt.Errorf("send %s: %w", label, err)
	}

	n.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1024)
	nRead, _, err := n.conn.ReadFromUDP(buf)
	n.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return fmt.Errorf("await RPTACK for %s: %w", label, err)
	}
	if nRead < protocol.RPTACKPacketSize || string(buf[0:6]) != protocol.PacketTypeRPTACK {
		if nRead >= 6 && string(buf[0:6]) == protocol.PacketTypeMSTNAK[:6] {
			return fmt.Errorf("%s rejected by %s (MSTNAK)", label, n.Name)
		}
		return fmt.Errorf("unexpected reply to %s", label)
	}
	return nil
}

// Read dequeues at most one inbound DMRD frame, waiting at most a
// millisecond: the read deadline is set that close, so an absent
// datagram returns as a timeout, which Read treats as ok=false.
func (n *Network) Read() (protocol.Frame, bool, error) {
	if n.state != stateConnected {
		return protocol.Frame{}, false, nil
	}

	n.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	buf := make([]byte, 128)
	nRead, _, err := n.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return protocol.Frame{}, false, nil
		}
		return protocol.Frame{}, false, err
	}

	switch {
	case nRead >= protocol.DMRDPacketSize && string(buf[0:4]) == protocol.PacketTypeDMRD:
		pkt := &protocol.DMRDPacket{}
		if err := pkt.Parse(buf[:protocol.DMRDPacketSize]); err != nil {
			return protocol.Frame{}, false, err
		}
		return protocol.FrameFromDMRD(pkt), true, nil

	case nRead >= protocol.MSTPONGPacketSize && string(buf[0:7]) == protocol.PacketTypeMSTPONG:
		n.lastPongRecvAt = time.Now()
		return protocol.Frame{}, false, nil

	case nRead >= protocol.MSTCLPacketSize && string(buf[0:5]) == protocol.PacketTypeMSTCL:
		n.log.Warn("server closed connection (MSTCL)")
		n.state = stateDisconnected
		return protocol.Frame{}, false, nil

	default:
		return protocol.Frame{}, false, nil
	}
}

// Write enqueues a frame for transmission. The sequence counter is
// owned by the peer, not the frame, since each peer's outbound stream
// has its own independent numbering.
func (n *Network) Write(f protocol.Frame) bool {
	if n.state != stateConnected {
		return false
	}
	pkt := f.ToDMRD(n.seq)
	n.seq++

	data, err := pkt.Encode()
	if err != nil {
		n.log.Error("encode DMRD failed", logger.Error(err))
		return false
	}
	if _, err := n.conn.WriteToUDP(data, n.serverAddr); err != nil {
		n.log.Error("send DMRD failed", logger.Error(err))
		return false
	}
	return true
}

// Clock sends a keepalive ping on the configured interval. Reconnect
// is handled by the outer SIGHUP restart loop, not here.
func (n *Network) Clock(elapsedMs int64) {
	if n.state != stateConnected {
		return
	}

	n.sinceLastPing += time.Duration(elapsedMs) * time.Millisecond
	if n.sinceLastPing < n.pingInterval {
		return
	}
	n.sinceLastPing = 0

	ping := &protocol.RPTPINGPacket{RepeaterID: n.RadioID}
	data, err := ping.Encode()
	if err != nil {
		return
	}
	n.conn.WriteToUDP(data, n.serverAddr)
	n.lastPingSent = time.Now()
}

// Close releases the UDP socket.
func (n *Network) Close() error {
	n.state = stateDisconnected
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
