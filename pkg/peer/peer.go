// Package peer implements the gateway's five UDP collaborators: the
// MMDVM modem and the four HomeBrew-protocol networks (two DMR masters,
// two XLX reflectors). All of them present the same non-blocking Peer
// contract, polled from the dispatcher's own single-threaded loop with
// no background goroutines of their own.
package peer

import "github.com/dl9xyz/dmrgateway/pkg/protocol"

// Peer is the minimum bidirectional channel the dispatcher needs.
// Every method must return promptly; Read waits at most about a
// millisecond for a datagram and Write never blocks.
type Peer interface {
	// Read dequeues at most one frame. ok is false if nothing was
	// available.
	Read() (f protocol.Frame, ok bool, err error)

	// Write enqueues a frame for transmission. Returns false if the
	// frame was dropped (e.g. not yet connected); the dispatcher does
	// not retry.
	Write(f protocol.Frame) bool

	// Clock advances internal timers such as keepalive pings. The
	// implementations in this package do not reconnect a dropped peer
	// from Clock.
	Clock(elapsedMs int64)

	// Open establishes the peer's connection/socket.
	Open() error

	// Close releases the peer's resources.
	Close() error
}

// NetworkPeer is the extended contract DMR-master and XLX peers expose
// beyond the base Peer interface, used to propagate the modem's
// identity and telemetry onto each upstream network.
type NetworkPeer interface {
	Peer
	SetConfig(buf []byte)
	SetOptions(opts string)
	WritePosition(buf []byte)
	WriteTalkerAlias(buf []byte)
}

// ModemPeer is the extended contract the modem-facing peer exposes:
// the repeater identity blob networks authenticate with, plus
// auxiliary telemetry the dispatcher fans out unchanged.
type ModemPeer interface {
	Peer
	GetConfig() []byte
	GetID() uint32
	GetOptions() string
	ReadPosition() ([]byte, bool)
	ReadTalkerAlias() ([]byte, bool)
}
