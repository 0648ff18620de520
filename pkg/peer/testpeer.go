package peer

import "github.com/dl9xyz/dmrgateway/pkg/protocol"

const testPeerQueueSize = 64

// TestPeer is a channel-backed stand-in for Peer/NetworkPeer/ModemPeer,
// used by other packages' tests to script frame and telemetry
// sequences without opening a real socket. Every queue is a buffered
// channel drained with select/default, so Read/Write and the
// telemetry methods never block, matching the non-blocking contract
// real peers must honor.
type TestPeer struct {
	ID uint32

	frames  chan protocol.Frame
	written chan protocol.Frame

	positions        chan []byte
	talkerAliases    chan []byte
	writtenPositions chan []byte
	writtenAliases   chan []byte

	clocked int64
}

// NewTestPeer returns a TestPeer reporting the given DMR ID from
// GetID.
func NewTestPeer(id uint32) *TestPeer {
	return &TestPeer{
		ID:               id,
		frames:           make(chan protocol.Frame, testPeerQueueSize),
		written:          make(chan protocol.Frame, testPeerQueueSize),
		positions:        make(chan []byte, testPeerQueueSize),
		talkerAliases:    make(chan []byte, testPeerQueueSize),
		writtenPositions: make(chan []byte, testPeerQueueSize),
		writtenAliases:   make(chan []byte, testPeerQueueSize),
	}
}

// Push queues a frame for the next Read to return, as if it had
// arrived off the wire.
func (p *TestPeer) Push(f protocol.Frame) {
	p.frames <- f
}

// PushPosition queues a GPS position report for the next ReadPosition.
func (p *TestPeer) PushPosition(buf []byte) {
	p.positions <- buf
}

// PushTalkerAlias queues a talker-alias block for the next
// ReadTalkerAlias.
func (p *TestPeer) PushTalkerAlias(buf []byte) {
	p.talkerAliases <- buf
}

// Written drains and returns every frame Write has queued so far, in
// the order they were written.
func (p *TestPeer) Written() []protocol.Frame {
	var out []protocol.Frame
	for {
		select {
		case f := <-p.written:
			out = append(out, f)
		default:
			return out
		}
	}
}

// WrittenPositions drains and returns every position report
// WritePosition has queued so far.
func (p *TestPeer) WrittenPositions() [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-p.writtenPositions:
			out = append(out, b)
		default:
			return out
		}
	}
}

// WrittenTalkerAliases drains and returns every talker-alias block
// WriteTalkerAlias has queued so far.
func (p *TestPeer) WrittenTalkerAliases() [][]byte {
	var out [][]byte
	for {
		select {
		case b := <-p.writtenAliases:
			out = append(out, b)
		default:
			return out
		}
	}
}

// Clocked reports the total elapsed milliseconds passed to Clock.
func (p *TestPeer) Clocked() int64 { return p.clocked }

func (p *TestPeer) Read() (protocol.Frame, bool, error) {
	select {
	case f := <-p.frames:
		return f, true, nil
	default:
		return protocol.Frame{}, false, nil
	}
}

func (p *TestPeer) Write(f protocol.Frame) bool {
	select {
	case p.written <- f:
		return true
	default:
		return false
	}
}

func (p *TestPeer) Clock(elapsedMs int64) { p.clocked += elapsedMs }
func (p *TestPeer) Open() error           { return nil }
func (p *TestPeer) Close() error          { return nil }

func (p *TestPeer) SetConfig(buf []byte)   {}
func (p *TestPeer) SetOptions(opts string) {}

func (p *TestPeer) WritePosition(buf []byte) {
	select {
	case p.writtenPositions <- buf:
	default:
	}
}

func (p *TestPeer) WriteTalkerAlias(buf []byte) {
	select {
	case p.writtenAliases <- buf:
	default:
	}
}

func (p *TestPeer) GetConfig() []byte  { return nil }
func (p *TestPeer) GetID() uint32      { return p.ID }
func (p *TestPeer) GetOptions() string { return "" }

func (p *TestPeer) ReadPosition() ([]byte, bool) {
	select {
	case b := <-p.positions:
		return b, true
	default:
		return nil, false
	}
}

func (p *TestPeer) ReadTalkerAlias() ([]byte, bool) {
	select {
	case b := <-p.talkerAliases:
		return b, true
	default:
		return nil, false
	}
}
