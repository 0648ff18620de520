package database

import (
	"sync"
	"time"

	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
	"github.com/dl9xyz/dmrgateway/pkg/slot"
)

// TransmissionLogger records completed transmissions to the database by
// watching slot-claim events. It satisfies dispatch.Observer structurally
// (SlotClaimed, XLXLinkChanged) without importing pkg/dispatch, so the
// dispatcher can depend on this package without a cycle back.
type TransmissionLogger struct {
	repo          *TransmissionRepository
	logger        *logger.Logger
	activeStreams map[uint32]*activeStream
	mu            sync.RWMutex
}

// activeStream tracks an ongoing transmission keyed by stream ID.
type activeStream struct {
	streamID    uint32
	radioID     uint32
	talkgroupID uint32
	timeslot    int
	repeaterID  uint32
	startTime   time.Time
	lastSeen    time.Time
	packetCount int
}

// NewTransmissionLogger creates a transmission logger backed by repo.
func NewTransmissionLogger(repo *TransmissionRepository, log *logger.Logger) *TransmissionLogger {
	return &TransmissionLogger{
		repo:          repo,
		logger:        log,
		activeStreams: make(map[uint32]*activeStream),
	}
}

// SlotClaimed tracks the frame that earned a slot claim, and on a
// terminator flushes the completed transmission to the database. owner
// is accepted to satisfy the observer contract but carries no identity
// beyond what's already in f.
func (tl *TransmissionLogger) SlotClaimed(f protocol.Frame, owner slot.Owner) {
	tl.logPacket(f.StreamID, f.SrcID, f.DstID, f.RepeaterID, f.Slot, f.DataType == protocol.TerminatorWithLC)
}

// XLXLinkChanged is a no-op for transmission logging; link changes are
// not transmissions and have no stream ID to key a row on.
func (tl *TransmissionLogger) XLXLinkChanged(name string, reflector uint32) {}

func (tl *TransmissionLogger) logPacket(streamID, radioID, talkgroupID, repeaterID uint32, timeslot int, isTerminator bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	now := time.Now()

	stream, exists := tl.activeStreams[streamID]
	if !exists {
		stream = &activeStream{
			streamID:    streamID,
			radioID:     radioID,
			talkgroupID: talkgroupID,
			timeslot:    timeslot,
			repeaterID:  repeaterID,
			startTime:   now,
			lastSeen:    now,
			packetCount: 1,
		}
		tl.activeStreams[streamID] = stream
		tl.logger.Debug("started tracking stream",
			logger.Any("stream_id", streamID),
			logger.Any("radio_id", radioID),
			logger.Any("talkgroup_id", talkgroupID))
	} else {
		stream.lastSeen = now
		stream.packetCount++
	}

	if isTerminator {
		tl.flush(stream)
		delete(tl.activeStreams, streamID)
	}
}

// flush saves stream to the repository if it ran long enough to be a
// real transmission rather than a spurious or duplicate packet.
func (tl *TransmissionLogger) flush(stream *activeStream) {
	duration := stream.lastSeen.Sub(stream.startTime).Seconds()
	if duration < 0.5 {
		tl.logger.Debug("skipped saving very short transmission",
			logger.Any("stream_id", stream.streamID),
			logger.Any("duration", duration),
			logger.Any("packet_count", stream.packetCount))
		return
	}

	tx := &Transmission{
		RadioID:     stream.radioID,
		TalkgroupID: stream.talkgroupID,
		Timeslot:    stream.timeslot,
		Duration:    duration,
		StreamID:    stream.streamID,
		StartTime:   stream.startTime,
		EndTime:     stream.lastSeen,
		RepeaterID:  stream.repeaterID,
		PacketCount: stream.packetCount,
	}

	if err := tl.repo.Create(tx); err != nil {
		tl.logger.Error("failed to save transmission",
			logger.Error(err),
			logger.Any("stream_id", stream.streamID))
		return
	}
	tl.logger.Debug("saved transmission",
		logger.Any("stream_id", stream.streamID),
		logger.Any("radio_id", stream.radioID),
		logger.Any("talkgroup_id", stream.talkgroupID),
		logger.Any("duration", duration))
}

// CleanupStaleStreams flushes and forgets streams that haven't seen a
// terminator within maxAge, so a lost TerminatorWithLC frame can't hold
// a stream open forever. Call periodically from a housekeeping timer.
func (tl *TransmissionLogger) CleanupStaleStreams(maxAge time.Duration) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	now := time.Now()
	for streamID, stream := range tl.activeStreams {
		if now.Sub(stream.lastSeen) > maxAge {
			tl.flush(stream)
			delete(tl.activeStreams, streamID)
		}
	}
}

// GetActiveStreamCount returns the number of transmissions currently
// in flight.
func (tl *TransmissionLogger) GetActiveStreamCount() int {
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	return len(tl.activeStreams)
}
