package voice

import (
	"github.com/dl9xyz/dmrgateway/pkg/codec"
	"github.com/dl9xyz/dmrgateway/pkg/logger"
	"github.com/dl9xyz/dmrgateway/pkg/protocol"
)

// Source is a local voice-announcement peer: it has no network
// transport, only a queue of pre-built DMR voice frames that the
// dispatcher drains one per tick and writes to the modem. It satisfies
// the Read/Clock half of pkg/peer.Peer, but has no Open/Close socket
// semantics beyond loading/discarding its phrase book.
type Source struct {
	directory  string
	language   string
	repeaterID uint32
	slot       int
	tg         uint32
	log        *logger.Logger

	book     *PhraseBook
	queue    []protocol.Frame
	streamID uint32
}

// NewSource returns a voice source for one XLX session's slot/TG.
func NewSource(directory, language string, repeaterID uint32, slot int, tg uint32, log *logger.Logger) *Source {
	return &Source{
		directory:  directory,
		language:   language,
		repeaterID: repeaterID,
		slot:       slot,
		tg:         tg,
		log:        log,
	}
}

// Open loads the phrase book for the source's language. A failure to
// load announcements is not fatal to the gateway, so Open returns the
// error for the caller to log and disable the source with, not to
// abort startup over.
func (s *Source) Open() error {
	book, err := loadPhraseBook(s.directory, s.language)
	if err != nil {
		return err
	}
	s.book = book
	return nil
}

// Close discards any pending announcement.
func (s *Source) Close() error {
	s.book = nil
	s.queue = nil
	return nil
}

// LinkedTo enqueues a "linked to reflector NNNN" announcement.
func (s *Source) LinkedTo(reflector uint32) {
	if s.book == nil {
		return
	}
	s.enqueue(s.book.linkedToAnnouncement(reflector))
}

// Unlinked enqueues an "unlinked" announcement.
func (s *Source) Unlinked() {
	if s.book == nil {
		return
	}
	s.enqueue(s.book.unlinkedAnnouncement())
}

func (s *Source) enqueue(phrases []Phrase) {
	s.streamID++
	built := buildAnnouncement(s.repeaterID, s.tg, s.slot, s.streamID, phrases)
	s.queue = append(s.queue, built...)
	if s.log != nil {
		s.log.Debug("voice announcement queued",
			logger.Int("slot", s.slot), logger.Int("frames", len(built)))
	}
}

// Read returns the next queued announcement frame, if any. It never
// blocks and returns at most one frame per call.
func (s *Source) Read() (protocol.Frame, bool, error) {
	if len(s.queue) == 0 {
		return protocol.Frame{}, false, nil
	}
	f := s.queue[0]
	s.queue = s.queue[1:]
	return f, true, nil
}

// Write is a no-op: nothing ever sends traffic into a voice source.
func (s *Source) Write(protocol.Frame) bool { return false }

// Clock is a no-op: announcements are timed entirely by how fast the
// dispatcher drains Read, not by wall-clock elapsed time.
func (s *Source) Clock(elapsedMs int64) {}

// buildAnnouncement assembles the DMR voice frame sequence (LC header,
// voice bursts A-F, terminator-with-LC) carrying the concatenated AMBE
// content of phrases, using the XLX session's slot/TG and the
// repeater's own ID as the announcement's slot/destination/source.
func buildAnnouncement(repeaterID uint32, tg uint32, slot int, streamID uint32, phrases []Phrase) []protocol.Frame {
	var samples []codec.AMBEFrame
	for _, p := range phrases {
		samples = append(samples, p...)
	}
	if len(samples) == 0 {
		return nil
	}
	for len(samples)%3 != 0 {
		samples = append(samples, codec.AMBEFrame{})
	}

	srcID := repeaterID
	dstID := tg

	frames := make([]protocol.Frame, 0, len(samples)/3+2)

	header := protocol.BuildVoiceLCHeader(srcID, dstID, protocol.FLCOGroup)
	protocol.InsertVoiceSync(header, slot)
	frames = append(frames, protocol.Frame{
		Slot:     slot,
		SrcID:    srcID,
		DstID:    dstID,
		CallType: protocol.Group,
		DataType: protocol.VoiceLCHeader,
		StreamID: streamID,
		Payload:  header,
	})

	embeddedLC := protocol.NewEmbeddedLCEncoder(srcID, dstID, protocol.FLCOGroup)
	burstTypes := [6]protocol.DataType{
		protocol.VoiceBurstA, protocol.VoiceBurstB, protocol.VoiceBurstC,
		protocol.VoiceBurstD, protocol.VoiceBurstE, protocol.VoiceBurstF,
	}

	for i, burst := 0, 0; i+3 <= len(samples); i, burst = i+3, burst+1 {
		payload := make([]byte, 33)
		var triple [3]codec.AMBEFrame
		copy(triple[:], samples[i:i+3])
		codec.EmbedVoiceSuperframe(payload, triple)

		slotInBurstCycle := burst % 6
		if slotInBurstCycle == 0 {
			protocol.InsertVoiceSync(payload, slot)
		} else {
			fragment, lcss := embeddedLC.GetFragment(slotInBurstCycle - 1)
			protocol.InsertEmbeddedFragment(payload, fragment, lcss)
		}

		frames = append(frames, protocol.Frame{
			Slot:     slot,
			SrcID:    srcID,
			DstID:    dstID,
			CallType: protocol.Group,
			DataType: burstTypes[slotInBurstCycle],
			StreamID: streamID,
			Payload:  payload,
		})
	}

	term := protocol.BuildVoiceTerminatorPayload(srcID, dstID, protocol.FLCOGroup)
	frames = append(frames, protocol.Frame{
		Slot:     slot,
		SrcID:    srcID,
		DstID:    dstID,
		CallType: protocol.Group,
		DataType: protocol.TerminatorWithLC,
		StreamID: streamID,
		Payload:  term,
	})

	return frames
}
