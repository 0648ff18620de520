package protocol

// DMR Voice Sync patterns and embedded signalling
// Based on DMRDefines.h and Sync.cpp from MMDVMHost
// https://github.com/g4klx/MMDVMHost

// Voice sync patterns - 7 bytes inserted at bytes 13-19 with masking
// MS (Mobile Station) sourced patterns - used for repeater mode
// BS (Base Station) sourced patterns - used for network/master mode
var (
	// MS_SOURCED_AUDIO_SYNC is the voice sync pattern for MS mode (repeater to network)
	MS_SOURCED_AUDIO_SYNC = []byte{0x07, 0xF7, 0xD5, 0xDD, 0x57, 0xDF, 0xD0}

	// BS_SOURCED_AUDIO_SYNC is the voice sync pattern for BS mode (network to repeater)
	BS_SOURCED_AUDIO_SYNC = []byte{0x07, 0x55, 0xFD, 0x7D, 0xF7, 0x5F, 0x70}

	// MS_SOURCED_DATA_SYNC is the data sync pattern
	MS_SOURCED_DATA_SYNC = []byte{0x0D, 0x5D, 0x7F, 0x77, 0xFD, 0x75, 0x70}

	// SYNC_MASK protects the outer nibbles of bytes 13 and 19
	SYNC_MASK = []byte{0x0F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xF0}
)

// InsertVoiceSync inserts the voice sync pattern into a DMR voice frame.
// The sync pattern occupies bytes 13-19 (7 bytes) with nibble masking,
// matching MMDVMHost's Sync::addDMRAudioSync.
func InsertVoiceSync(frame []byte, timeslot int) {
	if len(frame) < 20 {
		return
	}

	// MS-sourced audio sync is used for both timeslots; DMR does not
	// vary the voice sync pattern by slot.
	syncPattern := MS_SOURCED_AUDIO_SYNC

	for i := 0; i < 7; i++ {
		frame[i+13] = (frame[i+13] & ^SYNC_MASK[i]) | syncPattern[i]
	}
}

// EmbeddedLCEncoder fragments a Full Link Control (source, destination,
// FLCO) across the five non-sync voice bursts (B-F) of a DMR superframe.
// Each fragment carries 32 bits of the encoder's 128-bit buffer together
// with an LCSS (Link Control Start/Stop) code identifying whether the
// fragment begins, continues, or ends the Full LC.
type EmbeddedLCEncoder struct {
	data []bool
}

// NewEmbeddedLCEncoder builds the 128-bit embedded LC bit-stream for a
// call. The 57-bit Full LC payload (FLCO, feature set, source ID,
// destination ID) plus a 5-bit CRC is laid out twice back to back so
// every 32-bit fragment window falls across live data instead of the
// padding between two widely separated copies.
func NewEmbeddedLCEncoder(srcID, dstID uint32, flco FLCO) *EmbeddedLCEncoder {
	block := make([]bool, 64)

	setBitsMSBFirst(block, 0, uint32(flco), 6)
	// Bits 6-8: feature set ID, left at zero.
	setBitsMSBFirst(block, 9, srcID, 24)
	setBitsMSBFirst(block, 33, dstID, 24)

	crc := computeFiveBitCRC(block[0:57])
	setBitsMSBFirst(block, 57, uint32(crc), 5)
	// Bits 62-63: reserved, left at zero.

	data := make([]bool, 128)
	copy(data[0:64], block)
	copy(data[64:128], block)

	return &EmbeddedLCEncoder{data: data}
}

// GetFragment returns the 32 meaningful bits for voice burst B-F index
// fragmentIdx (0-4), packed into a 5-byte carrier the same shape as the
// frame region InsertEmbeddedFragment writes into, along with the LCSS
// code for that position in the sequence.
func (e *EmbeddedLCEncoder) GetFragment(fragmentIdx int) ([5]byte, byte) {
	if fragmentIdx < 0 || fragmentIdx >= 5 {
		return [5]byte{}, 0
	}

	lcss := byte(3) // continuation
	switch fragmentIdx {
	case 0:
		lcss = 1 // first fragment
	case 4:
		lcss = 2 // last fragment
	}

	n := len(e.data)
	base := fragmentIdx * 32
	bit := func(offset int) bool { return e.data[(base+offset)%n] }

	var fragment [5]byte
	fragment[0] = bitsToByte([]bool{false, false, false, false, bit(0), bit(1), bit(2), bit(3)})
	fragment[1] = bitsToByte([]bool{bit(4), bit(5), bit(6), bit(7), bit(8), bit(9), bit(10), bit(11)})
	fragment[2] = bitsToByte([]bool{bit(12), bit(13), bit(14), bit(15), bit(16), bit(17), bit(18), bit(19)})
	fragment[3] = bitsToByte([]bool{bit(20), bit(21), bit(22), bit(23), bit(24), bit(25), bit(26), bit(27)})
	fragment[4] = bitsToByte([]bool{bit(28), bit(29), bit(30), bit(31), false, false, false, false})

	return fragment, lcss
}

// InsertEmbeddedFragment writes a fragment from EmbeddedLCEncoder into
// the embedded-signalling region of a voice burst (bytes 13-18), the
// same nibble-protected layout InsertVoiceSync uses for bytes 13-19.
// Byte 17 falls outside the embedded LC region and is left untouched.
func InsertEmbeddedFragment(frame []byte, fragment [5]byte, lcss byte) {
	if len(frame) < 20 {
		return
	}

	frame[13] = (frame[13] & 0xF0) | (fragment[0] & 0x0F)
	frame[14] = fragment[1]
	frame[15] = fragment[2]
	frame[16] = fragment[3]
	frame[18] = (frame[18] & 0x0F) | (fragment[4] & 0xF0)
}

// setBitsMSBFirst writes the low nbits of value into data[start:start+nbits],
// most-significant bit first.
func setBitsMSBFirst(data []bool, start int, value uint32, nbits int) {
	for i := 0; i < nbits; i++ {
		data[start+i] = (value>>uint(nbits-1-i))&1 == 1
	}
}

// bitsToByte packs up to 8 bools into a byte, most-significant bit first.
func bitsToByte(bits []bool) byte {
	var b byte
	for i, bit := range bits {
		if i >= 8 {
			break
		}
		if bit {
			b |= 1 << uint(7-i)
		}
	}
	return b
}

// xorBits returns the XOR (odd parity) of all given bits.
func xorBits(bits ...bool) bool {
	result := false
	for _, b := range bits {
		result = result != b
	}
	return result
}

// applyHamming16114 computes the Hamming(16,11,4) parity bits for an
// 11-bit data block and writes them into block[11:16] in place. This is
// the same FEC MMDVMHost applies to short/embedded link control blocks.
func applyHamming16114(block []bool) {
	if len(block) < 16 {
		return
	}

	d := block
	p0 := xorBits(d[0], d[1], d[2], d[3], d[5], d[7], d[8])
	p1 := xorBits(d[1], d[2], d[3], d[4], d[6], d[8], d[9])
	p2 := xorBits(d[2], d[3], d[4], d[5], d[7], d[9], d[10])
	p3 := xorBits(d[0], d[1], d[2], d[4], d[6], d[7], d[10])

	block[11] = p0
	block[12] = p1
	block[13] = p2
	block[14] = p3
	block[15] = xorBits(d[0], d[1], d[2], d[3], d[4], d[5], d[6], d[7], d[8], d[9], d[10], p0, p1, p2, p3)
}

// computeFiveBitCRC runs a CRC-5 (polynomial x^5+x^4+x^2+1) shift
// register over data and returns the 5-bit remainder, the same check
// used to protect the Full LC payload.
func computeFiveBitCRC(data []bool) byte {
	const poly = 0x15

	reg := byte(0x1F)
	for _, bit := range data {
		top := (reg>>4)&1 == 1
		reg = (reg << 1) & 0x1F
		if bit != top {
			reg ^= poly
		}
	}
	return reg & 0x1F
}
