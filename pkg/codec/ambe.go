package codec

// AMBE codec conversion tables and functions
// Based on ModeConv.cpp from MMDVM_CM

// DMR frame AMBE bit positions
// DMR uses 3 AMBE frames per 33-byte payload
// Each AMBE frame has A (24 bits), B (23 bits), and C (25 bits) fields

var (
	// DMR_A_TABLE maps 24 AMBE A bits to positions in DMR frame
	DMR_A_TABLE = []uint{
		0, 4, 8, 12, 16, 20, 24, 28, 32, 36, 40, 44,
		48, 52, 56, 60, 64, 68, 1, 5, 9, 13, 17, 21,
	}

	// DMR_B_TABLE maps 23 AMBE B bits to positions in DMR frame
	DMR_B_TABLE = []uint{
		25, 29, 33, 37, 41, 45, 49, 53, 57, 61, 65, 69,
		2, 6, 10, 14, 18, 22, 26, 30, 34, 38, 42,
	}

	// DMR_C_TABLE maps 25 AMBE C bits to positions in DMR frame
	DMR_C_TABLE = []uint{
		46, 50, 54, 58, 62, 66, 70, 3, 7, 11, 15, 19, 23,
		27, 31, 35, 39, 43, 47, 51, 55, 59, 63, 67, 71,
	}

)

// Bit manipulation helpers
const (
	bitMask0 = 0x80
	bitMask1 = 0x40
	bitMask2 = 0x20
	bitMask3 = 0x10
	bitMask4 = 0x08
	bitMask5 = 0x04
	bitMask6 = 0x02
	bitMask7 = 0x01
)

var bitMaskTable = []byte{bitMask0, bitMask1, bitMask2, bitMask3, bitMask4, bitMask5, bitMask6, bitMask7}

// readBit reads a bit from a byte array at the specified bit position
func readBit(data []byte, pos uint) bool {
	bytePos := pos >> 3
	bitPos := pos & 7
	if int(bytePos) >= len(data) {
		return false
	}
	return (data[bytePos] & bitMaskTable[bitPos]) != 0
}

// writeBit writes a bit to a byte array at the specified bit position
func writeBit(data []byte, pos uint, value bool) {
	bytePos := pos >> 3
	bitPos := pos & 7
	if int(bytePos) >= len(data) {
		return
	}
	if value {
		data[bytePos] |= bitMaskTable[bitPos]
	} else {
		data[bytePos] &= ^bitMaskTable[bitPos]
	}
}

// extractSingleAMBEFromDMR extracts a single AMBE frame from a 9-byte DMR mini-frame
// Returns (a, b, c) AMBE parameters
func extractSingleAMBEFromDMR(dmrFrame []byte) (a, b, c uint32) {
	var mask uint32 = 0x800000
	for i := uint(0); i < 24; i++ {
		aPos := DMR_A_TABLE[i]
		if readBit(dmrFrame, aPos) {
			a |= mask
		}
		mask >>= 1
	}

	mask = 0x400000
	for i := uint(0); i < 23; i++ {
		bPos := DMR_B_TABLE[i]
		if readBit(dmrFrame, bPos) {
			b |= mask
		}
		mask >>= 1
	}

	mask = 0x1000000
	for i := uint(0); i < 25; i++ {
		cPos := DMR_C_TABLE[i]
		if readBit(dmrFrame, cPos) {
			c |= mask
		}
		mask >>= 1
	}

	return
}

// insertAMBEToDMR inserts AMBE parameters into a DMR voice frame
func insertAMBEToDMR(dmrFrame []byte, a, b, c uint32) {
	var mask uint32 = 0x800000
	for i := uint(0); i < 24; i++ {
		aPos := DMR_A_TABLE[i]
		writeBit(dmrFrame, aPos, (a&mask) != 0)
		mask >>= 1
	}

	mask = 0x400000
	for i := uint(0); i < 23; i++ {
		bPos := DMR_B_TABLE[i]
		writeBit(dmrFrame, bPos, (b&mask) != 0)
		mask >>= 1
	}

	mask = 0x1000000
	for i := uint(0); i < 25; i++ {
		cPos := DMR_C_TABLE[i]
		writeBit(dmrFrame, cPos, (c&mask) != 0)
		mask >>= 1
	}
}

// insertInterleavedAMBEToDMR inserts 3 interleaved AMBE frames into a DMR voice frame
// This matches MMDVM_CM's frame structure where:
// - Frame 1 bits are at base table positions
// - Frame 2 bits are at table positions + 72 (with adjustment if >= 108)
// - Frame 3 bits are at table positions + 192
func insertInterleavedAMBEToDMR(dmrFrame []byte, a1, b1, c1, a2, b2, c2, a3, b3, c3 uint32) {
	// Insert A parameters for all 3 frames
	var mask uint32 = 0x800000
	for i := uint(0); i < 24; i++ {
		a1Pos := DMR_A_TABLE[i]
		a2Pos := a1Pos + 72
		// Align with MMDVM bit numbering: skip when >=108 by +48
		if a2Pos >= 108 {
			a2Pos += 48
		}
		a3Pos := a1Pos + 192

		writeBit(dmrFrame, a1Pos, (a1&mask) != 0)
		writeBit(dmrFrame, a2Pos, (a2&mask) != 0)
		writeBit(dmrFrame, a3Pos, (a3&mask) != 0)
		mask >>= 1
	}

	// Insert B parameters for all 3 frames
	mask = 0x400000
	for i := uint(0); i < 23; i++ {
		b1Pos := DMR_B_TABLE[i]
		b2Pos := b1Pos + 72
		if b2Pos >= 108 {
			b2Pos += 48
		}
		b3Pos := b1Pos + 192

		writeBit(dmrFrame, b1Pos, (b1&mask) != 0)
		writeBit(dmrFrame, b2Pos, (b2&mask) != 0)
		writeBit(dmrFrame, b3Pos, (b3&mask) != 0)
		mask >>= 1
	}

	// Insert C parameters for all 3 frames
	mask = 0x1000000
	for i := uint(0); i < 25; i++ {
		c1Pos := DMR_C_TABLE[i]
		c2Pos := c1Pos + 72
		if c2Pos >= 108 {
			c2Pos += 48
		}
		c3Pos := c1Pos + 192

		writeBit(dmrFrame, c1Pos, (c1&mask) != 0)
		writeBit(dmrFrame, c2Pos, (c2&mask) != 0)
		writeBit(dmrFrame, c3Pos, (c3&mask) != 0)
		mask >>= 1
	}
}

// AMBEFrame holds one AMBE-encoded voice frame's three parameter
// groups, as produced by a pre-recorded announcement's phrase file.
type AMBEFrame struct {
	A, B, C uint32
}

// EmbedVoiceSuperframe writes three AMBE frames into a 33-byte DMR
// voice payload using the same interleaving a live voice call would
// use, so an announcement built from recorded AMBE parameters is
// indistinguishable on the wire from a transcoded radio transmission.
// Exported wrapper around insertInterleavedAMBEToDMR for pkg/voice.
func EmbedVoiceSuperframe(payload []byte, frames [3]AMBEFrame) {
	insertInterleavedAMBEToDMR(payload,
		frames[0].A, frames[0].B, frames[0].C,
		frames[1].A, frames[1].B, frames[1].C,
		frames[2].A, frames[2].B, frames[2].C)
}
