package mpegts

// CRC-32/MPEG-2: polynomial 0x04C11DB7, no input/output reflection, init
// 0xFFFFFFFF, no final XOR. This is the variant PSI sections use to guard
// PAT/PMT tables.
//
// Go's stdlib hash/crc32 only ships the reflected IEEE and Castagnoli
// tables (both reverse the polynomial and reflect in/out), neither of
// which matches this MPEG-2 framing — so there is no stdlib shortcut here
// and a small hand-rolled table-driven implementation is the correct,
// idiomatic approach (grounded on modules/astra/utils.c's crc32b, which
// implements the same non-reflected table).
var crc32MPEGTable [256]uint32

func init() {
	const poly = uint32(0x04C11DB7)
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for bit := 0; bit < 8; bit++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crc32MPEGTable[i] = crc
	}
}

// CRC32 computes the CRC-32/MPEG-2 checksum of data.
func CRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		idx := byte(crc>>24) ^ b
		crc = (crc << 8) ^ crc32MPEGTable[idx]
	}
	return crc
}
