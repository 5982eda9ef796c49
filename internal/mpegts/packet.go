// Package mpegts implements the MPEG transport-stream primitives (C5):
// packet field access, PCR decode, PAT/PMT PSI assembly, CRC-32/MPEG2, and
// null-packet synthesis.
//
// Grounded on _examples/original_source/modules/hls/output.c (PAT/PMT
// foreach macros, PSI CRC gating) and the teacher's hand-rolled PAT/PMT/PCR
// parsing in internal/tuner/ts_inspector.go, the closest existing Go code
// in the pack to this component.
package mpegts

// PacketSize is the fixed MPEG-TS packet length (§3).
const PacketSize = 188

// SyncByte starts every TS packet.
const SyncByte = 0x47

// NullPID is the PID used for stuffing packets (0x1FFF).
const NullPID = 0x1FFF

// Packet is one 188-byte MPEG-TS unit, passed by value so stages never
// alias a shared mutable buffer across the synchronous send() chain.
type Packet [PacketSize]byte

// PID extracts the 13-bit packet identifier (bytes 1-2).
func (p *Packet) PID() uint16 {
	return (uint16(p[1]&0x1F) << 8) | uint16(p[2])
}

// IsNull reports whether this is a null (stuffing) packet.
func (p *Packet) IsNull() bool {
	return p.PID() == NullPID
}

// PUSI reports the payload-unit-start-indicator bit.
func (p *Packet) PUSI() bool {
	return p[1]&0x40 != 0
}

// adaptationFieldControl returns the 2-bit AFC field from byte 3.
func (p *Packet) adaptationFieldControl() byte {
	return (p[3] >> 4) & 0x03
}

// HasAdaptationField reports whether an adaptation field is present.
func (p *Packet) HasAdaptationField() bool {
	afc := p.adaptationFieldControl()
	return afc == 0x02 || afc == 0x03
}

// HasPayload reports whether a payload follows the header/adaptation field.
func (p *Packet) HasPayload() bool {
	afc := p.adaptationFieldControl()
	return afc == 0x01 || afc == 0x03
}

// ContinuityCounter returns the 4-bit continuity counter.
func (p *Packet) ContinuityCounter() byte {
	return p[3] & 0x0F
}

// HasPCR reports whether the adaptation field carries a PCR (§4.5:
// adaptation-field present AND length > 0 AND PCR flag set).
func (p *Packet) HasPCR() bool {
	if !p.HasAdaptationField() {
		return false
	}
	alen := int(p[4])
	if alen == 0 {
		return false
	}
	flags := p[5]
	return flags&0x10 != 0
}

// PCR decodes the 42-bit (33-bit base * 300 + 9-bit extension) Program
// Clock Reference in the 27 MHz base. Call only when HasPCR() is true.
func (p *Packet) PCR() uint64 {
	b := p[6:12]
	base := (uint64(b[0]) << 25) |
		(uint64(b[1]) << 17) |
		(uint64(b[2]) << 9) |
		(uint64(b[3]) << 1) |
		(uint64(b[4]) >> 7)
	ext := (uint64(b[4]&0x01) << 8) | uint64(b[5])
	return base*300 + ext
}

// Payload returns the payload slice of the packet, after header and any
// adaptation field. Returns nil if there is no payload.
func (p *Packet) Payload() []byte {
	if !p.HasPayload() {
		return nil
	}
	off := 4
	if p.HasAdaptationField() {
		alen := int(p[4])
		off += 1 + alen
	}
	if off >= PacketSize {
		return nil
	}
	return p[off:PacketSize]
}

// pcrWrap is the wrap point of the 33-bit PCR base component, in the
// 27 MHz clock domain it is multiplied into (300 * 2^33).
const pcrWrap = uint64(300) << 33

// PCRBlockUS computes elapsed microseconds between two PCR samples from
// the same PID, handling 33-bit base wraparound, and advances *prev to
// *cur (§4.5 pcr_block_us).
func PCRBlockUS(prev, cur *uint64) uint64 {
	p, c := *prev, *cur
	var delta uint64
	if c >= p {
		delta = c - p
	} else {
		// Wrapped: the 33-bit base (and therefore the full 42-bit PCR
		// value derived from it) rolled over.
		delta = (pcrWrap - p) + c
	}
	*prev = c
	us := delta / 27 // 27 MHz -> microseconds
	return us
}

// MakeNullPacket fills pkt with a well-formed stuffing packet: sync 0x47,
// PID 0x1FFF, payload-only AFC, continuity counter cc, and 0xFF payload
// (§4.5 make_null_packet / P10).
func MakeNullPacket(pkt *Packet, cc byte) {
	for i := range pkt {
		pkt[i] = 0xFF
	}
	pkt[0] = SyncByte
	pkt[1] = 0x1F
	pkt[2] = 0xFF
	pkt[3] = 0x10 | (cc & 0x0F)
}
