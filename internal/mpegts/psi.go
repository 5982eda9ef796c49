package mpegts

import (
	"time"

	"golang.org/x/time/rate"
)

// PSI assembles PID-filtered Program-Specific Information sections
// (PAT/PMT) across one or more TS packets, validates CRC-32/MPEG2, and
// dispatches OnTable once per distinct (CRC-valid) section — mirroring
// §4.5's psi_mux and the CRC-gated lazy-update behavior from §9 open
// question (c).
type PSI struct {
	pid     uint16
	buf     []byte
	lastCRC uint32
	haveCRC bool

	warn *rate.Sometimes
}

// NewPSI creates an assembler filtering packets on pid.
func NewPSI(pid uint16) *PSI {
	return &PSI{
		pid:  pid,
		warn: &rate.Sometimes{Interval: 10 * time.Second},
	}
}

// PID returns the PID this assembler filters on.
func (p *PSI) PID() uint16 { return p.pid }

// OnTable is called with a validated, newly-changed section (CRC differs
// from the last accepted one). The byte slice is only valid for the
// duration of the call.
type OnTable func(section []byte)

// warnOnce logs msg at most once per warn.Interval — the ProtocolSkip
// "emit one throttled warning per stage" contract from §7.
func (p *PSI) warnOnce(log func(string), msg string) {
	if log == nil {
		return
	}
	p.warn.Do(func() { log(msg) })
}

// Feed pushes one TS packet through the assembler. Packets for other PIDs
// are ignored. onTable fires zero or more times (normally 0 or 1) per
// call. Malformed/truncated sections and CRC mismatches are dropped
// silently per §7 ProtocolSkip, with a throttled warning via logWarn (may
// be nil to suppress logging, e.g. in tests).
func (p *PSI) Feed(pkt *Packet, onTable OnTable, logWarn func(string)) {
	if pkt.PID() != p.pid || !pkt.HasPayload() {
		return
	}
	payload := pkt.Payload()
	if payload == nil {
		return
	}

	if pkt.PUSI() {
		if len(payload) < 1 {
			p.warnOnce(logWarn, "psi: truncated packet (missing pointer field)")
			return
		}
		ptr := int(payload[0])
		if 1+ptr > len(payload) {
			p.warnOnce(logWarn, "psi: truncated packet (pointer out of range)")
			p.buf = nil
			return
		}
		if len(p.buf) > 0 && ptr > 0 {
			// Finish the section in flight with the bytes before the new
			// section's start.
			p.buf = append(p.buf, payload[1:1+ptr]...)
			p.drainSections(onTable, logWarn)
		}
		p.buf = append([]byte(nil), payload[1+ptr:]...)
	} else {
		if len(p.buf) == 0 {
			// No section in progress to continue; drop until the next PUSI.
			return
		}
		p.buf = append(p.buf, payload...)
	}

	p.drainSections(onTable, logWarn)
}

func (p *PSI) drainSections(onTable OnTable, logWarn func(string)) {
	for {
		if len(p.buf) < 3 {
			return
		}
		sectionLen := (int(p.buf[1]&0x0F) << 8) | int(p.buf[2])
		total := 3 + sectionLen
		if len(p.buf) < total {
			return // wait for more packets
		}
		if sectionLen < 9 {
			p.warnOnce(logWarn, "psi: section too short")
			p.buf = p.buf[total:]
			continue
		}

		section := p.buf[:total]
		stored := uint32(section[total-4])<<24 | uint32(section[total-3])<<16 |
			uint32(section[total-2])<<8 | uint32(section[total-1])
		calc := CRC32(section[:total-4])

		if calc != stored {
			p.warnOnce(logWarn, "psi: CRC-32 mismatch")
			p.buf = p.buf[total:]
			continue
		}

		if !p.haveCRC || calc != p.lastCRC {
			p.lastCRC = calc
			p.haveCRC = true
			if onTable != nil {
				onTable(section)
			}
		}

		p.buf = p.buf[total:]
	}
}
