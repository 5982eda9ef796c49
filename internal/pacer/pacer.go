// Package pacer implements the playout pacer stage (C7): emits packets on
// a fixed tick at a target bitrate, synthesising null packets on underrun.
//
// Grounded line-for-line on
// _examples/original_source/modules/mpegts/playout.c (on_ts/playout_flush/
// playout_send_one/method_stats), using internal/ringbuf for the ring
// mechanics and internal/timerwheel for the tick, in place of Astra's
// asc_timer_init/asc_utime collaborators.
package pacer

import (
	"github.com/snapetech/tsengine/internal/clock"
	"github.com/snapetech/tsengine/internal/mpegts"
	"github.com/snapetech/tsengine/internal/pipeline"
	"github.com/snapetech/tsengine/internal/ringbuf"
	"github.com/snapetech/tsengine/internal/timerwheel"
)

// Mode selects between auto (EMA-tracked input bitrate) and CBR (fixed
// target) pacing.
type Mode int

const (
	ModeAuto Mode = iota
	ModeCBR
)

const (
	windowUS     = 1_000_000
	minTargetBPS = 100_000
	maxTargetBPS = 200_000_000
	maxSendTick  = 5000
)

// Config holds the pacer's tunables (§4.7), with defaults matching the
// spec's documented values.
type Config struct {
	Mode           Mode
	TargetBPS      uint64 // CBR only
	AssumedBPS     uint64 // default 6_000_000
	TickMS         uint32 // default 10, clamped [2,200]
	NullStuffing   bool   // default true
	MinFillMS      uint32
	TargetFillMS   uint32
	MaxBufferBytes uint64 // default 16 MiB
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeAuto,
		AssumedBPS:     6_000_000,
		TickMS:         10,
		NullStuffing:   true,
		MaxBufferBytes: 16 * 1024 * 1024,
	}
}

// Stage is the playout pacer pipeline node.
type Stage struct {
	pipeline.Base

	clk  clock.Clock
	cfg  Config
	ring *ringbuf.Ring

	core  *timerwheel.Core
	timer *timerwheel.Timer

	lastTickUS uint64
	pktCredit  float64

	inEMA          float64
	inWindowStart  uint64
	inWindowBytes  uint64
	outEMA         float64
	outWindowStart uint64
	outWindowBytes uint64

	nullPacketsTotal uint64
	underrunsTotal   uint64
	underrunMSTotal  uint64
	dropsTotal       uint64

	inUnderrun    bool
	underrunStart uint64
	lastTargetBPS uint64
	nullCC        byte
}

// New creates a pacer stage. If core is non-nil, a periodic tick timer is
// registered on it; pass nil to drive Tick manually (e.g. in tests).
func New(clk clock.Clock, cfg Config, core *timerwheel.Core) *Stage {
	if cfg.TickMS < 2 {
		cfg.TickMS = 2
	}
	if cfg.TickMS > 200 {
		cfg.TickMS = 200
	}
	if cfg.AssumedBPS == 0 {
		cfg.AssumedBPS = 6_000_000
	}
	capBytes := cfg.MaxBufferBytes
	if capBytes == 0 {
		capBytes = 16 * 1024 * 1024
	}
	capacity := int(capBytes / mpegts.PacketSize)
	if capacity < 64 {
		capacity = 64
	}

	s := &Stage{
		clk:  clk,
		cfg:  cfg,
		ring: ringbuf.New(capacity),
		core: core,
	}
	if core != nil {
		s.timer = core.SchedulePeriodic(uint64(cfg.TickMS)*1000, func() { s.Tick() })
	}
	return s
}

// OnTS implements pipeline.Stage (§4.7 on_ts): updates the input EMA,
// enqueues the packet (dropping oldest on overflow), and opportunistically
// ticks to absorb bursts.
func (s *Stage) OnTS(pkt *mpegts.Packet) {
	now := s.clk.NowUS()
	s.updateInBitrate(now)

	if s.ring.Full() {
		s.ring.Pop()
		s.dropsTotal++
	}
	s.ring.Push(pkt, now)

	s.Tick()
}

func (s *Stage) updateInBitrate(now uint64) {
	s.inEMA, s.inWindowStart, s.inWindowBytes = updateEMA(s.inEMA, s.inWindowStart, s.inWindowBytes, now, mpegts.PacketSize)
}

func (s *Stage) updateOutBitrate(now uint64, bytesSent uint64) {
	s.outEMA, s.outWindowStart, s.outWindowBytes = updateEMA(s.outEMA, s.outWindowStart, s.outWindowBytes, now, bytesSent)
}

// updateEMA implements the shared 1-second sliding-window EMA update used
// for both the ingress and egress bitrate trackers (§4.7).
func updateEMA(ema float64, windowStart, windowBytes, now, addBytes uint64) (float64, uint64, uint64) {
	if windowStart == 0 {
		return ema, now, windowBytes + addBytes
	}
	windowBytes += addBytes
	delta := now - windowStart
	if delta < windowUS {
		return ema, windowStart, windowBytes
	}
	instBPS := float64(windowBytes) * 8.0 * 1e6 / float64(delta)
	if instBPS > 1000.0 {
		if ema <= 0 {
			ema = instBPS
		} else {
			ema = ema*0.8 + instBPS*0.2
		}
	}
	return ema, now, 0
}

// targetBPS computes the current target bitrate (§4.7 "Target bitrate").
func (s *Stage) targetBPS() uint64 {
	var bps uint64
	if s.cfg.Mode == ModeCBR && s.cfg.TargetBPS > 0 {
		bps = s.cfg.TargetBPS
	} else if s.inEMA > 0 {
		bps = uint64(s.inEMA)
	} else {
		bps = s.cfg.AssumedBPS
	}
	if bps < minTargetBPS {
		bps = minTargetBPS
	}
	if bps > maxTargetBPS {
		bps = maxTargetBPS
	}
	return bps
}

// fillMS computes the current buffer fill expressed in milliseconds at
// the given target bitrate.
func (s *Stage) fillMS(targetBPS uint64) uint64 {
	if s.ring.Len() == 0 || targetBPS == 0 {
		return 0
	}
	bytes := uint64(s.ring.Len()) * mpegts.PacketSize
	return bytes * 8 * 1000 / targetBPS
}

// Tick implements §4.7's flush(): primes the clock on first call, accrues
// packet credit, and drains it (bounded by maxSendTick).
func (s *Stage) Tick() {
	now := s.clk.NowUS()
	targetBPS := s.targetBPS()
	s.lastTargetBPS = targetBPS

	if s.lastTickUS == 0 {
		s.lastTickUS = now
		return
	}

	delta := now - s.lastTickUS
	s.lastTickUS = now

	pkts := float64(delta) * float64(targetBPS) / 1e6 / 8.0 / mpegts.PacketSize
	if pkts > 0 {
		s.pktCredit += pkts
	}

	sent := 0
	for s.pktCredit >= 1.0 && sent < maxSendTick {
		s.sendOne(now, targetBPS)
		s.pktCredit -= 1.0
		sent++
	}
}

// sendOne emits one packet: a live packet if available and not
// prebuffering, a null packet if stuffing is enabled, or nothing.
func (s *Stage) sendOne(now uint64, targetBPS uint64) {
	fillMS := s.fillMS(targetBPS)
	prebuffer := s.cfg.MinFillMS > 0 && fillMS < uint64(s.cfg.MinFillMS)

	if s.ring.Len() > 0 && !prebuffer {
		pkt, _, _ := s.ring.Pop()
		s.Send(pkt)
		s.updateOutBitrate(now, mpegts.PacketSize)

		if s.inUnderrun && s.underrunStart > 0 {
			var delta uint64
			if now > s.underrunStart {
				delta = now - s.underrunStart
			}
			s.underrunMSTotal += delta / 1000
			s.inUnderrun = false
			s.underrunStart = 0
		}
		return
	}

	if !s.cfg.NullStuffing {
		return
	}

	var null mpegts.Packet
	mpegts.MakeNullPacket(&null, s.nullCC)
	s.nullCC = (s.nullCC + 1) & 0x0F

	s.Send(&null)
	s.updateOutBitrate(now, mpegts.PacketSize)

	s.nullPacketsTotal++
	if !s.inUnderrun {
		s.underrunsTotal++
		s.inUnderrun = true
		s.underrunStart = now
	}
}

// Destroy cancels the tick timer, releases the ring, and cascades to
// children.
func (s *Stage) Destroy() {
	if s.timer != nil && s.core != nil {
		s.core.Cancel(s.timer)
		s.timer = nil
	}
	s.ring = nil
	s.DestroyChildren()
}

// Stats returns the pacer's operator-facing metrics, with field names
// exactly as enumerated in §4.7.
func (s *Stage) Stats() map[string]float64 {
	now := s.clk.NowUS()
	targetBPS := s.targetBPS()
	fillMS := s.fillMS(targetBPS)

	underrunMS := s.underrunMSTotal
	if s.inUnderrun && s.underrunStart > 0 && now > s.underrunStart {
		underrunMS += (now - s.underrunStart) / 1000
	}

	return map[string]float64{
		"playout_enabled":    1,
		"target_kbps":        float64(targetBPS) / 1000,
		"current_kbps":       s.outEMA / 1000,
		"buffer_fill_ms":     float64(fillMS),
		"buffer_target_ms":   float64(s.cfg.TargetFillMS),
		"buffer_bytes":       float64(s.ring.Len() * mpegts.PacketSize),
		"null_packets_total": float64(s.nullPacketsTotal),
		"underruns_total":    float64(s.underrunsTotal),
		"underrun_ms_total":  float64(underrunMS),
		"drops_total":        float64(s.dropsTotal),
	}
}
