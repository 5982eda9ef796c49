// Package jitter implements the fixed-delay jitter buffer stage (C6): a
// bounded ring buffer that releases packets once they have aged past a
// configured target delay, smoothing out arrival-time variance from an
// upstream source.
//
// Grounded line-for-line on
// _examples/original_source/modules/mpegts/jitter.c (on_ts/jitter_flush/
// method_stats), using internal/ringbuf for the ring mechanics and
// internal/timerwheel for the 20ms periodic flush, in place of Astra's
// asc_timer_init/asc_utime collaborators.
package jitter

import (
	"github.com/snapetech/tsengine/internal/clock"
	"github.com/snapetech/tsengine/internal/mpegts"
	"github.com/snapetech/tsengine/internal/pipeline"
	"github.com/snapetech/tsengine/internal/ringbuf"
	"github.com/snapetech/tsengine/internal/timerwheel"
)

// flushIntervalUS is the periodic flush cadence (§4.6: "a 20-ms periodic
// timer also calls flush()").
const flushIntervalUS = 20_000

// Config holds the jitter stage's tunables.
type Config struct {
	// JitterMS is the target delay in milliseconds. Zero makes the stage
	// a pass-through.
	JitterMS uint32
	// MaxBufferBytes bounds the ring's memory footprint; capacity is
	// derived as max(64, MaxBufferBytes/188).
	MaxBufferBytes uint64
}

// Stage is the jitter buffer pipeline node.
type Stage struct {
	pipeline.Base

	clk clock.Clock
	cfg Config

	ring     *ringbuf.Ring
	passthru bool
	timer    *timerwheel.Timer
	core     *timerwheel.Core

	inUnderrun     bool
	lastSendTS     uint64
	underrunsTotal uint64
	dropsTotal     uint64
}

// New creates a jitter stage. If core is non-nil, a periodic flush timer
// is registered on it; pass nil to drive flush manually (e.g. in tests).
func New(clk clock.Clock, cfg Config, core *timerwheel.Core) *Stage {
	s := &Stage{clk: clk, cfg: cfg, core: core}

	if cfg.JitterMS == 0 {
		s.passthru = true
		return s
	}

	capBytes := cfg.MaxBufferBytes
	if capBytes == 0 {
		capBytes = 4 * 1024 * 1024
	}
	capacity := int(capBytes / mpegts.PacketSize)
	if capacity < 64 {
		capacity = 64
	}
	s.ring = ringbuf.New(capacity)

	if core != nil {
		s.core = core
		s.timer = core.SchedulePeriodic(flushIntervalUS, func() { s.flush() })
	}

	return s
}

// OnTS implements pipeline.Stage (§4.6 on_ts).
func (s *Stage) OnTS(pkt *mpegts.Packet) {
	if s.passthru {
		s.Send(pkt)
		return
	}

	now := s.clk.NowUS()
	if s.ring.Full() {
		s.ring.Pop()
		s.dropsTotal++
	}
	s.ring.Push(pkt, now)

	s.flush()
}

// flush drains every packet whose age has reached the target delay,
// tracking the underrun rising/falling edge (§4.6 flush()).
func (s *Stage) flush() {
	if s.passthru {
		return
	}

	targetUS := uint64(s.cfg.JitterMS) * 1000

	for {
		_, ts, ok := s.ring.Peek()
		if !ok {
			break
		}
		now := s.clk.NowUS()
		if now < ts || (now-ts) < targetUS {
			break
		}
		pkt, _, _ := s.ring.Pop()
		s.Send(pkt)
		s.lastSendTS = now
	}

	if s.ring.Empty() {
		if !s.inUnderrun && s.lastSendTS > 0 {
			s.underrunsTotal++
			s.inUnderrun = true
		}
	} else {
		s.inUnderrun = false
	}
}

// Destroy cancels the flush timer, releases the ring, and cascades to
// children.
func (s *Stage) Destroy() {
	if s.timer != nil && s.core != nil {
		s.core.Cancel(s.timer)
		s.timer = nil
	}
	s.ring = nil
	s.DestroyChildren()
}

// Stats returns the jitter buffer's operator-facing metrics, with field
// names exactly as enumerated in §4.6.
func (s *Stage) Stats() map[string]float64 {
	stats := map[string]float64{
		"buffer_target_ms":       float64(s.cfg.JitterMS),
		"buffer_underruns_total": float64(s.underrunsTotal),
	}

	fillMS := 0.0
	if !s.passthru && !s.ring.Empty() {
		_, ts, _ := s.ring.Peek()
		now := s.clk.NowUS()
		if now > ts {
			fillMS = float64((now - ts) / 1000)
		}
	}
	stats["buffer_fill_ms"] = fillMS

	return stats
}
