// Package hls implements the HLS segmenter sink (C8): slices an incoming
// TS stream into duration-bounded segment files and maintains a rolling
// M3U8 playlist, with optional PAT/PMT-driven PID filtering.
//
// Grounded line-for-line on _examples/original_source/modules/hls/output.c
// (hls_open_segment/hls_finish_segment/hls_write_playlist/on_pat/on_pmt),
// using internal/mpegts for PSI assembly/PAT/PMT iteration and CRC-32 in
// place of Astra's mpegts_psi_mux/PAT_ITEMS_FOREACH/crc32b, and the
// teacher's fwrite-based TS segment writer style (aminofox-style
// binary.Write framing) adapted to whole-packet appends.
package hls

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/snapetech/tsengine/internal/clock"
	"github.com/snapetech/tsengine/internal/mpegts"
	"github.com/snapetech/tsengine/internal/pipeline"
)

// NamingMode selects the segment filename scheme.
type NamingMode int

const (
	NamingSequence NamingMode = iota
	NamingPCR
)

// Config holds the segmenter's tunables (§4.8), with defaults matching the
// spec's documented values.
type Config struct {
	Path           string
	PlaylistName   string // default "index.m3u8"
	SegmentPrefix  string // default "segment"
	BaseURL        string
	TSExtension    string // default "ts"
	TargetDuration int    // seconds, default 6
	Window         int    // default 5
	Cleanup        int    // default 2*Window
	UseWall        bool   // default true
	RoundDuration  bool   // default false
	PassData       bool   // default true
	Naming         NamingMode
}

// DefaultConfig returns the spec-documented defaults.
func DefaultConfig() Config {
	return Config{
		PlaylistName:   "index.m3u8",
		SegmentPrefix:  "segment",
		TSExtension:    "ts",
		TargetDuration: 6,
		Window:         5,
		Cleanup:        10,
		UseWall:        true,
		PassData:       true,
		Naming:         NamingSequence,
	}
}

// segment is one finished segment's playlist-facing record.
type segment struct {
	seq           int64
	duration      float64
	name          string
	discontinuity bool
}

// Stage is the HLS segmenter pipeline node.
type Stage struct {
	pipeline.Base

	clk clock.Clock
	cfg Config

	segmentTargetUS uint64
	playlistTarget  int

	seq                  int64
	segmentFile          *os.File
	segmentName          string
	segmentPackets       int
	segmentElapsed       uint64
	discontinuityPending bool

	hasPCR   bool
	pcrLast  uint64
	wallLast uint64

	segments []segment
	warnLog  func(string)

	// PID classification for pass_data=false mode.
	pat      *mpegts.PSI
	pmt      *mpegts.PSI
	pmtPID   uint16
	pidTypes map[uint16]mpegts.PacketType
}

// New creates an HLS segmenter stage. cfg.Path must be non-empty
// (ConfigInvalid per §7: missing required option aborts stage init — the
// caller is expected to validate before calling New in production, tests
// may use a temp directory).
func New(clk clock.Clock, cfg Config) (*Stage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("hls: option 'path' is required")
	}
	if cfg.PlaylistName == "" {
		cfg.PlaylistName = "index.m3u8"
	}
	if cfg.SegmentPrefix == "" {
		cfg.SegmentPrefix = "segment"
	}
	if cfg.TSExtension == "" {
		cfg.TSExtension = "ts"
	}
	if len(cfg.TSExtension) > 0 && cfg.TSExtension[0] == '.' {
		cfg.TSExtension = cfg.TSExtension[1:]
	}
	if cfg.TargetDuration < 1 {
		cfg.TargetDuration = 6
	}
	if cfg.Window < 1 {
		cfg.Window = 5
	}
	if cfg.Cleanup < cfg.Window {
		cfg.Cleanup = cfg.Window * 2
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("hls: creating output directory: %w", err)
	}

	s := &Stage{
		clk:             clk,
		cfg:             cfg,
		segmentTargetUS: uint64(cfg.TargetDuration) * 1_000_000,
		playlistTarget:  cfg.TargetDuration,
		seq:             -1,
	}

	if !cfg.PassData {
		s.pat = mpegts.NewPSI(0)
		s.pidTypes = map[uint16]mpegts.PacketType{0: mpegts.PacketPAT}
	}

	return s, nil
}

// SetWarnLog installs the warning sink used for IoTransient logging
// (segment open/write and playlist write failures, §7) and for PSI
// warnings; segment and playlist warnings are passed to it unthrottled.
func (s *Stage) SetWarnLog(fn func(string)) { s.warnLog = fn }

func (s *Stage) resetPIDTypes() {
	s.pidTypes = map[uint16]mpegts.PacketType{0: mpegts.PacketPAT}
	if s.pmtPID != 0 {
		s.pidTypes[s.pmtPID] = mpegts.PacketPMT
	}
}

func (s *Stage) onPAT(section []byte) {
	var pmtPID uint16
	mpegts.PATItemsForEach(section, func(it mpegts.PATItem) {
		if pmtPID != 0 {
			return
		}
		if it.ProgramNumber == 0 {
			return
		}
		if it.PID != 0 && it.PID < mpegts.NullPID {
			pmtPID = it.PID
		}
	})

	if pmtPID != 0 && pmtPID != s.pmtPID {
		s.pmtPID = pmtPID
		s.pmt = mpegts.NewPSI(pmtPID)
		s.resetPIDTypes()
	}
}

func (s *Stage) onPMT(section []byte) {
	s.resetPIDTypes()

	mpegts.PMTItemsForEach(section, func(it mpegts.PMTItem) {
		if it.PID >= mpegts.NullPID {
			return
		}
		pt := mpegts.PESStreamType(it.StreamType)

		if it.StreamType == 0x06 {
			it.DescForEach(func(tag byte, desc []byte) {
				switch tag {
				case 0x59:
					pt = mpegts.PacketSub
				case 0x6A:
					pt = mpegts.PacketAudio
				}
			})
		}

		s.pidTypes[it.PID] = pt
	})
}

// OnTS implements pipeline.Stage: classifies/filters (pass_data=false),
// opens a segment if none is open, appends the packet, advances the
// duration clock, and rolls to a new segment when the target is reached
// (§4.8 steps 1-6).
func (s *Stage) OnTS(pkt *mpegts.Packet) {
	pid := pkt.PID()

	if !s.cfg.PassData {
		if pid == 0 && s.pat != nil {
			s.pat.Feed(pkt, s.onPAT, s.warnLog)
		}
		if s.pmt != nil && pid == s.pmtPID {
			s.pmt.Feed(pkt, s.onPMT, s.warnLog)
		}
		if s.pidTypes[pid] == mpegts.PacketData {
			return
		}
	}

	if s.segmentFile == nil {
		s.openSegment()
	}
	if s.segmentFile == nil {
		return // IoTransient: open failed, retry on next packet (§7)
	}

	if _, err := s.segmentFile.Write(pkt[:]); err != nil {
		s.warn(fmt.Sprintf("hls: write failed: %v", err))
		return
	}
	s.segmentPackets++

	var deltaUS uint64
	if s.cfg.UseWall {
		now := s.clk.NowUS()
		if s.wallLast == 0 {
			s.wallLast = now
		}
		if now > s.wallLast {
			deltaUS = now - s.wallLast
		}
		s.wallLast = now
	} else if pkt.HasPCR() {
		pcr := pkt.PCR()
		if !s.hasPCR {
			s.pcrLast = pcr
			s.hasPCR = true
			deltaUS = 0
		} else {
			deltaUS = mpegts.PCRBlockUS(&s.pcrLast, &pcr)
		}
	}

	s.segmentElapsed += deltaUS

	if s.segmentElapsed >= s.segmentTargetUS {
		s.finishSegment()
		s.openSegment()
	}
}

func (s *Stage) warn(msg string) {
	if s.warnLog != nil {
		s.warnLog(msg)
	}
}

// segmentFileName composes the next segment's filename per §4.8's two
// naming modes.
func (s *Stage) segmentFileName() string {
	if s.cfg.Naming == NamingPCR {
		var seed uint64
		if s.cfg.UseWall {
			seed = s.clk.NowUS()
		} else {
			seed = s.pcrLast
		}
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(seed >> (8 * i))
		}
		hash := mpegts.CRC32(buf[:])
		return fmt.Sprintf("%s_%08x.%s", s.cfg.SegmentPrefix, hash, s.cfg.TSExtension)
	}
	return fmt.Sprintf("%s_%08d.%s", s.cfg.SegmentPrefix, s.seq, s.cfg.TSExtension)
}

func (s *Stage) openSegment() {
	s.seq++
	s.segmentName = s.segmentFileName()

	// §4.8: "Segment name safety... path traversal is prevented by
	// construction (prefix/seq/hash contain no slashes)" — SegmentPrefix
	// and TSExtension are operator-configured, so still guard against a
	// misconfigured prefix containing a separator.
	fullPath := filepath.Join(s.cfg.Path, filepath.Base(s.segmentName))

	f, err := os.Create(fullPath)
	if err != nil {
		s.warn(fmt.Sprintf("hls: failed to open segment: %v", err))
		s.segmentFile = nil
		return
	}

	s.segmentFile = f
	s.segmentElapsed = 0
	s.segmentPackets = 0
	s.wallLast = s.clk.NowUS()
}

func (s *Stage) finishSegment() {
	if s.segmentFile != nil {
		s.segmentFile.Close()
		s.segmentFile = nil
	}

	if s.segmentPackets == 0 {
		s.segmentElapsed = 0
		return
	}

	duration := float64(s.segmentElapsed) / 1e6
	if s.cfg.RoundDuration {
		duration = math.Ceil(duration)
	}

	seg := segment{
		seq:           s.seq,
		duration:      duration,
		name:          s.segmentName,
		discontinuity: s.discontinuityPending,
	}
	s.discontinuityPending = false

	durCeil := int(math.Ceil(seg.duration))
	if durCeil < 1 {
		durCeil = 1
	}
	if durCeil > s.playlistTarget {
		s.playlistTarget = durCeil
	}

	s.segments = append(s.segments, seg)
	s.cleanupSegments()
	s.writePlaylist()

	s.segmentElapsed = 0
	s.segmentPackets = 0
	s.wallLast = s.clk.NowUS()
}

func (s *Stage) cleanupSegments() {
	for len(s.segments) > s.cfg.Cleanup {
		oldest := s.segments[0]
		s.segments = s.segments[1:]
		_ = os.Remove(filepath.Join(s.cfg.Path, oldest.name))
	}
}

func (s *Stage) writePlaylist() {
	if len(s.segments) == 0 {
		return
	}

	playlistPath := filepath.Join(s.cfg.Path, s.cfg.PlaylistName)
	f, err := os.Create(playlistPath)
	if err != nil {
		s.warn(fmt.Sprintf("hls: failed to write playlist: %v", err))
		return
	}
	defer f.Close()

	skip := 0
	if len(s.segments) > s.cfg.Window {
		skip = len(s.segments) - s.cfg.Window
	}

	fmt.Fprintf(f, "#EXTM3U\n")
	fmt.Fprintf(f, "#EXT-X-VERSION:3\n")
	fmt.Fprintf(f, "#EXT-X-TARGETDURATION:%d\n", s.playlistTarget)

	mediaSeqSet := false
	for i, seg := range s.segments {
		if i < skip {
			continue
		}
		if !mediaSeqSet {
			fmt.Fprintf(f, "#EXT-X-MEDIA-SEQUENCE:%d\n", seg.seq)
			mediaSeqSet = true
		}
		if seg.discontinuity {
			fmt.Fprintf(f, "#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(f, "#EXTINF:%.3f,\n", seg.duration)
		if s.cfg.BaseURL != "" {
			if s.cfg.BaseURL[len(s.cfg.BaseURL)-1] == '/' {
				fmt.Fprintf(f, "%s%s\n", s.cfg.BaseURL, seg.name)
			} else {
				fmt.Fprintf(f, "%s/%s\n", s.cfg.BaseURL, seg.name)
			}
		} else {
			fmt.Fprintf(f, "%s\n", seg.name)
		}
	}
}

// Discontinuity implements §4.8's discontinuity API: finishes (or
// discards) the currently-open segment and marks the next finished
// segment with #EXT-X-DISCONTINUITY.
func (s *Stage) Discontinuity() {
	if s.segmentFile != nil && s.segmentPackets > 0 {
		s.finishSegment()
	} else if s.segmentFile != nil {
		s.segmentFile.Close()
		s.segmentFile = nil
	}

	s.segmentPackets = 0
	s.segmentElapsed = 0
	s.hasPCR = false
	s.pcrLast = 0
	s.wallLast = 0
	s.discontinuityPending = true
}

// Destroy flushes any open segment to disk and releases resources.
func (s *Stage) Destroy() {
	s.finishSegment()
	if s.segmentFile != nil {
		s.segmentFile.Close()
		s.segmentFile = nil
	}
	s.DestroyChildren()
}

// SegmentsOnDisk reports how many segment records are currently tracked
// (bounded by Cleanup) — exposed for tests and health snapshotting.
func (s *Stage) SegmentsOnDisk() int { return len(s.segments) }

// PlaylistTargetDuration reports the current (monotonically
// non-decreasing) #EXT-X-TARGETDURATION value.
func (s *Stage) PlaylistTargetDuration() int { return s.playlistTarget }

// Stats returns the segmenter's operator-facing metrics, for the same
// health/metrics surface as internal/jitter and internal/pacer.
func (s *Stage) Stats() map[string]float64 {
	return map[string]float64{
		"segments_on_disk":        float64(len(s.segments)),
		"playlist_target_seconds": float64(s.playlistTarget),
		"segment_packets":         float64(s.segmentPackets),
		"current_seq":             float64(s.seq),
	}
}
