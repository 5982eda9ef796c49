// Package engineconfig loads the engine's option surface from environment
// variables, adapted from the teacher's internal/config (the tuner's
// provider/catalog surface replaced here with the jitter/pacer/HLS/GC knobs
// cmd/tsengined wires the pipeline from).
package engineconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/snapetech/tsengine/internal/eventloop"
	"github.com/snapetech/tsengine/internal/hls"
	"github.com/snapetech/tsengine/internal/jitter"
	"github.com/snapetech/tsengine/internal/pacer"
)

// Config is the fully-resolved engine configuration, assembled from
// TSENGINE_*-prefixed environment variables by Load.
type Config struct {
	Jitter jitter.Config
	Pacer  pacer.Config
	HLS    hls.Config
	GC     eventloop.GCOptions
}

// Load builds a Config from the current environment. A missing required
// option (currently: HLS output path) is a ConfigInvalid error per §7 —
// the caller treats it as fatal at startup.
func Load() (*Config, error) {
	cfg := &Config{
		Jitter: jitter.Config{
			JitterMS:       uint32(getEnvInt("TSENGINE_JITTER_MS", 0)),
			MaxBufferBytes: getEnvUint64("TSENGINE_JITTER_MAX_BUFFER_BYTES", 4*1024*1024),
		},
		Pacer: pacer.Config{
			Mode:           getEnvPacerMode("TSENGINE_PACER_MODE", pacer.ModeAuto),
			TargetBPS:      getEnvUint64("TSENGINE_PACER_TARGET_BPS", 0),
			AssumedBPS:     getEnvUint64("TSENGINE_PACER_ASSUMED_BPS", 6_000_000),
			TickMS:         uint32(getEnvInt("TSENGINE_PACER_TICK_MS", 10)),
			NullStuffing:   getEnvBoolOrNumeric("TSENGINE_PACER_NULL_STUFFING", true),
			MinFillMS:      uint32(getEnvInt("TSENGINE_PACER_MIN_FILL_MS", 0)),
			TargetFillMS:   uint32(getEnvInt("TSENGINE_PACER_TARGET_FILL_MS", 0)),
			MaxBufferBytes: getEnvUint64("TSENGINE_PACER_MAX_BUFFER_BYTES", 16*1024*1024),
		},
		HLS: hls.Config{
			Path:           getEnv("TSENGINE_HLS_PATH", ""),
			PlaylistName:   getEnv("TSENGINE_HLS_PLAYLIST_NAME", "index.m3u8"),
			SegmentPrefix:  getEnv("TSENGINE_HLS_SEGMENT_PREFIX", "segment"),
			BaseURL:        getEnv("TSENGINE_HLS_BASE_URL", ""),
			TSExtension:    getEnv("TSENGINE_HLS_TS_EXTENSION", "ts"),
			TargetDuration: getEnvInt("TSENGINE_HLS_TARGET_DURATION", 6),
			Window:         getEnvInt("TSENGINE_HLS_WINDOW", 5),
			Cleanup:        getEnvInt("TSENGINE_HLS_CLEANUP", 10),
			UseWall:        getEnvBool("TSENGINE_HLS_USE_WALL", true),
			RoundDuration:  getEnvBool("TSENGINE_HLS_ROUND_DURATION", false),
			PassData:       getEnvBool("TSENGINE_HLS_PASS_DATA", true),
			Naming:         getEnvNamingMode("TSENGINE_HLS_NAMING", hls.NamingSequence),
		},
		GC: eventloop.GCOptions{
			FullCollectInterval: time.Duration(getEnvInt("TSENGINE_GC_FULL_MS", 1000)) * time.Millisecond,
			StepInterval:        time.Duration(getEnvInt("TSENGINE_GC_STEP_MS", 250)) * time.Millisecond,
			StepUnits:           getEnvInt("TSENGINE_GC_STEP_UNITS", 0),
		},
	}

	if cfg.HLS.Path == "" {
		return nil, fmt.Errorf("engineconfig: TSENGINE_HLS_PATH is required")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvUint64(key string, defaultVal uint64) uint64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvBoolOrNumeric resolves playout_null_stuffing's dual representation
// (Open Question (d)): the value may be the literal "true"/"false", or any
// integer where zero means false and nonzero means true.
func getEnvBoolOrNumeric(key string, defaultVal bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n != 0
	}
	return defaultVal
}

func getEnvPacerMode(key string, defaultVal pacer.Mode) pacer.Mode {
	switch getEnv(key, "") {
	case "cbr", "CBR":
		return pacer.ModeCBR
	case "auto", "AUTO", "":
		return defaultVal
	default:
		return defaultVal
	}
}

func getEnvNamingMode(key string, defaultVal hls.NamingMode) hls.NamingMode {
	switch getEnv(key, "") {
	case "pcr", "PCR", "hash":
		return hls.NamingPCR
	case "sequence", "SEQUENCE", "":
		return defaultVal
	default:
		return defaultVal
	}
}
