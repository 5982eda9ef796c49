// Package metrics exposes the pipeline's per-stage Stats() snapshots as
// Prometheus gauges, giving the teacher's previously-unused
// prometheus/client_golang dependency a concrete home: one GaugeFunc per
// wire-stable stat name from §4.6 (jitter), §4.7 (pacer), and §4.8 (hls).
//
// Grounded on the pack's other_examples ffmpeg runner
// (promauto.NewCounterVec/NewCounter usage pattern) and on
// internal/health's Stage wrapper for collecting each stage's Stats() map
// without requiring a shared Go interface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tsengine"

// Registry wraps a prometheus.Registry. RegisterStage is called once per
// stage at pipeline-build time; registering the same stage and key twice
// panics, as promauto rejects duplicate collectors.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates an empty registry. Callers expose it over HTTP with
// promhttp.HandlerFor(r.Prometheus(), promhttp.HandlerOpts{}).
func NewRegistry() *Registry {
	return &Registry{reg: prometheus.NewRegistry()}
}

// Prometheus returns the underlying registry for wiring into an HTTP handler.
func (r *Registry) Prometheus() *prometheus.Registry { return r.reg }

// RegisterStage wires every key in keys as a GaugeFunc named
// "tsengine_<stage>_<key>", reading the current value from statsFn at
// scrape time. A key statsFn never returns reports 0 rather than erroring,
// since Stats() is a best-effort snapshot, not a contract that every key is
// always present.
func (r *Registry) RegisterStage(stage string, statsFn func() map[string]float64, keys ...string) {
	factory := promauto.With(r.reg)
	for _, key := range keys {
		key := key
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: stage,
			Name:      key,
			Help:      "tsengine " + stage + " " + key + " (see design doc for the owning stage's Stats() contract)",
		}, func() float64 {
			if statsFn == nil {
				return 0
			}
			return statsFn()[key]
		})
	}
}

// JitterKeys are the stat names internal/jitter.Stage.Stats() reports.
var JitterKeys = []string{"buffer_target_ms", "buffer_underruns_total", "buffer_fill_ms"}

// PacerKeys are the stat names internal/pacer.Stage.Stats() reports.
var PacerKeys = []string{
	"playout_enabled", "target_kbps", "current_kbps", "buffer_fill_ms",
	"buffer_target_ms", "buffer_bytes", "null_packets_total",
	"underruns_total", "underrun_ms_total", "drops_total",
}

// HLSKeys are the stat names internal/hls.Stage.Stats() reports.
var HLSKeys = []string{"segments_on_disk", "playlist_target_seconds", "segment_packets", "current_seq"}
