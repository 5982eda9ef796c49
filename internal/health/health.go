// Package health assembles an operator-facing snapshot of the running
// pipeline, replacing the teacher's outbound HTTP probes
// (CheckProvider/CheckEndpoints) with the equivalent question for an
// in-process streaming core: "is the pipeline keeping up" — answered by
// each stage's own Stats() (buffer fill, underruns, drops, segment
// counts), not an external endpoint.
package health

// Stage names one pipeline stage's stats function for snapshotting. The
// core has no single "stage" interface with Stats() (only jitter, pacer,
// and hls happen to expose one, each with its own field set), so Snapshot
// takes the function directly rather than requiring a common interface.
type Stage struct {
	Name  string
	Stats func() map[string]float64
}

// Snapshot collects every stage's Stats() into one report keyed by stage
// name, mirroring the teacher's "collect + report one document" shape
// (CheckProvider/CheckEndpoints returning a single pass/fail), now
// reporting gauges instead of a pass/fail verdict.
func Snapshot(stages ...Stage) map[string]any {
	out := make(map[string]any, len(stages))
	for _, s := range stages {
		if s.Stats == nil {
			continue
		}
		out[s.Name] = s.Stats()
	}
	return out
}
