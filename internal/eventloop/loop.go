// Package eventloop implements the single-threaded cooperative scheduler
// (C3): one iteration drains I/O, timers, and cross-thread messages, runs
// the SIGHUP hook if pending, paces GC, and sleeps when idle.
//
// Grounded on _examples/original_source/main.c's `while(true)` loop body.
package eventloop

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/snapetech/tsengine/internal/clock"
	"github.com/snapetech/tsengine/internal/timerwheel"
)

// GCOptions mirror the script host globals from §6: read periodically
// (every 2s wall-clock, GCTuneRefresh) and clamped the same way.
type GCOptions struct {
	FullCollectInterval time.Duration // clamped 100ms..60s
	StepInterval        time.Duration // clamped 50ms..10s
	StepUnits           int           // clamped 0..10000
}

// DefaultGCOptions matches the C core's compiled-in defaults.
func DefaultGCOptions() GCOptions {
	return GCOptions{
		FullCollectInterval: time.Second,
		StepInterval:        250 * time.Millisecond,
		StepUnits:           0,
	}
}

// Clamp enforces the §6 bounds on GC cadence knobs.
func (g GCOptions) Clamp() GCOptions {
	clampDur := func(d, lo, hi time.Duration) time.Duration {
		if d < lo {
			return lo
		}
		if d > hi {
			return hi
		}
		return d
	}
	g.FullCollectInterval = clampDur(g.FullCollectInterval, 100*time.Millisecond, 60*time.Second)
	g.StepInterval = clampDur(g.StepInterval, 50*time.Millisecond, 10*time.Second)
	if g.StepUnits < 0 {
		g.StepUnits = 0
	}
	if g.StepUnits > 10000 {
		g.StepUnits = 10000
	}
	return g
}

// GCTuneRefresh is how often the loop re-reads GC cadence knobs from its
// source (§4.3 step 6: "every 2s wall-clock").
const GCTuneRefresh = 2 * time.Second

// IdleSleep is the amount of time the loop sleeps when a full iteration did
// no work (§4.3 step 7).
const IdleSleep = time.Millisecond

// Tick is one non-blocking unit of work a collaborator performs on behalf
// of the loop; it reports whether it did anything (sets idle=false).
type Tick func() (didWork bool)

// Loop composes the timer core with pluggable I/O/thread ticks and signal
// flags, and drives GC pacing. The out-of-scope collaborators named in §1
// (sockets, the script host, the thread-core mailbox) are represented as
// Tick hooks so the core stays decoupled from their concrete
// implementation while remaining fully exercised by tests.
type Loop struct {
	clk    clock.Clock
	timers *timerwheel.Core

	// IOTick drains ready I/O events (asc_event_core_tick). Optional.
	IOTick Tick
	// ThreadTick drains the cross-thread mailbox (asc_thread_core_tick). Optional.
	ThreadTick Tick

	// SigHUP is polled once per iteration (§4.3 step 5); when true it is
	// cleared and OnSigHUP is invoked.
	SigHUP *atomic.Bool
	// OnSigHUP is the script-level reload hook; nil is allowed (no-op).
	OnSigHUP func()

	// GCSource is consulted every GCTuneRefresh for fresh cadence knobs;
	// nil means DefaultGCOptions() forever.
	GCSource func() GCOptions
	// GC performs a garbage collection pass; defaults to runtime.GC().
	// Overridable so tests can count invocations instead of paying for a
	// real collection.
	GC func()

	gcOpts       GCOptions
	lastGCTuneUS uint64
	lastGCStepUS uint64
	lastGCFullUS uint64
	gcOptsInit   bool
}

// New builds a Loop around clk and a fresh timer core, returning both so
// callers can register stage timers before Run starts.
func New(clk clock.Clock) (*Loop, *timerwheel.Core) {
	timers := timerwheel.NewCore(clk)
	l := &Loop{
		clk:    clk,
		timers: timers,
		GC:     runtime.GC,
	}
	return l, timers
}

// Timers returns the loop's timer core (for stages constructed after New).
func (l *Loop) Timers() *timerwheel.Core { return l.timers }

// Step runs exactly one loop iteration (§4.3 steps 1-7 minus the sleep,
// which Run applies based on the returned idle flag; Step is exported so
// tests and alternate hosts can single-step deterministically). It reports
// whether the iteration did no work, so Run knows whether to sleep.
func (l *Loop) Step() (idle bool) {
	idle = true

	if l.IOTick != nil {
		if l.IOTick() {
			idle = false
		}
	}

	if l.timers.Tick() > 0 {
		idle = false
	}

	if l.ThreadTick != nil {
		if l.ThreadTick() {
			idle = false
		}
	}

	if l.SigHUP != nil && l.SigHUP.Load() {
		l.SigHUP.Store(false)
		if l.OnSigHUP != nil {
			l.OnSigHUP()
			idle = false
		}
	}

	l.paceGC()
	l.idleTail(idle)
	return idle
}

// Run executes Step in a loop until ctx is cancelled, sleeping IdleSleep
// only on an idle iteration and looping immediately otherwise (§4.3 step 7:
// "if idle, sleep 1 ms; else loop immediately").
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if l.Step() {
			time.Sleep(IdleSleep)
		}
	}
}

func (l *Loop) paceGC() {
	now := l.clk.NowUS()
	if !l.gcOptsInit {
		l.gcOpts = DefaultGCOptions()
		l.lastGCTuneUS = now
		l.lastGCStepUS = now
		l.lastGCFullUS = now
		l.gcOptsInit = true
	}

	if uint64(GCTuneRefresh.Microseconds()) <= now-l.lastGCTuneUS {
		l.lastGCTuneUS = now
		if l.GCSource != nil {
			l.gcOpts = l.GCSource().Clamp()
		}
	}

	if l.gcOpts.StepUnits > 0 && now-l.lastGCStepUS >= uint64(l.gcOpts.StepInterval.Microseconds()) {
		l.lastGCStepUS = now
		if l.GC != nil {
			l.GC()
		}
	}
}

// idleTail performs the idle-only full collection (§4.3 step 6, second
// half: "when the loop is idle, if gc_full_collect_interval elapsed,
// perform a full collection").
func (l *Loop) idleTail(idle bool) {
	if !idle {
		return
	}
	now := l.clk.NowUS()
	if now-l.lastGCFullUS >= uint64(l.gcOpts.FullCollectInterval.Microseconds()) {
		l.lastGCFullUS = now
		if l.GC != nil {
			l.GC()
		}
	}
}
