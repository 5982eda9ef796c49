package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snapetech/tsengine/internal/clock"
)

func TestStepFiresTimerAndMarksBusy(t *testing.T) {
	clk := clock.NewFake(0)
	l, timers := New(clk)

	fired := 0
	timers.ScheduleOnce(1_000, func() { fired++ })

	clk.Advance(2 * time.Millisecond)
	if idle := l.Step(); idle {
		t.Fatal("Step() idle = true, want false when a timer fired")
	}

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
}

func TestStepReturnsIdleWhenNothingHappened(t *testing.T) {
	clk := clock.NewFake(0)
	l, _ := New(clk)

	if idle := l.Step(); !idle {
		t.Fatal("Step() idle = false, want true when no IOTick/ThreadTick/timer/SigHUP fired")
	}
}

func TestRunLoopsImmediatelyWhileBusyThenStopsOnCancel(t *testing.T) {
	clk := clock.NewFake(0)
	l, _ := New(clk)

	var ticks atomic.Int64
	l.IOTick = func() bool {
		n := ticks.Add(1)
		return n <= 1000 // stays busy (no sleep) for the first 1000 iterations
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	// A tight busy loop should blow past 1000 iterations well before an
	// IdleSleep-gated loop could: 1000 * IdleSleep would take ~1s.
	deadline := time.After(200 * time.Millisecond)
	for {
		if ticks.Load() > 1000 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("Run did not loop immediately while busy: only %d ticks after 200ms", ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestStepRunsIOAndThreadTicks(t *testing.T) {
	clk := clock.NewFake(0)
	l, _ := New(clk)

	ioRan, threadRan := false, false
	l.IOTick = func() bool { ioRan = true; return true }
	l.ThreadTick = func() bool { threadRan = true; return true }

	l.Step()
	if !ioRan || !threadRan {
		t.Fatalf("ioRan=%v threadRan=%v, want both true", ioRan, threadRan)
	}
}

func TestStepSigHUPInvokesHookOnce(t *testing.T) {
	clk := clock.NewFake(0)
	l, _ := New(clk)

	var flag atomic.Bool
	l.SigHUP = &flag
	calls := 0
	l.OnSigHUP = func() { calls++ }

	l.SigHUP.Store(true)
	l.Step()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if l.SigHUP.Load() {
		t.Fatal("SigHUP flag should be cleared after Step")
	}

	l.Step()
	if calls != 1 {
		t.Fatalf("calls = %d after second Step with no new signal, want 1", calls)
	}
}

func TestGCPacingClampsAndRefreshesOnSchedule(t *testing.T) {
	clk := clock.NewFake(0)
	l, _ := New(clk)

	gcCalls := 0
	l.GC = func() { gcCalls++ }
	l.GCSource = func() GCOptions {
		return GCOptions{
			FullCollectInterval: 10 * time.Millisecond,
			StepInterval:        1 * time.Millisecond,
			StepUnits:           1,
		}
	}

	l.Step() // primes gcOpts with defaults (2s refresh hasn't elapsed yet)
	clk.Advance(3 * time.Second)
	l.Step() // refresh interval elapsed: picks up the source's knobs, clamped (1ms step -> 50ms, 10ms full -> 100ms); step fires
	if gcCalls == 0 {
		t.Fatal("expected at least one GC pass once GCSource supplies a short step interval")
	}
	if l.gcOpts.StepInterval != 50*time.Millisecond || l.gcOpts.FullCollectInterval != 100*time.Millisecond {
		t.Fatalf("gcOpts = %+v, want StepInterval clamped to 50ms and FullCollectInterval to 100ms", l.gcOpts)
	}
}
