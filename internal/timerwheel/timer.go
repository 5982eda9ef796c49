// Package timerwheel implements the timer core (C2): a min-heap of timers
// keyed by next-shot time, drained once per event-loop iteration.
//
// Grounded on _examples/original_source/core/timer.c (asc_timer_t /
// asc_timer_core_loop), translated from the C min-heap to Go's
// container/heap, the idiomatic priority-queue primitive for this.
package timerwheel

import (
	"container/heap"

	"github.com/snapetech/tsengine/internal/clock"
)

// Callback is invoked when a timer fires. It must not block and must not
// call Core.Tick reentrantly.
type Callback func()

// Timer is an entry in the heap. Callers never touch fields directly; a
// *Timer is an opaque handle, mirroring asc_timer_t*.
type Timer struct {
	callback Callback

	interval uint64 // microseconds; 0 means one-shot
	nextShot uint64 // microseconds

	index  int // heap_index
	active bool

	inCallback       bool
	freeAfterCallback bool
}

// Core owns the timer heap for one event loop.
type Core struct {
	clk  clock.Clock
	heap timerHeap

	// nextDue caches heap[0].nextShot (0 if empty), mirroring
	// timer_next_due's fast-path short-circuit in Tick.
	nextDue uint64
}

// NewCore creates an empty timer core driven by clk.
func NewCore(clk clock.Clock) *Core {
	c := &Core{clk: clk}
	heap.Init(&c.heap)
	return c
}

// SchedulePeriodic inserts a timer firing every intervalUS microseconds,
// first firing at now+intervalUS. Equivalent to asc_timer_init.
func (c *Core) SchedulePeriodic(intervalUS uint64, cb Callback) *Timer {
	t := &Timer{
		callback: cb,
		interval: intervalUS,
		nextShot: c.clk.NowUS() + intervalUS,
	}
	c.push(t)
	return t
}

// ScheduleOnce inserts a one-shot timer firing once after delayUS
// microseconds; it is freed (dropped) after firing. Equivalent to
// asc_timer_one_shot.
func (c *Core) ScheduleOnce(delayUS uint64, cb Callback) *Timer {
	t := &Timer{
		callback: cb,
		interval: 0,
		nextShot: c.clk.NowUS() + delayUS,
	}
	c.push(t)
	return t
}

// Cancel detaches t from the heap. If t is currently executing its own
// callback, the free is deferred until the callback returns (P2);
// otherwise t is dropped immediately. Cancel(nil) is a no-op.
func (c *Core) Cancel(t *Timer) {
	if t == nil {
		return
	}
	t.callback = nil
	if t.active {
		heap.Remove(&c.heap, t.index)
		c.updateNextDue()
	}
	if t.inCallback {
		t.freeAfterCallback = true
		return
	}
	// already dropped; nothing else to release in Go
}

// Tick drains every timer whose nextShot is <= now and returns how many
// callbacks fired (0 means the loop can consider this tick idle). Periodic
// timers are rescheduled for now+interval before their callback runs (P3:
// drift never goes negative, any lateness in Tick itself is absorbed into
// the next interval). One-shot timers are dropped after firing.
func (c *Core) Tick() int {
	fired := 0
	now := c.clk.NowUS()
	if c.nextDue != 0 && now < c.nextDue {
		return fired
	}

	for c.heap.Len() > 0 {
		now = c.clk.NowUS()
		t := c.heap[0]
		if now < t.nextShot {
			break
		}

		heap.Pop(&c.heap)
		c.updateNextDue()

		if t.callback == nil {
			continue
		}

		t.inCallback = true

		if t.interval == 0 {
			t.callback()
			t.inCallback = false
			fired++
			continue
		}

		t.nextShot = now + t.interval
		t.callback()
		t.inCallback = false
		fired++

		if t.freeAfterCallback || t.callback == nil {
			continue
		}
		c.push(t)
	}
	return fired
}

// Len reports the number of active timers, for tests and diagnostics.
func (c *Core) Len() int { return c.heap.Len() }

func (c *Core) push(t *Timer) {
	t.freeAfterCallback = false
	heap.Push(&c.heap, t)
	c.updateNextDue()
}

func (c *Core) updateNextDue() {
	if c.heap.Len() > 0 {
		c.nextDue = c.heap[0].nextShot
	} else {
		c.nextDue = 0
	}
}

// timerHeap implements heap.Interface over *Timer, keyed by nextShot.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].nextShot < h[j].nextShot }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	t.active = true
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = 0
	t.active = false
	*h = old[:n-1]
	return t
}
