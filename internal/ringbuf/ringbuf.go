// Package ringbuf implements the fixed-capacity packet ring shared by the
// jitter buffer (C6) and the playout pacer (C7): a head/tail/count array of
// mpegts.Packet slots plus a parallel per-slot timestamp array, with a
// drop-oldest backpressure policy on overflow.
//
// Grounded on _examples/original_source/modules/mpegts/jitter.c's and
// modules/mpegts/playout.c's ring handling, which both inline the same
// head/tail/count bookkeeping independently; this package unifies it into
// one reusable type per SPEC_FULL.md's "concrete types" notes.
package ringbuf

import "github.com/snapetech/tsengine/internal/mpegts"

// Ring is a fixed-capacity circular buffer of packets, each tagged with a
// caller-defined uint64 timestamp (PCR-derived microseconds, wall-clock
// microseconds, or any other monotonically meaningful unit the caller
// chooses).
type Ring struct {
	pkt  []mpegts.Packet
	ts   []uint64
	head int
	tail int
	n    int
}

// New creates a ring with room for capacity packets. Capacity must be > 0.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{
		pkt: make([]mpegts.Packet, capacity),
		ts:  make([]uint64, capacity),
	}
}

// Cap returns the ring's fixed capacity.
func (r *Ring) Cap() int { return len(r.pkt) }

// Len returns the number of packets currently buffered.
func (r *Ring) Len() int { return r.n }

// Full reports whether the ring is at capacity.
func (r *Ring) Full() bool { return r.n == len(r.pkt) }

// Empty reports whether the ring holds no packets.
func (r *Ring) Empty() bool { return r.n == 0 }

// Push appends a packet at the tail. If the ring is full, the oldest
// packet (at head) is dropped to make room and Push reports dropped=true —
// the drop-oldest-on-overflow backpressure policy (§4.6/§4.7 P11).
func (r *Ring) Push(pkt *mpegts.Packet, ts uint64) (dropped bool) {
	if r.Full() {
		r.head = (r.head + 1) % len(r.pkt)
		r.n--
		dropped = true
	}
	r.pkt[r.tail] = *pkt
	r.ts[r.tail] = ts
	r.tail = (r.tail + 1) % len(r.pkt)
	r.n++
	return dropped
}

// Peek returns a pointer to the packet at head and its timestamp, without
// removing it. Returns nil, 0, false if the ring is empty.
func (r *Ring) Peek() (*mpegts.Packet, uint64, bool) {
	if r.Empty() {
		return nil, 0, false
	}
	return &r.pkt[r.head], r.ts[r.head], true
}

// Pop removes and returns the packet at head. Returns nil, 0, false if the
// ring is empty.
func (r *Ring) Pop() (*mpegts.Packet, uint64, bool) {
	if r.Empty() {
		return nil, 0, false
	}
	pkt := r.pkt[r.head]
	ts := r.ts[r.head]
	r.head = (r.head + 1) % len(r.pkt)
	r.n--
	return &pkt, ts, true
}

// Reset drops all buffered packets without reallocating.
func (r *Ring) Reset() {
	r.head, r.tail, r.n = 0, 0, 0
}
