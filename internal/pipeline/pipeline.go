// Package pipeline implements the abstract stream graph (C4): stages are
// attached as children of a parent and receive packets via OnTS in DFS,
// registration order. Grounded on §4.4's module_stream_send/on_ts
// contract, the closest analogue in the teacher repo being
// internal/tuner's callback-style packet consumers (ts_inspector.go),
// generalized here into an explicit tree instead of a single linear
// consumer chain.
package pipeline

import "github.com/snapetech/tsengine/internal/mpegts"

// Stage is the capability every pipeline node implements: receive a
// packet, manage children, and tear down.
type Stage interface {
	// OnTS delivers one packet to this stage.
	OnTS(pkt *mpegts.Packet)
	// Attach registers child as a downstream recipient of Send.
	Attach(child Stage)
	// Detach removes child, if present.
	Detach(child Stage)
	// Destroy tears the stage down: detaches from its parent (if the
	// implementation tracks one) and cascades Destroy to every child.
	// Must be idempotent.
	Destroy()
}

// Base is an embeddable helper implementing the child-list and Send/
// Attach/Detach/Destroy mechanics shared by every concrete stage. Concrete
// stages embed Base and implement their own OnTS.
type Base struct {
	children []Stage
}

// Send hands pkt to every attached child, synchronously, in registration
// order (§4.4 DFS dispatch).
func (b *Base) Send(pkt *mpegts.Packet) {
	for _, c := range b.children {
		c.OnTS(pkt)
	}
}

// Attach registers child as a downstream recipient.
func (b *Base) Attach(child Stage) {
	b.children = append(b.children, child)
}

// Detach removes the first occurrence of child, if present.
func (b *Base) Detach(child Stage) {
	for i, c := range b.children {
		if c == child {
			b.children = append(b.children[:i], b.children[i+1:]...)
			return
		}
	}
}

// DestroyChildren cascades Destroy to every attached child and clears the
// child list. Concrete stages call this from their own Destroy after
// releasing their own resources (file handles, ring buffers, timers).
func (b *Base) DestroyChildren() {
	for _, c := range b.children {
		c.Destroy()
	}
	b.children = nil
}

// Children returns the current child list. Used by tests and by stages
// that need to introspect their own graph (e.g. health snapshotting).
func (b *Base) Children() []Stage {
	return b.children
}
