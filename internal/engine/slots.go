package engine

import "github.com/loomkit/loom/internal/dom"

// slotKind identifies the closed set of state slot variants.
type slotKind int

const (
	slotValue slotKind = iota + 1
	slotRef
	slotEffect
)

func (k slotKind) String() string {
	switch k {
	case slotValue:
		return "state"
	case slotRef:
		return "ref"
	case slotEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// queuedWrite is one pending state write. Writes carry the lane of the
// context that issued them; a pass at lane L folds writes at lanes at least
// as urgent as L and leaves the rest queued for a later pass.
type queuedWrite struct {
	lane     Lane
	fn       func(prev dom.Value) dom.Value
	consumed bool
}

// slot is one persistent state cell, matched by hook call order. The
// committed fields (value, deps, cleanup) change only at commit; the wip
// fields are recomputed by every build and simply overwritten when an
// in-flight pass is discarded.
type slot struct {
	kind slotKind

	// Value slots.
	value  dom.Value
	queue  []queuedWrite
	wip    dom.Value
	hasWip bool

	// Ref slots.
	ref *dom.RefCell

	// Effect slots: committed registration.
	fn         dom.EffectFunc
	deps       []dom.Value
	cleanup    dom.CleanupFunc
	registered bool

	// Effect slots: in-flight registration.
	wipFn   dom.EffectFunc
	wipDeps []dom.Value
	due     bool
}

// commitValue promotes the in-flight value and drops the writes it
// consumed. Writes queued after the fold (unconsumed) survive for the next
// pass.
func (s *slot) commitValue() {
	if !s.hasWip {
		return
	}
	s.value = s.wip
	s.wip = nil
	s.hasWip = false

	kept := s.queue[:0]
	for _, qw := range s.queue {
		if !qw.consumed {
			kept = append(kept, qw)
		}
	}
	// Zero the tail so dropped updaters are collectable.
	for i := len(kept); i < len(s.queue); i++ {
		s.queue[i] = queuedWrite{}
	}
	s.queue = kept
}

// commitEffect promotes the in-flight registration. Returns whether the
// effect is due to fire this flush.
func (s *slot) commitEffect() bool {
	if s.wipFn == nil && !s.registered {
		return false
	}
	if s.wipFn != nil {
		s.fn = s.wipFn
		s.deps = s.wipDeps
		s.registered = true
		s.wipFn = nil
		s.wipDeps = nil
	}
	due := s.due
	s.due = false
	return due
}

// slotBank is the ordered slot list owned by one component work node,
// shared between the node and its alternate. The sequence of slot kinds is
// fixed after the first completed build; any deviation on a later build is
// a StateConsistencyError.
type slotBank struct {
	slots  []*slot
	sealed bool

	// capturedErr holds the most recent descendant build error captured by
	// this node when it acts as an error boundary. It persists across
	// passes so the boundary keeps rendering its fallback; it is discarded
	// with the bank when the boundary remounts under a new key.
	capturedErr error
}

// at returns the slot at cursor, creating it while the bank is unsealed.
// Returns a non-nil violation message when the access breaks the slot
// sequence contract.
func (b *slotBank) at(cursor int, kind slotKind) (*slot, string) {
	if cursor < len(b.slots) {
		s := b.slots[cursor]
		if s.kind != kind {
			return nil, "slot kind changed from " + s.kind.String() + " to " + kind.String()
		}
		return s, ""
	}

	if b.sealed {
		return nil, "slot count grew beyond previous build (conditional hook call?)"
	}

	s := &slot{kind: kind}
	b.slots = append(b.slots, s)
	return s, ""
}
