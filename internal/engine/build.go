package engine

import (
	"fmt"

	"github.com/loomkit/loom/internal/dom"
)

// renderCtx is the hook surface bound to one component work node for the
// duration of one build. It is created fresh per invocation - there is no
// ambient "current component" global - and invalidated when the build
// returns.
//
// Hook methods panic with *StateConsistencyError on slot sequence
// violations; buildComponent recovers the panic into the pass error.
type renderCtx struct {
	e      *Engine
	root   *Root
	node   *workNode
	lane   Lane
	cursor int
	done   bool
}

var _ dom.Hooks = (*renderCtx)(nil)

// buildComponent invokes a component function exactly once with slot access
// rebound to the node's bank and the cursor reset to zero.
//
// A recovered panic becomes a ComponentPanicError (boundary-recoverable);
// a slot sequence violation becomes a StateConsistencyError (fatal to the
// pass). Either way the in-flight tree is never committed partially.
func (e *Engine) buildComponent(root *Root, node *workNode, lane Lane) (out dom.Node, err error) {
	if node.fn == nil {
		return dom.Node{}, fmt.Errorf("component %q has no render function", node.typ)
	}

	rc := &renderCtx{e: e, root: root, node: node, lane: lane}
	defer func() {
		rc.done = true
		if r := recover(); r != nil {
			if se, ok := r.(*StateConsistencyError); ok {
				err = se
				return
			}
			err = &ComponentPanicError{Component: node.typ, Value: r}
		}
	}()

	props := node.props
	if node.boundary && node.bank.capturedErr != nil {
		// Boundary re-render: expose the captured descendant error.
		props = make(dom.Props, len(node.props)+1)
		for k, v := range node.props {
			props[k] = v
		}
		props["error"] = dom.String(node.bank.capturedErr.Error())
	}

	out = node.fn(rc, props)

	if node.bank.sealed && rc.cursor != len(node.bank.slots) {
		return dom.Node{}, &StateConsistencyError{
			Component: node.typ,
			Slot:      rc.cursor,
			Message: fmt.Sprintf("build used %d slots, previous build used %d",
				rc.cursor, len(node.bank.slots)),
		}
	}
	node.bank.sealed = true

	return out, nil
}

// nextSlot advances the cursor and returns the slot at the old position,
// creating it on the first build. created is true exactly once per slot
// position, so lazy initializers run exactly once.
func (rc *renderCtx) nextSlot(kind slotKind) (s *slot, created bool) {
	if rc.done {
		panic(&StateConsistencyError{
			Component: rc.node.typ,
			Slot:      rc.cursor,
			Message:   "hook called outside the owning build",
		})
	}

	bank := rc.node.bank
	created = rc.cursor >= len(bank.slots) && !bank.sealed

	s, violation := bank.at(rc.cursor, kind)
	if violation != "" {
		panic(&StateConsistencyError{
			Component: rc.node.typ,
			Slot:      rc.cursor,
			Message:   violation,
		})
	}

	rc.cursor++
	return s, created
}

// State implements dom.Hooks.
func (rc *renderCtx) State(initial dom.Value) (dom.Value, dom.Setter) {
	return rc.state(func() dom.Value { return initial })
}

// StateLazy implements dom.Hooks.
func (rc *renderCtx) StateLazy(init func() dom.Value) (dom.Value, dom.Setter) {
	return rc.state(init)
}

func (rc *renderCtx) state(init func() dom.Value) (dom.Value, dom.Setter) {
	s, created := rc.nextSlot(slotValue)
	if created {
		s.value = init()
	}

	v := rc.foldWrites(s)
	return v, setter{e: rc.e, root: rc.root, s: s}
}

// foldWrites computes the slot's value for this build: the committed value
// with every queued write at this pass's lane or more urgent applied in
// enqueue order. Folded writes are marked consumed; commit removes them.
// Less urgent writes stay queued and rebase onto the committed value in a
// later pass.
//
// Updater functions run outside the engine lock - an updater that issues a
// write of its own must not deadlock, it just queues like any other write.
func (rc *renderCtx) foldWrites(s *slot) dom.Value {
	e := rc.e

	e.mu.Lock()
	v := s.value
	var apply []func(dom.Value) dom.Value
	for i := range s.queue {
		s.queue[i].consumed = s.queue[i].lane <= rc.lane
		if s.queue[i].consumed {
			apply = append(apply, s.queue[i].fn)
		}
	}
	e.mu.Unlock()

	for _, fn := range apply {
		v = fn(v)
	}

	// wip fields are only touched by the single worker.
	s.wip = v
	s.hasWip = true
	return v
}

// Ref implements dom.Hooks.
func (rc *renderCtx) Ref(initial dom.Value) *dom.RefCell {
	s, created := rc.nextSlot(slotRef)
	if created {
		s.ref = &dom.RefCell{Current: initial}
	}
	return s.ref
}

// Effect implements dom.Hooks.
func (rc *renderCtx) Effect(fn dom.EffectFunc, deps ...dom.Value) {
	s, _ := rc.nextSlot(slotEffect)
	s.wipFn = fn
	s.wipDeps = deps
	s.due = !s.registered || !dom.EqualSeq(s.deps, deps)
}

// Children implements dom.Hooks.
func (rc *renderCtx) Children() []dom.Node {
	return rc.node.desc.Children
}

// setter queues writes for one value slot at the lane of the issuing
// context. Writes never apply synchronously; their effect is only visible
// through the next committed pass of the owning root.
type setter struct {
	e    *Engine
	root *Root
	s    *slot
}

var _ dom.Setter = setter{}

// Set implements dom.Setter.
func (st setter) Set(v dom.Value) {
	st.enqueue(func(dom.Value) dom.Value { return v })
}

// Update implements dom.Setter.
func (st setter) Update(fn func(prev dom.Value) dom.Value) {
	st.enqueue(fn)
}

func (st setter) enqueue(fn func(dom.Value) dom.Value) {
	e := st.e

	e.mu.Lock()
	lane := e.currentLane
	st.s.queue = append(st.s.queue, queuedWrite{lane: lane, fn: fn})
	e.mu.Unlock()

	e.dispatch(trigger{typ: triggerWrite, root: st.root, lane: lane})
}
