package dom

// ComponentFunc is a component definition: a pure function from props to a
// descriptor subtree. It must call hook methods unconditionally and in a
// fixed order across invocations for the same tree position - slots are
// matched by call order, not by name.
type ComponentFunc func(ctx Hooks, props Props) Node

// Hooks is the state-slot surface handed to a component function during a
// build. It is implemented by the engine's render context and rebound to the
// owning work node before every invocation; holding it beyond the call is
// invalid.
type Hooks interface {
	// State returns the slot's current value and a setter. On the first pass
	// for this slot position the value is initial; afterwards it is the
	// committed value with any pending writes applied.
	State(initial Value) (Value, Setter)

	// StateLazy is State with a lazily evaluated default: init runs exactly
	// once, on the first pass for this slot position.
	StateLazy(init func() Value) (Value, Setter)

	// Ref returns a mutable cell that persists across passes. Reading or
	// writing the cell never schedules work.
	Ref(initial Value) *RefCell

	// Effect registers a side effect to run after commit when deps differ
	// elementwise from the previous pass (or on the first pass). The
	// previous registration's cleanup, if any, runs first. Zero deps means
	// the effect fires on the first commit only.
	Effect(fn EffectFunc, deps ...Value)

	// Children returns the descriptor children passed to this component by
	// its parent, for components that nest arbitrary content.
	Children() []Node
}

// Setter queues state writes for the owning slot. Writes are never applied
// synchronously: they become visible only through the next committed pass.
type Setter interface {
	// Set queues a literal value write.
	Set(v Value)

	// Update queues a functional write computed from the previous value at
	// the time the next pass builds.
	Update(fn func(prev Value) Value)
}

// EffectFunc is a deferred side effect. The returned cleanup (may be nil)
// runs before the effect re-fires and when the owning node is deleted.
type EffectFunc func() CleanupFunc

// CleanupFunc tears down a previously fired effect.
type CleanupFunc func()

// RefCell is a mutable box that survives across render passes.
type RefCell struct {
	Current Value
}
