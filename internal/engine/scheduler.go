package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loomkit/loom/internal/dom"
)

// DefaultMaxUnits is the default unit budget per render pass. It bounds
// runaway component loops (a build whose output keeps growing the pending
// tree) rather than legitimate deep trees; raise it via WithMaxUnits for
// unusually large scenes.
const DefaultMaxUnits = 10000

// rootContainerType is the synthetic host type of the invisible work node
// above every mounted tree. Its id is the surface container id.
const rootContainerType = "#root"

// Engine is the cooperative single-worker reconciliation loop.
//
// Thread-safety model:
//   - Dispatch-side calls (Mount, Root.Update, setters, Batch, AtLane)
//     are safe from any goroutine: they only queue
//   - Flush()/Run() must be called from exactly one goroutine; all tree
//     mutation, diffing, committing, and effect flushing happen there
//
// INVARIANTS:
//   - At most one render pass is Building at any time
//   - Committing and effect flushing never yield
//   - A discarded in-flight pass leaves committed state untouched
type Engine struct {
	surface  Surface
	clock    *Clock
	tokens   PassTokenGenerator
	queue    *triggerQueue
	sink     CommitSink
	maxUnits int

	onPassError func(root *Root, err error)

	mu          sync.Mutex
	currentLane Lane
	batchDepth  int
	batched     []trigger
	roots       []*Root
}

// Option configures engine parameters.
type Option func(*Engine)

// WithMaxUnits sets the unit budget per render pass.
func WithMaxUnits(n int) Option {
	return func(e *Engine) { e.maxUnits = n }
}

// WithPassTokens overrides the pass token generator (tests use
// NewFixedGenerator for deterministic journal rows and golden files).
func WithPassTokens(g PassTokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithClock supplies a pre-positioned clock, e.g. to resume seq numbering
// after a journal replay.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithCommitSink attaches a commit journal. Every successfully committed
// pass is appended; sink failures are logged, never fail the commit.
func WithCommitSink(s CommitSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithOnPassError registers a callback invoked from the work loop whenever
// a pass fails. The engine itself logs and continues, like any
// deterministic event loop should; retries are the trigger caller's call.
func WithOnPassError(fn func(root *Root, err error)) Option {
	return func(e *Engine) { e.onPassError = fn }
}

// New creates an Engine applying mutations to the given target surface.
func New(surf Surface, opts ...Option) *Engine {
	e := &Engine{
		surface:     surf,
		clock:       NewClock(),
		tokens:      UUIDv7Generator{},
		queue:       newTriggerQueue(),
		maxUnits:    DefaultMaxUnits,
		currentLane: LaneUserVisible,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the number of pending triggers. Useful for monitoring
// and tests.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Root is one mounted tree: a scheduling root with its own pending lanes,
// committed work-node tree, and in-flight alternate.
type Root struct {
	id        int64
	container int64
	engine    *Engine

	// desc is the latest mounted descriptor; guarded by engine.mu.
	desc    dom.Node
	hasDesc bool
	pending laneSet

	// Work-loop-only state.
	current   *workNode
	wip       *workNode
	nextUnit  *workNode
	passToken string
	err       error
}

// ID returns the root's stable identity.
func (r *Root) ID() int64 { return r.id }

// Err returns the error of the root's most recent failed pass, or nil if
// the last pass committed.
func (r *Root) Err() error {
	r.engine.mu.Lock()
	defer r.engine.mu.Unlock()
	return r.err
}

// Mount mounts a descriptor tree at the default surface container (id 0)
// and enqueues the initial render at the given lane.
func (e *Engine) Mount(desc dom.Node, lane Lane) *Root {
	return e.MountAt(0, desc, lane)
}

// MountAt mounts a descriptor tree at a specific surface container id.
// Distinct roots must use distinct containers.
func (e *Engine) MountAt(container int64, desc dom.Node, lane Lane) *Root {
	r := &Root{
		id:        e.clock.Next(),
		container: container,
		engine:    e,
		current:   &workNode{id: container, kind: dom.KindHost, typ: rootContainerType},
	}

	e.mu.Lock()
	e.roots = append(e.roots, r)
	e.mu.Unlock()

	e.dispatch(trigger{typ: triggerMount, root: r, lane: lane, desc: desc})
	return r
}

// Update replaces the root's descriptor - the trigger contract's "new
// input" case - and enqueues a pass at the given lane.
func (r *Root) Update(desc dom.Node, lane Lane) {
	r.engine.dispatch(trigger{typ: triggerMount, root: r, lane: lane, desc: desc})
}

// Batch runs fn with trigger dispatch deferred: all state writes and
// updates issued synchronously inside fn coalesce into at most one pending
// trigger per root and lane, so one batch produces at most one render pass.
func (e *Engine) Batch(fn func()) {
	e.mu.Lock()
	e.batchDepth++
	e.mu.Unlock()

	fn()

	e.mu.Lock()
	e.batchDepth--
	var flush []trigger
	if e.batchDepth == 0 {
		flush = e.batched
		e.batched = nil
	}
	e.mu.Unlock()

	for _, t := range flush {
		e.queue.Enqueue(t)
	}
}

// AtLane runs fn with the given lane as the triggering context: state
// writes issued synchronously inside fn queue at that lane.
func (e *Engine) AtLane(lane Lane, fn func()) {
	if !lane.Valid() {
		panic(fmt.Sprintf("engine: trigger lane %d out of range", int(lane)))
	}

	e.mu.Lock()
	prev := e.currentLane
	e.currentLane = lane
	e.mu.Unlock()

	fn()

	e.mu.Lock()
	e.currentLane = prev
	e.mu.Unlock()
}

// dispatch queues a trigger, coalescing inside an open batch: repeated
// write triggers for one root and lane collapse, and a newer mount
// descriptor replaces an older one.
//
// Descriptors install immediately, not at absorb time: the queue drains in
// lane order, so a later Update at a more urgent lane must not be
// overwritten by an earlier one sitting in a less urgent bucket. The last
// Update call wins regardless of lanes.
func (e *Engine) dispatch(t trigger) {
	if !t.lane.Valid() {
		panic(fmt.Sprintf("engine: trigger lane %d out of range", int(t.lane)))
	}

	e.mu.Lock()
	if t.typ == triggerMount {
		t.root.desc = t.desc
		t.root.hasDesc = true
	}
	if e.batchDepth > 0 {
		for i := range e.batched {
			if e.batched[i].root == t.root && e.batched[i].lane == t.lane {
				if t.typ == triggerMount {
					e.batched[i].typ = triggerMount
					e.batched[i].desc = t.desc
				}
				e.mu.Unlock()
				return
			}
		}
		e.batched = append(e.batched, t)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.queue.Enqueue(t)
}

// absorbTriggers drains the queue, folding triggers into per-root pending
// lane state. Descriptors were already installed at dispatch time.
func (e *Engine) absorbTriggers() {
	for {
		t, ok := e.queue.TryDequeue()
		if !ok {
			return
		}

		e.mu.Lock()
		t.root.pending.add(t.lane)
		e.mu.Unlock()
	}
}

// nextPendingRoot picks the most urgent dirty root: strict lane order
// first, mount order as the tie-break.
func (e *Engine) nextPendingRoot() (*Root, Lane, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var best *Root
	var bestLane Lane
	for _, r := range e.roots {
		lane, ok := r.pending.highest()
		if !ok {
			continue
		}
		if best == nil || lane < bestLane {
			best = r
			bestLane = lane
		}
	}
	return best, bestLane, best != nil
}

// highestPendingLane returns the most urgent pending lane across all roots.
func (e *Engine) highestPendingLane() (Lane, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var best Lane
	found := false
	for _, r := range e.roots {
		if lane, ok := r.pending.highest(); ok && (!found || lane < best) {
			best = lane
			found = true
		}
	}
	return best, found
}

// Step performs at most one render pass: the most urgent pending root is
// built, committed, and its effects flushed. Reports whether any work ran.
// An interrupted pass counts as work; its lane stays pending for the next
// Step.
//
// Must be called from the single worker goroutine.
func (e *Engine) Step(ctx context.Context) (bool, error) {
	e.absorbTriggers()

	r, lane, ok := e.nextPendingRoot()
	if !ok {
		return false, nil
	}

	err := e.renderRoot(ctx, r, lane)
	if err != nil {
		slog.Error("render pass failed",
			"error", err,
			"pass", r.passToken,
			"root", r.id,
			"lane", lane.String(),
		)
		e.mu.Lock()
		r.err = err
		e.mu.Unlock()
		if e.onPassError != nil {
			e.onPassError(r, err)
		}
	}
	return true, err
}

// Flush drains all pending work synchronously: passes are built, committed,
// and their effects flushed until no root is dirty. Returns the first pass
// error encountered (later roots still get their passes).
//
// Must be called from the single worker goroutine.
func (e *Engine) Flush(ctx context.Context) error {
	var firstErr error
	for {
		worked, err := e.Step(ctx)
		if !worked {
			return firstErr
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
}

// Run starts the blocking work loop: flush, wait for triggers, repeat.
// Blocks until the context is cancelled or Stop() is called.
//
// Must be called from exactly ONE goroutine. Pass errors are logged with
// full context and the loop continues - retries would make replay
// non-deterministic, so they are left to the trigger caller.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		if err := e.Flush(ctx); err != nil {
			// Already logged with pass context by Flush.
			_ = err
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine: the queue closes, which causes
// Run() to return once pending work drains.
func (e *Engine) Stop() {
	e.queue.Close()
}

// renderRoot drives one render pass for a root: Pending -> Building ->
// (Interrupted -> Building | Complete) -> Committing -> Committed.
//
// The root's pending lanes up to the pass lane are consumed when the pass
// starts, not when it commits: triggers absorbed mid-build (a write from an
// updater, an Update from another goroutine) re-dirty the root and get
// their own pass after this one, built or failed. An interrupted pass
// merges its consumed lanes back so the superseded work is retried after
// the urgent pass commits.
//
// Building yields between units: a more urgent trigger arriving mid-build
// discards the partially built alternate tree wholesale. Restarted passes
// re-enter their lane behind triggers that arrived in the meantime; strict
// lane order then enqueue order is the tie-break (committed output stays
// consistent because every pass builds from the committed root).
func (e *Engine) renderRoot(ctx context.Context, r *Root, lane Lane) error {
	r.passToken = e.tokens.Generate()

	slog.Debug("pass building",
		"pass", r.passToken,
		"root", r.id,
		"lane", lane.String(),
	)

	e.mu.Lock()
	taken := r.pending.takeUpTo(lane)
	e.mu.Unlock()

	e.prepareFreshStack(r)

	units := 0
	for r.nextUnit != nil {
		// Preemption check between units.
		e.absorbTriggers()
		if hl, ok := e.highestPendingLane(); ok && hl < lane {
			r.discardWip()
			e.mu.Lock()
			r.pending.merge(taken)
			e.mu.Unlock()
			slog.Debug("pass interrupted",
				"pass", r.passToken,
				"root", r.id,
				"lane", lane.String(),
				"preempted_by", hl.String(),
			)
			return nil
		}

		if units >= e.maxUnits {
			r.discardWip()
			return &UnitQuotaError{PassToken: r.passToken, Units: units + 1, Limit: e.maxUnits}
		}

		next, err := e.performUnit(r, r.nextUnit, lane)
		units++
		if err != nil {
			if b := e.captureAtBoundary(r.nextUnit, err); b != nil {
				// Resume from the boundary: its next build sees the
				// captured error and renders the fallback, replacing the
				// partially built subtree below it. Units keep counting
				// so a boundary that fails on every rebuild is bounded
				// by the unit budget.
				r.nextUnit = b
				continue
			}
			r.discardWip()
			return err
		}
		r.nextUnit = next
	}

	// Committing is non-interruptible: mutation application and effect
	// flushing run to completion before any other pass may begin.
	return e.commitRoot(ctx, r, lane)
}

// prepareFreshStack resets the root's in-flight state to a fresh alternate
// of the committed tree, with the latest mounted descriptor as the single
// pending child.
func (e *Engine) prepareFreshStack(r *Root) {
	rootDesc := dom.Node{Kind: dom.KindHost, Type: rootContainerType}

	e.mu.Lock()
	if r.hasDesc {
		rootDesc.Children = []dom.Node{r.desc}
	}
	e.mu.Unlock()

	wip := &workNode{
		id:        r.container,
		kind:      dom.KindHost,
		typ:       rootContainerType,
		desc:      rootDesc,
		alternate: r.current,
	}
	r.current.alternate = wip
	r.wip = wip
	r.nextUnit = wip
}

// discardWip abandons the in-flight alternate tree wholesale. Nothing ran
// for it (effects only fire on committed trees); the committed tree and
// slot banks are untouched, so there is no partial state to unwind.
func (r *Root) discardWip() {
	r.wip = nil
	r.nextUnit = nil
}

// captureAtBoundary walks the failed node's ancestors for an error
// boundary and returns it, or nil when the error is not recoverable.
// Component panics are recoverable; slot sequence and structural errors
// are not. The boundary cannot catch its own failure - the error
// escalates to the next boundary up, or fails the pass.
func (e *Engine) captureAtBoundary(failed *workNode, err error) *workNode {
	if failed == nil || !IsComponentPanicError(err) {
		return nil
	}

	for n := failed.parent; n != nil; n = n.parent {
		if n.boundary && n.bank != nil {
			n.bank.capturedErr = err
			return n
		}
	}
	return nil
}
