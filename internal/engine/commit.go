package engine

import (
	"context"
	"log/slog"

	"github.com/loomkit/loom/internal/dom"
)

// Surface is the mutable render target the commit phase applies mutation
// scripts to. Implementations own the actual node tree (an in-memory tree,
// a recording shim in tests); the engine only ever talks to it through
// these four operations, in script order, from the single work goroutine.
type Surface interface {
	// ApplyInsert creates a node under a parent at an index among the
	// parent's existing children. Parent id 0 is the root container.
	ApplyInsert(parentID, nodeID int64, typ string, props dom.Props, index int) error

	// ApplyUpdate merges a prop delta into an existing node. Keys mapped to
	// Null are removed.
	ApplyUpdate(nodeID int64, delta dom.Props) error

	// ApplyDelete removes a node and its whole subtree.
	ApplyDelete(nodeID int64) error

	// ApplyMove repositions an existing node among its siblings.
	ApplyMove(nodeID int64, index int) error
}

// CommitRecord is one committed pass: its token, scope, and the full
// mutation script that was applied.
type CommitRecord struct {
	PassToken string
	RootID    int64
	Lane      Lane
	Seq       int64
	Script    []Mutation
}

// CommitSink receives a record for every committed pass. Sink errors are
// logged and never fail the commit; the surface is already mutated by the
// time the sink runs.
type CommitSink interface {
	Append(ctx context.Context, rec CommitRecord) error
}

// effectEntry is one due effect awaiting flush, with the owning component
// name for panic logs.
type effectEntry struct {
	s         *slot
	component string
}

// commitRoot runs the non-interruptible commit phase for a completed pass:
// build the mutation script from the finished alternate tree, apply it to
// the surface in order, swap the trees, promote slot state, and flush due
// effects.
//
// A surface rejection mid-script fails the pass with a CommitTargetError
// and NO rollback: already-applied entries stay, the alternate tree is
// discarded, and committed engine state is untouched, so the next
// successful pass diffs against a consistent tree even if the surface
// drifted.
func (e *Engine) commitRoot(ctx context.Context, r *Root, lane Lane) error {
	script := e.buildScript(r)

	for i, m := range script {
		var err error
		switch m.Op {
		case OpInsert:
			err = e.surface.ApplyInsert(m.ParentID, m.NodeID, m.Type, m.Props, m.Index)
		case OpUpdate:
			err = e.surface.ApplyUpdate(m.NodeID, m.Props)
		case OpDelete:
			err = e.surface.ApplyDelete(m.NodeID)
		case OpMove:
			err = e.surface.ApplyMove(m.NodeID, m.Index)
		}
		if err != nil {
			r.discardWip()
			return &CommitTargetError{
				PassToken: r.passToken,
				Index:     i,
				Mutation:  m,
				Err:       err,
			}
		}
	}

	if e.sink != nil {
		rec := CommitRecord{
			PassToken: r.passToken,
			RootID:    r.id,
			Lane:      lane,
			Seq:       e.clock.Next(),
			Script:    script,
		}
		if err := e.sink.Append(ctx, rec); err != nil {
			slog.Error("commit sink append failed",
				"error", err,
				"pass", r.passToken,
				"root", r.id,
			)
		}
	}

	// Swap: the alternate becomes the committed tree. From here on the pass
	// cannot fail.
	r.current = r.wip
	r.wip = nil
	r.nextUnit = nil

	cleanups, due := e.promoteAndCollect(r.current)

	// The pass's lanes were consumed when building started; dirt absorbed
	// mid-build stays pending and gets its own pass, so a write issued
	// during this build is never lost.
	e.mu.Lock()
	r.err = nil
	e.mu.Unlock()

	slog.Debug("pass committed",
		"pass", r.passToken,
		"root", r.id,
		"lane", lane.String(),
		"mutations", len(script),
		"effects", len(due),
	)

	e.flushEffects(lane, cleanups, due)
	return nil
}

// buildScript derives the pass's mutation script from the finished
// alternate tree. For every host parent it compares the flattened host
// child lists of the old and new tree versions: removed children become
// single Delete entries, then a left-to-right simulation of the surviving
// list emits Insert and Move entries whose indices are valid at their
// application time. Prop deltas become Update entries as their node is
// placed.
//
// Entries for a parent's children are emitted while visiting the parent,
// and the traversal is parent-before-child, so a node's own Insert always
// precedes its children's entries.
func (e *Engine) buildScript(r *Root) []Mutation {
	var script []Mutation

	walkSubtree(r.wip, func(n *workNode) {
		if !n.isHost() {
			return
		}

		newKids := appendHostChildren(n, nil)

		var oldKids []*workNode
		if n.alternate != nil {
			oldKids = appendHostChildren(n.alternate, nil)
		}

		keep := make(map[int64]bool, len(newKids))
		for _, k := range newKids {
			keep[k.id] = true
		}

		// sim mirrors the surface's child list for this parent as the
		// script entries below would leave it.
		sim := make([]int64, 0, len(newKids))
		for _, old := range oldKids {
			if keep[old.id] {
				sim = append(sim, old.id)
				continue
			}
			script = append(script, Mutation{
				Op:     OpDelete,
				NodeID: old.id,
				Seq:    e.clock.Next(),
			})
		}

		for i, k := range newKids {
			if k.tag.has(tagInsert) {
				script = append(script, Mutation{
					Op:       OpInsert,
					NodeID:   k.id,
					ParentID: n.id,
					Index:    i,
					Type:     k.typ,
					Props:    k.props,
					Seq:      e.clock.Next(),
				})
				sim = append(sim, 0)
				copy(sim[i+1:], sim[i:])
				sim[i] = k.id
				continue
			}

			pos := i
			for j := i; j < len(sim); j++ {
				if sim[j] == k.id {
					pos = j
					break
				}
			}
			if pos != i {
				script = append(script, Mutation{
					Op:     OpMove,
					NodeID: k.id,
					Index:  i,
					Seq:    e.clock.Next(),
				})
				copy(sim[i+1:pos+1], sim[i:pos])
				sim[i] = k.id
			}

			if k.tag.has(tagUpdate) && len(k.propDelta) > 0 {
				script = append(script, Mutation{
					Op:     OpUpdate,
					NodeID: k.id,
					Props:  k.propDelta,
					Seq:    e.clock.Next(),
				})
			}
		}
	})

	return script
}

// promoteAndCollect walks the freshly committed tree, promoting every slot
// bank's in-flight state and gathering the effect work for the flush:
// cleanups from deleted subtrees and superseded effect runs, and due effect
// bodies.
//
// The walk is parent-before-child. Due bodies keep that order; the cleanup
// list is reversed before return so cleanups run child-before-parent.
func (e *Engine) promoteAndCollect(root *workNode) ([]effectEntry, []effectEntry) {
	var cleanups []effectEntry
	var due []effectEntry

	e.mu.Lock()
	walkSubtree(root, func(n *workNode) {
		for _, del := range n.deletions {
			walkSubtree(del, func(d *workNode) {
				if d.bank == nil {
					return
				}
				for _, s := range d.bank.slots {
					if s.kind == slotEffect && s.cleanup != nil {
						cleanups = append(cleanups, effectEntry{s: s, component: d.typ})
					}
				}
				d.bank = nil
			})
		}
		n.deletions = nil

		if n.bank != nil {
			for _, s := range n.bank.slots {
				switch s.kind {
				case slotValue:
					s.commitValue()
				case slotEffect:
					if s.commitEffect() {
						if s.cleanup != nil {
							cleanups = append(cleanups, effectEntry{s: s, component: n.typ})
						}
						due = append(due, effectEntry{s: s, component: n.typ})
					}
				}
			}
		}

		// Release the superseded tree version.
		if n.alternate != nil {
			n.alternate.alternate = nil
			n.alternate = nil
		}
		n.tag = tagNone
		n.propDelta = nil
	})
	e.mu.Unlock()

	for i, j := 0, len(cleanups)-1; i < j; i, j = i+1, j-1 {
		cleanups[i], cleanups[j] = cleanups[j], cleanups[i]
	}
	return cleanups, due
}

// flushEffects runs collected cleanups, then due effect bodies, after the
// surface mutations are fully applied. State writes issued by effect
// bodies queue at the committed pass's lane and schedule follow-up passes
// like any other trigger.
//
// A panicking cleanup or body is logged and skipped; effects are outside
// the build, so the error boundary machinery does not apply here.
func (e *Engine) flushEffects(lane Lane, cleanups, due []effectEntry) {
	e.mu.Lock()
	prev := e.currentLane
	e.currentLane = lane
	e.mu.Unlock()

	for _, entry := range cleanups {
		runCleanup(entry)
		entry.s.cleanup = nil
	}

	for _, entry := range due {
		runEffect(entry)
	}

	e.mu.Lock()
	e.currentLane = prev
	e.mu.Unlock()
}

func runCleanup(entry effectEntry) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("effect cleanup panicked",
				"component", entry.component,
				"panic", v,
			)
		}
	}()
	entry.s.cleanup()
}

func runEffect(entry effectEntry) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("effect panicked",
				"component", entry.component,
				"panic", v,
			)
		}
	}()
	entry.s.cleanup = entry.s.fn()
}
