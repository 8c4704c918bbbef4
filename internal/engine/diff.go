package engine

import "github.com/loomkit/loom/internal/dom"

// performUnit executes one bounded unit of render work: build-and-diff for
// a single work node. Returns the next unit, or nil when the whole pending
// tree has been processed. The scheduler may yield, restart, or abandon the
// pass between calls.
func (e *Engine) performUnit(root *Root, u *workNode, lane Lane) (*workNode, error) {
	if err := e.beginWork(root, u, lane); err != nil {
		return nil, err
	}

	if u.child != nil {
		return u.child, nil
	}

	// Leaf completed - walk up until a sibling continues the traversal.
	for n := u; n != nil; n = n.parent {
		if n.sibling != nil {
			return n.sibling, nil
		}
	}
	return nil, nil
}

// beginWork produces the node's new child descriptors and reconciles them
// against the previously committed children. Components are expanded
// lazily, one work node at a time; hosts and fragments pass their
// descriptor children through unchanged.
func (e *Engine) beginWork(root *Root, n *workNode, lane Lane) error {
	switch n.kind {
	case dom.KindComponent:
		out, err := e.buildComponent(root, n, lane)
		if err != nil {
			return err
		}
		if out.Kind == 0 {
			// Component rendered nothing.
			return e.reconcileChildren(n, nil)
		}
		return e.reconcileChildren(n, []dom.Node{out})
	default:
		return e.reconcileChildren(n, n.desc.Children)
	}
}

// reconcileChildren diffs the committed child list (reached through the
// node's alternate) against the new child descriptors, reusing work nodes
// whose identity survives, creating work nodes for unmatched descriptors,
// and recording unmatched previous children for deletion.
//
// Identity is the explicit key when present, the positional index
// otherwise - in both cases the kind and type must also match, or the old
// subtree is deleted in full and a new one inserted (no deeper diffing).
//
// Matching is a single left-to-right scan maintaining the last-seen matched
// index: a reused child whose old position precedes an already-matched old
// position is tagged Move instead of cascading into delete+insert pairs.
// This is what makes identity keys pay off - positional fallback degrades
// a non-tail insertion into prop rewrites of every subsequent sibling.
func (e *Engine) reconcileChildren(wip *workNode, newChildren []dom.Node) error {
	var oldFirst *workNode
	if wip.alternate != nil {
		oldFirst = wip.alternate.child
	}

	oldByKey := make(map[string]*workNode)
	oldByPos := make(map[int]*workNode)
	for old, i := oldFirst, 0; old != nil; old, i = old.sibling, i+1 {
		if old.key != "" {
			oldByKey[old.key] = old
		} else {
			oldByPos[i] = old
		}
	}

	seenKeys := make(map[string]bool)
	matched := make(map[*workNode]bool)
	lastPlaced := -1

	var first, prev *workNode
	for i, d := range newChildren {
		var old *workNode
		if d.Key != "" {
			if seenKeys[d.Key] {
				return &DuplicateKeyError{Key: d.Key, Parent: wip.typ}
			}
			seenKeys[d.Key] = true
			old = oldByKey[d.Key]
		} else {
			old = oldByPos[i]
		}

		var child *workNode
		if old != nil && old.kind == d.Kind && old.typ == d.Type {
			// Same identity and type: reuse, preserving the slot bank.
			child = cloneWorkNode(old, d)
			matched[old] = true

			if delta := dom.DiffProps(old.props, d.Props); delta != nil {
				child.tag |= tagUpdate
				child.propDelta = delta
			}

			if old.index < lastPlaced {
				child.tag |= tagMove
			} else {
				lastPlaced = old.index
			}
		} else {
			// Unmatched descriptor, or identity collision with a different
			// type: the old subtree (if any) stays unmatched and will be
			// deleted; a fresh work node is inserted.
			child = newWorkNode(e.clock.Next(), d)
		}

		child.parent = wip
		child.index = i
		if prev == nil {
			first = child
		} else {
			prev.sibling = child
		}
		prev = child
	}

	// Unmatched previous children lose their identity: the whole subtree is
	// deleted (state slots cleaned up, pending effects dropped), never
	// re-diffed.
	for old := oldFirst; old != nil; old = old.sibling {
		if !matched[old] {
			wip.deletions = append(wip.deletions, old)
		}
	}

	wip.child = first
	return nil
}
