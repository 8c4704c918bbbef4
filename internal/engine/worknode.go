package engine

import "github.com/loomkit/loom/internal/dom"

// opTag marks the structural change a work node needs at commit.
type opTag uint8

const (
	tagNone opTag = 0
	// tagInsert marks a node created this pass.
	tagInsert opTag = 1 << iota
	// tagUpdate marks a reused node with a non-empty prop delta.
	tagUpdate
	// tagMove marks a reused node whose position regressed past the
	// last-placed index during child reconciliation.
	tagMove
)

func (t opTag) has(flag opTag) bool { return t&flag != 0 }

// workNode is the persistent internal record tracking one position in the
// tree across passes. Parent/child/sibling links enable iterative traversal
// without a call stack, which is what lets the scheduler pause between
// units of work.
//
// Exactly one of a node and its alternate is active at a time: the current
// tree is what was last committed, the alternate is the work-in-progress
// twin for the in-flight pass. After commit the alternate becomes current;
// a discarded pass simply drops its alternates.
type workNode struct {
	// id is clock-assigned and stable across passes. For host nodes it
	// doubles as the surface node id.
	id int64

	kind     dom.Kind
	typ      string
	key      string
	fn       dom.ComponentFunc
	boundary bool

	// desc is the descriptor this tree version was reconciled from.
	desc dom.Node

	// props are the props this tree version rendered with.
	props dom.Props

	parent  *workNode
	child   *workNode
	sibling *workNode

	// index is the node's position among its siblings in this tree version.
	index int

	// alternate is the twin in the other tree version (nil for nodes
	// created this pass).
	alternate *workNode

	// tag, propDelta, and deletions are only meaningful on work-in-progress
	// nodes; they are computed by the diff and consumed by the commit.
	tag       opTag
	propDelta dom.Props
	deletions []*workNode

	// bank holds the node's state slots, shared between the node and its
	// alternate. Nil for hosts and fragments.
	bank *slotBank
}

// newWorkNode creates a fresh work node for a descriptor with no previous
// identity. Component nodes get an empty slot bank.
func newWorkNode(id int64, d dom.Node) *workNode {
	n := &workNode{
		id:       id,
		kind:     d.Kind,
		typ:      d.Type,
		key:      d.Key,
		fn:       d.Render,
		boundary: d.Boundary,
		desc:     d,
		props:    d.Props,
		tag:      tagInsert,
	}
	if d.Kind == dom.KindComponent {
		n.bank = &slotBank{}
	}
	return n
}

// cloneWorkNode creates the work-in-progress twin of a committed node,
// reusing its identity and slot bank but adopting the new descriptor.
func cloneWorkNode(current *workNode, d dom.Node) *workNode {
	wip := &workNode{
		id:        current.id,
		kind:      current.kind,
		typ:       current.typ,
		key:       d.Key,
		fn:        d.Render,
		boundary:  d.Boundary,
		desc:      d,
		props:     d.Props,
		alternate: current,
		bank:      current.bank,
	}
	current.alternate = wip
	return wip
}

// isHost reports whether the node owns a surface node.
func (n *workNode) isHost() bool {
	return n.kind == dom.KindHost
}

// appendHostChildren collects the flattened host children of n: the first
// host descendants reachable through component and fragment layers, in
// sibling order. This is the child list the target surface actually sees.
func appendHostChildren(n *workNode, out []*workNode) []*workNode {
	for c := n.child; c != nil; c = c.sibling {
		if c.isHost() {
			out = append(out, c)
		} else {
			out = appendHostChildren(c, out)
		}
	}
	return out
}

// walkSubtree visits root and every descendant parent-before-child, using
// the child/sibling/parent links instead of call-stack recursion.
func walkSubtree(root *workNode, visit func(*workNode)) {
	n := root
	for n != nil {
		visit(n)

		if n.child != nil {
			n = n.child
			continue
		}

		for {
			if n == root {
				return
			}
			if n.sibling != nil {
				n = n.sibling
				break
			}
			n = n.parent
		}
	}
}
