// Package surface provides render targets for the reconciliation engine:
// an in-memory node tree for embedding and tests, and a recording shim for
// asserting on applied mutation sequences.
//
// Surfaces validate every operation strictly. An unknown node id, a
// duplicate insert, or an out-of-range index is an error, never a silent
// clamp; the engine's index hints are exact by construction, so a bad hint
// means a bug upstream and should fail the commit loudly.
package surface

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/loomkit/loom/internal/dom"
)

// RootID is the node id of the implicit root container every surface
// starts with.
const RootID int64 = 0

var (
	// ErrUnknownNode marks operations addressing a node id the surface has
	// never seen or has already deleted.
	ErrUnknownNode = errors.New("unknown surface node")

	// ErrDuplicateNode marks inserts reusing a live node id.
	ErrDuplicateNode = errors.New("duplicate surface node")

	// ErrBadIndex marks inserts or moves with an index outside the parent's
	// child list.
	ErrBadIndex = errors.New("index out of range")
)

type node struct {
	id       int64
	typ      string
	props    dom.Props
	parent   *node
	children []*node
}

// Memory is a concrete in-memory node tree. It implements the engine's
// Surface contract and can dump itself as a deterministic string for
// golden comparisons.
//
// Thread-safe, though the engine only ever applies mutations from its
// single work goroutine; the lock is for concurrent Render calls.
type Memory struct {
	mu    sync.Mutex
	nodes map[int64]*node
}

// NewMemory creates an empty tree holding only the root container.
func NewMemory() *Memory {
	root := &node{id: RootID, typ: "#root"}
	return &Memory{nodes: map[int64]*node{RootID: root}}
}

// ApplyInsert creates a node under parentID at index.
func (m *Memory) ApplyInsert(parentID, nodeID int64, typ string, props dom.Props, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, ok := m.nodes[parentID]
	if !ok {
		return fmt.Errorf("insert node %d: parent %d: %w", nodeID, parentID, ErrUnknownNode)
	}
	if _, exists := m.nodes[nodeID]; exists {
		return fmt.Errorf("insert node %d: %w", nodeID, ErrDuplicateNode)
	}
	if index < 0 || index > len(parent.children) {
		return fmt.Errorf("insert node %d at %d of %d: %w",
			nodeID, index, len(parent.children), ErrBadIndex)
	}

	n := &node{id: nodeID, typ: typ, props: cloneProps(props), parent: parent}
	parent.children = append(parent.children, nil)
	copy(parent.children[index+1:], parent.children[index:])
	parent.children[index] = n
	m.nodes[nodeID] = n
	return nil
}

// ApplyUpdate merges a prop delta into an existing node. Keys mapped to
// Null are removed.
func (m *Memory) ApplyUpdate(nodeID int64, delta dom.Props) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return fmt.Errorf("update node %d: %w", nodeID, ErrUnknownNode)
	}

	if n.props == nil {
		n.props = dom.Props{}
	}
	for k, v := range delta {
		if _, isNull := v.(dom.Null); isNull {
			delete(n.props, k)
			continue
		}
		n.props[k] = v
	}
	return nil
}

// ApplyDelete removes a node and its whole subtree.
func (m *Memory) ApplyDelete(nodeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return fmt.Errorf("delete node %d: %w", nodeID, ErrUnknownNode)
	}
	if n.id == RootID {
		return fmt.Errorf("delete node %d: root container is permanent", nodeID)
	}

	p := n.parent
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	m.forget(n)
	return nil
}

func (m *Memory) forget(n *node) {
	delete(m.nodes, n.id)
	for _, c := range n.children {
		m.forget(c)
	}
}

// ApplyMove repositions an existing node among its siblings.
func (m *Memory) ApplyMove(nodeID int64, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return fmt.Errorf("move node %d: %w", nodeID, ErrUnknownNode)
	}
	if n.id == RootID {
		return fmt.Errorf("move node %d: root container is permanent", nodeID)
	}

	p := n.parent
	if index < 0 || index >= len(p.children) {
		return fmt.Errorf("move node %d to %d of %d: %w",
			nodeID, index, len(p.children), ErrBadIndex)
	}

	cur := -1
	for i, c := range p.children {
		if c == n {
			cur = i
			break
		}
	}
	p.children = append(p.children[:cur], p.children[cur+1:]...)
	p.children = append(p.children, nil)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = n
	return nil
}

// Len returns the number of live nodes, root container included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}

// Props returns a copy of a node's current props.
func (m *Memory) Props(nodeID int64) (dom.Props, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("props of node %d: %w", nodeID, ErrUnknownNode)
	}
	return cloneProps(n.props), nil
}

// Render dumps the tree as an indented, deterministic string. Props are
// listed in canonical key order with canonical JSON values, so the output
// is stable across runs and suitable for golden files.
func (m *Memory) Render() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var b strings.Builder
	m.renderNode(&b, m.nodes[RootID], 0)
	return b.String()
}

func (m *Memory) renderNode(b *strings.Builder, n *node, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
	fmt.Fprintf(b, "%s#%d", n.typ, n.id)

	if len(n.props) > 0 {
		keys := make([]string, 0, len(n.props))
		for k := range n.props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			enc, err := dom.MarshalCanonical(n.props[k])
			if err != nil {
				enc = []byte("!" + err.Error())
			}
			fmt.Fprintf(b, " %s=%s", k, enc)
		}
	}
	b.WriteByte('\n')

	for _, c := range n.children {
		m.renderNode(b, c, depth+1)
	}
}

func cloneProps(p dom.Props) dom.Props {
	if p == nil {
		return nil
	}
	out := make(dom.Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
