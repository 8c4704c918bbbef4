package dom

// Kind identifies the closed set of descriptor node variants.
type Kind int

const (
	// KindHost describes a target-surface primitive ("paragraph", "text", ...).
	KindHost Kind = iota + 1
	// KindComponent describes a component function to expand lazily.
	KindComponent
	// KindFragment groups children without creating a surface node.
	KindFragment
)

// String returns the kind name for logs and scene validation errors.
func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindComponent:
		return "component"
	case KindFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// Node is an immutable descriptor: what one position in the tree should look
// like for one render pass. A new Node is built per pass and discarded after
// diffing; persistent identity lives in the engine's work-node tree.
//
// Type identifies a host primitive for KindHost and names the component for
// KindComponent (component identity for diffing is Kind+Type, since Go
// function values are not comparable).
type Node struct {
	Kind     Kind
	Type     string
	Key      string
	Props    Props
	Children []Node

	// Render is the component function, set only for KindComponent.
	Render ComponentFunc

	// Boundary marks a component as an error boundary: if a descendant
	// component panics during build, this component is re-rendered with the
	// error exposed under the "error" prop instead of failing the pass.
	Boundary bool
}

// Host builds a host descriptor for a target-surface primitive.
func Host(typ string, props Props, children ...Node) Node {
	return Node{Kind: KindHost, Type: typ, Props: props, Children: children}
}

// Text builds a host text descriptor. Text is modeled as the "text" host
// primitive with the content under the "text" prop.
func Text(s string) Node {
	return Node{Kind: KindHost, Type: "text", Props: Props{"text": String(s)}}
}

// Component builds a component descriptor. The name is the component's
// diffing identity: two descriptors with the same name at the same position
// reuse one work node.
func Component(name string, fn ComponentFunc, props Props, children ...Node) Node {
	return Node{Kind: KindComponent, Type: name, Render: fn, Props: props, Children: children}
}

// Boundary builds a component descriptor that acts as an error boundary.
// When a descendant build panics, the boundary re-renders with the panic
// message under props["error"] and keeps rendering that fallback on every
// later pass: the captured error lives in the boundary's slot state, so it
// survives re-renders and is only discarded when the boundary node itself
// is replaced - remount it under a new key to retry the failed subtree.
func Boundary(name string, fn ComponentFunc, props Props, children ...Node) Node {
	n := Component(name, fn, props, children...)
	n.Boundary = true
	return n
}

// Fragment groups children without a surface node of its own.
func Fragment(children ...Node) Node {
	return Node{Kind: KindFragment, Children: children}
}

// Keyed returns a copy of the node carrying an explicit identity key.
// Keys make child reconciliation stable under reordering; without a key the
// engine falls back to positional matching.
func Keyed(key string, n Node) Node {
	n.Key = key
	return n
}
