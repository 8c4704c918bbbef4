// Package dom defines the descriptor model consumed by the reconciliation
// engine: immutable descriptor nodes, the sealed prop value types, and the
// hook surface that component functions use to access persistent state.
//
// Descriptor nodes are cheap, immutable records built fresh on every render
// pass. The engine diffs successive descriptor trees against its committed
// work-node tree; nothing in this package holds state across passes.
//
// Prop values are a closed variant set (Null, String, Int, Float, Bool,
// List, Map). The closed set keeps prop equality well-defined and gives the
// commit journal a canonical JSON serialization for every committed script.
package dom
