package engine

import (
	"fmt"

	"github.com/loomkit/loom/internal/dom"
)

// Op identifies a mutation script operation.
type Op int

const (
	// OpInsert creates a new surface node under a parent at an index.
	OpInsert Op = iota + 1
	// OpUpdate applies a prop delta to an existing surface node.
	OpUpdate
	// OpDelete removes a surface node and its whole subtree (single entry,
	// never per-descendant).
	OpDelete
	// OpMove repositions an existing surface node among its siblings.
	OpMove
)

// String returns the op name used in logs, journal rows, and golden files.
func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpMove:
		return "move"
	default:
		return "unknown"
	}
}

// opFromString is the inverse of Op.String, used by journal decoding.
func opFromString(s string) (Op, error) {
	switch s {
	case "insert":
		return OpInsert, nil
	case "update":
		return OpUpdate, nil
	case "delete":
		return OpDelete, nil
	case "move":
		return OpMove, nil
	default:
		return 0, fmt.Errorf("unknown mutation op %q", s)
	}
}

// Mutation is one ordered entry of a pass's mutation script. Entries are
// applied to the target surface strictly in script order; each entry's
// Index is valid for the surface state at its application time.
type Mutation struct {
	Op     Op
	NodeID int64

	// ParentID is the host parent for inserts (0 is the root container).
	ParentID int64

	// Index is the position hint for inserts and moves, counted among the
	// parent's host children.
	Index int

	// Type is the host primitive name, set for inserts.
	Type string

	// Props carries the full prop set for inserts and only the changed keys
	// for updates (removed keys map to Null).
	Props dom.Props

	// Seq is the logical clock stamp assigned when the entry was emitted.
	Seq int64
}

// Value encodes the mutation as a dom value for canonical JSON
// serialization (journal rows and golden files).
func (m Mutation) Value() dom.Value {
	v := dom.Map{
		"op":   dom.String(m.Op.String()),
		"node": dom.Int(m.NodeID),
		"seq":  dom.Int(m.Seq),
	}
	switch m.Op {
	case OpInsert:
		v["parent"] = dom.Int(m.ParentID)
		v["index"] = dom.Int(m.Index)
		v["type"] = dom.String(m.Type)
		v["props"] = propsValue(m.Props)
	case OpUpdate:
		v["props"] = propsValue(m.Props)
	case OpMove:
		v["index"] = dom.Int(m.Index)
	}
	return v
}

func propsValue(p dom.Props) dom.Value {
	if p == nil {
		return dom.Map{}
	}
	return p
}

// ScriptValue encodes a whole mutation script for the journal.
func ScriptValue(script []Mutation) dom.Value {
	list := make(dom.List, len(script))
	for i, m := range script {
		list[i] = m.Value()
	}
	return list
}

// DecodeScript is the inverse of ScriptValue. Used by journal replay.
func DecodeScript(v dom.Value) ([]Mutation, error) {
	list, ok := v.(dom.List)
	if !ok {
		return nil, fmt.Errorf("mutation script must be a list, got %T", v)
	}

	script := make([]Mutation, 0, len(list))
	for i, elem := range list {
		entry, ok := elem.(dom.Map)
		if !ok {
			return nil, fmt.Errorf("script[%d]: expected map, got %T", i, elem)
		}

		m, err := decodeMutation(entry)
		if err != nil {
			return nil, fmt.Errorf("script[%d]: %w", i, err)
		}
		script = append(script, m)
	}
	return script, nil
}

func decodeMutation(entry dom.Map) (Mutation, error) {
	opName, ok := entry["op"].(dom.String)
	if !ok {
		return Mutation{}, fmt.Errorf("missing op")
	}
	op, err := opFromString(string(opName))
	if err != nil {
		return Mutation{}, err
	}

	node, ok := entry["node"].(dom.Int)
	if !ok {
		return Mutation{}, fmt.Errorf("missing node id")
	}

	m := Mutation{Op: op, NodeID: int64(node)}

	if seq, ok := entry["seq"].(dom.Int); ok {
		m.Seq = int64(seq)
	}
	if parent, ok := entry["parent"].(dom.Int); ok {
		m.ParentID = int64(parent)
	}
	if index, ok := entry["index"].(dom.Int); ok {
		m.Index = int(index)
	}
	if typ, ok := entry["type"].(dom.String); ok {
		m.Type = string(typ)
	}
	if props, ok := entry["props"].(dom.Map); ok {
		m.Props = props
	}

	return m, nil
}
