package surface

import (
	"fmt"
	"sync"

	"github.com/loomkit/loom/internal/dom"
)

// Call is one recorded surface operation, formatted for assertions.
type Call struct {
	Op       string
	NodeID   int64
	ParentID int64
	Index    int
	Type     string
	Props    dom.Props
}

func (c Call) String() string {
	switch c.Op {
	case "insert":
		return fmt.Sprintf("insert %s#%d under #%d at %d", c.Type, c.NodeID, c.ParentID, c.Index)
	case "update":
		return fmt.Sprintf("update #%d", c.NodeID)
	case "delete":
		return fmt.Sprintf("delete #%d", c.NodeID)
	case "move":
		return fmt.Sprintf("move #%d to %d", c.NodeID, c.Index)
	default:
		return c.Op
	}
}

// Recorder wraps a Memory tree and records every applied operation in
// order. FailAfter can force the Nth operation to fail, for exercising
// commit failure paths.
type Recorder struct {
	mem *Memory

	mu    sync.Mutex
	calls []Call

	// failAt is the 1-based operation count to fail at; 0 disables.
	failAt  int
	applied int
}

// NewRecorder creates a recorder over a fresh Memory tree.
func NewRecorder() *Recorder {
	return &Recorder{mem: NewMemory()}
}

// FailAfter makes the recorder reject the operation after n successful
// ones. FailAfter(0) rejects the first operation.
func (r *Recorder) FailAfter(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt = n + 1
}

// Calls returns a snapshot of the recorded operations.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears the recorded calls, keeping the underlying tree.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.applied = 0
	r.failAt = 0
}

// Tree exposes the underlying Memory for Render-based assertions.
func (r *Recorder) Tree() *Memory {
	return r.mem
}

func (r *Recorder) before(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.applied++
	if r.failAt > 0 && r.applied >= r.failAt {
		return fmt.Errorf("injected failure at operation %d (%s)", r.applied, c)
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) ApplyInsert(parentID, nodeID int64, typ string, props dom.Props, index int) error {
	c := Call{Op: "insert", NodeID: nodeID, ParentID: parentID, Index: index, Type: typ, Props: props}
	if err := r.before(c); err != nil {
		return err
	}
	return r.mem.ApplyInsert(parentID, nodeID, typ, props, index)
}

func (r *Recorder) ApplyUpdate(nodeID int64, delta dom.Props) error {
	c := Call{Op: "update", NodeID: nodeID, Props: delta}
	if err := r.before(c); err != nil {
		return err
	}
	return r.mem.ApplyUpdate(nodeID, delta)
}

func (r *Recorder) ApplyDelete(nodeID int64) error {
	c := Call{Op: "delete", NodeID: nodeID}
	if err := r.before(c); err != nil {
		return err
	}
	return r.mem.ApplyDelete(nodeID)
}

func (r *Recorder) ApplyMove(nodeID int64, index int) error {
	c := Call{Op: "move", NodeID: nodeID, Index: index}
	if err := r.before(c); err != nil {
		return err
	}
	return r.mem.ApplyMove(nodeID, index)
}
