package journal

import (
	"context"
	"fmt"

	"github.com/loomkit/loom/internal/engine"
)

// Replay applies every journaled pass of a root to a fresh surface, in
// commit order. Because scripts record mutations with indices valid at
// their original application time, replay reproduces the exact surface
// state the live engine left behind.
//
// Returns the number of passes applied. Stops at the first surface
// rejection; a rejection means the surface was not fresh or the journal is
// corrupt, and partial replay state should be discarded by the caller.
func Replay(ctx context.Context, j *Journal, rootID int64, surf engine.Surface) (int, error) {
	records, err := j.List(ctx, rootID)
	if err != nil {
		return 0, err
	}

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := applyScript(surf, rec.Script); err != nil {
			return i, fmt.Errorf("replay pass %s: %w", rec.PassToken, err)
		}
	}
	return len(records), nil
}

func applyScript(surf engine.Surface, script []engine.Mutation) error {
	for _, m := range script {
		var err error
		switch m.Op {
		case engine.OpInsert:
			err = surf.ApplyInsert(m.ParentID, m.NodeID, m.Type, m.Props, m.Index)
		case engine.OpUpdate:
			err = surf.ApplyUpdate(m.NodeID, m.Props)
		case engine.OpDelete:
			err = surf.ApplyDelete(m.NodeID)
		case engine.OpMove:
			err = surf.ApplyMove(m.NodeID, m.Index)
		default:
			err = fmt.Errorf("unknown op %d", m.Op)
		}
		if err != nil {
			return fmt.Errorf("entry seq %d (%s node %d): %w", m.Seq, m.Op, m.NodeID, err)
		}
	}
	return nil
}
