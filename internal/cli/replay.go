package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/loomkit/loom/internal/journal"
	"github.com/loomkit/loom/internal/surface"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	RootID  int64
}

// ReplayRootResult holds the replay result for a single root.
type ReplayRootResult struct {
	RootID        int64  `json:"root_id"`
	Passes        int    `json:"passes"`
	Tree          string `json:"tree"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Roots            []ReplayRootResult `json:"roots"`
	AllDeterministic bool               `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a commit journal and verify determinism",
		Long: `Re-apply every journaled pass to a fresh surface, in commit order, and
print the resulting tree. Each root is replayed twice and the two trees
compared; a difference means the journal cannot be a deterministic record
of the surface state.

Exit codes:
  0 - Replay succeeded and is deterministic
  1 - Replay failed or diverged between runs
  2 - Command error (journal not found, etc.)

Examples:
  loom replay --journal ./loom.db
  loom replay --journal ./loom.db --root 1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().Int64Var(&opts.RootID, "root", -1, "replay a specific root only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	rootIDs, err := collectRootIDs(ctx, j, opts.RootID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list journal", err)
	}
	formatter.VerboseLog("replaying %d root(s)", len(rootIDs))

	result := ReplayResult{AllDeterministic: true}
	for _, rootID := range rootIDs {
		rr, err := replayRoot(ctx, j, rootID)
		if err != nil {
			outErr := formatter.Error(err.Error(), nil)
			if outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, "replay failed", err)
		}
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
		result.Roots = append(result.Roots, rr)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, rr := range result.Roots {
			formatter.Text("== root %d (%d passes, deterministic=%t)", rr.RootID, rr.Passes, rr.Deterministic)
			formatter.Text("%s", rr.Tree)
		}
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay diverged between runs")
	}
	return nil
}

// replayRoot applies a root's journal to two independent fresh surfaces
// and compares the rendered trees.
func replayRoot(ctx context.Context, j *journal.Journal, rootID int64) (ReplayRootResult, error) {
	first := surface.NewMemory()
	passes, err := journal.Replay(ctx, j, rootID, first)
	if err != nil {
		return ReplayRootResult{}, err
	}

	second := surface.NewMemory()
	if _, err := journal.Replay(ctx, j, rootID, second); err != nil {
		return ReplayRootResult{}, err
	}

	tree := first.Render()
	return ReplayRootResult{
		RootID:        rootID,
		Passes:        passes,
		Tree:          tree,
		Deterministic: tree == second.Render(),
	}, nil
}

func collectRootIDs(ctx context.Context, j *journal.Journal, only int64) ([]int64, error) {
	if only >= 0 {
		return []int64{only}, nil
	}

	records, err := j.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	var ids []int64
	for _, rec := range records {
		if !seen[rec.RootID] {
			seen[rec.RootID] = true
			ids = append(ids, rec.RootID)
		}
	}
	return ids, nil
}
