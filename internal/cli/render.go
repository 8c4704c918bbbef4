package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomkit/loom/internal/engine"
	"github.com/loomkit/loom/internal/journal"
	"github.com/loomkit/loom/internal/scene"
	"github.com/loomkit/loom/internal/surface"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Journal string
	Steps   int
}

// StepResult is one rendered step of a scene.
type StepResult struct {
	Step  string `json:"step"`
	Lane  string `json:"lane"`
	Tree  string `json:"tree"`
	Nodes int    `json:"nodes"`
}

// RenderResult is the render command's JSON payload.
type RenderResult struct {
	Scene string       `json:"scene"`
	Steps []StepResult `json:"steps"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <scene.yaml>",
		Short: "Render a scene through the engine",
		Long: `Render a declarative scene: mount its initial tree, apply each update
step as a render pass, and print the resulting surface tree after every
commit.

With --journal, every committed pass is appended to a SQLite journal that
the replay command can later re-apply.

Exit codes:
  0 - All passes committed
  1 - A pass failed (duplicate keys, surface rejection, etc.)
  2 - Command error (file not found, malformed scene, etc.)

Examples:
  loom render examples/list.yaml
  loom render examples/list.yaml --journal ./loom.db
  loom render examples/list.yaml --steps 2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (optional)")
	cmd.Flags().IntVar(&opts.Steps, "steps", -1, "apply only the first N steps (-1 for all)")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
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

	sc, err := scene.Load(path)
	if err != nil {
		outErr := formatter.Error(err.Error(), nil)
		if outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to load scene", err)
	}
	formatter.VerboseLog("loaded scene %q with %d steps", sc.Name, len(sc.Steps))

	engineOpts := []engine.Option{}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		engineOpts = append(engineOpts, engine.WithCommitSink(j))
		formatter.VerboseLog("journaling passes to %s", opts.Journal)
	}

	mem := surface.NewMemory()
	eng := engine.New(mem, engineOpts...)

	result := RenderResult{Scene: sc.Name}

	desc, err := sc.Root.Descriptor()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid root descriptor", err)
	}
	root := eng.Mount(desc, engine.LaneUserVisible)

	if err := eng.Flush(ctx); err != nil {
		outErr := formatter.Error(fmt.Sprintf("mount pass failed: %v", err), nil)
		if outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "mount pass failed", err)
	}
	result.Steps = append(result.Steps, StepResult{
		Step:  "mount",
		Lane:  engine.LaneUserVisible.String(),
		Tree:  mem.Render(),
		Nodes: mem.Len(),
	})

	steps := sc.Steps
	if opts.Steps >= 0 && opts.Steps < len(steps) {
		steps = steps[:opts.Steps]
	}

	for i, step := range steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step %d", i+1)
		}

		stepDesc, err := step.Root.Descriptor()
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid descriptor in %s", name), err)
		}

		root.Update(stepDesc, step.StepLane())
		if err := eng.Flush(ctx); err != nil {
			outErr := formatter.Error(fmt.Sprintf("%s failed: %v", name, err), nil)
			if outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, name+" failed", err)
		}

		result.Steps = append(result.Steps, StepResult{
			Step:  name,
			Lane:  step.StepLane().String(),
			Tree:  mem.Render(),
			Nodes: mem.Len(),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	for _, s := range result.Steps {
		formatter.Text("== %s (%s)", s.Step, s.Lane)
		formatter.Text("%s", s.Tree)
	}
	return nil
}
