package cli

import (
	"github.com/spf13/cobra"

	"github.com/loomkit/loom/internal/scene"
)

// ValidationResult holds validation results for one scene file.
type ValidationResult struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Steps int    `json:"steps"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene.yaml>...",
		Short: "Validate scene files without rendering",
		Long: `Parse and validate scene files: YAML shape, unknown fields, lane names,
node variants, and prop values. Nothing is rendered.

Exit codes:
  0 - All scenes valid
  1 - At least one scene invalid`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	results := make([]ValidationResult, 0, len(paths))
	allValid := true
	for _, path := range paths {
		res := ValidationResult{Path: path, Valid: true}

		sc, err := scene.Load(path)
		if err != nil {
			res.Valid = false
			res.Error = err.Error()
			allValid = false
		} else {
			res.Steps = len(sc.Steps)
			// Descriptor conversion catches prop values the value model
			// rejects (NaN floats, unsupported Go types).
			if _, err := sc.Root.Descriptor(); err != nil {
				res.Valid = false
				res.Error = err.Error()
				allValid = false
			}
			for i := range sc.Steps {
				if _, err := sc.Steps[i].Root.Descriptor(); err != nil {
					res.Valid = false
					res.Error = err.Error()
					allValid = false
					break
				}
			}
		}

		results = append(results, res)
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Valid {
				formatter.Text("ok   %s (%d steps)", res.Path, res.Steps)
			} else {
				formatter.Text("FAIL %s: %s", res.Path, res.Error)
			}
		}
	}

	if !allValid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
