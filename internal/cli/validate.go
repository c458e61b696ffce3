package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Layout string `json:"layout"`
	Source string `json:"source"`
	Rules  int    `json:"rules"`
	Chords int    `json:"chords"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	timing := &TimingOptions{}

	cmd := &cobra.Command{
		Use:   "validate [layout]",
		Short: "Check a layout without writing a document",
		Long: `Check a layout directory or built-in layout without writing anything.

Runs the structural checks, then generates every rule so that conflicts
(duplicate rules, ambiguous chords, unmappable output) are reported the
same way compile reports them. Exits 2 on any error.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			return runValidate(rootOpts, *timing, ref, cmd)
		},
	}
	addTimingFlags(cmd, timing)

	return cmd
}

func runValidate(opts *RootOptions, timing TimingOptions, ref string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if cfg, err = timing.resolve(cfg); err != nil {
		return err
	}

	loaded, loadErrors := LoadLayout(ref)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Validation failed", loadErrors)
	}
	formatter.VerboseLog("Loaded layout %s from %s (%d file(s))", loaded.Layout.Name, loaded.Source, loaded.FileCount)

	build, err := buildDocument(loaded.Layout, cfg, opts.logger())
	if err != nil {
		return outputBuildError(formatter, err)
	}

	result := ValidationResult{
		Valid:  true,
		Layout: loaded.Layout.Name,
		Source: loaded.Source,
		Rules:  len(build.Emitted.Rules),
		Chords: build.Emitted.Chords.Len(),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Layout %s is valid (%d rule(s), %d chord(s))\n", result.Layout, result.Rules, result.Chords)
	return nil
}
