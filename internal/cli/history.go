package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/peterjc/kana-chording-ke/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryResult lists recorded builds, newest first.
type HistoryResult struct {
	Builds []store.Build `json:"builds"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [layout]",
		Short: "List recorded builds",
		Long: `List the builds recorded by compile, newest first.

Each build records the layout and document digests, where the document
was written and how many rules it holds.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := ""
			if len(args) > 0 {
				layout = args[0]
			}
			return runHistory(opts, layout, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of builds to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, layout string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	s, err := openStore(opts.RootOptions, cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeStateFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, ErrCodeStateFailed, err)
	}
	defer s.Close()

	builds, err := s.ListBuilds(cmd.Context(), layout, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStateFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, ErrCodeStateFailed, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(HistoryResult{Builds: builds})
	}

	if len(builds) == 0 {
		fmt.Fprintln(formatter.Writer, "No builds recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tLAYOUT\tRULES\tDOCUMENT\tOUTPUT")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			b.CreatedAt.Local().Format(time.DateTime), b.Layout, b.RuleCount, shortDigest(b.DocumentDigest), b.OutputPath)
	}
	return tw.Flush()
}

// shortDigest abbreviates a digest for display.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
