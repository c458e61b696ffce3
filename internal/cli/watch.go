package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peterjc/kana-chording-ke/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	CompileOptions
	DebounceMS int
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{CompileOptions: CompileOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch <layout-dir>",
		Short: "Recompile a layout whenever its CUE files change",
		Long: `Compile a layout directory, then recompile it every time one of its
CUE files changes. Errors are reported and the previous document stays in
place until the layout compiles again. Stops on interrupt.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (default $KANACHORD_OUTPUT_DIR or the Karabiner-Elements assets directory)")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record builds in the history database")
	cmd.Flags().IntVar(&opts.DebounceMS, "debounce", -1, "quiet period in ms before recompiling (default $KANACHORD_WATCH_DEBOUNCE_MS or 300)")
	addTimingFlags(cmd, &opts.TimingOptions)

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, dir string, cmd *cobra.Command) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: layout directory not found: %s", ErrCodeNotFound, dir))
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	debounce := cfg.WatchDebounceMS
	if opts.DebounceMS >= 0 {
		debounce = opts.DebounceMS
	}

	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	log := opts.logger()
	w, err := watch.New(dir, time.Duration(debounce)*time.Millisecond, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "watch", err)
	}

	compile := func(ctx context.Context) {
		if err := runCompile(ctx, &opts.CompileOptions, dir, cmd); err != nil {
			// Already reported; keep watching.
			log.Debug("compile failed", zap.Error(err))
		}
	}

	compile(ctx)
	formatter.Hint("Watching %s (Ctrl-C to stop)", dir)

	return w.Run(ctx, func(ctx context.Context, files []string) {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = filepath.Base(f)
		}
		log.Info("layout changed", zap.Strings("files", names))
		formatter.VerboseLog("Changed: %v", names)
		compile(ctx)
	})
}
