package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peterjc/kana-chording-ke/internal/config"
	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/karabiner"
	"github.com/peterjc/kana-chording-ke/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	TimingOptions
	Output    string // output directory
	Stdout    bool   // print the document instead of writing it
	NoHistory bool   // do not record the build
}

// CompilationResult summarizes one compile.
type CompilationResult struct {
	Layout         string `json:"layout"`
	Source         string `json:"source"`
	Rules          int    `json:"rules"`
	Triples        int    `json:"triples"`
	Deduped        int    `json:"deduped"`
	Passthrough    int    `json:"passthrough"`
	Blocked        int    `json:"blocked"`
	OutputPath     string `json:"output_path,omitempty"`
	LayoutDigest   string `json:"layout_digest"`
	DocumentDigest string `json:"document_digest"`
	Unchanged      bool   `json:"unchanged"`
	BuildID        string `json:"build_id,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [layout]",
		Short: "Compile a layout to a Karabiner-Elements document",
		Long: `Compile a layout directory or built-in layout to a Karabiner-Elements
complex modification document.

The document is written atomically to
~/.config/karabiner/assets/complex_modifications/<layout>.json unless
--output or KANACHORD_OUTPUT_DIR names another directory. Compiling the
same layout twice produces byte-identical output; an unchanged document
is not rewritten.

Exit codes:
  0 - Document written (or unchanged)
  1 - Runtime failure (write error, history database)
  2 - Invalid layout or conflicting rules`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) > 0 {
				ref = args[0]
			}
			return runCompile(cmd.Context(), opts, ref, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (default $KANACHORD_OUTPUT_DIR or the Karabiner-Elements assets directory)")
	cmd.Flags().BoolVar(&opts.Stdout, "stdout", false, "print the document to stdout instead of writing it")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record the build in the history database")
	addTimingFlags(cmd, &opts.TimingOptions)

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, ref string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	log := opts.logger()

	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if cfg, err = opts.TimingOptions.resolve(cfg); err != nil {
		return err
	}

	loaded, loadErrors := LoadLayout(ref)
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, "Compilation failed", loadErrors)
	}
	formatter.VerboseLog("Loaded layout %s from %s (%d file(s))", loaded.Layout.Name, loaded.Source, loaded.FileCount)

	build, err := buildDocument(loaded.Layout, cfg, log)
	if err != nil {
		return outputBuildError(formatter, err)
	}

	if opts.Stdout {
		_, err := cmd.OutOrStdout().Write(build.Document)
		return err
	}

	result := newCompilationResult(loaded, build)
	path, err := opts.documentPath(cfg, loaded.Layout.Name)
	if err != nil {
		return outputWriteError(formatter, err)
	}
	result.OutputPath = path

	var history *store.Store
	if !opts.NoHistory {
		if history, err = openStore(opts.RootOptions, cfg); err != nil {
			_ = formatter.Error(ErrCodeStateFailed, err.Error(), nil)
			return WrapExitError(ExitFailure, ErrCodeStateFailed, err)
		}
		defer history.Close()
	}

	result.Unchanged = unchanged(path, build.Document)
	if result.Unchanged {
		log.Debug("document unchanged", zap.String("path", path), zap.String("digest", build.DocumentDigest))
	} else {
		if err := karabiner.WriteAtomic(path, build.Document); err != nil {
			return outputWriteError(formatter, err)
		}
		log.Debug("document written", zap.String("path", path), zap.Int("bytes", len(build.Document)))
	}

	if history != nil {
		id, err := recordBuild(ctx, history, build, path)
		if err != nil {
			_ = formatter.Error(ErrCodeStateFailed, err.Error(), nil)
			return WrapExitError(ExitFailure, ErrCodeStateFailed, err)
		}
		result.BuildID = id
	}

	if err := outputCompileSuccess(formatter, result); err != nil {
		return err
	}
	if !result.Unchanged {
		formatter.Hint("Enable the rules in Karabiner-Elements: Settings > Complex Modifications > Add predefined rule > %s", loaded.Layout.Title)
	}
	return nil
}

func newCompilationResult(loaded *LoadResult, build *Build) *CompilationResult {
	stats := build.Emitted.Stats
	return &CompilationResult{
		Layout:         loaded.Layout.Name,
		Source:         loaded.Source,
		Rules:          stats.Rules,
		Triples:        stats.Triples,
		Deduped:        stats.Deduped,
		Passthrough:    stats.Passthrough,
		Blocked:        stats.Blocked,
		LayoutDigest:   build.LayoutDigest,
		DocumentDigest: build.DocumentDigest,
	}
}

// documentPath resolves the output directory: flag, then environment,
// then the host engine's assets directory.
func (o *CompileOptions) documentPath(cfg config.Config, layout string) (string, error) {
	dir := o.Output
	if dir == "" {
		dir = cfg.OutputDir
	}
	if dir == "" {
		var err error
		if dir, err = karabiner.DefaultDir(); err != nil {
			return "", err
		}
	}
	return karabiner.Path(dir, layout), nil
}

// unchanged reports whether path already holds exactly data.
func unchanged(path string, data []byte) bool {
	existing, err := os.ReadFile(path)
	return err == nil && bytes.Equal(existing, data)
}

// recordBuild appends the build to the history unless the latest build of
// the layout already produced the same document at the same path.
func recordBuild(ctx context.Context, s *store.Store, build *Build, path string) (string, error) {
	name := build.Layout.Name
	latest, ok, err := s.LatestBuild(ctx, name)
	if err != nil {
		return "", err
	}
	if ok && latest.DocumentDigest == build.DocumentDigest && latest.OutputPath == path {
		return latest.ID, nil
	}
	b, err := s.RecordBuild(ctx, store.Build{
		Layout:          name,
		LayoutDigest:    build.LayoutDigest,
		DocumentDigest:  build.DocumentDigest,
		OutputPath:      path,
		RuleCount:       len(build.Emitted.Rules),
		CompilerVersion: ir.CompilerVersion,
	})
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

// openStore opens the build history: flag, then environment, then the
// default location.
func openStore(opts *RootOptions, cfg config.Config) (*store.Store, error) {
	path := opts.StateDB
	if path == "" {
		path = cfg.StateDB
	}
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return store.Open(path)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %s: %d rule(s) from %d cell variant(s)\n",
		result.Layout, result.Rules, result.Triples)
	if result.Deduped > 0 || result.Passthrough > 0 || result.Blocked > 0 {
		fmt.Fprintf(formatter.Writer, "  %d deduplicated, %d passthrough, %d blocked\n",
			result.Deduped, result.Passthrough, result.Blocked)
	}
	if result.Unchanged {
		fmt.Fprintf(formatter.Writer, "Unchanged %s\n", result.OutputPath)
	} else {
		fmt.Fprintf(formatter.Writer, "Wrote %s\n", result.OutputPath)
	}
	return nil
}

// outputWriteError reports a failure to place the document.
func outputWriteError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing document: %v", err), nil)
	return WrapExitError(ExitFailure, ErrCodeWriteFailed, err)
}
