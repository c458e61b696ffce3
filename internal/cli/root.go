// Package cli implements the kanachord command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peterjc/kana-chording-ke/internal/config"
	"github.com/peterjc/kana-chording-ke/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	StateDB string // build history database, overrides KANACHORD_STATE_DB

	// Config and Logger are set before a subcommand runs. Commands built
	// on their own in tests load them lazily.
	Config *config.Config
	Logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kanachord CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kanachord",
		Short: "kanachord - kana chording for Karabiner-Elements",
		Long: `Compile a kana chording layout into a Karabiner-Elements
complex modification document.

A layout is a grid of rows and vowel columns with modifier variants,
written in CUE. kanachord expands it into one rule per cell, input mode
and keyboard variant, checks that no two rules collide, and writes the
document where Karabiner-Elements can import it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if _, err := opts.config(); err != nil {
				return err
			}
			logger, err := logging.New(opts.Verbose)
			if err != nil {
				return WrapExitError(ExitFailure, "logging", err)
			}
			opts.Logger = logger
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.StateDB, "state-db", "", "build history database (default $KANACHORD_STATE_DB or the user config directory)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// config returns the environment configuration, loading it on first use.
func (o *RootOptions) config() (config.Config, error) {
	if o.Config != nil {
		return *o.Config, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeConfig+": invalid configuration", err)
	}
	o.Config = &cfg
	return cfg, nil
}

func (o *RootOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return logging.Nop()
	}
	return o.Logger
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
