package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peterjc/kana-chording-ke/internal/chord"
	"github.com/peterjc/kana-chording-ke/internal/compiler"
	"github.com/peterjc/kana-chording-ke/internal/config"
	"github.com/peterjc/kana-chording-ke/internal/emitter"
	"github.com/peterjc/kana-chording-ke/internal/grid"
	"github.com/peterjc/kana-chording-ke/internal/guard"
	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/karabiner"
)

// TimingOptions holds the timing flags shared by the commands that
// generate rules. Zero means the environment value.
type TimingOptions struct {
	ChordWindowMS   int
	StickyTimeoutMS int
}

func addTimingFlags(cmd *cobra.Command, t *TimingOptions) {
	cmd.Flags().IntVar(&t.ChordWindowMS, "chord-window", 0, "chord detection window in ms (default $KANACHORD_CHORD_WINDOW_MS or 50)")
	cmd.Flags().IntVar(&t.StickyTimeoutMS, "sticky-timeout", 0, "sticky modifier timeout in ms (default $KANACHORD_STICKY_TIMEOUT_MS or 1000)")
}

// resolve applies flag overrides to cfg.
func (t TimingOptions) resolve(cfg config.Config) (config.Config, error) {
	if t.ChordWindowMS != 0 {
		cfg.ChordWindowMS = t.ChordWindowMS
	}
	if t.StickyTimeoutMS != 0 {
		cfg.StickyTimeoutMS = t.StickyTimeoutMS
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, ErrCodeConfig+": invalid timing", err)
	}
	return cfg, nil
}

// Build is a rendered document for one layout.
type Build struct {
	Layout         *ir.Layout
	Emitted        *emitter.Result
	Document       []byte
	LayoutDigest   string
	DocumentDigest string
}

// buildDocument generates, renders and encodes the rules of l.
func buildDocument(l *ir.Layout, cfg config.Config, log *zap.Logger) (*Build, error) {
	res, err := emitter.Emit(l, emitter.Options{
		ChordWindowMS:   cfg.ChordWindowMS,
		StickyTimeoutMS: cfg.StickyTimeoutMS,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}
	doc, err := karabiner.Render(l, res.Rules)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	data, err := karabiner.Encode(doc)
	if err != nil {
		return nil, err
	}
	layoutDigest, err := ir.LayoutDigest(l)
	if err != nil {
		return nil, err
	}
	return &Build{
		Layout:         l,
		Emitted:        res,
		Document:       data,
		LayoutDigest:   layoutDigest,
		DocumentDigest: ir.DocumentDigest(data),
	}, nil
}

// RuleError is a rule generation failure located in the layout.
type RuleError struct {
	Code string
	Site ir.Site
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// SiteDetails is the JSON form of a site.
type SiteDetails struct {
	Row      string `json:"row,omitempty"`
	Column   string `json:"column,omitempty"`
	Modifier string `json:"modifier,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Variant  string `json:"variant,omitempty"`
}

func siteDetails(s ir.Site) SiteDetails {
	d := SiteDetails{Row: s.Row, Column: s.Column, Modifier: s.Modifier}
	if s.Mode != 0 {
		d.Mode = s.Mode.String()
		d.Variant = s.Variant.String()
	}
	return d
}

// classifyRuleError maps the typed generation errors to codes and sites.
// Other errors are returned unchanged.
func classifyRuleError(err error) error {
	var (
		dup       *emitter.DuplicateRuleError
		unmap     *emitter.UnmappableOutputError
		unres     *grid.UnresolvedModifierError
		variant   *guard.InvalidKeyboardVariantError
		ambiguous *chord.AmbiguousChordError
	)
	switch {
	case errors.As(err, &dup):
		return &RuleError{Code: ErrCodeDuplicateRule, Site: dup.Site, Err: err}
	case errors.As(err, &unmap):
		return &RuleError{Code: ErrCodeUnmappableOutput, Site: unmap.Site, Err: err}
	case errors.As(err, &unres):
		return &RuleError{Code: ErrCodeUnresolvedModifier, Site: unres.Site, Err: err}
	case errors.As(err, &variant):
		return &RuleError{Code: ErrCodeInvalidVariant, Site: variant.Site, Err: err}
	case errors.As(err, &ambiguous):
		return &RuleError{Code: ErrCodeAmbiguousChord, Site: ambiguous.Site, Err: err}
	default:
		return err
	}
}

// outputBuildError reports a generation failure. Located failures exit 2
// with the site on stderr; anything else is a runtime failure.
func outputBuildError(formatter *OutputFormatter, err error) error {
	var ruleErr *RuleError
	if errors.As(classifyRuleError(err), &ruleErr) {
		_ = formatter.Error(ruleErr.Code, ruleErr.Err.Error(), siteDetails(ruleErr.Site))
		if formatter.Format == "json" {
			fmt.Fprintf(formatter.GetErrWriter(), "%s at %s\n", ruleErr.Code, ruleErr.Site)
		} else {
			fmt.Fprintf(formatter.GetErrWriter(), "  at %s\n", ruleErr.Site)
		}
		return WrapExitError(ExitCommandError, ruleErr.Code, ruleErr.Err)
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitFailure, ErrCodeGeneric, err)
}

// outputLoadErrors reports layout load and validation errors, which all
// exit 2.
func outputLoadErrors(formatter *OutputFormatter, heading string, errs []error) error {
	type entry struct {
		Code    string `json:"code"`
		Field   string `json:"field,omitempty"`
		Message string `json:"message"`
		Line    int    `json:"line,omitempty"`
		File    string `json:"file,omitempty"`
	}
	entries := make([]entry, len(errs))
	for i, err := range errs {
		var loadErr *LoadError
		var valErr compiler.ValidationError
		switch {
		case errors.As(err, &loadErr):
			e := entry{Code: loadErr.Code, Message: loadErr.Message}
			if loadErr.Pos.IsValid() {
				e.File = loadErr.Pos.Filename()
				e.Line = loadErr.Pos.Line()
			}
			entries[i] = e
		case errors.As(err, &valErr):
			entries[i] = entry{Code: valErr.Code, Field: valErr.Field, Message: valErr.Message, Line: valErr.Line}
		default:
			entries[i] = entry{Code: ErrCodeGeneric, Message: err.Error()}
		}
	}

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(entries))
		for i, e := range entries {
			cliErrors[i] = CLIError{Code: e.Code, Message: e.Message, Details: e}
		}
		if err := formatter.writeJSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}); err != nil {
			return err
		}
	} else {
		w := formatter.GetErrWriter()
		fmt.Fprintf(w, "✗ %s\n\n", heading)
		for _, e := range entries {
			switch {
			case e.File != "":
				fmt.Fprintf(w, "%s:%d\n", e.File, e.Line)
			case e.Line > 0:
				fmt.Fprintf(w, "line %d\n", e.Line)
			}
			if e.Field != "" {
				fmt.Fprintf(w, "  %s: %s: %s\n\n", e.Code, e.Field, e.Message)
			} else {
				fmt.Fprintf(w, "  %s: %s\n\n", e.Code, e.Message)
			}
		}
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("%s with %d error(s)", heading, len(errs)))
}
