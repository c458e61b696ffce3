// Package guard decides the input-mode and keyboard-variant guard of a
// candidate rule.
package guard

import (
	"errors"
	"fmt"
	"slices"

	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/keymap"
)

// InvalidKeyboardVariantError reports a rule whose output depends on
// physical key position but which has no keyboard-variant guard.
type InvalidKeyboardVariantError struct {
	Site   ir.Site
	Output string
}

func (e *InvalidKeyboardVariantError) Error() string {
	return fmt.Sprintf("invalid keyboard variant: output %q differs between ANSI, ISO and JIS but has no variant guard (%s)",
		e.Output, e.Site)
}

// Context is what the resolver knows about a candidate rule.
type Context struct {
	Site ir.Site
	// Output is the text the rule types. Empty for rules that only set
	// state, which never depend on key position.
	Output string
	// Passthrough lists the modes in which the source cell defers to the
	// input-method engine.
	Passthrough []ir.Mode
	// Variants lists the keyboards the source key exists on. Empty means
	// every keyboard.
	Variants []ir.KeyboardVariant
}

// Resolver assigns guards for one layout.
type Resolver struct {
	allVariants bool
}

// New returns a resolver for a layout declaring the given variants.
func New(declared []ir.KeyboardVariant) *Resolver {
	all := true
	for _, v := range ir.AllVariants {
		if !slices.Contains(declared, v) {
			all = false
		}
	}
	return &Resolver{allVariants: all}
}

// Resolve returns the guard for ctx in ctx.Site's mode and variant.
//
// Mode is passthrough when the source cell lists it; the emitter must skip
// such rules. Otherwise the variant is widened to VariantAny when the output
// is typed the same on every keyboard and the layout targets every keyboard.
// A context that asks for VariantAny directly must have a
// position-independent output.
func (r *Resolver) Resolve(ctx Context) (ir.Guard, error) {
	mode := ctx.Site.Mode
	switch mode {
	case ir.ModeKana, ir.ModeRomaji:
	case ir.ModePassthrough:
		return ir.Guard{Mode: ir.ModePassthrough, Variant: ctx.Site.Variant}, nil
	default:
		return ir.Guard{}, fmt.Errorf("guard: unknown mode %d", mode)
	}
	if slices.Contains(ctx.Passthrough, mode) {
		return ir.Guard{Mode: ir.ModePassthrough, Variant: ctx.Site.Variant}, nil
	}

	dependent := false
	if ctx.Output != "" {
		var err error
		dependent, err = keymap.PositionDependent(mode, ctx.Output)
		// Unmappable output is reported by the emitter when it asks for
		// strokes.
		if err != nil && !errors.Is(err, keymap.ErrUnmappable) {
			return ir.Guard{}, err
		}
	}

	if ctx.Site.Variant == ir.VariantAny {
		if dependent {
			return ir.Guard{}, &InvalidKeyboardVariantError{Site: ctx.Site, Output: ctx.Output}
		}
		return ir.Guard{Mode: mode, Variant: ir.VariantAny}, nil
	}
	if !dependent && r.allVariants && onEvery(ctx.Variants) {
		return ir.Guard{Mode: mode, Variant: ir.VariantAny}, nil
	}
	return ir.Guard{Mode: mode, Variant: ctx.Site.Variant}, nil
}

func onEvery(variants []ir.KeyboardVariant) bool {
	if len(variants) == 0 {
		return true
	}
	for _, v := range ir.AllVariants {
		if !slices.Contains(variants, v) {
			return false
		}
	}
	return true
}

// Check verifies an already-built rule: a rule typing position-dependent
// output must carry a concrete variant guard.
func Check(rule *ir.GeneratedRule) error {
	if rule.Guard.Variant != ir.VariantAny || rule.Output == "" {
		return nil
	}
	dependent, err := keymap.PositionDependent(rule.Guard.Mode, rule.Output)
	if err != nil {
		if errors.Is(err, keymap.ErrUnmappable) {
			return nil
		}
		return err
	}
	if dependent {
		return &InvalidKeyboardVariantError{Site: ir.SiteOf(rule.Source, rule.Guard), Output: rule.Output}
	}
	return nil
}
