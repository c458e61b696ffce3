// Package keymap is the keystroke data source: for an output string it
// returns the key strokes that make the host input-method engine produce
// that string, per input mode and keyboard variant.
//
// Kana mode types on the JIS kana layout. Voiced and semi-voiced kana are
// typed as their base kana followed by the ゛ or ゜ key. Romaji mode types
// the romaji spelling, and wide ASCII is typed as its narrow form.
package keymap

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// ErrUnmappable reports output text with no key strokes in a mode.
var ErrUnmappable = errors.New("no key strokes")

// ErrPositionDependent reports a VariantAny lookup of text whose strokes
// differ between keyboard variants.
var ErrPositionDependent = errors.New("key strokes depend on keyboard variant")

const (
	combiningVoiced     = '\u3099'
	combiningSemiVoiced = '\u309a'
)

// Strokes returns the key strokes typing text in mode on variant. With
// VariantAny the strokes must be the same on every concrete variant.
func Strokes(mode ir.Mode, variant ir.KeyboardVariant, text string) ([]ir.KeyStroke, error) {
	if variant == ir.VariantAny {
		dependent, err := PositionDependent(mode, text)
		if err != nil {
			return nil, err
		}
		if dependent {
			return nil, fmt.Errorf("%q in %s mode: %w", text, mode, ErrPositionDependent)
		}
		variant = ir.VariantJIS
	}
	switch mode {
	case ir.ModeKana:
		return kanaStrokes(variant, text)
	case ir.ModeRomaji:
		return romajiStrokes(variant, text)
	default:
		return nil, fmt.Errorf("%q in %s mode: %w", text, mode, ErrUnmappable)
	}
}

// PositionDependent reports whether typing text in mode needs different
// keys on ANSI, ISO and JIS keyboards.
func PositionDependent(mode ir.Mode, text string) (bool, error) {
	var first []ir.KeyStroke
	for i, v := range ir.AllVariants {
		strokes, err := Strokes(mode, v, text)
		if err != nil {
			return false, err
		}
		if i == 0 {
			first = strokes
			continue
		}
		if !slices.EqualFunc(first, strokes, equalStroke) {
			return true, nil
		}
	}
	return false, nil
}

func equalStroke(a, b ir.KeyStroke) bool {
	return a.Code == b.Code && slices.Equal(a.Modifiers, b.Modifiers)
}

func kanaStrokes(v ir.KeyboardVariant, text string) ([]ir.KeyStroke, error) {
	var out []ir.KeyStroke
	for _, r := range norm.NFD.String(text) {
		switch r {
		case combiningVoiced:
			r = '゛'
		case combiningSemiVoiced:
			r = '゜'
		}
		s, ok := kanaStroke(v, r)
		if !ok {
			return nil, fmt.Errorf("%q (%q) in kana mode: %w", text, r, ErrUnmappable)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty output in kana mode: %w", ErrUnmappable)
	}
	return out, nil
}

func romajiStrokes(v ir.KeyboardVariant, text string) ([]ir.KeyStroke, error) {
	spelling, bad, ok := spellRomaji(narrowASCII(text))
	if !ok {
		return nil, fmt.Errorf("%q (%q) in romaji mode: %w", text, bad, ErrUnmappable)
	}
	b := asciiUS
	if v == ir.VariantJIS {
		b = asciiJIS
	}
	var out []ir.KeyStroke
	for _, r := range spelling {
		s, ok := b.stroke(r)
		if !ok {
			return nil, fmt.Errorf("%q (%q) in romaji mode on %s: %w", text, r, v, ErrUnmappable)
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty output in romaji mode: %w", ErrUnmappable)
	}
	return out, nil
}

// narrowASCII maps fullwidth ASCII and the ideographic space to ASCII.
// Wide kana punctuation such as 、 is left alone; its halfwidth form is not
// what romaji mode types.
func narrowASCII(text string) string {
	out := []rune(text)
	for i, r := range out {
		if width.LookupRune(r).Kind() == width.EastAsianFullwidth {
			if n := width.LookupRune(r).Narrow(); n != 0 {
				out[i] = n
			}
		}
	}
	return string(out)
}
