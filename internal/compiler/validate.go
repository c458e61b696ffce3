package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrLayoutNameEmpty   = "E101" // name is required
	ErrNoModes           = "E102" // at least one input mode
	ErrInvalidMode       = "E103" // passthrough is not a declarable mode
	ErrDuplicateID       = "E104" // duplicate row/column/modifier id
	ErrKeyRoleConflict   = "E105" // key used in more than one role
	ErrUnknownReference  = "E106" // reference to an undeclared row/column/modifier
	ErrDuplicateCell     = "E107" // two cells at one address
	ErrDuplicateEffect   = "E108" // two modifiers with one effect kind
	ErrInvalidModifier   = "E109" // modifier fields inconsistent with its kind
	ErrInvalidChord      = "E110" // malformed explicit chord
	ErrInvalidVowelRow   = "E111" // vowel recall needs at most five columns
	ErrDuplicateVariants = "E112" // keyboard variant declared twice
	ErrInvalidColumn     = "E113" // column selects by key and held modifiers at once
)

// hostModifiers are the modifier names a column may require.
var hostModifiers = []string{
	"shift", "left_shift", "right_shift",
	"control", "left_control", "right_control",
	"option", "left_option", "right_option",
	"command", "left_command", "right_command",
	"fn",
}

// ValidationError represents a layout validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled layout for structural errors.
// Returns all errors found (does not fail-fast). Errors that depend on
// resolving cells against modifiers are reported later by the grid.
func Validate(l *ir.Layout) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if strings.TrimSpace(l.Name) == "" {
		add(ErrLayoutNameEmpty, "name", "name is required and must be non-empty")
	}

	if len(l.Modes) == 0 {
		add(ErrNoModes, "modes", "at least one input mode is required")
	}
	for i, m := range l.Modes {
		if m == ir.ModePassthrough {
			add(ErrInvalidMode, fmt.Sprintf("modes[%d]", i), "passthrough is declared per cell, not per layout")
		}
		if slices.Index(l.Modes, m) != i {
			add(ErrInvalidMode, fmt.Sprintf("modes[%d]", i), "mode %s declared twice", m)
		}
	}
	for i, v := range l.Variants {
		if slices.Index(l.Variants, v) != i {
			add(ErrDuplicateVariants, fmt.Sprintf("variants[%d]", i), "variant %s declared twice", v)
		}
	}

	rowIDs := make(map[string]bool)
	colIDs := make(map[string]bool)
	modByID := make(map[string]ir.ModifierRule)

	// keyRole records the first declaration that claimed each key.
	keyRole := make(map[string]string)
	claim := func(key, owner string) {
		if key == "" {
			return
		}
		if prev, ok := keyRole[key]; ok {
			add(ErrKeyRoleConflict, owner, "key %q is already used by %s", key, prev)
			return
		}
		keyRole[key] = owner
	}

	colByID := make(map[string]ir.Column)
	for i, c := range l.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if colIDs[c.ID] {
			add(ErrDuplicateID, field+".id", "duplicate column id %q", c.ID)
		}
		colIDs[c.ID] = true
		colByID[c.ID] = c
		if c.Key != "" && len(c.Modifiers) > 0 {
			add(ErrInvalidColumn, field+".modifiers", "a column selects by key or by held modifiers, not both")
		}
		for j, m := range c.Modifiers {
			if !slices.Contains(hostModifiers, m) {
				add(ErrInvalidColumn, fmt.Sprintf("%s.modifiers[%d]", field, j), "unknown host modifier %q", m)
			}
		}
	}
	for i, r := range l.Rows {
		field := fmt.Sprintf("rows[%d]", i)
		if rowIDs[r.ID] {
			add(ErrDuplicateID, field+".id", "duplicate row id %q", r.ID)
		}
		rowIDs[r.ID] = true
		for _, t := range rowTriggers(r, l.Cells, colByID) {
			claim(t, "row "+r.ID)
		}
		for j, v := range r.Variants {
			if !slices.Contains(l.Variants, v) {
				add(ErrUnknownReference, fmt.Sprintf("%s.variants[%d]", field, j), "variant %s is not declared by the layout", v)
			}
		}
	}
	for _, c := range l.Columns {
		claim(c.Key, "column "+c.ID)
	}
	if n := countKeyless(l.Columns); n > 1 {
		add(ErrKeyRoleConflict, "columns", "%d columns have no selector key; at most one may", n)
	}

	kinds := make(map[ir.EffectKind]string)
	for i, m := range l.Modifiers {
		field := fmt.Sprintf("modifiers[%d]", i)
		if _, dup := modByID[m.ID]; dup {
			add(ErrDuplicateID, field+".id", "duplicate modifier id %q", m.ID)
		}
		modByID[m.ID] = m
		if prev, ok := kinds[m.Kind]; ok {
			add(ErrDuplicateEffect, field+".kind", "effect %s is already provided by modifier %q", m.Kind, prev)
		} else {
			kinds[m.Kind] = m.ID
		}
		claim(m.Key, "modifier "+m.ID)
	}
	for i, m := range l.Modifiers {
		errs = append(errs, validateModifier(fmt.Sprintf("modifiers[%d]", i), m, modByID, l.Modifiers)...)
	}

	cellAt := make(map[[2]string]bool)
	for i, c := range l.Cells {
		field := fmt.Sprintf("cells[%d]", i)
		if !rowIDs[c.Row] {
			add(ErrUnknownReference, field+".row", "undeclared row %q", c.Row)
		}
		if !colIDs[c.Column] {
			add(ErrUnknownReference, field+".column", "undeclared column %q", c.Column)
		}
		addr := [2]string{c.Row, c.Column}
		if cellAt[addr] {
			add(ErrDuplicateCell, field, "cell (%s,%s) declared twice", c.Row, c.Column)
		}
		cellAt[addr] = true
		for _, id := range slices.Sorted(maps.Keys(c.Variants)) {
			m, ok := modByID[id]
			if !ok {
				add(ErrUnknownReference, field+".variants."+id, "undeclared modifier %q", id)
				continue
			}
			if m.Kind == ir.EffectStickyShift {
				add(ErrInvalidModifier, field+".variants."+id, "sticky-shift %q has no variants of its own; use its target", id)
			}
		}
		for _, m := range c.Passthrough {
			if m == ir.ModePassthrough {
				add(ErrInvalidMode, field+".passthrough", "passthrough lists input modes, not passthrough")
			}
		}
	}

	for i, ch := range l.Chords {
		field := fmt.Sprintf("chords[%d]", i)
		if len(ch.Keys) < 2 {
			add(ErrInvalidChord, field+".keys", "a chord needs at least two keys, got %d", len(ch.Keys))
		}
		seen := make(map[string]bool)
		for _, k := range ch.Keys {
			if seen[k] {
				add(ErrInvalidChord, field+".keys", "key %q repeated", k)
			}
			seen[k] = true
		}
		if ch.Output == "" || ch.Output == ir.UnassignedMarker {
			add(ErrInvalidChord, field+".output", "a chord needs an output")
		}
		if ch.WindowMS < 0 {
			add(ErrInvalidChord, field+".window_ms", "window must not be negative")
		}
	}

	vowels := 0
	for _, c := range l.Cells {
		if c.Vowel {
			vowels++
		}
	}
	if l.VowelRow != "" {
		if !rowIDs[l.VowelRow] {
			add(ErrUnknownReference, "vowel_row", "undeclared row %q", l.VowelRow)
		}
		if len(l.Columns) > 5 {
			add(ErrInvalidVowelRow, "vowel_row", "vowel recall supports at most five columns, layout has %d", len(l.Columns))
		}
		if vowels > 0 {
			add(ErrInvalidVowelRow, "vowel_row", "vowel_row and cells marked vowel are exclusive")
		}
	} else if vowels > 5 {
		add(ErrInvalidVowelRow, "cells", "vowel recall supports at most five vowel cells, layout marks %d", vowels)
	}

	for i, k := range l.ModeSwitchKeys {
		if owner, ok := keyRole[k]; ok {
			add(ErrKeyRoleConflict, fmt.Sprintf("mode_switch_keys[%d]", i), "key %q is already used by %s", k, owner)
		}
	}
	for i, k := range l.ClearKeys {
		field := fmt.Sprintf("clear_keys[%d]", i)
		if owner, ok := keyRole[k]; ok {
			add(ErrKeyRoleConflict, field, "key %q is already used by %s", k, owner)
			continue
		}
		if slices.Contains(l.ModeSwitchKeys, k) {
			add(ErrKeyRoleConflict, field, "key %q is already a mode switch key", k)
		}
		if slices.Index(l.ClearKeys, k) != i {
			add(ErrKeyRoleConflict, field, "key %q listed twice", k)
		}
	}

	return errs
}

func validateModifier(field string, m ir.ModifierRule, byID map[string]ir.ModifierRule, all []ir.ModifierRule) []ValidationError {
	var errs []ValidationError
	add := func(f, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field + f, Message: fmt.Sprintf(format, args...), Code: ErrInvalidModifier})
	}

	switch m.Kind {
	case ir.EffectColumnSelect:
		add(".kind", "column selectors are declared with columns[].key")
	case ir.EffectStickyShift:
		if m.Key == "" {
			add(".key", "sticky-shift needs a key")
		}
		target, ok := byID[m.Target]
		switch {
		case m.Target == "":
			add(".target", "sticky-shift needs a target modifier")
		case !ok:
			errs = append(errs, ValidationError{Field: field + ".target", Message: fmt.Sprintf("undeclared modifier %q", m.Target), Code: ErrUnknownReference})
		case target.Kind.IsStateful():
			add(".target", "target %q is itself stateful", m.Target)
		}
		if len(m.Template) > 0 {
			add(".template", "sticky-shift emits its target's template")
		}
		if m.Idle != "" {
			add(".idle", "only small-form takes an idle output")
		}
	default:
		if m.Idle != "" && m.Kind != ir.EffectSmallForm {
			add(".idle", "only small-form takes an idle output")
		}
		if m.Target != "" {
			add(".target", "only sticky-shift takes a target")
		}
		if m.Key == "" && !m.Unsupported && !isStickyTarget(m.ID, all) {
			add(".key", "modifier %q has no key and no sticky-shift targets it", m.ID)
		}
	}
	return errs
}

func isStickyTarget(id string, all []ir.ModifierRule) bool {
	return slices.ContainsFunc(all, func(m ir.ModifierRule) bool {
		return m.Kind == ir.EffectStickyShift && m.Target == id
	})
}

// countKeyless counts the columns selected by the row key alone.
func countKeyless(cols []ir.Column) int {
	n := 0
	for _, c := range cols {
		if c.Key == "" && len(c.Modifiers) == 0 {
			n++
		}
	}
	return n
}

// rowTriggers lists the triggers a row key owns. A row whose cells all
// sit in held-modifier columns leaves the bare key free.
func rowTriggers(r ir.Row, cells []ir.KanaCell, cols map[string]ir.Column) []string {
	var out []string
	for _, c := range cells {
		if c.Row != r.ID {
			continue
		}
		col, ok := cols[c.Column]
		if !ok {
			continue
		}
		t := r.Key
		if len(col.Modifiers) > 0 {
			t = strings.Join(col.Modifiers, "+") + "+" + r.Key
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		out = append(out, r.Key)
	}
	return out
}
