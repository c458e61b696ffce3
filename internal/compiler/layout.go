package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// DefaultModeSwitchKeys are the JIS 英数 and かな keys, which switch the
// input source on a Mac.
var DefaultModeSwitchKeys = []string{"japanese_eisuu", "japanese_kana"}

// DefaultClearKeys end composition: deleting or confirming text forgets the
// last vowel and any armed sticky modifier.
var DefaultClearKeys = []string{"delete_or_backspace", "spacebar", "return_or_enter", "tab", "escape"}

// CompileLayout parses a CUE value into a Layout.
//
// The CUE value should be the layout struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`layout: { name: "flick", ... }`)
//	layout, err := CompileLayout(v.LookupPath(cue.ParsePath("layout")))
func CompileLayout(v cue.Value) (*ir.Layout, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "layout", Message: "layout is required"}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError("layout", err)
	}

	l := &ir.Layout{}
	var err error

	if l.Name, err = stringField(v, "name", true); err != nil {
		return nil, err
	}
	if l.Title, err = stringField(v, "title", false); err != nil {
		return nil, err
	}
	if l.Title == "" {
		l.Title = l.Name
	}
	if l.Author, err = stringField(v, "author", false); err != nil {
		return nil, err
	}
	if l.Homepage, err = stringField(v, "homepage", false); err != nil {
		return nil, err
	}
	if l.Repo, err = stringField(v, "repo", false); err != nil {
		return nil, err
	}
	if l.Maintainers, err = stringList(v, "maintainers"); err != nil {
		return nil, err
	}
	if l.VowelRow, err = stringField(v, "vowel_row", false); err != nil {
		return nil, err
	}

	if l.Modes, err = parseModes(v); err != nil {
		return nil, err
	}
	if l.Variants, err = parseVariants(v); err != nil {
		return nil, err
	}
	if l.Rows, err = parseRows(v); err != nil {
		return nil, err
	}
	if l.Columns, err = parseColumns(v); err != nil {
		return nil, err
	}
	if l.Modifiers, err = parseModifiers(v); err != nil {
		return nil, err
	}
	if l.Cells, err = parseCells(v); err != nil {
		return nil, err
	}
	if l.Chords, err = parseChords(v); err != nil {
		return nil, err
	}

	if _, ok := lookup(v, "mode_switch_keys"); ok {
		if l.ModeSwitchKeys, err = stringList(v, "mode_switch_keys"); err != nil {
			return nil, err
		}
	} else {
		l.ModeSwitchKeys = append([]string(nil), DefaultModeSwitchKeys...)
	}
	if _, ok := lookup(v, "clear_keys"); ok {
		if l.ClearKeys, err = stringList(v, "clear_keys"); err != nil {
			return nil, err
		}
	} else {
		l.ClearKeys = append([]string(nil), DefaultClearKeys...)
	}

	policy, err := stringField(v, "unassigned", false)
	if err != nil {
		return nil, err
	}
	switch policy {
	case "", "skip":
		l.Unassigned = ir.UnassignedSkip
	case "block":
		l.Unassigned = ir.UnassignedBlock
	default:
		f, _ := lookup(v, "unassigned")
		return nil, &CompileError{
			Field:   "unassigned",
			Message: fmt.Sprintf("must be \"skip\" or \"block\", got %q", policy),
			Pos:     f.Pos(),
		}
	}

	return l, nil
}

// CompileSource compiles a single CUE source holding a top-level layout.
func CompileSource(data []byte, filename string) (*ir.Layout, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError("layout", err)
	}
	return CompileLayout(v.LookupPath(cue.ParsePath("layout")))
}

func parseModes(v cue.Value) ([]ir.Mode, error) {
	f, ok := lookup(v, "modes")
	if !ok {
		return nil, &CompileError{Field: "modes", Message: "at least one mode is required", Pos: v.Pos()}
	}
	var modes []ir.Mode
	err := eachElem(f, "modes", func(i int, e cue.Value) error {
		s, err := e.String()
		if err != nil {
			return formatCUEError(fmt.Sprintf("modes[%d]", i), err)
		}
		m, err := ir.ParseMode(s)
		if err != nil {
			return &CompileError{Field: fmt.Sprintf("modes[%d]", i), Message: err.Error(), Pos: e.Pos()}
		}
		modes = append(modes, m)
		return nil
	})
	return modes, err
}

func parseVariants(v cue.Value) ([]ir.KeyboardVariant, error) {
	f, ok := lookup(v, "variants")
	if !ok {
		return append([]ir.KeyboardVariant(nil), ir.AllVariants...), nil
	}
	var variants []ir.KeyboardVariant
	err := eachElem(f, "variants", func(i int, e cue.Value) error {
		s, err := e.String()
		if err != nil {
			return formatCUEError(fmt.Sprintf("variants[%d]", i), err)
		}
		kv, err := ir.ParseVariant(s)
		if err != nil || kv == ir.VariantAny {
			return &CompileError{
				Field:   fmt.Sprintf("variants[%d]", i),
				Message: fmt.Sprintf("must be one of ansi, iso, jis, got %q", s),
				Pos:     e.Pos(),
			}
		}
		variants = append(variants, kv)
		return nil
	})
	return variants, err
}

func parseRows(v cue.Value) ([]ir.Row, error) {
	f, ok := lookup(v, "rows")
	if !ok {
		return nil, &CompileError{Field: "rows", Message: "at least one row is required", Pos: v.Pos()}
	}
	var rows []ir.Row
	err := eachElem(f, "rows", func(i int, e cue.Value) error {
		field := fmt.Sprintf("rows[%d]", i)
		id, err := stringField(e, "id", true)
		if err != nil {
			return prefixField(field, err)
		}
		key, err := stringField(e, "key", false)
		if err != nil {
			return prefixField(field, err)
		}
		if key == "" {
			key = id
		}
		names, err := stringList(e, "variants")
		if err != nil {
			return prefixField(field, err)
		}
		row := ir.Row{ID: id, Key: key}
		for j, s := range names {
			kv, err := ir.ParseVariant(s)
			if err != nil || kv == ir.VariantAny {
				f, _ := lookup(e, "variants")
				return &CompileError{
					Field:   fmt.Sprintf("%s.variants[%d]", field, j),
					Message: fmt.Sprintf("must be one of ansi, iso, jis, got %q", s),
					Pos:     f.Pos(),
				}
			}
			row.Variants = append(row.Variants, kv)
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func parseColumns(v cue.Value) ([]ir.Column, error) {
	f, ok := lookup(v, "columns")
	if !ok {
		return nil, &CompileError{Field: "columns", Message: "at least one column is required", Pos: v.Pos()}
	}
	var cols []ir.Column
	err := eachElem(f, "columns", func(i int, e cue.Value) error {
		field := fmt.Sprintf("columns[%d]", i)
		id, err := stringField(e, "id", true)
		if err != nil {
			return prefixField(field, err)
		}
		key, err := stringField(e, "key", false)
		if err != nil {
			return prefixField(field, err)
		}
		mods, err := stringList(e, "modifiers")
		if err != nil {
			return prefixField(field, err)
		}
		cols = append(cols, ir.Column{ID: id, Key: key, Modifiers: mods})
		return nil
	})
	return cols, err
}

func parseModifiers(v cue.Value) ([]ir.ModifierRule, error) {
	f, ok := lookup(v, "modifiers")
	if !ok {
		return nil, nil
	}
	var mods []ir.ModifierRule
	err := eachElem(f, "modifiers", func(i int, e cue.Value) error {
		field := fmt.Sprintf("modifiers[%d]", i)
		var m ir.ModifierRule
		var err error
		if m.ID, err = stringField(e, "id", true); err != nil {
			return prefixField(field, err)
		}
		kind, err := stringField(e, "kind", true)
		if err != nil {
			return prefixField(field, err)
		}
		if m.Kind, err = ir.ParseEffectKind(kind); err != nil {
			k, _ := lookup(e, "kind")
			return &CompileError{Field: field + ".kind", Message: err.Error(), Pos: k.Pos()}
		}
		if m.Key, err = stringField(e, "key", false); err != nil {
			return prefixField(field, err)
		}
		if m.Target, err = stringField(e, "target", false); err != nil {
			return prefixField(field, err)
		}
		if m.Idle, err = stringField(e, "idle", false); err != nil {
			return prefixField(field, err)
		}
		if m.Template, err = stringList(e, "template"); err != nil {
			return prefixField(field, err)
		}
		if m.Unsupported, err = boolField(e, "unsupported"); err != nil {
			return prefixField(field, err)
		}
		mods = append(mods, m)
		return nil
	})
	return mods, err
}

func parseCells(v cue.Value) ([]ir.KanaCell, error) {
	f, ok := lookup(v, "cells")
	if !ok {
		return nil, nil
	}
	var cells []ir.KanaCell
	err := eachElem(f, "cells", func(i int, e cue.Value) error {
		field := fmt.Sprintf("cells[%d]", i)
		var c ir.KanaCell
		var err error
		if c.Row, err = stringField(e, "row", true); err != nil {
			return prefixField(field, err)
		}
		if c.Column, err = stringField(e, "column", true); err != nil {
			return prefixField(field, err)
		}
		if c.Base, err = stringField(e, "base", false); err != nil {
			return prefixField(field, err)
		}
		if c.Unassigned, err = boolField(e, "unassigned"); err != nil {
			return prefixField(field, err)
		}
		if c.Vowel, err = boolField(e, "vowel"); err != nil {
			return prefixField(field, err)
		}
		if c.Base == ir.UnassignedMarker {
			c.Unassigned = true
		}
		if c.Base == "" && !c.Unassigned {
			return &CompileError{Field: field + ".base", Message: "base is required unless the cell is unassigned", Pos: e.Pos()}
		}
		if c.Variants, err = parseCellVariants(e, field); err != nil {
			return err
		}
		passthrough, err := stringList(e, "passthrough")
		if err != nil {
			return prefixField(field, err)
		}
		for _, s := range passthrough {
			m, err := ir.ParseMode(s)
			if err != nil {
				p, _ := lookup(e, "passthrough")
				return &CompileError{Field: field + ".passthrough", Message: err.Error(), Pos: p.Pos()}
			}
			c.Passthrough = append(c.Passthrough, m)
		}
		cells = append(cells, c)
		return nil
	})
	return cells, err
}

// parseCellVariants reads the modifier-keyed variant strings of a cell. A
// null value references the modifier without defining its variant.
func parseCellVariants(e cue.Value, field string) (map[string]*string, error) {
	f, ok := lookup(e, "variants")
	if !ok {
		return nil, nil
	}
	iter, err := f.Fields()
	if err != nil {
		return nil, formatCUEError(field+".variants", err)
	}
	out := make(map[string]*string)
	for iter.Next() {
		label := iter.Label()
		val := iter.Value()
		if val.Kind() == cue.NullKind {
			out[label] = nil
			continue
		}
		s, err := val.String()
		if err != nil {
			return nil, formatCUEError(field+".variants."+label, err)
		}
		out[label] = &s
	}
	return out, nil
}

func parseChords(v cue.Value) ([]ir.Chord, error) {
	f, ok := lookup(v, "chords")
	if !ok {
		return nil, nil
	}
	var chords []ir.Chord
	err := eachElem(f, "chords", func(i int, e cue.Value) error {
		field := fmt.Sprintf("chords[%d]", i)
		var c ir.Chord
		var err error
		if c.Keys, err = stringList(e, "keys"); err != nil {
			return prefixField(field, err)
		}
		if c.Output, err = stringField(e, "output", true); err != nil {
			return prefixField(field, err)
		}
		if c.WindowMS, err = intField(e, "window_ms"); err != nil {
			return prefixField(field, err)
		}
		chords = append(chords, c)
		return nil
	})
	return chords, err
}

// lookup returns a concrete field. Non-concrete values (an unset optional
// field, a bare type) count as absent.
func lookup(v cue.Value, name string) (cue.Value, bool) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() || !f.IsConcrete() {
		return f, false
	}
	return f, true
}

func stringField(v cue.Value, name string, required bool) (string, error) {
	f, ok := lookup(v, name)
	if !ok {
		if required {
			return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(name, err)
	}
	return s, nil
}

func boolField(v cue.Value, name string) (bool, error) {
	f, ok := lookup(v, name)
	if !ok {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(name, err)
	}
	return b, nil
}

func intField(v cue.Value, name string) (int, error) {
	f, ok := lookup(v, name)
	if !ok {
		return 0, nil
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(name, err)
	}
	return int(n), nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	f, ok := lookup(v, name)
	if !ok {
		return nil, nil
	}
	var out []string
	err := eachElem(f, name, func(i int, e cue.Value) error {
		s, err := e.String()
		if err != nil {
			return formatCUEError(fmt.Sprintf("%s[%d]", name, i), err)
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func eachElem(list cue.Value, name string, fn func(i int, e cue.Value) error) error {
	iter, err := list.List()
	if err != nil {
		return formatCUEError(name, err)
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(i, iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func prefixField(prefix string, err error) error {
	if ce, ok := err.(*CompileError); ok {
		return &CompileError{Field: prefix + "." + ce.Field, Message: ce.Message, Pos: ce.Pos}
	}
	return err
}
