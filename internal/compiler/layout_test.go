package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/layouts"
)

func compileLayout(t *testing.T, src string) (*ir.Layout, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("test.cue"))
	require.NoError(t, v.Err())
	return CompileLayout(v.LookupPath(cue.ParsePath("layout")))
}

func mustCompileLayout(t *testing.T, src string) *ir.Layout {
	t.Helper()
	l, err := compileLayout(t, src)
	require.NoError(t, err)
	return l
}

func requireCompileError(t *testing.T, err error, field string) *CompileError {
	t.Helper()
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
	assert.Equal(t, field, ce.Field)
	return ce
}

// =============================================================================
// Layout Parsing Tests
// =============================================================================

func TestCompileMinimalLayout(t *testing.T) {
	l := mustCompileLayout(t, `
layout: {
	name: "mini"
	modes: ["kana"]
	rows: [{id: "k"}]
	columns: [{id: "a"}, {id: "i", key: "left_arrow"}]
	cells: [{row: "k", column: "a", base: "か"}]
}
`)

	assert.Equal(t, "mini", l.Name)
	assert.Equal(t, "mini", l.Title, "title defaults to name")
	assert.Equal(t, []ir.Mode{ir.ModeKana}, l.Modes)
	assert.Equal(t, ir.AllVariants, l.Variants, "variants default to all physical variants")
	assert.Equal(t, []ir.Row{{ID: "k", Key: "k"}}, l.Rows, "row key defaults to its id")
	assert.Equal(t, []ir.Column{{ID: "a"}, {ID: "i", Key: "left_arrow"}}, l.Columns)
	assert.Equal(t, DefaultModeSwitchKeys, l.ModeSwitchKeys)
	assert.Equal(t, DefaultClearKeys, l.ClearKeys)
	assert.Equal(t, ir.UnassignedSkip, l.Unassigned)
	assert.Empty(t, l.Modifiers)
	assert.Empty(t, l.Chords)
}

func TestCompileFullCell(t *testing.T) {
	l := mustCompileLayout(t, `
layout: {
	name: "cells"
	modes: ["kana", "romaji"]
	variants: ["jis", "ansi"]
	rows: [{id: "a"}, {id: "w"}]
	columns: [{id: "a"}, {id: "i", key: "left_arrow"}]
	modifiers: [
		{id: "small", kind: "small-form", key: "slash", template: ["delete_or_backspace"]},
		{id: "dakuten", kind: "dakuten", key: "semicolon"},
	]
	cells: [
		{row: "a", column: "a", base: "あ", variants: {small: "ぁ", dakuten: null}},
		{row: "w", column: "a", base: "❌"},
		{row: "w", column: "i", base: "ゐ", passthrough: ["kana"]},
		{row: "a", column: "i", unassigned: true},
	]
	chords: [{keys: ["n", "m"], output: "ん", window_ms: 80}]
	mode_switch_keys: ["caps_lock"]
	unassigned: "block"
	vowel_row: "a"
}
`)

	assert.Equal(t, []ir.KeyboardVariant{ir.VariantJIS, ir.VariantANSI}, l.Variants)
	require.Len(t, l.Modifiers, 2)
	assert.Equal(t, ir.ModifierRule{
		ID:       "small",
		Kind:     ir.EffectSmallForm,
		Key:      "slash",
		Template: []string{"delete_or_backspace"},
	}, l.Modifiers[0])

	require.Len(t, l.Cells, 4)
	small := l.Cells[0].Variants["small"]
	require.NotNil(t, small)
	assert.Equal(t, "ぁ", *small)
	dakuten, ok := l.Cells[0].Variants["dakuten"]
	assert.True(t, ok, "null variant keeps the reference")
	assert.Nil(t, dakuten)

	assert.True(t, l.Cells[1].Unassigned, "the marker means unassigned")
	assert.Equal(t, []ir.Mode{ir.ModeKana}, l.Cells[2].Passthrough)
	assert.True(t, l.Cells[3].Unassigned)
	assert.Empty(t, l.Cells[3].Base)

	assert.Equal(t, []ir.Chord{{Keys: []string{"n", "m"}, Output: "ん", WindowMS: 80}}, l.Chords)
	assert.Equal(t, []string{"caps_lock"}, l.ModeSwitchKeys)
	assert.Equal(t, ir.UnassignedBlock, l.Unassigned)
	assert.Equal(t, "a", l.VowelRow)
	assert.Empty(t, Validate(l))
}

func TestCompileShiftLayer(t *testing.T) {
	l := mustCompileLayout(t, `
layout: {
	name: "shifted"
	modes: ["kana"]
	variants: ["jis", "iso"]
	rows: [{id: "d"}, {id: "l"}, {id: "non_us_pound", variants: ["iso"]}]
	columns: [{id: "n"}, {id: "s", modifiers: ["shift"]}]
	modifiers: [{id: "small", kind: "small-form", key: "slash", idle: "゛"}]
	cells: [
		{row: "d", column: "n", base: "し"},
		{row: "l", column: "s", base: "あ", vowel: true, variants: {small: "ぁ"}},
		{row: "non_us_pound", column: "n", base: "」"},
	]
	clear_keys: ["escape"]
}
`)

	assert.Equal(t, []ir.Column{{ID: "n"}, {ID: "s", Modifiers: []string{"shift"}}}, l.Columns)
	assert.Equal(t, []ir.KeyboardVariant{ir.VariantISO}, l.Rows[2].Variants)
	assert.Empty(t, l.Rows[0].Variants)
	assert.Equal(t, "゛", l.Modifiers[0].Idle)
	assert.True(t, l.Cells[1].Vowel)
	assert.False(t, l.Cells[0].Vowel)
	assert.Equal(t, []string{"escape"}, l.ClearKeys)
	assert.Empty(t, Validate(l))
}

func TestCompileEmptyClearKeys(t *testing.T) {
	l := mustCompileLayout(t, `
layout: {
	name: "quiet"
	modes: ["kana"]
	rows: [{id: "k"}]
	columns: [{id: "a"}]
	clear_keys: []
}
`)
	assert.Empty(t, l.ClearKeys)
}

func TestCompileLayoutErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing layout",
			src:   `other: {}`,
			field: "layout",
		},
		{
			name:  "missing name",
			src:   `layout: {modes: ["kana"], rows: [{id: "k"}], columns: [{id: "a"}]}`,
			field: "name",
		},
		{
			name:  "missing modes",
			src:   `layout: {name: "x", rows: [{id: "k"}], columns: [{id: "a"}]}`,
			field: "modes",
		},
		{
			name:  "unknown mode",
			src:   `layout: {name: "x", modes: ["hiragana"], rows: [{id: "k"}], columns: [{id: "a"}]}`,
			field: "modes[0]",
		},
		{
			name:  "any is not a variant",
			src:   `layout: {name: "x", modes: ["kana"], variants: ["any"], rows: [{id: "k"}], columns: [{id: "a"}]}`,
			field: "variants[0]",
		},
		{
			name:  "row on an unknown keyboard",
			src:   `layout: {name: "x", modes: ["kana"], rows: [{id: "k", variants: ["dvorak"]}], columns: [{id: "a"}]}`,
			field: "rows[0].variants[0]",
		},
		{
			name:  "row without id",
			src:   `layout: {name: "x", modes: ["kana"], rows: [{key: "k"}], columns: [{id: "a"}]}`,
			field: "rows[0].id",
		},
		{
			name:  "missing columns",
			src:   `layout: {name: "x", modes: ["kana"], rows: [{id: "k"}]}`,
			field: "columns",
		},
		{
			name: "unknown modifier kind",
			src: `layout: {name: "x", modes: ["kana"], rows: [{id: "k"}], columns: [{id: "a"}],
				modifiers: [{id: "m", kind: "umlaut", key: "u"}]}`,
			field: "modifiers[0].kind",
		},
		{
			name: "cell without base",
			src: `layout: {name: "x", modes: ["kana"], rows: [{id: "k"}], columns: [{id: "a"}],
				cells: [{row: "k", column: "a"}]}`,
			field: "cells[0].base",
		},
		{
			name: "passthrough lists an unknown mode",
			src: `layout: {name: "x", modes: ["kana"], rows: [{id: "k"}], columns: [{id: "a"}],
				cells: [{row: "k", column: "a", base: "か", passthrough: ["katakana"]}]}`,
			field: "cells[0].passthrough",
		},
		{
			name: "chord without output",
			src: `layout: {name: "x", modes: ["kana"], rows: [{id: "k"}], columns: [{id: "a"}],
				chords: [{keys: ["n", "m"]}]}`,
			field: "chords[0].output",
		},
		{
			name:  "unknown unassigned policy",
			src:   `layout: {name: "x", modes: ["kana"], rows: [{id: "k"}], columns: [{id: "a"}], unassigned: "maybe"}`,
			field: "unassigned",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileLayout(t, tt.src)
			requireCompileError(t, err, tt.field)
		})
	}
}

func TestCompileSourceSyntaxError(t *testing.T) {
	_, err := CompileSource([]byte("layout: {name: "), "broken.cue")
	ce := requireCompileError(t, err, "layout")
	assert.Contains(t, ce.Error(), "broken.cue")
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	_, err := compileLayout(t, `layout: {
	name: "x"
	modes: ["kana"]
	rows: [{id: "k"}]
	columns: [{id: "a"}]
	unassigned: "maybe"
}`)
	ce := requireCompileError(t, err, "unassigned")
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 6, ce.Pos.Line())
	assert.Contains(t, ce.Error(), "test.cue:6:")
	assert.Contains(t, ce.Error(), `must be "skip" or "block", got "maybe"`)
}

// =============================================================================
// Built-in Layout Tests
// =============================================================================

func TestBuiltinLayoutsCompileCleanly(t *testing.T) {
	for _, name := range layouts.Names() {
		t.Run(name, func(t *testing.T) {
			data, file, err := layouts.Source(name)
			require.NoError(t, err)

			l, err := CompileSource(data, file)
			require.NoError(t, err)

			assert.Equal(t, name, l.Name)
			assert.Empty(t, Validate(l))
		})
	}
}

func TestFlickLayout(t *testing.T) {
	data, file, err := layouts.Source(layouts.Default)
	require.NoError(t, err)
	l, err := CompileSource(data, file)
	require.NoError(t, err)

	assert.Equal(t, "Flick-style kana chording", l.Title)
	assert.Equal(t, []string{"peterjc"}, l.Maintainers)
	assert.Equal(t, []ir.Mode{ir.ModeKana, ir.ModeRomaji}, l.Modes)
	assert.Equal(t, ir.UnassignedBlock, l.Unassigned)
	assert.Equal(t, "a", l.VowelRow)
	assert.Len(t, l.Columns, 5)

	var katakana *ir.ModifierRule
	for i := range l.Modifiers {
		if l.Modifiers[i].Kind == ir.EffectKatakanaShift {
			katakana = &l.Modifiers[i]
		}
	}
	require.NotNil(t, katakana)
	assert.True(t, katakana.Unsupported)
	assert.Empty(t, katakana.Key)
}

func TestNewStickneyLayout(t *testing.T) {
	data, file, err := layouts.Source("new-stickney")
	require.NoError(t, err)
	l, err := CompileSource(data, file)
	require.NoError(t, err)

	assert.Equal(t, []ir.Mode{ir.ModeKana}, l.Modes)
	assert.Empty(t, l.VowelRow)
	assert.Equal(t, DefaultClearKeys, l.ClearKeys)
	assert.Equal(t, []string{"shift"}, l.Columns[1].Modifiers)

	var vowels []string
	for _, c := range l.Cells {
		if c.Vowel {
			vowels = append(vowels, c.Base)
		}
	}
	assert.Equal(t, []string{"あ", "い", "う", "え", "お"}, vowels)

	require.Len(t, l.Modifiers, 1)
	assert.Equal(t, "゛", l.Modifiers[0].Idle)
	assert.Equal(t, "l", l.Modifiers[0].Key)
}
