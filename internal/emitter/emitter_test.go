package emitter

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterjc/kana-chording-ke/internal/chord"
	"github.com/peterjc/kana-chording-ke/internal/grid"
	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/sticky"
)

func str(s string) *string { return &s }

func key(code string, mods ...string) ir.Action {
	return ir.KeyAction(ir.KeyStroke{Code: code, Modifiers: mods})
}

func baseLayout() *ir.Layout {
	return &ir.Layout{
		Name:           "test",
		Title:          "test",
		Modes:          []ir.Mode{ir.ModeKana},
		Variants:       []ir.KeyboardVariant{ir.VariantJIS},
		ModeSwitchKeys: []string{"japanese_eisuu", "japanese_kana"},
	}
}

// keLayout is a single け cell: row k, column e on the right arrow.
func keLayout() *ir.Layout {
	l := baseLayout()
	l.Rows = []ir.Row{{ID: "k", Key: "k"}}
	l.Columns = []ir.Column{{ID: "e", Key: "right_arrow"}}
	l.Cells = []ir.KanaCell{{Row: "k", Column: "e", Base: "け"}}
	return l
}

func stickyLayout() *ir.Layout {
	l := baseLayout()
	l.Rows = []ir.Row{{ID: "k", Key: "k"}}
	l.Columns = []ir.Column{{ID: "a"}}
	l.Modifiers = []ir.ModifierRule{
		{ID: "dakuten", Kind: ir.EffectDakuten, Key: "semicolon"},
		{ID: "sticky", Kind: ir.EffectStickyShift, Key: "right_option", Target: "dakuten"},
	}
	l.Cells = []ir.KanaCell{{Row: "k", Column: "a", Base: "か", Variants: map[string]*string{"dakuten": str("が")}}}
	return l
}

func recallLayout() *ir.Layout {
	l := baseLayout()
	l.Rows = []ir.Row{{ID: "a", Key: "a"}, {ID: "k", Key: "k"}}
	l.Columns = []ir.Column{{ID: "a"}, {ID: "i", Key: "left_arrow"}}
	l.Modifiers = []ir.ModifierRule{{ID: "small", Kind: ir.EffectSmallForm, Key: "slash"}}
	l.VowelRow = "a"
	l.Cells = []ir.KanaCell{
		{Row: "a", Column: "a", Base: "あ", Variants: map[string]*string{"small": str("ぁ")}},
		{Row: "a", Column: "i", Base: "い", Variants: map[string]*string{"small": str("ぃ")}},
		{Row: "k", Column: "a", Base: "か"},
		{Row: "k", Column: "i", Base: "き"},
	}
	return l
}

func emit(t *testing.T, l *ir.Layout) *Result {
	t.Helper()
	res, err := Emit(l, Options{})
	require.NoError(t, err)
	return res
}

func find(res *Result, pred func(*ir.GeneratedRule) bool) []*ir.GeneratedRule {
	var out []*ir.GeneratedRule
	for i := range res.Rules {
		if pred(&res.Rules[i]) {
			out = append(out, &res.Rules[i])
		}
	}
	return out
}

func TestSingleCellEndToEnd(t *testing.T) {
	res := emit(t, keLayout())

	require.Len(t, res.Rules, 1)
	want := ir.GeneratedRule{
		Trigger:  ir.Trigger{Keys: []string{"k", "right_arrow"}},
		Guard:    ir.Guard{Mode: ir.ModeKana, Variant: ir.VariantJIS},
		Output:   "け",
		Actions:  []ir.Action{key("quote")},
		WindowMS: DefaultChordWindowMS,
		Priority: 20,
		Source:   ir.Source{Row: "k", Column: "e", Chord: -1},
	}
	if diff := cmp.Diff(want, res.Rules[0]); diff != "" {
		t.Errorf("rule (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, res.Stats.Triples)
}

func TestEveryBaseCellCoversEveryGuard(t *testing.T) {
	l := baseLayout()
	l.Modes = []ir.Mode{ir.ModeKana, ir.ModeRomaji}
	l.Variants = ir.AllVariants
	l.Rows = []ir.Row{{ID: "k", Key: "k"}, {ID: "s", Key: "s"}, {ID: "r", Key: "r"}}
	l.Columns = []ir.Column{{ID: "a"}, {ID: "e", Key: "right_arrow"}}
	l.Cells = []ir.KanaCell{
		{Row: "k", Column: "a", Base: "か"},
		{Row: "k", Column: "e", Base: "け"},
		{Row: "s", Column: "a", Base: "さ"},
		{Row: "s", Column: "e", Base: ir.UnassignedMarker, Unassigned: true},
		{Row: "r", Column: "a", Base: "ら"},
	}
	res := emit(t, l)

	for _, c := range l.Cells {
		if c.Unassigned {
			continue
		}
		for _, mode := range l.Modes {
			for _, v := range l.Variants {
				g := ir.Guard{Mode: mode, Variant: v}
				got := find(res, func(r *ir.GeneratedRule) bool {
					return r.Source.Row == c.Row && r.Source.Column == c.Column && r.Source.Modifier == "" &&
						r.Guard.Mode == mode && r.Guard.Overlaps(g)
				})
				require.Len(t, got, 1, "cell (%s,%s) under %s", c.Row, c.Column, g)
				assert.Equal(t, c.Base, got[0].Output)
			}
		}
	}

	assert.Empty(t, find(res, func(r *ir.GeneratedRule) bool { return r.Source.Row == "s" && r.Source.Column == "e" }))
}

func TestPositionIndependentOutputWidensToAny(t *testing.T) {
	l := keLayout()
	l.Variants = ir.AllVariants
	res := emit(t, l)

	require.Len(t, res.Rules, 1)
	assert.Equal(t, ir.VariantAny, res.Rules[0].Guard.Variant)
}

func TestPositionDependentOutputKeepsVariants(t *testing.T) {
	l := baseLayout()
	l.Variants = ir.AllVariants
	l.Rows = []ir.Row{{ID: "r", Key: "r"}}
	l.Columns = []ir.Column{{ID: "o", Key: "down_arrow"}}
	l.Cells = []ir.KanaCell{{Row: "r", Column: "o", Base: "ろ"}}
	res := emit(t, l)

	require.Len(t, res.Rules, 3)
	var variants []ir.KeyboardVariant
	for _, r := range res.Rules {
		variants = append(variants, r.Guard.Variant)
	}
	assert.Equal(t, []ir.KeyboardVariant{ir.VariantANSI, ir.VariantISO, ir.VariantJIS}, variants)
	assert.Equal(t, []ir.Action{key("quote", "shift")}, res.Rules[0].Actions)
	assert.Equal(t, []ir.Action{key("international1")}, res.Rules[2].Actions)
}

func TestEmitIsDeterministic(t *testing.T) {
	a := emit(t, stickyLayout())
	b := emit(t, stickyLayout())
	if diff := cmp.Diff(a.Rules, b.Rules); diff != "" {
		t.Errorf("second emit differs (-first +second):\n%s", diff)
	}
}

func TestDuplicateRuleNamesBothSources(t *testing.T) {
	l := keLayout()
	l.Chords = []ir.Chord{{Keys: []string{"k", "right_arrow"}, Output: "こ"}}

	_, err := Emit(l, Options{})
	var dup *DuplicateRuleError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, ir.Source{Row: "k", Column: "e", Chord: -1}, dup.First)
	assert.Equal(t, ir.Source{Chord: 0}, dup.Second)
	assert.Equal(t, "け", dup.FirstOutput)
	assert.Equal(t, "こ", dup.SecondOutput)
	assert.Contains(t, err.Error(), "cell(k,e)")
	assert.Contains(t, err.Error(), "chord[0]")
}

func TestIdenticalOutputIsDeduplicated(t *testing.T) {
	l := keLayout()
	l.Chords = []ir.Chord{{Keys: []string{"right_arrow", "k"}, Output: "け"}}

	res := emit(t, l)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, ir.Source{Row: "k", Column: "e", Chord: -1}, res.Rules[0].Source)
	assert.Equal(t, 1, res.Stats.Deduped)
}

func TestAmbiguousExplicitChords(t *testing.T) {
	l := baseLayout()
	l.Chords = []ir.Chord{
		{Keys: []string{"n", "m"}, Output: "ん"},
		{Keys: []string{"m", "n"}, Output: "ん"},
	}
	_, err := Emit(l, Options{})
	var amb *chord.AmbiguousChordError
	require.True(t, errors.As(err, &amb), "got %v", err)
	assert.Equal(t, []string{"m", "n"}, amb.Keys)
}

func TestExplicitChordWindow(t *testing.T) {
	l := baseLayout()
	l.Chords = []ir.Chord{
		{Keys: []string{"n", "m"}, Output: "ん", WindowMS: 120},
		{Keys: []string{"hyphen", "equal_sign"}, Output: "ー"},
	}
	res, err := Emit(l, Options{ChordWindowMS: 80})
	require.NoError(t, err)
	require.Len(t, res.Rules, 2)
	assert.Equal(t, 120, res.Rules[0].WindowMS)
	assert.Equal(t, 80, res.Rules[1].WindowMS)
	assert.Equal(t, []ir.Action{key("international3")}, res.Rules[1].Actions)
}

func TestUnmappableOutput(t *testing.T) {
	l := keLayout()
	l.Cells[0].Base = "漢"

	_, err := Emit(l, Options{})
	var um *UnmappableOutputError
	require.True(t, errors.As(err, &um), "got %v", err)
	assert.Equal(t, "漢", um.Output)
	assert.Equal(t, ir.Site{Row: "k", Column: "e", Mode: ir.ModeKana, Variant: ir.VariantJIS}, um.Site)
}

func TestPassthroughSkipsRule(t *testing.T) {
	l := keLayout()
	l.Cells[0].Base = "漢"
	l.Cells[0].Passthrough = []ir.Mode{ir.ModeKana}

	res := emit(t, l)
	assert.Empty(t, res.Rules)
	assert.Equal(t, 1, res.Stats.Passthrough)
}

func TestUnassignedPolicy(t *testing.T) {
	build := func(policy ir.UnassignedPolicy) *ir.Layout {
		l := baseLayout()
		l.Unassigned = policy
		l.Rows = []ir.Row{{ID: "y", Key: "y"}}
		l.Columns = []ir.Column{{ID: "a"}, {ID: "i", Key: "left_arrow"}}
		l.Cells = []ir.KanaCell{
			{Row: "y", Column: "a", Base: "や"},
			{Row: "y", Column: "i", Base: ir.UnassignedMarker, Unassigned: true},
		}
		return l
	}

	res := emit(t, build(ir.UnassignedSkip))
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "や", res.Rules[0].Output)

	res = emit(t, build(ir.UnassignedBlock))
	require.Len(t, res.Rules, 2)
	blocked := res.Rules[0]
	assert.Equal(t, []string{"y", "left_arrow"}, blocked.Trigger.Keys)
	assert.Equal(t, []ir.Action{key(NoOpKey)}, blocked.Actions)
	assert.Equal(t, "unassigned", blocked.Source.Note)
	assert.Equal(t, 1, res.Stats.Blocked)
}

func TestKeylessUnsupportedModifierEmitsNothing(t *testing.T) {
	l := keLayout()
	l.Modifiers = []ir.ModifierRule{{ID: "katakana", Kind: ir.EffectKatakanaShift, Unsupported: true}}
	l.Cells[0].Variants = map[string]*string{"katakana": nil}
	l.Unassigned = ir.UnassignedBlock

	res := emit(t, l)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "け", res.Rules[0].Output)
}

func TestUnresolvedModifier(t *testing.T) {
	l := stickyLayout()
	l.Cells[0].Variants["dakuten"] = nil

	_, err := Emit(l, Options{})
	var unresolved *grid.UnresolvedModifierError
	require.True(t, errors.As(err, &unresolved), "got %v", err)
	assert.Equal(t, "dakuten", unresolved.Site.Modifier)
}

func TestStickyRules(t *testing.T) {
	res := emit(t, stickyLayout())
	prog, err := sticky.Compile(sticky.OneShot, "sticky")
	require.NoError(t, err)
	ga := []ir.Action{key("t"), key("open_bracket")}
	consumed := func(actions ...ir.Action) []ir.Action {
		return append(slices.Clone(actions), prog.Consume...)
	}

	type summary struct {
		Keys    []string
		When    []ir.VarCondition
		Actions []ir.Action
	}
	var got []summary
	for _, r := range res.Rules {
		got = append(got, summary{r.Trigger.Keys, r.Trigger.When, r.Actions})
	}
	want := []summary{
		{[]string{"k", "semicolon"}, nil, consumed(ga...)},
		{[]string{"k"}, []ir.VarCondition{prog.Armed}, consumed(ga...)},
		{[]string{"k"}, []ir.VarCondition{prog.Held}, consumed(ga...)},
		{[]string{"right_option"}, []ir.VarCondition{prog.Armed}, prog.Cancel},
		{[]string{"k"}, nil, consumed(key("t"))},
		{[]string{"right_option"}, nil, prog.Down},
		{[]string{"japanese_eisuu"}, nil, append([]ir.Action{key("japanese_eisuu")}, prog.Reset...)},
		{[]string{"japanese_kana"}, nil, append([]ir.Action{key("japanese_kana")}, prog.Reset...)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}

	main := res.Rules[5]
	assert.Equal(t, prog.Up, main.AfterKeyUp)
	assert.Equal(t, prog.Alone, main.Alone)
	require.NotNil(t, main.Delayed)
	assert.Equal(t, prog.Expire, main.Delayed.Invoked)
	assert.Equal(t, DefaultStickyTimeoutMS, main.TimeoutMS)
	assert.Equal(t, ir.VariantAny, main.Guard.Variant)
}

func TestVowelRecall(t *testing.T) {
	res := emit(t, recallLayout())

	base := func(row, col string) *ir.GeneratedRule {
		got := find(res, func(r *ir.GeneratedRule) bool {
			return r.Source.Row == row && r.Source.Column == col && r.Source.Note == ""
		})
		require.Len(t, got, 1, "cell (%s,%s)", row, col)
		return got[0]
	}
	assert.Equal(t, []ir.Action{key("3"), sticky.SetSlot(1)}, base("a", "a").Actions)
	assert.Equal(t, []ir.Action{key("e"), sticky.SetSlot(2)}, base("a", "i").Actions)
	assert.Equal(t, []ir.Action{key("t"), sticky.SetSlot(0)}, base("k", "a").Actions)
	assert.Equal(t, []ir.Action{key("g"), sticky.SetSlot(0)}, base("k", "i").Actions)

	// The vowel row's small forms are not chords.
	assert.Empty(t, find(res, func(r *ir.GeneratedRule) bool {
		return len(r.Trigger.Keys) > 1 && r.Trigger.Keys[len(r.Trigger.Keys)-1] == "slash"
	}))

	recall := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall" })
	require.Len(t, recall, 2)
	assert.Equal(t, []ir.VarCondition{sticky.SlotIs(1)}, recall[0].Trigger.When)
	assert.Equal(t, []ir.Action{key("delete_or_backspace"), key("3", "shift"), sticky.SetSlot(0)}, recall[0].Actions)
	assert.Equal(t, "ぃ", recall[1].Output)
	assert.Equal(t, []ir.Action{key("delete_or_backspace"), key("e", "shift"), sticky.SetSlot(0)}, recall[1].Actions)

	idle := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall idle" })
	require.Len(t, idle, 1)
	assert.Equal(t, []ir.VarCondition{sticky.SlotIs(0)}, idle[0].Trigger.When)
	assert.Equal(t, []ir.Action{key(NoOpKey)}, idle[0].Actions)

	reset := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "mode reset japanese_kana" })
	require.Len(t, reset, 1)
	assert.Equal(t, []ir.Action{key("japanese_kana"), sticky.SetSlot(0)}, reset[0].Actions)
}

func TestVowelWithoutSmallFormClearsSlot(t *testing.T) {
	l := recallLayout()
	l.Cells[1].Variants = nil

	res := emit(t, l)
	recall := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall" })
	require.Len(t, recall, 2)
	assert.Equal(t, []ir.Action{sticky.SetSlot(0)}, recall[1].Actions)
}

func TestNoStateNoReset(t *testing.T) {
	res := emit(t, keLayout())
	assert.Empty(t, find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note != "" }))
}

func TestRulesAreInMatchOrder(t *testing.T) {
	l := stickyLayout()
	l.Rows = append(l.Rows, ir.Row{ID: "s", Key: "s"})
	l.Columns = append(l.Columns, ir.Column{ID: "e", Key: "right_arrow"})
	l.Cells = append(l.Cells,
		ir.KanaCell{Row: "k", Column: "e", Base: "け", Variants: map[string]*string{"dakuten": str("げ")}},
		ir.KanaCell{Row: "s", Column: "a", Base: "さ"},
	)
	res := emit(t, l)

	for i := 1; i < len(res.Rules); i++ {
		prev, cur := res.Rules[i-1], res.Rules[i]
		require.GreaterOrEqual(t, prev.Priority, cur.Priority, "rule %d", i)
		if prev.Priority == cur.Priority {
			assert.LessOrEqual(t, prev.Ordinal, cur.Ordinal, "rule %d", i)
		}
	}
	// The three-key dakuten chord precedes the two-key base it extends.
	assert.Equal(t, []string{"k", "right_arrow", "semicolon"}, res.Rules[0].Trigger.Keys)
}

func TestEveryKeyConsumesArmedSticky(t *testing.T) {
	l := stickyLayout()
	l.Rows = append(l.Rows, ir.Row{ID: "s", Key: "s"}, ir.Row{ID: "y", Key: "y"})
	l.Cells = append(l.Cells,
		ir.KanaCell{Row: "s", Column: "a", Base: "さ"},
		ir.KanaCell{Row: "y", Column: "a", Base: ir.UnassignedMarker, Unassigned: true},
	)
	l.Chords = []ir.Chord{{Keys: []string{"n", "m"}, Output: "ん"}}
	l.Unassigned = ir.UnassignedBlock
	res := emit(t, l)
	prog, err := sticky.Compile(sticky.OneShot, "sticky")
	require.NoError(t, err)

	tests := []struct {
		name string
		keys []string
		want []ir.Action
	}{
		{"cell without variant", []string{"s"}, []ir.Action{key("x"), ir.SetVariable("kanachord_sticky_armed", 0)}},
		{"blocked cell", []string{"y"}, []ir.Action{key(NoOpKey), ir.SetVariable("kanachord_sticky_armed", 0)}},
		{"explicit chord", []string{"n", "m"}, []ir.Action{key("y"), ir.SetVariable("kanachord_sticky_armed", 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := find(res, func(r *ir.GeneratedRule) bool {
				return slices.Equal(r.Trigger.Keys, tt.keys) && !r.Trigger.Gated()
			})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Actions)
		})
	}
	assert.Equal(t, []ir.Action{ir.SetVariable("kanachord_sticky_armed", 0)}, prog.Consume)
}

func TestRecallClearsArmedSticky(t *testing.T) {
	l := recallLayout()
	l.Modifiers = append(l.Modifiers,
		ir.ModifierRule{ID: "dakuten", Kind: ir.EffectDakuten, Key: "semicolon"},
		ir.ModifierRule{ID: "sticky", Kind: ir.EffectStickyShift, Key: "right_option", Target: "dakuten"},
	)
	res := emit(t, l)
	disarm := ir.SetVariable("kanachord_sticky_armed", 0)

	recall := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall" })
	require.Len(t, recall, 2)
	for _, r := range recall {
		assert.Contains(t, r.Actions, disarm, r.Source.String())
	}
	idle := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall idle" })
	require.Len(t, idle, 1)
	assert.Equal(t, []ir.Action{key(NoOpKey), disarm}, idle[0].Actions)
}

func TestClearKeys(t *testing.T) {
	clearKeys := []string{"delete_or_backspace", "spacebar"}

	t.Run("sticky", func(t *testing.T) {
		l := stickyLayout()
		l.ClearKeys = clearKeys
		res := emit(t, l)
		prog, err := sticky.Compile(sticky.OneShot, "sticky")
		require.NoError(t, err)

		got := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "clear delete_or_backspace" })
		require.Len(t, got, 1)
		assert.Equal(t, ir.Trigger{Keys: []string{"delete_or_backspace"}, AnyModifiers: true}, got[0].Trigger)
		assert.Equal(t, append([]ir.Action{key("delete_or_backspace")}, prog.Consume...), got[0].Actions)
		assert.Equal(t, ir.Guard{Mode: ir.ModeKana, Variant: ir.VariantAny}, got[0].Guard)
	})

	t.Run("recall", func(t *testing.T) {
		l := recallLayout()
		l.ClearKeys = clearKeys
		res := emit(t, l)

		got := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "clear spacebar" })
		require.Len(t, got, 1)
		assert.Equal(t, []ir.Action{key("spacebar"), sticky.SetSlot(0)}, got[0].Actions)
	})

	t.Run("no state", func(t *testing.T) {
		l := keLayout()
		l.ClearKeys = clearKeys
		res := emit(t, l)
		assert.Len(t, res.Rules, 1)
	})
}

func TestDuplicateRuleShowsDifferingActions(t *testing.T) {
	l := recallLayout()
	l.Chords = []ir.Chord{{Keys: []string{"a", "left_arrow"}, Output: "い"}}

	_, err := Emit(l, Options{})
	var dup *DuplicateRuleError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "い [e,kanachord_last_vowel=2]", dup.FirstOutput)
	assert.Equal(t, "い [e,kanachord_last_vowel=0]", dup.SecondOutput)
	assert.Contains(t, err.Error(), "kanachord_last_vowel=2")
	assert.Contains(t, err.Error(), "kanachord_last_vowel=0")
}

func TestShiftLayerColumn(t *testing.T) {
	l := baseLayout()
	l.Rows = []ir.Row{{ID: "l", Key: "l"}, {ID: "k", Key: "k"}}
	l.Columns = []ir.Column{{ID: "n"}, {ID: "s", Modifiers: []string{"shift"}}}
	l.Cells = []ir.KanaCell{
		{Row: "l", Column: "s", Base: "あ"},
		{Row: "k", Column: "n", Base: "い"},
		{Row: "k", Column: "s", Base: "り"},
	}
	res := emit(t, l)

	require.Len(t, res.Rules, 3)
	shifted := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Column == "s" })
	require.Len(t, shifted, 2)
	for _, r := range shifted {
		assert.Equal(t, []string{"shift"}, r.Trigger.Modifiers, r.Source.String())
		assert.Len(t, r.Trigger.Keys, 1)
	}
	plain := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Column == "n" })
	require.Len(t, plain, 1)
	assert.Empty(t, plain[0].Trigger.Modifiers)
	assert.Equal(t, []ir.Action{key("e")}, plain[0].Actions)
}

func TestRowVariantsLimitKeyboards(t *testing.T) {
	l := baseLayout()
	l.Variants = ir.AllVariants
	l.Rows = []ir.Row{{ID: "non_us_pound", Key: "non_us_pound", Variants: []ir.KeyboardVariant{ir.VariantANSI, ir.VariantISO}}}
	l.Columns = []ir.Column{{ID: "n"}}
	l.Cells = []ir.KanaCell{{Row: "non_us_pound", Column: "n", Base: "か"}}
	res := emit(t, l)

	var variants []ir.KeyboardVariant
	for _, r := range res.Rules {
		variants = append(variants, r.Guard.Variant)
	}
	assert.Equal(t, []ir.KeyboardVariant{ir.VariantANSI, ir.VariantISO}, variants,
		"a key missing on JIS never widens to any keyboard")
}

func TestVowelCellsWithoutVowelRow(t *testing.T) {
	l := baseLayout()
	l.Rows = []ir.Row{{ID: "k", Key: "k"}, {ID: "l", Key: "l"}}
	l.Columns = []ir.Column{{ID: "n"}, {ID: "s", Modifiers: []string{"shift"}}}
	l.Modifiers = []ir.ModifierRule{{ID: "small", Kind: ir.EffectSmallForm, Key: "l", Idle: "゛"}}
	l.Cells = []ir.KanaCell{
		{Row: "k", Column: "n", Base: "い", Vowel: true, Variants: map[string]*string{"small": str("ぃ")}},
		{Row: "l", Column: "s", Base: "あ", Vowel: true, Variants: map[string]*string{"small": str("ぁ")}},
		{Row: "k", Column: "s", Base: "り"},
	}
	res := emit(t, l)

	base := func(row, col string) *ir.GeneratedRule {
		got := find(res, func(r *ir.GeneratedRule) bool {
			return r.Source.Row == row && r.Source.Column == col && r.Source.Note == ""
		})
		require.Len(t, got, 1, "cell (%s,%s)", row, col)
		return got[0]
	}
	assert.Equal(t, []ir.Action{key("e"), sticky.SetSlot(1)}, base("k", "n").Actions)
	assert.Equal(t, []ir.Action{key("3"), sticky.SetSlot(2)}, base("l", "s").Actions)
	assert.Equal(t, []ir.Action{key("l"), sticky.SetSlot(0)}, base("k", "s").Actions)

	recall := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall" })
	require.Len(t, recall, 2)
	assert.Equal(t, "ぃ", recall[0].Output)
	assert.Equal(t, "ぁ", recall[1].Output)
	assert.Equal(t, []ir.VarCondition{sticky.SlotIs(2)}, recall[1].Trigger.When)

	idle := find(res, func(r *ir.GeneratedRule) bool { return r.Source.Note == "recall idle" })
	require.Len(t, idle, 1)
	assert.Equal(t, "゛", idle[0].Output)
	assert.Equal(t, []ir.Action{key("open_bracket")}, idle[0].Actions)
}

func TestChordWindow(t *testing.T) {
	assert.Equal(t, 0, ChordWindow(1, 0, 50))
	assert.Equal(t, 50, ChordWindow(2, 0, 50))
	assert.Equal(t, 100, ChordWindow(3, 0, 50))
	assert.Equal(t, 160, ChordWindow(4, 0, 80))
	assert.Equal(t, 70, ChordWindow(3, 70, 50))

	res := emit(t, stickyLayout())
	chords := find(res, func(r *ir.GeneratedRule) bool { return len(r.Trigger.Keys) == 2 })
	require.Len(t, chords, 1)
	assert.Equal(t, DefaultChordWindowMS, chords[0].WindowMS)

	l := stickyLayout()
	l.Columns = []ir.Column{{ID: "e", Key: "right_arrow"}}
	l.Cells[0].Column = "e"
	l.Cells[0].Base = "け"
	l.Cells[0].Variants["dakuten"] = str("げ")
	res = emit(t, l)
	triple := find(res, func(r *ir.GeneratedRule) bool { return len(r.Trigger.Keys) == 3 })
	require.Len(t, triple, 1)
	assert.Equal(t, 2*DefaultChordWindowMS, triple[0].WindowMS)
}
