// Package emitter expands a validated layout into the ordered list of
// generated rules: one rule per defined grid address, input mode and
// keyboard variant, plus explicit chords, the sticky modifier protocol,
// vowel recall, mode-switch resets and blocking rules for unassigned
// cells.
//
// Every candidate passes through a conflict index keyed by trigger and
// mode before it is accepted. Overlapping guards with differing output
// abort the compile with DuplicateRuleError; identical output is dropped.
package emitter

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/peterjc/kana-chording-ke/internal/chord"
	"github.com/peterjc/kana-chording-ke/internal/grid"
	"github.com/peterjc/kana-chording-ke/internal/guard"
	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/keymap"
	"github.com/peterjc/kana-chording-ke/internal/sticky"
)

// Defaults match the host engine's own defaults for the simultaneous
// threshold and the to_if_alone timeout.
const (
	DefaultChordWindowMS   = 50
	DefaultStickyTimeoutMS = 1000
)

// NoOpKey is the host key code that does nothing.
const NoOpKey = "vk_none"

// DefaultRecallTemplate deletes the previously typed vowel.
var DefaultRecallTemplate = []string{"delete_or_backspace"}

// ChordWindow returns the detection window in milliseconds of a chord of n
// keys: the declared window, else the base window, doubled for chords of
// three or more keys. Single keys have no window.
func ChordWindow(n, declared, base int) int {
	switch {
	case n < 2:
		return 0
	case declared > 0:
		return declared
	case n >= 3:
		return 2 * base
	default:
		return base
	}
}

// Options tune rule generation.
type Options struct {
	ChordWindowMS   int
	StickyTimeoutMS int
	Logger          *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ChordWindowMS <= 0 {
		o.ChordWindowMS = DefaultChordWindowMS
	}
	if o.StickyTimeoutMS <= 0 {
		o.StickyTimeoutMS = DefaultStickyTimeoutMS
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Stats counts what the emitter did.
type Stats struct {
	Triples     int
	Rules       int
	Deduped     int
	Passthrough int
	Blocked     int
}

// Result is the emitter's output.
type Result struct {
	Layout *ir.Layout
	Rules  []ir.GeneratedRule
	Chords *chord.Set
	Stats  Stats
}

type stickyKey struct {
	mod  *ir.ModifierRule
	prog *sticky.Program
}

type recallSpec struct {
	mod   *ir.ModifierRule
	slots []grid.Address
	small []string // per slot, "" when the vowel has no small form
}

type emitter struct {
	opts   Options
	log    *zap.Logger
	layout *ir.Layout
	grid   *grid.Grid
	guards *guard.Resolver
	chords *chord.Set

	stickies []stickyKey
	// consume disarms every sticky key; any emitted key uses up an armed
	// modifier.
	consume []ir.Action
	recall  *recallSpec

	rules  []ir.GeneratedRule
	prints []string
	index  map[string][]int
	stats  Stats
	next   int
}

// Emit generates the rules of l, which must already pass
// compiler.Validate.
func Emit(l *ir.Layout, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	g, err := grid.New(l)
	if err != nil {
		return nil, err
	}
	e := &emitter{
		opts:   opts,
		log:    opts.Logger.Named("emitter"),
		layout: l,
		grid:   g,
		guards: guard.New(l.Variants),
		chords: chord.NewSet(),
		index:  make(map[string][]int),
	}
	if err := e.setupState(); err != nil {
		return nil, err
	}

	steps := []func() error{
		e.emitGrid,
		e.emitChords,
		e.emitStickyKeys,
		e.emitRecall,
		e.emitModeReset,
		e.emitClearKeys,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	sortRules(e.rules)
	e.stats.Rules = len(e.rules)
	e.log.Debug("rules emitted",
		zap.String("layout", l.Name),
		zap.Int("triples", e.stats.Triples),
		zap.Int("rules", e.stats.Rules),
		zap.Int("deduped", e.stats.Deduped),
		zap.Int("passthrough", e.stats.Passthrough),
		zap.Int("blocked", e.stats.Blocked),
		zap.Int("chords", e.chords.Len()))
	return &Result{Layout: l, Rules: e.rules, Chords: e.chords, Stats: e.stats}, nil
}

func (e *emitter) setupState() error {
	for i := range e.layout.Modifiers {
		m := &e.layout.Modifiers[i]
		if m.Kind != ir.EffectStickyShift || m.Unsupported {
			continue
		}
		prog, err := sticky.Compile(sticky.OneShot, m.ID)
		if err != nil {
			return err
		}
		e.stickies = append(e.stickies, stickyKey{mod: m, prog: prog})
		e.consume = append(e.consume, prog.Consume...)
	}

	small, ok := e.grid.ModifierOfKind(ir.EffectSmallForm)
	slots := e.grid.VowelSlots()
	if len(slots) == 0 || !ok || small.Key == "" || small.Unsupported {
		return nil
	}
	spec := &recallSpec{mod: small, slots: slots}
	for _, a := range slots {
		a.Modifier = small.ID
		spec.small = append(spec.small, e.grid.Resolve(a).Output)
	}
	if _, err := sticky.NewRecall(spec.small); err != nil {
		return err
	}
	e.recall = spec
	return nil
}

// candidate is a rule before guard resolution.
type candidate struct {
	keys      []string
	modifiers []string
	when      []ir.VarCondition
	output    string
	// fixed replaces the typed strokes of output.
	fixed  []ir.Action
	prefix []ir.Action
	suffix []ir.Action

	ordinal     int
	src         ir.Source
	passthrough []ir.Mode
	// variants limits the candidate to keyboards that have its key.
	variants []ir.KeyboardVariant
	windowMS int
}

func (e *emitter) emitGrid() error {
	for t := range e.grid.Triples() {
		e.stats.Triples++
		if err := e.emitTriple(t); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) emitTriple(t grid.Triple) error {
	mod := t.Modifier
	src := ir.Source{Row: t.Row.ID, Column: t.Column.ID, Chord: -1}
	if mod != nil {
		src.Modifier = mod.ID
		if e.recall != nil && mod == e.recall.mod && e.grid.VowelSlot(t.Row.ID, t.Column.ID) > 0 {
			// Typed by vowel recall instead.
			return nil
		}
	}

	cellKeys := []string{t.Row.Key}
	if t.Column.Key != "" {
		cellKeys = append(cellKeys, t.Column.Key)
	}
	keys := slices.Clone(cellKeys)
	member := mod == nil || mod.Key != ""
	if mod != nil && mod.Key != "" {
		keys = append(keys, mod.Key)
	}

	res := e.grid.Resolve(t.Address)
	if res.Unassigned {
		if e.layout.Unassigned != ir.UnassignedBlock || !member {
			e.log.Debug("unassigned address skipped", zap.String("source", src.String()), zap.String("reason", res.Reason))
			return nil
		}
		e.stats.Blocked++
		return e.emitText(candidate{
			keys:        keys,
			modifiers:   t.Column.Modifiers,
			fixed:       []ir.Action{ir.KeyAction(ir.KeyStroke{Code: NoOpKey})},
			ordinal:     t.Ordinal,
			src:         withNote(src, "unassigned"),
			passthrough: t.Cell.Passthrough,
			variants:    t.Row.Variants,
			windowMS:    e.window(keys, 0),
		})
	}

	mark := e.recallMark(t)
	if member {
		c := candidate{
			keys:        keys,
			modifiers:   t.Column.Modifiers,
			output:      res.Output,
			suffix:      mark,
			ordinal:     t.Ordinal,
			src:         src,
			passthrough: t.Cell.Passthrough,
			variants:    t.Row.Variants,
			windowMS:    e.window(keys, 0),
		}
		if len(keys) > 1 {
			e.chords.Observe(chord.New(keys, res.Output, t.Ordinal, src))
		}
		if err := e.emitText(c); err != nil {
			return err
		}
	}
	if mod == nil {
		return nil
	}

	for _, s := range e.stickies {
		if s.mod.Target != mod.ID {
			continue
		}
		via := withNote(src, "via "+s.mod.ID)
		armed := candidate{
			keys:        cellKeys,
			modifiers:   t.Column.Modifiers,
			when:        []ir.VarCondition{s.prog.Armed},
			output:      res.Output,
			suffix:      append(slices.Clone(s.prog.Consume), mark...),
			ordinal:     t.Ordinal,
			src:         via,
			passthrough: t.Cell.Passthrough,
			variants:    t.Row.Variants,
			windowMS:    e.window(cellKeys, 0),
		}
		held := armed
		held.when = []ir.VarCondition{s.prog.Held}
		held.suffix = mark
		if err := e.emitText(armed); err != nil {
			return err
		}
		if err := e.emitText(held); err != nil {
			return err
		}
	}
	return nil
}

// recallMark returns the slot update for an emission from t: base vowels
// record their identity, everything else clears the slot.
func (e *emitter) recallMark(t grid.Triple) []ir.Action {
	if e.recall == nil {
		return nil
	}
	if t.Modifier == nil {
		if slot := e.grid.VowelSlot(t.Row.ID, t.Column.ID); slot > 0 {
			return []ir.Action{sticky.SetSlot(slot)}
		}
	}
	return []ir.Action{sticky.SetSlot(0)}
}

func (e *emitter) clearSlot() []ir.Action {
	if e.recall == nil {
		return nil
	}
	return []ir.Action{sticky.SetSlot(0)}
}

func (e *emitter) emitChords() error {
	base := e.stats.Triples
	for i, ch := range e.layout.Chords {
		src := ir.Source{Chord: i}
		c := chord.New(ch.Keys, ch.Output, base+i, src)
		c.Window = msDuration(ch.WindowMS)
		if err := e.chords.Declare(c); err != nil {
			return err
		}
		if err := e.emitText(candidate{
			keys:     ch.Keys,
			output:   ch.Output,
			suffix:   e.clearSlot(),
			ordinal:  base + i,
			src:      src,
			windowMS: e.window(ch.Keys, ch.WindowMS),
		}); err != nil {
			return err
		}
	}
	e.next = base + len(e.layout.Chords)
	return nil
}

func (e *emitter) emitStickyKeys() error {
	for _, s := range e.stickies {
		if s.mod.Key == "" {
			continue
		}
		ordinal := e.nextOrdinal()
		src := ir.Source{Modifier: s.mod.ID, Chord: -1, Note: "sticky " + s.mod.ID}
		for _, mode := range e.layout.Modes {
			g, err := e.stateGuard(mode, src)
			if err != nil {
				return err
			}
			main := ir.GeneratedRule{
				Trigger:    ir.Trigger{Keys: []string{s.mod.Key}},
				Guard:      g,
				Actions:    slices.Clone(s.prog.Down),
				AfterKeyUp: slices.Clone(s.prog.Up),
				Alone:      slices.Clone(s.prog.Alone),
				Delayed:    &ir.DelayedAction{Invoked: slices.Clone(s.prog.Expire)},
				TimeoutMS:  e.opts.StickyTimeoutMS,
				Ordinal:    ordinal,
				Source:     src,
			}
			cancel := ir.GeneratedRule{
				Trigger: ir.Trigger{Keys: []string{s.mod.Key}, When: []ir.VarCondition{s.prog.Armed}},
				Guard:   g,
				Actions: slices.Clone(s.prog.Cancel),
				Ordinal: ordinal,
				Source:  withNote(src, "cancel"),
			}
			if err := e.add(main); err != nil {
				return err
			}
			if err := e.add(cancel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *emitter) emitRecall() error {
	if e.recall == nil {
		return nil
	}
	key := e.recall.mod.Key
	template := e.recall.mod.Template
	if len(template) == 0 {
		template = DefaultRecallTemplate
	}
	var prefix []ir.Action
	for _, code := range template {
		prefix = append(prefix, ir.KeyAction(ir.KeyStroke{Code: code}))
	}

	ordinal := e.nextOrdinal()
	for i, a := range e.recall.slots {
		when := []ir.VarCondition{sticky.SlotIs(i + 1)}
		src := ir.Source{Row: a.Row, Column: a.Column, Modifier: e.recall.mod.ID, Chord: -1, Note: "recall"}
		c := candidate{
			keys:    []string{key},
			when:    when,
			output:  e.recall.small[i],
			prefix:  prefix,
			suffix:  e.clearSlot(),
			ordinal: ordinal,
			src:     src,
		}
		if c.output == "" {
			c.prefix = nil
			c.fixed = e.clearSlot()
			c.suffix = nil
		}
		if cell, ok := e.grid.Cell(a.Row, a.Column); ok {
			c.passthrough = cell.Passthrough
		}
		if err := e.emitText(c); err != nil {
			return err
		}
	}

	idle := candidate{
		keys:    []string{key},
		when:    []ir.VarCondition{sticky.SlotIs(0)},
		fixed:   []ir.Action{ir.KeyAction(ir.KeyStroke{Code: NoOpKey})},
		ordinal: ordinal,
		src:     ir.Source{Modifier: e.recall.mod.ID, Chord: -1, Note: "recall idle"},
	}
	if out := e.recall.mod.Idle; out != "" {
		idle.output = out
		idle.fixed = nil
	}
	return e.emitText(idle)
}

func (e *emitter) emitModeReset() error {
	if len(e.stickies) == 0 && e.recall == nil {
		return nil
	}
	var reset []ir.Action
	for _, s := range e.stickies {
		reset = append(reset, s.prog.Reset...)
	}
	reset = append(reset, e.clearSlot()...)

	ordinal := e.nextOrdinal()
	for _, key := range e.layout.ModeSwitchKeys {
		src := ir.Source{Chord: -1, Note: "mode reset " + key}
		for _, mode := range e.layout.Modes {
			g, err := e.stateGuard(mode, src)
			if err != nil {
				return err
			}
			actions := append([]ir.Action{ir.KeyAction(ir.KeyStroke{Code: key})}, reset...)
			if err := e.add(ir.GeneratedRule{
				Trigger: ir.Trigger{Keys: []string{key}},
				Guard:   g,
				Actions: actions,
				Ordinal: ordinal,
				Source:  src,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitClearKeys makes keys the layout leaves alone end any pending recall
// or armed sticky modifier. The key itself still goes through, with
// whatever modifiers are held.
func (e *emitter) emitClearKeys() error {
	if len(e.stickies) == 0 && e.recall == nil {
		return nil
	}
	release := append(e.clearSlot(), e.consume...)

	ordinal := e.nextOrdinal()
	for _, key := range e.layout.ClearKeys {
		src := ir.Source{Chord: -1, Note: "clear " + key}
		for _, mode := range e.layout.Modes {
			g, err := e.stateGuard(mode, src)
			if err != nil {
				return err
			}
			actions := append([]ir.Action{ir.KeyAction(ir.KeyStroke{Code: key})}, release...)
			if err := e.add(ir.GeneratedRule{
				Trigger: ir.Trigger{Keys: []string{key}, AnyModifiers: true},
				Guard:   g,
				Actions: actions,
				Ordinal: ordinal,
				Source:  src,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitText expands c over every declared mode and variant. Every text rule
// also disarms the sticky keys.
func (e *emitter) emitText(c candidate) error {
	suffix := slices.Clone(c.suffix)
	for _, a := range e.consume {
		if !slices.ContainsFunc(suffix, a.Equal) {
			suffix = append(suffix, a)
		}
	}

	for _, mode := range e.layout.Modes {
		for _, variant := range e.layout.Variants {
			if len(c.variants) > 0 && !slices.Contains(c.variants, variant) {
				continue
			}
			site := ir.Site{Row: c.src.Row, Column: c.src.Column, Modifier: c.src.Modifier, Mode: mode, Variant: variant}
			g, err := e.guards.Resolve(guard.Context{Site: site, Output: c.output, Passthrough: c.passthrough, Variants: c.variants})
			if err != nil {
				return err
			}
			if g.Mode == ir.ModePassthrough {
				e.stats.Passthrough++
				e.log.Debug("passthrough", zap.Stringer("site", site))
				continue
			}

			var actions []ir.Action
			actions = append(actions, c.prefix...)
			if c.fixed != nil {
				actions = append(actions, c.fixed...)
			} else {
				strokes, err := keymap.Strokes(g.Mode, g.Variant, c.output)
				if err != nil {
					if errors.Is(err, keymap.ErrUnmappable) {
						return &UnmappableOutputError{Site: site, Output: c.output, Err: err}
					}
					return fmt.Errorf("emitter: %s: %w", site, err)
				}
				for _, s := range strokes {
					actions = append(actions, ir.KeyAction(s))
				}
			}
			actions = append(actions, suffix...)

			r := ir.GeneratedRule{
				Trigger: ir.Trigger{Keys: slices.Clone(c.keys), Modifiers: slices.Clone(c.modifiers), When: slices.Clone(c.when)},
				Guard:   g,
				Output:  c.output,
				Actions: actions,
				Ordinal: c.ordinal,
				Source:  c.src,
			}
			if len(c.keys) > 1 {
				r.WindowMS = c.windowMS
			}
			if err := e.add(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// stateGuard resolves the guard of a rule that only touches state, which
// never depends on key position.
func (e *emitter) stateGuard(mode ir.Mode, src ir.Source) (ir.Guard, error) {
	return e.guards.Resolve(guard.Context{Site: ir.SiteOf(src, ir.Guard{Mode: mode, Variant: ir.VariantAny})})
}

func (e *emitter) window(keys []string, declared int) int {
	return ChordWindow(len(keys), declared, e.opts.ChordWindowMS)
}

func (e *emitter) nextOrdinal() int {
	n := e.next
	e.next++
	return n
}

func withNote(src ir.Source, note string) ir.Source {
	if src.Note != "" {
		note = src.Note + " " + note
	}
	src.Note = note
	return src
}
