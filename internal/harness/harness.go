package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/peterjc/kana-chording-ke/internal/chord"
	"github.com/peterjc/kana-chording-ke/internal/emitter"
	"github.com/peterjc/kana-chording-ke/internal/grid"
	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/sticky"
	"github.com/peterjc/kana-chording-ke/internal/testutil"
)

// DeleteMark stands for a deleted character in recall output.
const DeleteMark = "⌫"

// LayoutLoader loads a validated layout from a built-in name or directory.
type LayoutLoader func(ref string) (*ir.Layout, error)

// Harness is the scenario execution engine.
// Event times are placed on the fixed testutil epoch so traces are
// identical on every run.
type Harness struct {
	scenario *Scenario
	layout   *ir.Layout
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load the scenario's layout, if it names one
// 2. Build the runtime model (sticky machine, recall or chord detector)
// 3. Feed every step, recording output and state
// 4. Evaluate assertions against the trace
//
// load may be nil for scenarios without a layout.
func Run(scenario *Scenario, load LayoutLoader) (*Result, error) {
	h := &Harness{scenario: scenario, result: NewResult()}

	if scenario.Layout != "" {
		if load == nil {
			return nil, fmt.Errorf("scenario %s names layout %q but no layout loader was given", scenario.Name, scenario.Layout)
		}
		l, err := load(scenario.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to load layout: %w", err)
		}
		h.layout = l
	}

	var err error
	switch scenario.Model {
	case ModelSticky:
		err = h.runSticky()
	case ModelRecall:
		err = h.runRecall()
	case ModelChord:
		err = h.runChord()
	default:
		err = fmt.Errorf("unknown model %q", scenario.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s scenario: %w", scenario.Model, err)
	}

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(errMsg)
	}
	return h.result, nil
}

func (h *Harness) runSticky() error {
	timeout := h.scenario.StickyTimeoutMS
	if timeout == 0 {
		timeout = emitter.DefaultStickyTimeoutMS
	}
	m, err := sticky.NewMachine(sticky.OneShot, msDuration(timeout))
	if err != nil {
		return err
	}
	label := h.stickyLabel()

	var rec sticky.Record
	for i, step := range h.scenario.Steps {
		kind, ok := stickyEvent(step.Event)
		if !ok {
			return fmt.Errorf("steps[%d]: unknown sticky event %q", i, step.Event)
		}
		at := testutil.At(step.At)

		var out []string
		if kind == sticky.ModeSwitch {
			m.Reset(&rec, at)
		} else {
			for _, em := range m.Handle(&rec, sticky.Event{Kind: kind, Key: step.Key, At: at}) {
				if em.Modified {
					out = append(out, em.Key+"+"+label)
				} else {
					out = append(out, em.Key)
				}
			}
		}
		h.result.AddStep(step.At, describe(step), out, rec.State.String())
	}
	return nil
}

// stickyLabel names the modifier a sticky key applies.
func (h *Harness) stickyLabel() string {
	if h.scenario.Modifier != "" {
		return h.scenario.Modifier
	}
	if h.layout != nil {
		for _, m := range h.layout.Modifiers {
			if m.Kind == ir.EffectStickyShift {
				return m.Target
			}
		}
	}
	return "shift"
}

func stickyEvent(name string) (sticky.EventKind, bool) {
	for _, k := range []sticky.EventKind{sticky.ModDown, sticky.ModUp, sticky.KeyDown, sticky.Timeout, sticky.ModeSwitch} {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

func (h *Harness) runRecall() error {
	small := h.scenario.SmallForms
	vowels := make(map[string]int)
	if h.layout != nil {
		var err error
		if small, vowels, err = recallTables(h.layout); err != nil {
			return err
		}
	}
	r, err := sticky.NewRecall(small)
	if err != nil {
		return err
	}

	var rec sticky.RecallRecord
	for _, step := range h.scenario.Steps {
		var out []string
		switch step.Event {
		case EventEmit:
			vowel := step.Vowel
			if vowel == 0 {
				vowel = vowels[step.Key]
			}
			r.Emitted(&rec, vowel)
			out = []string{step.Key}
		case EventClearKey:
			if h.layout != nil && !slices.Contains(h.layout.ClearKeys, step.Key) {
				return fmt.Errorf("layout %s does not clear on %s", h.layout.Name, step.Key)
			}
			r.Reset(&rec)
			out = []string{step.Key}
		case EventSmall:
			for _, o := range r.SmallKey(&rec) {
				if o.DeletePrevious {
					out = append(out, DeleteMark)
				} else {
					out = append(out, o.Text)
				}
			}
		default:
			r.Reset(&rec)
		}
		h.result.AddStep(step.At, describe(step), out, fmt.Sprintf("slot=%d", rec.Slot))
	}
	return nil
}

// recallTables returns the small form of each vowel slot and the vowel
// identity of each base vowel.
func recallTables(l *ir.Layout) ([]string, map[string]int, error) {
	g, err := grid.New(l)
	if err != nil {
		return nil, nil, err
	}
	slots := g.VowelSlots()
	if len(slots) == 0 {
		return nil, nil, fmt.Errorf("layout %s has no vowel_row or vowel cells", l.Name)
	}
	mod, ok := g.ModifierOfKind(ir.EffectSmallForm)
	if !ok {
		return nil, nil, fmt.Errorf("layout %s has no small-form modifier", l.Name)
	}

	var small []string
	vowels := make(map[string]int)
	for i, addr := range slots {
		base := g.Resolve(addr)
		if !base.Unassigned {
			vowels[base.Output] = i + 1
		}
		addr.Modifier = mod.ID
		small = append(small, g.Resolve(addr).Output)
	}
	return small, vowels, nil
}

func (h *Harness) runChord() error {
	s := h.scenario
	window := s.ChordWindowMS
	if window == 0 {
		window = emitter.DefaultChordWindowMS
	}

	var set *chord.Set
	var singles map[string]string
	if h.layout != nil {
		g, err := h.guard()
		if err != nil {
			return err
		}
		res, err := emitter.Emit(h.layout, emitter.Options{
			ChordWindowMS:   window,
			StickyTimeoutMS: s.StickyTimeoutMS,
		})
		if err != nil {
			return err
		}
		set, singles = chord.FromRules(res.Rules, g)
	} else {
		set = chord.NewSet()
		for i, c := range s.Chords {
			ch := chord.New(c.Keys, c.Output, i, ir.Source{Chord: i})
			ch.Window = msDuration(emitter.ChordWindow(len(c.Keys), c.WindowMS, window))
			if err := set.Declare(ch); err != nil {
				return err
			}
		}
		singles = s.Singles
	}

	d := chord.NewDetector(set, msDuration(window), singles)
	last := 0
	for _, step := range s.Steps {
		fires := d.Handle(chord.KeyEvent{Key: step.Key, Down: step.Event == "key-down", At: testutil.At(step.At)})
		h.result.AddStep(step.At, describe(step), fireOutputs(fires), pendingState(d.Pending()))
		last = step.At
	}
	h.result.AddStep(last, "end", fireOutputs(d.Flush()), pendingState(d.Pending()))
	return nil
}

func (h *Harness) guard() (ir.Guard, error) {
	g := ir.Guard{Mode: ir.ModeKana, Variant: ir.VariantJIS}
	var err error
	if h.scenario.Mode != "" {
		if g.Mode, err = ir.ParseMode(h.scenario.Mode); err != nil {
			return ir.Guard{}, err
		}
	}
	if h.scenario.Variant != "" {
		if g.Variant, err = ir.ParseVariant(h.scenario.Variant); err != nil {
			return ir.Guard{}, err
		}
	}
	return g, nil
}

func fireOutputs(fires []chord.Fire) []string {
	var out []string
	for _, f := range fires {
		if f.Output == "" {
			out = append(out, emitter.NoOpKey)
			continue
		}
		out = append(out, f.Output)
	}
	return out
}

func pendingState(pending []string) string {
	if len(pending) == 0 {
		return "idle"
	}
	return "pending:" + strings.Join(pending, "+")
}

func describe(step Step) string {
	if step.Key == "" {
		return step.Event
	}
	return step.Event + " " + step.Key
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
