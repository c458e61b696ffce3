package karabiner

import (
	"fmt"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// Input source ids of the macOS Japanese input method, per typing mode.
var inputSourceIDs = map[ir.Mode]string{
	ir.ModeKana:   `^com\.apple\.inputmethod\.Kotoeri\.KanaTyping\.Japanese$`,
	ir.ModeRomaji: `^com\.apple\.inputmethod\.Kotoeri\.RomajiTyping\.Japanese$`,
}

// Render builds the document for l from rules, which must already be in
// match order. Rules are grouped per input mode in the order the layout
// declares its modes, so each mode can be enabled on its own.
func Render(l *ir.Layout, rules []ir.GeneratedRule) (*Document, error) {
	doc := &Document{
		Title:       l.Title,
		Maintainers: l.Maintainers,
		Author:      l.Author,
		Homepage:    l.Homepage,
		Repo:        l.Repo,
		Rules:       []Rule{},
	}
	for _, mode := range l.Modes {
		group := Rule{
			Description:  fmt.Sprintf("%s (%s mode)", l.Title, mode),
			Manipulators: []Manipulator{},
		}
		for i := range rules {
			r := &rules[i]
			if r.Guard.Mode != mode {
				continue
			}
			m, err := manipulator(r)
			if err != nil {
				return nil, err
			}
			group.Manipulators = append(group.Manipulators, m)
		}
		doc.Rules = append(doc.Rules, group)
	}
	return doc, nil
}

func manipulator(r *ir.GeneratedRule) (Manipulator, error) {
	m := Manipulator{
		Type:         TypeBasic,
		Description:  r.Description(),
		To:           toEvents(r.Actions),
		ToIfAlone:    toEvents(r.Alone),
		ToAfterKeyUp: toEvents(r.AfterKeyUp),
	}

	switch len(r.Trigger.Keys) {
	case 0:
		return Manipulator{}, fmt.Errorf("karabiner: %s has no trigger keys", r.Source)
	case 1:
		m.From.KeyCode = r.Trigger.Keys[0]
	default:
		for _, k := range r.Trigger.Keys {
			m.From.Simultaneous = append(m.From.Simultaneous, KeyCode{KeyCode: k})
		}
		m.From.SimultaneousOptions = &SimultaneousOptions{KeyDownOrder: KeyDownOrderInsensitive}
		if r.WindowMS > 0 {
			m.setParam(ParamSimultaneousThreshold, r.WindowMS)
		}
	}

	if len(r.Trigger.Modifiers) > 0 || r.Trigger.AnyModifiers {
		m.From.Modifiers = &FromModifiers{Mandatory: r.Trigger.Modifiers}
		if r.Trigger.AnyModifiers {
			m.From.Modifiers.Optional = []string{ModifierAny}
		}
	}

	if r.Delayed != nil {
		m.ToDelayedAction = &DelayedAction{
			ToIfInvoked:  toEvents(r.Delayed.Invoked),
			ToIfCanceled: toEvents(r.Delayed.Canceled),
		}
	}
	if r.TimeoutMS > 0 {
		m.setParam(ParamToIfAloneTimeout, r.TimeoutMS)
		if r.Delayed != nil {
			m.setParam(ParamDelayedActionDelay, r.TimeoutMS)
		}
	}

	source, ok := inputSourceIDs[r.Guard.Mode]
	if !ok {
		return Manipulator{}, fmt.Errorf("karabiner: %s has no input source for mode %s", r.Source, r.Guard.Mode)
	}
	m.Conditions = append(m.Conditions, Condition{
		Type:         CondInputSourceIf,
		InputSources: []InputSource{{InputSourceID: source}},
	})
	if r.Guard.Variant != ir.VariantAny {
		m.Conditions = append(m.Conditions, Condition{
			Type:          CondKeyboardTypeIf,
			KeyboardTypes: []string{r.Guard.Variant.String()},
		})
	}
	for _, c := range r.Trigger.When {
		v := c.Value
		m.Conditions = append(m.Conditions, Condition{Type: CondVariableIf, Name: c.Name, Value: &v})
	}
	return m, nil
}

func (m *Manipulator) setParam(name string, v int) {
	if m.Parameters == nil {
		m.Parameters = make(map[string]int)
	}
	m.Parameters[name] = v
}

func toEvents(actions []ir.Action) []To {
	var out []To
	for _, a := range actions {
		switch a.Kind {
		case ir.ActionKey:
			out = append(out, To{KeyCode: a.Key.Code, Modifiers: a.Key.Modifiers})
		case ir.ActionSetVariable:
			out = append(out, To{SetVariable: &SetVariable{Name: a.Variable, Value: a.Value}})
		}
	}
	return out
}
