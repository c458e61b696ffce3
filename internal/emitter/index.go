package emitter

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/peterjc/kana-chording-ke/internal/chord"
	"github.com/peterjc/kana-chording-ke/internal/guard"
	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// Priority returns the ordering weight of a trigger: larger key sets
// first, and within a size, state-gated rules before ungated ones.
func Priority(t ir.Trigger) int {
	p := 10 * len(t.Keys)
	if t.Gated() {
		p++
	}
	return p
}

// indexKey identifies rules that fire on the same input in the same mode.
// Variants are compared with Guard.Overlaps.
func indexKey(r *ir.GeneratedRule) string {
	var b strings.Builder
	b.WriteString(strings.Join(r.Trigger.KeySet(), "+"))
	if len(r.Trigger.Modifiers) > 0 {
		mods := slices.Sorted(slices.Values(r.Trigger.Modifiers))
		fmt.Fprintf(&b, "|held=%s", strings.Join(mods, "+"))
	}
	if r.Trigger.AnyModifiers {
		b.WriteString("|held=any")
	}
	for _, c := range r.Trigger.When {
		fmt.Fprintf(&b, "|%s=%d", c.Name, c.Value)
	}
	b.WriteString("|")
	b.WriteString(r.Guard.Mode.String())
	return b.String()
}

// fingerprint is the canonical form of what a rule does.
func fingerprint(r *ir.GeneratedRule) (string, error) {
	data, err := ir.CanonicalJSON(struct {
		Output     string            `json:"output"`
		Actions    []ir.Action       `json:"actions"`
		Alone      []ir.Action       `json:"alone,omitempty"`
		AfterKeyUp []ir.Action       `json:"after_key_up,omitempty"`
		Delayed    *ir.DelayedAction `json:"delayed,omitempty"`
	}{r.Output, r.Actions, r.Alone, r.AfterKeyUp, r.Delayed})
	if err != nil {
		return "", fmt.Errorf("emitter: fingerprint %s: %w", r.Source, err)
	}
	return string(data), nil
}

// add accepts r unless an earlier rule already covers it. An overlapping
// rule with different behavior is a DuplicateRuleError.
func (e *emitter) add(r ir.GeneratedRule) error {
	if err := guard.Check(&r); err != nil {
		return err
	}
	r.Priority = Priority(r.Trigger)
	fp, err := fingerprint(&r)
	if err != nil {
		return err
	}
	key := indexKey(&r)
	for _, i := range e.index[key] {
		prev := &e.rules[i]
		if !prev.Guard.Overlaps(r.Guard) {
			continue
		}
		if e.prints[i] != fp {
			first, second := describeOutput(prev), describeOutput(&r)
			if first == second {
				// Same text, different state updates.
				first, second = describeRule(prev), describeRule(&r)
			}
			return &DuplicateRuleError{
				Site:         ir.SiteOf(r.Source, r.Guard),
				Trigger:      r.Trigger,
				Guard:        r.Guard,
				First:        prev.Source,
				FirstOutput:  first,
				Second:       r.Source,
				SecondOutput: second,
			}
		}
		if prev.Guard == r.Guard || prev.Guard.Variant == ir.VariantAny {
			if prev.Source == r.Source {
				// The same source widened to VariantAny once per variant.
				return nil
			}
			e.stats.Deduped++
			e.log.Debug("duplicate rule dropped",
				zap.String("trigger", r.Trigger.String()),
				zap.Stringer("guard", r.Guard),
				zap.String("kept", prev.Source.String()),
				zap.String("dropped", r.Source.String()))
			return nil
		}
	}
	e.index[key] = append(e.index[key], len(e.rules))
	e.rules = append(e.rules, r)
	e.prints = append(e.prints, fp)
	return nil
}

func describeOutput(r *ir.GeneratedRule) string {
	if r.Output != "" {
		return r.Output
	}
	return describeActions(r.Actions)
}

// describeRule is the output text followed by every action.
func describeRule(r *ir.GeneratedRule) string {
	actions := "[" + describeActions(r.Actions) + "]"
	if r.Output == "" {
		return actions
	}
	return r.Output + " " + actions
}

func describeActions(actions []ir.Action) string {
	var parts []string
	for _, a := range actions {
		if a.Kind == ir.ActionKey {
			parts = append(parts, a.Key.String())
		} else {
			parts = append(parts, fmt.Sprintf("%s=%d", a.Variable, a.Value))
		}
	}
	return strings.Join(parts, ",")
}

// sortRules puts rules in match order: priority, then chord precedence by
// ordinal, then variant and mode. Ties keep emission order.
func sortRules(rules []ir.GeneratedRule) {
	slices.SortStableFunc(rules, func(a, b ir.GeneratedRule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		ca := chord.Chord{Keys: a.Trigger.Keys, Ordinal: a.Ordinal}
		cb := chord.Chord{Keys: b.Trigger.Keys, Ordinal: b.Ordinal}
		if c := chord.Less(ca, cb); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Guard.Variant, b.Guard.Variant); c != 0 {
			return c
		}
		return cmp.Compare(a.Guard.Mode, b.Guard.Mode)
	})
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
