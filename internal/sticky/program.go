package sticky

import (
	"fmt"
	"slices"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// Program is a one-shot modifier rendered as host engine variables. The
// sticky key's own manipulator uses Down, Up, Alone and Expire; rules for
// the modified output are gated on Armed (and then run Consume) or on Held.
type Program struct {
	Armed ir.VarCondition
	Held  ir.VarCondition

	Down    []ir.Action // key-down while idle
	Up      []ir.Action // every release
	Alone   []ir.Action // release with no other key in time
	Expire  []ir.Action // delayed action after the timeout
	Cancel  []ir.Action // key-down while armed
	Consume []ir.Action // modified key while armed
	Reset   []ir.Action // mode switch
}

// VariableNames returns the armed and held variable names for a sticky
// modifier id.
func VariableNames(id string) (armed, held string) {
	return "kanachord_" + id + "_armed", "kanachord_" + id + "_held"
}

// Compile derives the variable program of a sticky modifier from t. Each
// transition that changes state writes the variable of the state it leaves
// and of the state it enters.
func Compile(t Table, id string) (*Program, error) {
	if err := Validate(t); err != nil {
		return nil, fmt.Errorf("sticky: %w", err)
	}
	armed, held := VariableNames(id)
	p := &Program{
		Armed: ir.VarCondition{Name: armed, Value: 1},
		Held:  ir.VarCondition{Name: held, Value: 1},
	}
	vars := map[State]string{Armed: armed, Held: held}

	actions := func(tr Transition) []ir.Action {
		if tr.From == tr.To {
			return nil
		}
		var out []ir.Action
		if name, ok := vars[tr.From]; ok {
			out = append(out, ir.SetVariable(name, 0))
		}
		if name, ok := vars[tr.To]; ok {
			out = append(out, ir.SetVariable(name, 1))
		}
		return out
	}
	rowActions := func(from State, on EventKind, when Cond) []ir.Action {
		tr, _ := t.Lookup(from, on, when)
		return actions(tr)
	}

	p.Down = rowActions(Idle, ModDown, Always)
	p.Up = rowActions(Held, ModUp, Otherwise)
	// The host runs to_after_key_up on every release, so the alone branch
	// only adds what Up does not already do.
	for _, a := range rowActions(Held, ModUp, AloneInTime) {
		if !slices.ContainsFunc(p.Up, a.Equal) {
			p.Alone = append(p.Alone, a)
		}
	}
	p.Expire = rowActions(Armed, Timeout, Always)
	p.Cancel = rowActions(Armed, ModDown, Always)
	p.Consume = rowActions(Armed, KeyDown, Always)
	for _, s := range []State{Idle, Held, Armed} {
		p.Reset = append(p.Reset, rowActions(s, ModeSwitch, Always)...)
	}
	return p, nil
}
