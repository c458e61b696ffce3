// Package sticky models the two stateful input protocols: the one-shot
// sticky modifier and vowel recall for small-form output.
//
// The one-shot protocol is an explicit transition table. The runtime
// Machine interprets the table over a caller-owned Record, and Compile
// derives the host engine's variable program from the same table, so the
// emitted rules and the tested model cannot drift apart.
package sticky

import (
	"fmt"
	"slices"
)

// State is a one-shot modifier state.
type State uint8

const (
	Idle State = iota
	Held
	Armed
)

var stateNames = [...]string{Idle: "idle", Held: "held", Armed: "armed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// ParseState parses a state name.
func ParseState(s string) (State, error) {
	if i := slices.Index(stateNames[:], s); i >= 0 {
		return State(i), nil
	}
	return 0, fmt.Errorf("unknown sticky state %q", s)
}

// EventKind is an input event seen by the machine.
type EventKind uint8

const (
	ModDown EventKind = iota
	ModUp
	KeyDown
	Timeout
	ModeSwitch
)

var eventNames = [...]string{
	ModDown:    "modifier-down",
	ModUp:      "modifier-up",
	KeyDown:    "key-down",
	Timeout:    "timeout",
	ModeSwitch: "mode-switch",
}

func (e EventKind) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(e))
}

// Cond qualifies a transition.
type Cond uint8

const (
	Always Cond = iota
	// AloneInTime holds when the modifier is released with no key pressed
	// since its key-down and before the deadline.
	AloneInTime
	// Otherwise is the complement of AloneInTime.
	Otherwise
)

// Effect is what a transition does to the key that caused it.
type Effect uint8

const (
	None   Effect = iota
	Plain         // emit the key unmodified
	Apply         // emit the key with the modifier applied
	Cancel        // toggle-off: drop the armed modifier
	Drop          // timeout: drop the armed modifier, never replayed
)

// Transition is one row of a transition table.
type Transition struct {
	From   State
	On     EventKind
	When   Cond
	To     State
	Effect Effect
}

// Table is a transition table.
type Table []Transition

// OneShot is the one-shot sticky modifier protocol.
var OneShot = Table{
	{From: Idle, On: ModDown, To: Held},
	{From: Idle, On: ModUp, To: Idle},
	{From: Idle, On: KeyDown, To: Idle, Effect: Plain},
	{From: Idle, On: Timeout, To: Idle},

	{From: Held, On: KeyDown, To: Held, Effect: Apply},
	{From: Held, On: ModUp, When: AloneInTime, To: Armed},
	{From: Held, On: ModUp, When: Otherwise, To: Idle},
	{From: Held, On: ModDown, To: Held},
	{From: Held, On: Timeout, To: Held},

	{From: Armed, On: KeyDown, To: Idle, Effect: Apply},
	{From: Armed, On: ModDown, To: Idle, Effect: Cancel},
	{From: Armed, On: ModUp, To: Armed},
	{From: Armed, On: Timeout, To: Idle, Effect: Drop},

	{From: Idle, On: ModeSwitch, To: Idle},
	{From: Held, On: ModeSwitch, To: Idle},
	{From: Armed, On: ModeSwitch, To: Idle, Effect: Drop},
}

// Lookup returns the transition for (from, on) under a condition. Always
// rows match any condition.
func (t Table) Lookup(from State, on EventKind, when Cond) (Transition, bool) {
	for _, tr := range t {
		if tr.From == from && tr.On == on && (tr.When == Always || tr.When == when) {
			return tr, true
		}
	}
	return Transition{}, false
}

// Validate checks that t is total and deterministic over every state and
// event, and that a mode switch returns every state to Idle.
func Validate(t Table) error {
	states := []State{Idle, Held, Armed}
	events := []EventKind{ModDown, ModUp, KeyDown, Timeout, ModeSwitch}
	for _, s := range states {
		for _, e := range events {
			var rows []Transition
			for _, tr := range t {
				if tr.From == s && tr.On == e {
					rows = append(rows, tr)
				}
			}
			switch {
			case len(rows) == 0:
				return fmt.Errorf("no transition for %s on %s", s, e)
			case len(rows) == 1 && rows[0].When != Always:
				return fmt.Errorf("%s on %s is conditional with no complement", s, e)
			case len(rows) == 2:
				conds := []Cond{rows[0].When, rows[1].When}
				if !slices.Contains(conds, AloneInTime) || !slices.Contains(conds, Otherwise) {
					return fmt.Errorf("%s on %s has overlapping transitions", s, e)
				}
			case len(rows) > 2:
				return fmt.Errorf("%s on %s has %d transitions", s, e, len(rows))
			}
			if e == ModeSwitch && rows[0].To != Idle {
				return fmt.Errorf("mode switch leaves %s in %s", s, rows[0].To)
			}
		}
	}
	return nil
}
