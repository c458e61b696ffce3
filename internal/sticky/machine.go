package sticky

import (
	"fmt"
	"time"
)

// Event is one key event delivered to a Machine.
type Event struct {
	Kind EventKind
	// Key is the key pressed for KeyDown events.
	Key string
	At  time.Time
}

// Emission is a key the machine lets through, with or without the modifier.
type Emission struct {
	Key      string
	Modified bool
}

// Record is the runtime state of one sticky modifier. The dispatch loop
// owns it and passes it to the machine by pointer.
type Record struct {
	State State
	// Deadline is when an armed modifier expires, set on modifier-down.
	Deadline time.Time
	// KeySeen is set when a key arrives while the modifier is held.
	KeySeen bool
}

// Machine interprets a transition table with a timeout.
type Machine struct {
	table   Table
	timeout time.Duration
}

// NewMachine returns a machine for t, which must pass Validate.
func NewMachine(t Table, timeout time.Duration) (*Machine, error) {
	if err := Validate(t); err != nil {
		return nil, fmt.Errorf("sticky: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("sticky: timeout must be positive, got %s", timeout)
	}
	return &Machine{table: t, timeout: timeout}, nil
}

// Handle applies ev to rec and returns what is emitted. An expired deadline
// is applied first, as a Timeout event, before ev itself.
func (m *Machine) Handle(rec *Record, ev Event) []Emission {
	var out []Emission
	if ev.Kind != Timeout && rec.State != Idle && !rec.Deadline.IsZero() && !ev.At.Before(rec.Deadline) {
		out = append(out, m.step(rec, Event{Kind: Timeout, At: rec.Deadline})...)
	}
	return append(out, m.step(rec, ev)...)
}

func (m *Machine) step(rec *Record, ev Event) []Emission {
	when := Otherwise
	if ev.Kind == ModUp && !rec.KeySeen && ev.At.Before(rec.Deadline) {
		when = AloneInTime
	}
	tr, ok := m.table.Lookup(rec.State, ev.Kind, when)
	if !ok {
		// Validate guarantees totality.
		panic(fmt.Sprintf("sticky: no transition for %s on %s", rec.State, ev.Kind))
	}

	if tr.From == Idle && tr.On == ModDown {
		rec.Deadline = ev.At.Add(m.timeout)
		rec.KeySeen = false
	}
	if tr.From == Held && tr.On == KeyDown {
		rec.KeySeen = true
	}
	rec.State = tr.To
	if tr.To == Idle {
		rec.Deadline = time.Time{}
		rec.KeySeen = false
	}

	switch tr.Effect {
	case Plain:
		return []Emission{{Key: ev.Key}}
	case Apply:
		return []Emission{{Key: ev.Key, Modified: true}}
	default:
		return nil
	}
}

// Reset returns rec to Idle, as on a mode switch.
func (m *Machine) Reset(rec *Record, at time.Time) {
	m.step(rec, Event{Kind: ModeSwitch, At: at})
}
