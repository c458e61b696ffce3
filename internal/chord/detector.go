package chord

import (
	"slices"
	"time"
)

// KeyEvent is a physical key transition.
type KeyEvent struct {
	Key  string
	Down bool
	At   time.Time
}

// Fire is one resolved press: a completed chord or a single key.
type Fire struct {
	Keys   []string
	Output string
	Chord  bool
}

// Detector groups key presses into chords. Presses of chord member keys
// are held back until a chord completes, a key is released, or the window
// since the last press expires; the deadline is checked on the next event
// or on Flush.
type Detector struct {
	chords  []Chord
	members map[string]bool
	singles map[string]string
	window  time.Duration

	pending []string
	last    time.Time
}

// NewDetector returns a detector for set. singles maps a key to its
// single-key output; keys without an entry produce their own name.
func NewDetector(set *Set, window time.Duration, singles map[string]string) *Detector {
	return &Detector{
		chords:  set.Sorted(),
		members: set.Members(),
		singles: singles,
		window:  window,
	}
}

// Pending returns the held-back keys in press order.
func (d *Detector) Pending() []string {
	return slices.Clone(d.pending)
}

// Handle feeds ev and returns the presses it resolves.
func (d *Detector) Handle(ev KeyEvent) []Fire {
	var out []Fire
	if len(d.pending) > 0 && ev.At.Sub(d.last) > d.windowFor(d.pending) {
		out = append(out, d.resolve()...)
	}

	if !ev.Down {
		if slices.Contains(d.pending, ev.Key) {
			out = append(out, d.resolve()...)
		}
		return out
	}

	if !d.members[ev.Key] {
		out = append(out, d.resolve()...)
		return append(out, d.single(ev.Key))
	}
	if slices.Contains(d.pending, ev.Key) {
		// Repeat of a held key.
		return out
	}
	d.pending = append(d.pending, ev.Key)
	d.last = ev.At
	if c, ok := d.complete(); ok {
		d.pending = nil
		out = append(out, Fire{Keys: c.Keys, Output: c.Output, Chord: true})
	}
	return out
}

// Flush resolves anything still held back, as at the end of input.
func (d *Detector) Flush() []Fire {
	return d.resolve()
}

// complete returns the chord matching the pending keys exactly, provided
// no larger chord could still complete.
func (d *Detector) complete() (Chord, bool) {
	var match *Chord
	for i := range d.chords {
		c := &d.chords[i]
		if !c.Contains(d.pending) {
			continue
		}
		if len(c.Keys) > len(d.pending) {
			return Chord{}, false
		}
		if match == nil {
			match = c
		}
	}
	if match == nil {
		return Chord{}, false
	}
	return *match, true
}

// resolve fires the best chord among the pending keys, repeatedly, and
// falls back to single-key behavior for what is left.
func (d *Detector) resolve() []Fire {
	var out []Fire
	for len(d.pending) > 0 {
		set := make(map[string]bool, len(d.pending))
		for _, k := range d.pending {
			set[k] = true
		}
		idx := slices.IndexFunc(d.chords, func(c Chord) bool { return c.within(set) })
		if idx < 0 {
			break
		}
		c := d.chords[idx]
		out = append(out, Fire{Keys: c.Keys, Output: c.Output, Chord: true})
		d.pending = slices.DeleteFunc(d.pending, func(k string) bool {
			_, ok := slices.BinarySearch(c.Keys, k)
			return ok
		})
	}
	for _, k := range d.pending {
		out = append(out, d.single(k))
	}
	d.pending = nil
	return out
}

func (d *Detector) single(key string) Fire {
	out, ok := d.singles[key]
	if !ok {
		out = key
	}
	return Fire{Keys: []string{key}, Output: out}
}

func (d *Detector) windowFor(pending []string) time.Duration {
	w := d.window
	for _, c := range d.chords {
		if c.Window > w && c.Contains(pending) {
			w = c.Window
		}
	}
	return w
}
