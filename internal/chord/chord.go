// Package chord declares simultaneous-key chords and orders them by
// precedence. The same ordering drives the compiled rule order and the
// runtime Detector, so the host engine's first-match semantics and the
// simulated behavior agree.
package chord

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// AmbiguousChordError reports two explicit chords over the same key set.
type AmbiguousChordError struct {
	Site   ir.Site
	Keys   []string
	First  ir.Source
	Second ir.Source
}

func (e *AmbiguousChordError) Error() string {
	return fmt.Sprintf("ambiguous chord: {%s} declared by both %s and %s",
		strings.Join(e.Keys, ","), e.First, e.Second)
}

// Chord is a set of keys pressed together and what they produce.
type Chord struct {
	// Keys is sorted.
	Keys    []string
	Output  string
	Ordinal int
	// Window is the maximum inter-press latency; zero uses the default.
	Window time.Duration
	Source ir.Source
}

// New returns a chord over keys, sorting and de-duplicating them.
func New(keys []string, output string, ordinal int, src ir.Source) Chord {
	set := slices.Clone(keys)
	slices.Sort(set)
	return Chord{Keys: slices.Compact(set), Output: output, Ordinal: ordinal, Source: src}
}

func (c Chord) id() string {
	return strings.Join(c.Keys, "\x00")
}

// Contains reports whether every key in keys belongs to c.
func (c Chord) Contains(keys []string) bool {
	for _, k := range keys {
		if _, ok := slices.BinarySearch(c.Keys, k); !ok {
			return false
		}
	}
	return true
}

// within reports whether c's keys are all in set.
func (c Chord) within(set map[string]bool) bool {
	for _, k := range c.Keys {
		if !set[k] {
			return false
		}
	}
	return true
}

// Less orders chords by precedence: larger key sets first, then lower
// ordinal. It is a cmp-style comparison for slices.SortStableFunc.
func Less(a, b Chord) int {
	if c := cmp.Compare(len(b.Keys), len(a.Keys)); c != 0 {
		return c
	}
	return cmp.Compare(a.Ordinal, b.Ordinal)
}

// Set collects the chords of a layout.
type Set struct {
	chords   []Chord
	explicit map[string]int
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{explicit: make(map[string]int)}
}

// Declare adds an explicit layout chord. A second explicit chord over the
// same keys is an AmbiguousChordError, whatever its output.
func (s *Set) Declare(c Chord) error {
	if len(c.Keys) < 2 {
		return fmt.Errorf("chord: %s needs at least two keys", c.Source)
	}
	if i, ok := s.explicit[c.id()]; ok {
		return &AmbiguousChordError{
			Site:   ir.SiteOf(c.Source, ir.Guard{}),
			Keys:   c.Keys,
			First:  s.chords[i].Source,
			Second: c.Source,
		}
	}
	s.explicit[c.id()] = len(s.chords)
	s.chords = append(s.chords, c)
	return nil
}

// Observe adds a grid-derived chord. Clashes with other chords are output
// conflicts, which the emitter reports.
func (s *Set) Observe(c Chord) {
	if len(c.Keys) < 2 {
		return
	}
	s.chords = append(s.chords, c)
}

// Len returns the number of chords.
func (s *Set) Len() int { return len(s.chords) }

// Sorted returns the chords in precedence order.
func (s *Set) Sorted() []Chord {
	out := slices.Clone(s.chords)
	slices.SortStableFunc(out, Less)
	return out
}

// Members returns every key that belongs to some chord.
func (s *Set) Members() map[string]bool {
	out := make(map[string]bool)
	for _, c := range s.chords {
		for _, k := range c.Keys {
			out[k] = true
		}
	}
	return out
}

// FromRules builds the chord set and single-key outputs of compiled rules
// active under g. State-gated rules are left out; they are not plain
// chords. So are rules that depend on held host modifiers, which the
// detector does not track.
func FromRules(rules []ir.GeneratedRule, g ir.Guard) (*Set, map[string]string) {
	set := NewSet()
	singles := make(map[string]string)
	for i := range rules {
		r := &rules[i]
		if r.Trigger.Gated() || !r.Guard.Overlaps(g) {
			continue
		}
		if len(r.Trigger.Modifiers) > 0 || r.Trigger.AnyModifiers {
			continue
		}
		keys := r.Trigger.KeySet()
		if len(keys) == 1 {
			if _, ok := singles[keys[0]]; !ok {
				singles[keys[0]] = r.Output
			}
			continue
		}
		c := New(keys, r.Output, r.Ordinal, r.Source)
		c.Window = time.Duration(r.WindowMS) * time.Millisecond
		set.Observe(c)
	}
	return set, singles
}
