package chord

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterjc/kana-chording-ke/internal/ir"
	"github.com/peterjc/kana-chording-ke/internal/testutil"
)

const window = 50 * time.Millisecond

func explicit(i int) ir.Source { return ir.Source{Chord: i} }

func press(k string, ms int) KeyEvent   { return KeyEvent{Key: k, Down: true, At: testutil.At(ms)} }
func release(k string, ms int) KeyEvent { return KeyEvent{Key: k, At: testutil.At(ms)} }

func feed(d *Detector, events ...KeyEvent) []Fire {
	var out []Fire
	for _, ev := range events {
		out = append(out, d.Handle(ev)...)
	}
	return out
}

func precedenceSet(t *testing.T) *Set {
	t.Helper()
	s := NewSet()
	require.NoError(t, s.Declare(New([]string{"k2", "k1"}, "pair", 0, explicit(0))))
	require.NoError(t, s.Declare(New([]string{"k1", "k2", "k3"}, "triple", 1, explicit(1))))
	return s
}

func TestNewSortsKeys(t *testing.T) {
	c := New([]string{"s", "k", "s"}, "x", 0, explicit(0))
	assert.Equal(t, []string{"k", "s"}, c.Keys)
}

func TestLessOrdersBySizeThenOrdinal(t *testing.T) {
	s := NewSet()
	s.Observe(New([]string{"a", "b"}, "ab", 3, ir.Source{Row: "a", Chord: -1}))
	s.Observe(New([]string{"a", "b", "c"}, "abc", 5, ir.Source{Row: "b", Chord: -1}))
	s.Observe(New([]string{"c", "d"}, "cd", 1, ir.Source{Row: "c", Chord: -1}))

	var got []string
	for _, c := range s.Sorted() {
		got = append(got, c.Output)
	}
	assert.Equal(t, []string{"abc", "cd", "ab"}, got)
}

func TestDeclareAmbiguous(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Declare(New([]string{"n", "m"}, "ん", 0, explicit(0))))
	err := s.Declare(New([]string{"m", "n"}, "ん", 1, explicit(1)))

	var amb *AmbiguousChordError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, []string{"m", "n"}, amb.Keys)
	assert.Equal(t, explicit(0), amb.First)
	assert.Equal(t, explicit(1), amb.Second)
	assert.Contains(t, err.Error(), "chord[0]")
	assert.Contains(t, err.Error(), "chord[1]")
}

func TestDeclareRejectsSingleKey(t *testing.T) {
	assert.Error(t, NewSet().Declare(New([]string{"a"}, "x", 0, explicit(0))))
}

func TestLargerChordWins(t *testing.T) {
	d := NewDetector(precedenceSet(t), window, nil)

	got := feed(d, press("k1", 0), press("k2", 10), press("k3", 20))
	want := []Fire{{Keys: []string{"k1", "k2", "k3"}, Output: "triple", Chord: true}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fires (-want +got):\n%s", diff)
	}
	assert.Empty(t, d.Pending())
}

func TestSmallerChordOnRelease(t *testing.T) {
	d := NewDetector(precedenceSet(t), window, nil)

	got := feed(d, press("k1", 0), press("k2", 10))
	assert.Empty(t, got, "pair waits while the triple can still complete")

	got = feed(d, release("k1", 40))
	assert.Equal(t, []Fire{{Keys: []string{"k1", "k2"}, Output: "pair", Chord: true}}, got)
}

func TestSmallerChordWhenWindowExpires(t *testing.T) {
	d := NewDetector(precedenceSet(t), window, map[string]string{"k3": "three"})

	got := feed(d, press("k1", 0), press("k2", 10), press("k3", 100))
	assert.Equal(t, []Fire{{Keys: []string{"k1", "k2"}, Output: "pair", Chord: true}}, got)

	assert.Equal(t, []Fire{{Keys: []string{"k3"}, Output: "three"}}, d.Flush())
}

func TestNoChordFallsBackToSingles(t *testing.T) {
	d := NewDetector(precedenceSet(t), window, map[string]string{"k1": "one"})

	got := feed(d, press("k1", 0), press("k3", 200))
	assert.Equal(t, []Fire{{Keys: []string{"k1"}, Output: "one"}}, got)
	assert.Equal(t, []string{"k3"}, d.Pending())
}

func TestNonMemberResolvesPending(t *testing.T) {
	d := NewDetector(precedenceSet(t), window, nil)

	got := feed(d, press("k1", 0), press("x", 5))
	assert.Equal(t, []Fire{{Keys: []string{"k1"}, Output: "k1"}, {Keys: []string{"x"}, Output: "x"}}, got)
}

func TestChordSuppressesMembers(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Declare(New([]string{"n", "m"}, "ん", 0, explicit(0))))
	d := NewDetector(s, window, map[string]string{"n": "な", "m": "ま"})

	got := feed(d, press("n", 0), press("m", 20), release("n", 60), release("m", 70))
	assert.Equal(t, []Fire{{Keys: []string{"m", "n"}, Output: "ん", Chord: true}}, got)
}

func TestPerChordWindow(t *testing.T) {
	s := NewSet()
	c := New([]string{"a", "b"}, "ab", 0, explicit(0))
	c.Window = 200 * time.Millisecond
	require.NoError(t, s.Declare(c))
	d := NewDetector(s, window, nil)

	got := feed(d, press("a", 0), press("b", 150))
	assert.Equal(t, []Fire{{Keys: []string{"a", "b"}, Output: "ab", Chord: true}}, got)
}

func TestFromRules(t *testing.T) {
	kanaJIS := ir.Guard{Mode: ir.ModeKana, Variant: ir.VariantJIS}
	rules := []ir.GeneratedRule{
		{Trigger: ir.Trigger{Keys: []string{"k"}}, Guard: kanaJIS, Output: "か"},
		{Trigger: ir.Trigger{Keys: []string{"k", "right_arrow"}}, Guard: kanaJIS, Output: "け", WindowMS: 80, Ordinal: 3},
		{Trigger: ir.Trigger{Keys: []string{"k"}, When: []ir.VarCondition{{Name: "v", Value: 1}}}, Guard: kanaJIS, Output: "が"},
		{Trigger: ir.Trigger{Keys: []string{"s"}}, Guard: ir.Guard{Mode: ir.ModeRomaji, Variant: ir.VariantJIS}, Output: "さ"},
		{Trigger: ir.Trigger{Keys: []string{"l"}, Modifiers: []string{"shift"}}, Guard: kanaJIS, Output: "あ"},
		{Trigger: ir.Trigger{Keys: []string{"spacebar"}, AnyModifiers: true}, Guard: kanaJIS},
	}

	set, singles := FromRules(rules, kanaJIS)
	assert.Equal(t, map[string]string{"k": "か"}, singles)
	require.Equal(t, 1, set.Len())
	c := set.Sorted()[0]
	assert.Equal(t, []string{"k", "right_arrow"}, c.Keys)
	assert.Equal(t, 80*time.Millisecond, c.Window)
	assert.Equal(t, 3, c.Ordinal)
}
