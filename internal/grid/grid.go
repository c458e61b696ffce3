// Package grid resolves (row, column, modifier) addresses of a layout to
// output strings and enumerates the defined addresses in a stable order.
package grid

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// UnresolvedModifierError reports a cell that references a modifier with no
// variant defined and no explicit unassigned marker.
type UnresolvedModifierError struct {
	Site ir.Site
}

func (e *UnresolvedModifierError) Error() string {
	return fmt.Sprintf("unresolved modifier: cell references %q without a variant or unassigned marker (%s)",
		e.Site.Modifier, e.Site)
}

// Address is a grid lookup key. An empty Modifier selects the base output.
type Address struct {
	Row      string
	Column   string
	Modifier string
}

// Resolution is the result of resolving an address.
type Resolution struct {
	Output     string
	Unassigned bool
	// Reason says why an address is unassigned.
	Reason string
}

// Triple is one defined address with its position in iteration order.
type Triple struct {
	Address
	Ordinal  int
	Cell     *ir.KanaCell
	Row      *ir.Row
	Column   *ir.Column
	Modifier *ir.ModifierRule // nil for the base output
}

// Grid is a validated, indexed layout.
type Grid struct {
	layout *ir.Layout
	cells  map[[2]string]*ir.KanaCell
	mods   map[string]*ir.ModifierRule
}

// New indexes l and rejects cells that reference a modifier without a
// variant, unless the modifier is globally unsupported.
func New(l *ir.Layout) (*Grid, error) {
	g := &Grid{
		layout: l,
		cells:  make(map[[2]string]*ir.KanaCell, len(l.Cells)),
		mods:   make(map[string]*ir.ModifierRule, len(l.Modifiers)),
	}
	for i := range l.Modifiers {
		g.mods[l.Modifiers[i].ID] = &l.Modifiers[i]
	}
	for i := range l.Cells {
		c := &l.Cells[i]
		g.cells[[2]string{c.Row, c.Column}] = c
	}

	// Check in declaration order so the first reported error is stable.
	for _, row := range l.Rows {
		for _, col := range l.Columns {
			c, ok := g.cells[[2]string{row.ID, col.ID}]
			if !ok || c.Unassigned {
				continue
			}
			for _, m := range l.Modifiers {
				v, referenced := c.Variants[m.ID]
				if !referenced || v != nil || m.Unsupported {
					continue
				}
				return nil, &UnresolvedModifierError{Site: ir.Site{Row: c.Row, Column: c.Column, Modifier: m.ID}}
			}
			for _, id := range slices.Sorted(maps.Keys(c.Variants)) {
				if _, ok := g.mods[id]; !ok {
					return nil, &UnresolvedModifierError{Site: ir.Site{Row: c.Row, Column: c.Column, Modifier: id}}
				}
			}
		}
	}
	return g, nil
}

// Layout returns the indexed layout.
func (g *Grid) Layout() *ir.Layout { return g.layout }

// Modifier returns the modifier with the given id.
func (g *Grid) Modifier(id string) (*ir.ModifierRule, bool) {
	m, ok := g.mods[id]
	return m, ok
}

// ModifierOfKind returns the modifier providing effect k.
func (g *Grid) ModifierOfKind(k ir.EffectKind) (*ir.ModifierRule, bool) {
	for i := range g.layout.Modifiers {
		if g.layout.Modifiers[i].Kind == k {
			return &g.layout.Modifiers[i], true
		}
	}
	return nil, false
}

// Cell returns the cell at (row, column).
func (g *Grid) Cell(row, column string) (*ir.KanaCell, bool) {
	c, ok := g.cells[[2]string{row, column}]
	return c, ok
}

// Resolve returns the output at addr.
func (g *Grid) Resolve(addr Address) Resolution {
	c, ok := g.cells[[2]string{addr.Row, addr.Column}]
	if !ok {
		return Resolution{Unassigned: true, Reason: "no cell"}
	}
	if c.Unassigned {
		return Resolution{Unassigned: true, Reason: "cell unassigned"}
	}
	if addr.Modifier == "" {
		return Resolution{Output: c.Base}
	}
	m, ok := g.mods[addr.Modifier]
	if !ok {
		return Resolution{Unassigned: true, Reason: "unknown modifier"}
	}
	v, referenced := c.Variants[addr.Modifier]
	switch {
	case !referenced:
		return Resolution{Unassigned: true, Reason: "no variant"}
	case m.Unsupported:
		return Resolution{Unassigned: true, Reason: "modifier unsupported"}
	case v == nil:
		// New rejects this for supported modifiers.
		return Resolution{Unassigned: true, Reason: "no variant"}
	case *v == ir.UnassignedMarker:
		return Resolution{Unassigned: true, Reason: "marked unassigned"}
	default:
		return Resolution{Output: *v}
	}
}

// Triples yields every defined (row, column, modifier-or-none) address
// exactly once: rows in declaration order, then columns, then the base
// output followed by modifiers in declaration order. Sticky-shift
// modifiers have no addresses of their own.
func (g *Grid) Triples() iter.Seq[Triple] {
	return func(yield func(Triple) bool) {
		ordinal := 0
		for ri := range g.layout.Rows {
			row := &g.layout.Rows[ri]
			for ci := range g.layout.Columns {
				col := &g.layout.Columns[ci]
				c, ok := g.cells[[2]string{row.ID, col.ID}]
				if !ok {
					continue
				}
				t := Triple{
					Address: Address{Row: row.ID, Column: col.ID},
					Ordinal: ordinal,
					Cell:    c,
					Row:     row,
					Column:  col,
				}
				ordinal++
				if !yield(t) {
					return
				}
				for mi := range g.layout.Modifiers {
					m := &g.layout.Modifiers[mi]
					if m.Kind == ir.EffectStickyShift {
						continue
					}
					if _, referenced := c.Variants[m.ID]; !referenced {
						continue
					}
					t.Address.Modifier = m.ID
					t.Modifier = m
					t.Ordinal = ordinal
					ordinal++
					if !yield(t) {
						return
					}
				}
			}
		}
	}
}

// Len returns the number of triples.
func (g *Grid) Len() int {
	n := 0
	for range g.Triples() {
		n++
	}
	return n
}

// KeyRoles returns every key the layout binds with its role: row keys are
// base keys, column selectors and modifier keys are modifier keys.
func (g *Grid) KeyRoles() []ir.ChordKey {
	var out []ir.ChordKey
	for _, r := range g.layout.Rows {
		out = append(out, ir.ChordKey{Code: r.Key, Role: ir.RoleBase})
	}
	for _, c := range g.layout.Columns {
		if c.Key != "" {
			out = append(out, ir.ChordKey{Code: c.Key, Role: ir.RoleModifier})
		}
	}
	for _, m := range g.layout.Modifiers {
		if m.Key != "" {
			out = append(out, ir.ChordKey{Code: m.Key, Role: ir.RoleModifier})
		}
	}
	return out
}

// VowelSlots returns the vowel-recall slots in identity order: every
// column of the vowel row, or without one the cells marked as vowels in
// declaration order. Slot i has identity i+1.
func (g *Grid) VowelSlots() []Address {
	l := g.layout
	var out []Address
	if l.VowelRow != "" {
		for _, c := range l.Columns {
			out = append(out, Address{Row: l.VowelRow, Column: c.ID})
		}
		return out
	}
	for _, c := range l.Cells {
		if c.Vowel {
			out = append(out, Address{Row: c.Row, Column: c.Column})
		}
	}
	return out
}

// VowelSlot returns the recall identity of the cell at (row, column), or
// 0 when it is not a vowel slot.
func (g *Grid) VowelSlot(row, column string) int {
	for i, a := range g.VowelSlots() {
		if a.Row == row && a.Column == column {
			return i + 1
		}
	}
	return 0
}
