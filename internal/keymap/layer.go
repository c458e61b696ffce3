package keymap

import (
	"slices"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// layer is one modifier state of a physical key row: the characters produced
// by each key position while the layer's modifiers are held.
type layer struct {
	chars []rune
	mods  []string
}

// board is a keyboard's key positions and the layers typed on them.
type board struct {
	positions []string // host key_code per position
	layers    []layer
}

func newBoard(keys string, names map[rune]string, layers ...layer) *board {
	b := &board{layers: layers}
	for _, r := range keys {
		name, ok := names[r]
		if !ok {
			name = string(r)
		}
		b.positions = append(b.positions, name)
	}
	for _, l := range layers {
		if len(l.chars) != len(b.positions) {
			panic("keymap: layer length does not match key positions")
		}
	}
	return b
}

func mkLayer(chars string, mods ...string) layer {
	return layer{chars: []rune(chars), mods: mods}
}

// stroke finds r on the board. Layers are searched in order, so a character
// present on several layers is typed with the fewest modifiers.
func (b *board) stroke(r rune) (ir.KeyStroke, bool) {
	if r == ' ' || r == '\u3000' {
		return ir.KeyStroke{Code: "spacebar"}, true
	}
	if string(r) == ir.UnassignedMarker {
		return ir.KeyStroke{}, false
	}
	for _, l := range b.layers {
		if i := slices.Index(l.chars, r); i >= 0 {
			return ir.KeyStroke{Code: b.positions[i], Modifiers: slices.Clone(l.mods)}, true
		}
	}
	return ir.KeyStroke{}, false
}
