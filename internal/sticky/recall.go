package sticky

import (
	"fmt"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// RecallVariable holds the last emitted vowel: 0 when empty, otherwise the
// vowel column index plus one.
const RecallVariable = "kanachord_last_vowel"

// MaxVowels is the number of vowel identities recall distinguishes.
const MaxVowels = 5

// RecallRecord is the runtime state of vowel recall.
type RecallRecord struct {
	Slot int
}

// RecallOutput is one action of a small-form key press under recall.
type RecallOutput struct {
	DeletePrevious bool
	Text           string
}

// Recall is the vowel-recall protocol for a layout's small vowels.
type Recall struct {
	small []string // small form per vowel, "" when none
}

// NewRecall returns the protocol for the small forms of vowels 1..n.
func NewRecall(small []string) (*Recall, error) {
	if len(small) == 0 || len(small) > MaxVowels {
		return nil, fmt.Errorf("sticky: recall needs 1 to %d vowels, got %d", MaxVowels, len(small))
	}
	return &Recall{small: small}, nil
}

// Emitted records an emission. vowel is the vowel identity (1..n) of a
// base vowel, or 0 for any other output, which clears the slot.
func (r *Recall) Emitted(rec *RecallRecord, vowel int) {
	if vowel < 0 || vowel > len(r.small) {
		vowel = 0
	}
	rec.Slot = vowel
}

// SmallKey handles a press of the small-form modifier key. With a recorded
// vowel it deletes the previous character, types the small form and clears
// the slot; with an empty slot it does nothing.
func (r *Recall) SmallKey(rec *RecallRecord) []RecallOutput {
	if rec.Slot == 0 {
		return nil
	}
	small := r.small[rec.Slot-1]
	rec.Slot = 0
	if small == "" {
		return nil
	}
	return []RecallOutput{{DeletePrevious: true}, {Text: small}}
}

// Reset clears the slot, as on a mode switch.
func (r *Recall) Reset(rec *RecallRecord) {
	rec.Slot = 0
}

// SetSlot is the host action recording vowel (0 clears).
func SetSlot(vowel int) ir.Action {
	return ir.SetVariable(RecallVariable, vowel)
}

// SlotIs is the host condition on the recorded vowel.
func SlotIs(vowel int) ir.VarCondition {
	return ir.VarCondition{Name: RecallVariable, Value: vowel}
}
