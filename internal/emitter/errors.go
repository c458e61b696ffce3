package emitter

import (
	"fmt"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// DuplicateRuleError reports two sources mapping the same trigger under
// overlapping guards to different outputs.
type DuplicateRuleError struct {
	Site    ir.Site
	Trigger ir.Trigger
	Guard   ir.Guard

	First        ir.Source
	FirstOutput  string
	Second       ir.Source
	SecondOutput string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule: %s under %s maps to %q from %s and to %q from %s (%s)",
		e.Trigger, e.Guard, e.FirstOutput, e.First, e.SecondOutput, e.Second, e.Site)
}

// UnmappableOutputError reports output text with no key strokes in a mode,
// from a cell that does not declare passthrough for it.
type UnmappableOutputError struct {
	Site   ir.Site
	Output string
	Err    error
}

func (e *UnmappableOutputError) Error() string {
	return fmt.Sprintf("unmappable output: %q cannot be typed (%s): %v", e.Output, e.Site, e.Err)
}

func (e *UnmappableOutputError) Unwrap() error {
	return e.Err
}
