// Package harness runs behavior scenarios against the runtime models of
// the generated rules: the sticky one-shot machine, vowel recall and the
// chord detector.
//
// The emitted document is only data; the host engine executes it. The
// models here execute the same protocols in Go so their timing and
// precedence can be checked event by event, and a chord scenario can run
// against the rules compiled from a real layout.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: sticky_tap_then_key
//	description: "A tapped sticky key voices the next key"
//	model: sticky
//	sticky_timeout_ms: 1000
//	steps:
//	  - {at: 0, event: modifier-down}
//	  - {at: 80, event: modifier-up}
//	  - {at: 300, event: key-down, key: k}
//	assertions:
//	  - type: output_exact
//	    outputs: ["k+dakuten"]
//	  - type: final_state
//	    state: idle
//
// A chord scenario may name a layout instead of declaring chords:
//
//	model: chord
//	layout: flick
//	mode: kana
//	variant: jis
//
// # Assertion Types
//
//   - output_contains: Verifies an output was emitted
//   - output_order: Verifies outputs appear in the specified order
//   - output_count: Verifies an output was emitted exactly N times
//   - output_exact: Verifies the complete output sequence
//   - final_state: Verifies the model state after the last step
//
// # Deterministic Testing
//
// Step times are milliseconds from testutil.Epoch, so the same scenario
// produces the same trace on every run. Traces are serialized as canonical
// JSON and compared against golden files in testdata/golden.
package harness
