package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/peterjc/kana-chording-ke/internal/layouts"
)

// Scenario defines a runtime behavior scenario.
// A scenario feeds timed key events to one runtime model and asserts on
// what the model emits and the state it ends in.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model selects the runtime model: sticky, recall or chord.
	Model string `yaml:"model"`

	// Layout is a built-in layout name or a CUE layout directory, relative
	// to the scenario file. Recall and chord scenarios take their vowels
	// and chords from it when set.
	Layout string `yaml:"layout,omitempty"`

	// Mode and Variant select the rules a chord scenario runs under.
	// They default to kana and jis.
	Mode    string `yaml:"mode,omitempty"`
	Variant string `yaml:"variant,omitempty"`

	// StickyTimeoutMS and ChordWindowMS override the timing defaults.
	StickyTimeoutMS int `yaml:"sticky_timeout_ms,omitempty"`
	ChordWindowMS   int `yaml:"chord_window_ms,omitempty"`

	// Modifier labels modified sticky output. Defaults to the layout's
	// sticky target, or "shift".
	Modifier string `yaml:"modifier,omitempty"`

	// SmallForms lists the small form of each vowel for recall scenarios
	// without a layout.
	SmallForms []string `yaml:"small_forms,omitempty"`

	// Chords and Singles define chord scenarios without a layout.
	Chords  []ChordDecl       `yaml:"chords,omitempty"`
	Singles map[string]string `yaml:"singles,omitempty"`

	// Steps are the input events, in time order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the emitted output and final state.
	// Supported types: output_contains, output_order, output_count,
	// output_exact, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ChordDecl declares a chord for a scenario without a layout.
type ChordDecl struct {
	Keys     []string `yaml:"keys"`
	Output   string   `yaml:"output"`
	WindowMS int      `yaml:"window_ms,omitempty"`
}

// Step is one timed input event.
type Step struct {
	// At is the event time in milliseconds from the scenario start.
	At int `yaml:"at"`

	// Event names the input. Sticky: modifier-down, modifier-up, key-down,
	// timeout, mode-switch. Recall: emit, small, clear-key, mode-switch. Chord:
	// key-down, key-up.
	Event string `yaml:"event"`

	// Key is the key pressed or, for recall emit, the emitted text. A
	// recall clear-key names one of the layout's clear keys.
	Key string `yaml:"key,omitempty"`

	// Vowel is the vowel identity (1..5) of a recall emit. With a layout
	// it is looked up from Key when omitted.
	Vowel int `yaml:"vowel,omitempty"`
}

// Assertion validates emitted output or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output_contains": Check an output was emitted
	// - "output_order": Check outputs appear in order
	// - "output_count": Check an output was emitted exactly N times
	// - "output_exact": Check the complete output sequence
	// - "final_state": Check the model state after the last step
	Type string `yaml:"type"`

	// Output is the expected output (used by output_contains, output_count).
	Output string `yaml:"output,omitempty"`

	// Outputs is the expected sequence (used by output_order, output_exact).
	Outputs []string `yaml:"outputs,omitempty"`

	// Count is the expected number of occurrences (used by output_count).
	Count int `yaml:"count,omitempty"`

	// State is the expected final state (used by final_state).
	State string `yaml:"state,omitempty"`
}

// Model names.
const (
	ModelSticky = "sticky"
	ModelRecall = "recall"
	ModelChord  = "chord"
)

// Assertion type constants.
const (
	AssertOutputContains = "output_contains"
	AssertOutputOrder    = "output_order"
	AssertOutputCount    = "output_count"
	AssertOutputExact    = "output_exact"
	AssertFinalState     = "final_state"
)

// Step event names outside the sticky machine's own.
const (
	EventEmit     = "emit"
	EventSmall    = "small"
	EventClearKey = "clear-key"
	EventKeyUp    = "key-up"
)

var modelEvents = map[string][]string{
	ModelSticky: {"modifier-down", "modifier-up", "key-down", "timeout", "mode-switch"},
	ModelRecall: {EventEmit, EventSmall, EventClearKey, "mode-switch"},
	ModelChord:  {"key-down", EventKeyUp},
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A layout directory is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if l := scenario.Layout; l != "" && !layouts.Has(l) && !filepath.IsAbs(l) {
		scenario.Layout = filepath.Join(filepath.Dir(path), l)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	events, ok := modelEvents[s.Model]
	if !ok {
		return fmt.Errorf("model must be one of sticky, recall, chord, got %q", s.Model)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.StickyTimeoutMS < 0 || s.ChordWindowMS < 0 {
		return fmt.Errorf("timing overrides must not be negative")
	}

	switch s.Model {
	case ModelRecall:
		if s.Layout == "" && len(s.SmallForms) == 0 {
			return fmt.Errorf("recall scenarios need a layout or small_forms")
		}
	case ModelChord:
		if s.Layout == "" && len(s.Chords) == 0 {
			return fmt.Errorf("chord scenarios need a layout or chords")
		}
		for i, c := range s.Chords {
			if len(c.Keys) < 2 {
				return fmt.Errorf("chords[%d]: a chord needs at least two keys", i)
			}
		}
	}

	last := 0
	for i, step := range s.Steps {
		if !slices.Contains(events, step.Event) {
			return fmt.Errorf("steps[%d]: event %q is not a %s event (have %v)", i, step.Event, s.Model, events)
		}
		if step.At < last {
			return fmt.Errorf("steps[%d]: at %d is before the previous step at %d", i, step.At, last)
		}
		last = step.At
		needsKey := step.Event == "key-down" || step.Event == EventKeyUp || step.Event == EventEmit || step.Event == EventClearKey
		if needsKey && step.Key == "" {
			return fmt.Errorf("steps[%d]: key is required for %s", i, step.Event)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutputContains:
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output is required for output_contains", index)
		}
	case AssertOutputOrder:
		if len(a.Outputs) == 0 {
			return fmt.Errorf("assertions[%d]: outputs list is required for output_order", index)
		}
	case AssertOutputCount:
		if a.Output == "" {
			return fmt.Errorf("assertions[%d]: output is required for output_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for output_count", index)
		}
	case AssertOutputExact:
		// An empty list asserts that nothing was emitted.
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
