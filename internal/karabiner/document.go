// Package karabiner renders generated rules as a Karabiner-Elements
// complex modification document and writes it.
package karabiner

// Document is a complex modification file as imported from
// ~/.config/karabiner/assets/complex_modifications.
type Document struct {
	Title       string   `json:"title"`
	Maintainers []string `json:"maintainers,omitempty"`
	Author      string   `json:"author,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Repo        string   `json:"repo,omitempty"`
	Rules       []Rule   `json:"rules"`
}

// Rule is one enable-able rule group.
type Rule struct {
	Description  string        `json:"description"`
	Manipulators []Manipulator `json:"manipulators"`
}

// Manipulator is a basic manipulator.
type Manipulator struct {
	Type            string         `json:"type"`
	Description     string         `json:"description,omitempty"`
	From            From           `json:"from"`
	To              []To           `json:"to,omitempty"`
	ToIfAlone       []To           `json:"to_if_alone,omitempty"`
	ToAfterKeyUp    []To           `json:"to_after_key_up,omitempty"`
	ToDelayedAction *DelayedAction `json:"to_delayed_action,omitempty"`
	Conditions      []Condition    `json:"conditions,omitempty"`
	Parameters      map[string]int `json:"parameters,omitempty"`
}

// From is the input event of a manipulator: a single key or a set of
// simultaneous keys.
type From struct {
	KeyCode             string               `json:"key_code,omitempty"`
	Simultaneous        []KeyCode            `json:"simultaneous,omitempty"`
	SimultaneousOptions *SimultaneousOptions `json:"simultaneous_options,omitempty"`
	Modifiers           *FromModifiers       `json:"modifiers,omitempty"`
}

// FromModifiers lists the modifiers that must be held and those that may
// be.
type FromModifiers struct {
	Mandatory []string `json:"mandatory,omitempty"`
	Optional  []string `json:"optional,omitempty"`
}

// KeyCode names a key.
type KeyCode struct {
	KeyCode string `json:"key_code"`
}

// SimultaneousOptions tunes simultaneous detection.
type SimultaneousOptions struct {
	KeyDownOrder string `json:"key_down_order,omitempty"`
}

// To is an output event.
type To struct {
	KeyCode     string       `json:"key_code,omitempty"`
	Modifiers   []string     `json:"modifiers,omitempty"`
	SetVariable *SetVariable `json:"set_variable,omitempty"`
}

// SetVariable assigns a manipulator variable.
type SetVariable struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DelayedAction runs after basic.to_delayed_action_delay_milliseconds.
type DelayedAction struct {
	ToIfInvoked  []To `json:"to_if_invoked,omitempty"`
	ToIfCanceled []To `json:"to_if_canceled,omitempty"`
}

// Condition restricts when a manipulator fires.
type Condition struct {
	Type          string        `json:"type"`
	InputSources  []InputSource `json:"input_sources,omitempty"`
	KeyboardTypes []string      `json:"keyboard_types,omitempty"`
	Name          string        `json:"name,omitempty"`
	// Value is a pointer so that variable_if with 0 is kept.
	Value *int `json:"value,omitempty"`
}

// InputSource matches an input source.
type InputSource struct {
	InputSourceID string `json:"input_source_id"`
}

// Host field values.
const (
	TypeBasic               = "basic"
	CondInputSourceIf       = "input_source_if"
	CondKeyboardTypeIf      = "keyboard_type_if"
	CondVariableIf          = "variable_if"
	KeyDownOrderInsensitive = "insensitive"
	ModifierAny             = "any"

	ParamSimultaneousThreshold = "basic.simultaneous_threshold_milliseconds"
	ParamToIfAloneTimeout      = "basic.to_if_alone_timeout_milliseconds"
	ParamDelayedActionDelay    = "basic.to_delayed_action_delay_milliseconds"
)
