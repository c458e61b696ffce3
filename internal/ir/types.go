package ir

import (
	"fmt"
	"slices"
	"strings"
)

// UnassignedMarker is the explicit "no output here" marker accepted in
// layout cells and variants.
const UnassignedMarker = "❌"

// Mode is the input mode of the host input-method engine.
type Mode uint8

const (
	ModeKana Mode = iota + 1
	ModeRomaji
	// ModePassthrough defers to the input-method engine with no modification.
	// Rules resolved to it are never emitted.
	ModePassthrough
)

var modeNames = map[Mode]string{
	ModeKana:        "kana",
	ModeRomaji:      "romaji",
	ModePassthrough: "passthrough",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown input mode %q", s)
}

// KeyboardVariant is the physical key-layout family of the keyboard.
type KeyboardVariant uint8

const (
	// VariantAny matches every keyboard; only valid for rules expressed in
	// terms of logical key identity.
	VariantAny KeyboardVariant = iota
	VariantANSI
	VariantISO
	VariantJIS
)

// AllVariants lists the concrete variants in declaration order.
var AllVariants = []KeyboardVariant{VariantANSI, VariantISO, VariantJIS}

var variantNames = map[KeyboardVariant]string{
	VariantAny:  "any",
	VariantANSI: "ansi",
	VariantISO:  "iso",
	VariantJIS:  "jis",
}

func (v KeyboardVariant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("KeyboardVariant(%d)", uint8(v))
}

// ParseVariant parses a keyboard variant name.
func ParseVariant(s string) (KeyboardVariant, error) {
	for v, name := range variantNames {
		if name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown keyboard variant %q", s)
}

// EffectKind is what a modifier does to the key it is combined with.
type EffectKind uint8

const (
	EffectColumnSelect EffectKind = iota + 1
	EffectDakuten
	EffectHandakuten
	EffectSmallForm
	EffectKatakanaShift
	EffectStickyShift
)

var effectNames = map[EffectKind]string{
	EffectColumnSelect:  "column-select",
	EffectDakuten:       "dakuten",
	EffectHandakuten:    "handakuten",
	EffectSmallForm:     "small-form",
	EffectKatakanaShift: "katakana-shift",
	EffectStickyShift:   "sticky-shift",
}

func (k EffectKind) String() string {
	if name, ok := effectNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EffectKind(%d)", uint8(k))
}

// ParseEffectKind parses an effect kind name.
func ParseEffectKind(s string) (EffectKind, error) {
	for k, name := range effectNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown modifier kind %q", s)
}

// IsStateful reports whether rules for this effect consume a sticky state
// machine rather than being plain chord members.
func (k EffectKind) IsStateful() bool {
	return k == EffectStickyShift || k == EffectSmallForm
}

// KeyRole is the role a physical key plays in the layout.
type KeyRole uint8

const (
	RoleBase     KeyRole = iota + 1 // selects a row
	RoleModifier                    // selects a column or applies a transform
)

func (r KeyRole) String() string {
	switch r {
	case RoleBase:
		return "base"
	case RoleModifier:
		return "modifier"
	default:
		return fmt.Sprintf("KeyRole(%d)", uint8(r))
	}
}

// ChordKey is a physical key identifier (host key_code) with its role.
type ChordKey struct {
	Code string  `json:"code"`
	Role KeyRole `json:"role"`
}

// UnassignedPolicy decides what the emitter does with unassigned cells.
type UnassignedPolicy uint8

const (
	// UnassignedSkip emits nothing, leaving the key to the host.
	UnassignedSkip UnassignedPolicy = iota
	// UnassignedBlock emits a no-op rule so the native key never leaks.
	UnassignedBlock
)

// Layout is a compiled layout description: the GridSpec data plus the
// modifier table, explicit chords and document metadata.
type Layout struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Maintainers []string `json:"maintainers,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Repo        string   `json:"repo,omitempty"`

	Modes    []Mode            `json:"modes"`
	Variants []KeyboardVariant `json:"variants"`

	Rows      []Row          `json:"rows"`
	Columns   []Column       `json:"columns"`
	Modifiers []ModifierRule `json:"modifiers"`
	Cells     []KanaCell     `json:"cells"`
	Chords    []Chord        `json:"chords,omitempty"`

	// VowelRow is the row whose cells carry the five vowel identities used by
	// vowel recall. Empty leaves recall to cells marked Vowel, if any.
	VowelRow string `json:"vowel_row,omitempty"`

	// ModeSwitchKeys reset all sticky state when pressed.
	ModeSwitchKeys []string `json:"mode_switch_keys,omitempty"`
	// ClearKeys are keys the layout does not bind that still end a pending
	// recall or armed sticky modifier, such as backspace and space.
	ClearKeys []string `json:"clear_keys,omitempty"`

	Unassigned UnassignedPolicy `json:"unassigned"`
}

// Row is a grid row selected by a base key.
type Row struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	// Variants limits the row to keyboards that have its key. Empty means
	// every declared variant.
	Variants []KeyboardVariant `json:"variants,omitempty"`
}

// OnVariant reports whether the row's key exists on keyboard v.
func (r *Row) OnVariant(v KeyboardVariant) bool {
	return len(r.Variants) == 0 || slices.Contains(r.Variants, v)
}

// Column is a grid column. An empty Key selects the column with the row key
// alone. Modifiers are host modifiers held with the row key, such as shift
// for a shift layer.
type Column struct {
	ID        string   `json:"id"`
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// ModifierRule describes one modifier key and its effect.
type ModifierRule struct {
	ID   string     `json:"id"`
	Kind EffectKind `json:"kind"`
	Key  string     `json:"key,omitempty"`
	// Target is the modifier whose variant a sticky-shift applies to the
	// next key.
	Target string `json:"target,omitempty"`
	// Template is the key sequence emitted ahead of the transformed output.
	Template []string `json:"template,omitempty"`
	// Unsupported marks the modifier as globally unsupported: every triple
	// using it resolves to Unassigned.
	Unsupported bool `json:"unsupported,omitempty"`
	// Idle is what a small-form key types when no vowel is recalled.
	// Empty blocks the key.
	Idle string `json:"idle,omitempty"`
}

// KanaCell is one (row, column) entry of the grid.
type KanaCell struct {
	Row    string `json:"row"`
	Column string `json:"column"`
	Base   string `json:"base"`
	// Variants maps modifier id to output. A nil value references the
	// modifier without defining a variant.
	Variants    map[string]*string `json:"variants,omitempty"`
	Unassigned  bool               `json:"unassigned,omitempty"`
	Passthrough []Mode             `json:"passthrough,omitempty"`
	// Vowel makes the cell a vowel-recall slot in layouts without a vowel
	// row.
	Vowel bool `json:"vowel,omitempty"`
}

// PassesThrough reports whether the cell defers to the IME in mode m.
func (c *KanaCell) PassesThrough(m Mode) bool {
	return slices.Contains(c.Passthrough, m)
}

// Chord is an explicit simultaneous-press chord declared in the layout.
type Chord struct {
	Keys     []string `json:"keys"`
	Output   string   `json:"output"`
	WindowMS int      `json:"window_ms,omitempty"`
}

// KeyStroke is one key press sent to the host, with held modifiers.
type KeyStroke struct {
	Code      string   `json:"key_code"`
	Modifiers []string `json:"modifiers,omitempty"`
}

func (k KeyStroke) String() string {
	if len(k.Modifiers) == 0 {
		return k.Code
	}
	return strings.Join(k.Modifiers, "+") + "+" + k.Code
}

// ActionKind tags an output action.
type ActionKind uint8

const (
	ActionKey ActionKind = iota + 1
	ActionSetVariable
)

// Action is one output action of a rule: a key press or a variable set.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Key      KeyStroke  `json:"key,omitzero"`
	Variable string     `json:"variable,omitempty"`
	Value    int        `json:"value,omitempty"`
}

// KeyAction returns a key press action.
func KeyAction(s KeyStroke) Action {
	return Action{Kind: ActionKey, Key: s}
}

// SetVariable returns a variable assignment action.
func SetVariable(name string, value int) Action {
	return Action{Kind: ActionSetVariable, Variable: name, Value: value}
}

// Equal reports whether two actions are the same.
func (a Action) Equal(b Action) bool {
	return a.Kind == b.Kind && a.Variable == b.Variable && a.Value == b.Value &&
		a.Key.Code == b.Key.Code && slices.Equal(a.Key.Modifiers, b.Key.Modifiers)
}

// VarCondition is a state-variable equality check.
type VarCondition struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Trigger is what fires a rule: a set of simultaneously pressed keys,
// optionally gated on state variables. Modifiers are host modifiers that
// must be held; AnyModifiers lets the rule fire whatever is held.
type Trigger struct {
	Keys         []string       `json:"keys"`
	Modifiers    []string       `json:"modifiers,omitempty"`
	AnyModifiers bool           `json:"any_modifiers,omitempty"`
	When         []VarCondition `json:"when,omitempty"`
}

// KeySet returns the trigger keys sorted, the identity used for chord
// comparison.
func (t Trigger) KeySet() []string {
	set := slices.Clone(t.Keys)
	slices.Sort(set)
	return set
}

// Gated reports whether the trigger depends on state variables.
func (t Trigger) Gated() bool {
	return len(t.When) > 0
}

func (t Trigger) String() string {
	s := strings.Join(t.Keys, "+")
	if len(t.Modifiers) > 0 {
		s = strings.Join(t.Modifiers, "+") + "+" + s
	}
	for _, c := range t.When {
		s += fmt.Sprintf(" [%s=%d]", c.Name, c.Value)
	}
	return s
}

// Guard is the mode and keyboard-variant context a rule is restricted to.
type Guard struct {
	Mode    Mode            `json:"mode"`
	Variant KeyboardVariant `json:"variant"`
}

// Overlaps reports whether two guards can be active at the same time.
func (g Guard) Overlaps(o Guard) bool {
	if g.Mode != o.Mode {
		return false
	}
	return g.Variant == o.Variant || g.Variant == VariantAny || o.Variant == VariantAny
}

func (g Guard) String() string {
	return g.Mode.String() + "/" + g.Variant.String()
}

// Source names where a generated rule came from.
type Source struct {
	Row      string `json:"row,omitempty"`
	Column   string `json:"column,omitempty"`
	Modifier string `json:"modifier,omitempty"`
	// Chord is the index of an explicit layout chord, -1 otherwise.
	Chord int `json:"chord"`
	// Note names non-grid rules (sticky key, recall, mode reset).
	Note string `json:"note,omitempty"`
}

func (s Source) String() string {
	switch {
	case s.Chord >= 0:
		return fmt.Sprintf("chord[%d]", s.Chord)
	case s.Row != "":
		out := fmt.Sprintf("cell(%s,%s)", s.Row, s.Column)
		if s.Modifier != "" {
			out += "+" + s.Modifier
		}
		if s.Note != "" {
			out += " " + s.Note
		}
		return out
	default:
		return s.Note
	}
}

// DelayedAction holds the outputs of a host delayed action.
type DelayedAction struct {
	Invoked  []Action `json:"invoked,omitempty"`
	Canceled []Action `json:"canceled,omitempty"`
}

// GeneratedRule is one concrete trigger to output rule.
type GeneratedRule struct {
	Trigger Trigger `json:"trigger"`
	Guard   Guard   `json:"guard"`
	// Output is the text the rule produces, used for reports and conflict
	// comparison together with Actions.
	Output  string   `json:"output"`
	Actions []Action `json:"actions"`

	// Alone, AfterKeyUp and Delayed carry the sticky key's own protocol.
	Alone      []Action       `json:"alone,omitempty"`
	AfterKeyUp []Action       `json:"after_key_up,omitempty"`
	Delayed    *DelayedAction `json:"delayed,omitempty"`

	// WindowMS is the chord detection window for multi-key triggers.
	WindowMS int `json:"window_ms,omitempty"`
	// TimeoutMS is the sticky timeout for sticky key rules.
	TimeoutMS int `json:"timeout_ms,omitempty"`

	Priority int    `json:"priority"`
	Ordinal  int    `json:"ordinal"`
	Source   Source `json:"source"`
}

// Description returns the human-readable rule description.
func (r *GeneratedRule) Description() string {
	out := r.Output
	if out == "" {
		out = r.Source.Note
	}
	return fmt.Sprintf("%s → %s", r.Trigger, out)
}

// Site locates a compile error: the grid address plus the guard being
// generated when it occurred. Empty fields are unknown or not applicable.
type Site struct {
	Row      string          `json:"row,omitempty"`
	Column   string          `json:"column,omitempty"`
	Modifier string          `json:"modifier,omitempty"`
	Mode     Mode            `json:"mode,omitempty"`
	Variant  KeyboardVariant `json:"variant,omitempty"`
}

func (s Site) String() string {
	var parts []string
	if s.Row != "" || s.Column != "" {
		parts = append(parts, fmt.Sprintf("row=%s column=%s", s.Row, s.Column))
	}
	if s.Modifier != "" {
		parts = append(parts, "modifier="+s.Modifier)
	}
	if s.Mode != 0 {
		parts = append(parts, "mode="+s.Mode.String())
		parts = append(parts, "variant="+s.Variant.String())
	}
	return strings.Join(parts, " ")
}

// SiteOf returns the site of a rule source under a guard.
func SiteOf(src Source, g Guard) Site {
	return Site{Row: src.Row, Column: src.Column, Modifier: src.Modifier, Mode: g.Mode, Variant: g.Variant}
}
