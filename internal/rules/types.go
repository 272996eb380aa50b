package rules

import (
	"fmt"
	"strings"
	"time"
)

type ActionType int

const (
	ActionUnknown ActionType = iota
	ActionKeystroke
	ActionCommand
	ActionText
	ActionSms
)

var actionTypeNames = map[ActionType]string{
	ActionKeystroke: "keystroke",
	ActionCommand:   "command",
	ActionText:      "text",
	ActionSms:       "sms",
}

func ParseActionType(s string) (ActionType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range actionTypeNames {
		if n == name {
			return t, nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown action type %q (supported: keystroke, command, text, sms)", s)
}

func (t ActionType) String() string {
	if n, ok := actionTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

func (t ActionType) Valid() bool {
	_, ok := actionTypeNames[t]
	return ok
}

func (t ActionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ActionType) UnmarshalText(b []byte) error {
	parsed, err := ParseActionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Modifiers is a bitset of held modifier keys. The numeric values match the
// rule file format: alt=1, ctrl=2, shift=4.
type Modifiers uint8

const (
	ModAlt Modifiers = 1 << iota
	ModCtrl
	ModShift
)

const modifierMask = ModAlt | ModCtrl | ModShift

func (m Modifiers) Has(flag Modifiers) bool {
	return m&flag != 0
}

func (m Modifiers) Valid() bool {
	return m&^modifierMask == 0
}

func (m Modifiers) String() string {
	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "ctrl")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "alt")
	}
	if m.Has(ModShift) {
		parts = append(parts, "shift")
	}
	return strings.Join(parts, "+")
}

// StepTemplate is one configured step of a rule's action mapping.
type StepTemplate struct {
	Type      ActionType `json:"type" yaml:"type"`
	Template  string     `json:"template" yaml:"template"`
	Modifiers Modifiers  `json:"modifiers" yaml:"modifiers"`
	Enabled   bool       `json:"enabled" yaml:"enabled"`
	DelayMs   int        `json:"delay_ms" yaml:"delay_ms"`
}

// Definition is the input form of a rule together with its action mapping.
type Definition struct {
	Name        string
	Pattern     string
	Description string
	Enabled     bool
	CooldownMs  int
	Steps       []StepTemplate
}

// ActionStep is a resolved step produced for a single firing.
type ActionStep struct {
	RuleName      string
	Type          ActionType
	RawTemplate   string
	ResolvedValue string
	Modifiers     Modifiers
	Enabled       bool
	DelayMs       int
	// Line is the text of the matched line.
	Line string
}

func (s ActionStep) Delay() time.Duration {
	return time.Duration(s.DelayMs) * time.Millisecond
}

// Firing is one rule's match against one line.
type Firing struct {
	RuleName string
	Capture  string
	Cooldown time.Duration
	Steps    []ActionStep
}
