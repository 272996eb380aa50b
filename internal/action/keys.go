package action

import (
	"fmt"
	"strings"

	"logtrigger/internal/rules"
)

var namedKeys = map[string]string{
	"enter":     "Enter",
	"return":    "Enter",
	"space":     "Space",
	"tab":       "Tab",
	"escape":    "Escape",
	"esc":       "Escape",
	"backspace": "BSpace",
	"delete":    "DC",
	"insert":    "IC",
	"home":      "Home",
	"end":       "End",
	"pageup":    "PPage",
	"pagedown":  "NPage",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
}

var modifierNames = map[string]rules.Modifiers{
	"ctrl":    rules.ModCtrl,
	"control": rules.ModCtrl,
	"alt":     rules.ModAlt,
	"shift":   rules.ModShift,
}

// Keystroke is a parsed key spec: one or more keys pressed in order while
// Modifiers are held.
type Keystroke struct {
	Keys      []string
	Modifiers rules.Modifiers
}

// ParseKeystroke parses specs such as "f1", "ctrl+a", "alt + f1 + f2" or
// "ctrl+1+2". Modifier names may appear anywhere in the spec and are merged
// with base.
func ParseKeystroke(spec string, base rules.Modifiers) (Keystroke, error) {
	ks := Keystroke{Modifiers: base}

	for _, part := range strings.Split(strings.ToLower(spec), "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if mod, ok := modifierNames[part]; ok {
			ks.Modifiers |= mod
			continue
		}
		if !validKey(part) {
			return Keystroke{}, fmt.Errorf("unknown key %q in keystroke %q", part, spec)
		}
		ks.Keys = append(ks.Keys, part)
	}

	if len(ks.Keys) == 0 {
		return Keystroke{}, fmt.Errorf("keystroke %q names no key", spec)
	}
	return ks, nil
}

func validKey(k string) bool {
	if _, ok := namedKeys[k]; ok {
		return true
	}
	if functionKey(k) != "" {
		return true
	}
	return len(k) == 1 && (k[0] >= 'a' && k[0] <= 'z' || k[0] >= '0' && k[0] <= '9')
}

func functionKey(k string) string {
	var n int
	if _, err := fmt.Sscanf(k, "f%d", &n); err != nil || n < 1 || n > 12 || k != fmt.Sprintf("f%d", n) {
		return ""
	}
	return fmt.Sprintf("F%d", n)
}

// TmuxKeys renders the keystroke as tmux send-keys arguments.
func (k Keystroke) TmuxKeys() []string {
	out := make([]string, 0, len(k.Keys))
	for _, key := range k.Keys {
		out = append(out, tmuxKey(key, k.Modifiers))
	}
	return out
}

func tmuxKey(key string, mods rules.Modifiers) string {
	name, named := namedKeys[key]
	if !named {
		name = functionKey(key)
		named = name != ""
	}
	if !named {
		name = key
		// tmux has no reliable S- form for printable keys
		if mods.Has(rules.ModShift) && key[0] >= 'a' && key[0] <= 'z' {
			name = strings.ToUpper(key)
			mods &^= rules.ModShift
		}
	}
	if name == "Tab" && mods.Has(rules.ModShift) {
		name = "BTab"
		mods &^= rules.ModShift
	}

	var prefix strings.Builder
	if mods.Has(rules.ModCtrl) {
		prefix.WriteString("C-")
	}
	if mods.Has(rules.ModAlt) {
		prefix.WriteString("M-")
	}
	if mods.Has(rules.ModShift) {
		prefix.WriteString("S-")
	}
	return prefix.String() + name
}
