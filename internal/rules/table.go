package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// wildcardGroup replaces each '#' in a configured pattern.
const wildcardGroup = `([^\s]+)`

// Rule is an entry of a Table. A rule whose pattern failed to compile, or
// whose definition is otherwise invalid, is kept but never matches.
type Rule struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
	CooldownMs  int    `json:"cooldown_ms"`
	Err         string `json:"error,omitempty"`

	re *regexp.Regexp
}

func (r Rule) Inert() bool {
	return r.re == nil
}

func (r Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMs) * time.Millisecond
}

// Table is an immutable rule list plus the action mappings of its rules.
// Edits always produce a new Table.
type Table struct {
	rules    []Rule
	mappings map[string][]StepTemplate
	index    map[string]int
}

func emptyTable() *Table {
	return &Table{
		mappings: map[string][]StepTemplate{},
		index:    map[string]int{},
	}
}

// BuildTable compiles defs in order. Problems are reported per rule and never
// prevent the remaining rules from being registered.
func BuildTable(defs []Definition) (*Table, error) {
	t := &Table{
		rules:    make([]Rule, 0, len(defs)),
		mappings: make(map[string][]StepTemplate, len(defs)),
		index:    make(map[string]int, len(defs)),
	}

	var errs []error
	for _, def := range defs {
		if err := t.appendDefinition(def); err != nil {
			errs = append(errs, err)
		}
	}

	return t, errors.Join(errs...)
}

func (t *Table) appendDefinition(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return &ConfigError{Rule: def.Name, Field: "name", Err: errors.New("name is required")}
	}
	if _, exists := t.index[name]; exists {
		return &ConfigError{Rule: name, Field: "name", Err: ErrDuplicateRule}
	}

	rule, steps, err := compileDefinition(name, def)

	t.index[name] = len(t.rules)
	t.rules = append(t.rules, rule)
	t.mappings[name] = steps

	return err
}

func compileDefinition(name string, def Definition) (Rule, []StepTemplate, error) {
	rule := Rule{
		Name:        name,
		Pattern:     def.Pattern,
		Description: def.Description,
		Enabled:     def.Enabled,
		CooldownMs:  def.CooldownMs,
	}
	steps := append([]StepTemplate(nil), def.Steps...)

	if err := validateDefinition(name, def); err != nil {
		rule.Err = err.Error()
		return rule, steps, err
	}

	re, err := compilePattern(def.Pattern)
	if err != nil {
		cfgErr := &ConfigError{Rule: name, Field: "pattern", Err: err}
		rule.Err = cfgErr.Error()
		return rule, steps, cfgErr
	}
	rule.re = re

	return rule, steps, nil
}

func validateDefinition(name string, def Definition) error {
	if def.Pattern == "" {
		return &ConfigError{Rule: name, Field: "pattern", Err: errors.New("pattern is required")}
	}
	if def.CooldownMs < 0 {
		return &ConfigError{Rule: name, Field: "cooldown_ms", Err: fmt.Errorf("must be non-negative, got %d", def.CooldownMs)}
	}
	for i, step := range def.Steps {
		field := fmt.Sprintf("actions[%d]", i)
		if !step.Type.Valid() {
			return &ConfigError{Rule: name, Field: field + ".type", Err: errors.New("unknown action type")}
		}
		if step.DelayMs < 0 {
			return &ConfigError{Rule: name, Field: field + ".delay_ms", Err: fmt.Errorf("must be non-negative, got %d", step.DelayMs)}
		}
		if !step.Modifiers.Valid() {
			return &ConfigError{Rule: name, Field: field + ".modifiers", Err: fmt.Errorf("invalid modifier bits %d", step.Modifiers)}
		}
	}
	return nil
}

// compilePattern turns a configured pattern into a case-insensitive
// unanchored regexp. Every '#' becomes a capture of one whitespace-free token.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	expanded := strings.ReplaceAll(pattern, "#", wildcardGroup)
	return regexp.Compile("(?i)" + expanded)
}

// Evaluate matches line against every enabled rule in stored order. Each
// matching rule with at least one enabled step yields one Firing.
func (t *Table) Evaluate(line string) []Firing {
	var firings []Firing
	t.evaluate(line, func(f Firing) {
		firings = append(firings, f)
	}, nil)
	return firings
}

func (t *Table) evaluate(line string, fire func(Firing), matched func(rule string)) {
	for i := range t.rules {
		rule := &t.rules[i]
		if !rule.Enabled || rule.re == nil {
			continue
		}

		m := rule.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if matched != nil {
			matched(rule.Name)
		}

		capture := m[0]
		if len(m) > 1 {
			capture = m[1]
		}

		steps := resolveSteps(rule.Name, t.mappings[rule.Name], capture, line)
		if len(steps) == 0 {
			continue
		}

		fire(Firing{
			RuleName: rule.Name,
			Capture:  capture,
			Cooldown: rule.Cooldown(),
			Steps:    steps,
		})
	}
}

func resolveSteps(ruleName string, templates []StepTemplate, capture, line string) []ActionStep {
	var steps []ActionStep
	for _, tpl := range templates {
		if !tpl.Enabled {
			continue
		}
		steps = append(steps, ActionStep{
			RuleName:      ruleName,
			Type:          tpl.Type,
			RawTemplate:   tpl.Template,
			ResolvedValue: Substitute(tpl.Template, capture),
			Modifiers:     tpl.Modifiers,
			Enabled:       true,
			DelayMs:       tpl.DelayMs,
			Line:          line,
		})
	}
	return steps
}

// Substitute replaces every '#' in template with capture.
func Substitute(template, capture string) string {
	return strings.ReplaceAll(template, "#", capture)
}

func (t *Table) Len() int {
	return len(t.rules)
}

func (t *Table) ActiveCount() int {
	n := 0
	for _, r := range t.rules {
		if r.Enabled && !r.Inert() {
			n++
		}
	}
	return n
}

// Rules returns a copy of the rules in evaluation order.
func (t *Table) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

func (t *Table) Rule(name string) (Rule, bool) {
	i, ok := t.index[name]
	if !ok {
		return Rule{}, false
	}
	return t.rules[i], true
}

// Mapping returns a copy of the action mapping of the named rule.
func (t *Table) Mapping(name string) []StepTemplate {
	return append([]StepTemplate(nil), t.mappings[name]...)
}

func (t *Table) Names() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Name
	}
	return names
}

func (t *Table) clone() *Table {
	c := &Table{
		rules:    append([]Rule(nil), t.rules...),
		mappings: make(map[string][]StepTemplate, len(t.mappings)),
		index:    make(map[string]int, len(t.index)),
	}
	for k, v := range t.mappings {
		c.mappings[k] = append([]StepTemplate(nil), v...)
	}
	for k, v := range t.index {
		c.index[k] = v
	}
	return c
}

func (t *Table) without(name string) *Table {
	c := &Table{
		rules:    make([]Rule, 0, len(t.rules)),
		mappings: make(map[string][]StepTemplate, len(t.mappings)),
		index:    make(map[string]int, len(t.index)),
	}
	for _, r := range t.rules {
		if r.Name == name {
			continue
		}
		c.index[r.Name] = len(c.rules)
		c.rules = append(c.rules, r)
		c.mappings[r.Name] = t.mappings[r.Name]
	}
	return c
}
