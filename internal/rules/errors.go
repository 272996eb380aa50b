package rules

import (
	"errors"
	"fmt"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrDuplicateRule = errors.New("duplicate rule name")
	ErrStepNotFound  = errors.New("action step not found")
)

// ConfigError describes a problem with a single rule. The rest of the rule
// table is unaffected.
type ConfigError struct {
	Rule  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
	}
	return fmt.Sprintf("rule %q: %s: %v", e.Rule, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
