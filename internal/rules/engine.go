package rules

import (
	"fmt"
	"sync"
	"sync/atomic"

	"logtrigger/internal/logger"
	"logtrigger/pkg/metrics"
)

// Engine evaluates lines against the current rule Table. Readers load the
// table through an atomic pointer, so a reload or edit is observed either
// entirely or not at all. Writers are serialized by mu.
type Engine struct {
	table   atomic.Pointer[Table]
	mu      sync.Mutex
	matches atomic.Uint64
	logger  logger.Logger
}

func NewEngine(log logger.Logger) *Engine {
	e := &Engine{logger: log}
	e.table.Store(emptyTable())
	return e
}

// Snapshot returns the current table. The returned table never changes.
func (e *Engine) Snapshot() *Table {
	return e.table.Load()
}

// Reload replaces the rule list and action mappings together. Per-rule
// problems are returned joined; the affected rules are inert or skipped and
// the swap still happens.
func (e *Engine) Reload(defs []Definition) error {
	t, err := BuildTable(defs)

	e.mu.Lock()
	e.table.Store(t)
	e.mu.Unlock()

	metrics.SetActiveRules(t.ActiveCount())

	if err != nil {
		e.logger.Warnw("Rule table loaded with errors",
			"rules_count", t.Len(),
			"active_rules", t.ActiveCount(),
			"error", err,
		)
		return err
	}

	e.logger.Infow("Successfully reloaded rules",
		"rules_count", t.Len(),
		"active_rules", t.ActiveCount(),
	)
	return nil
}

// AddRule appends def to the end of the evaluation order. A definition with
// a bad pattern is still added, inert, and the error is returned.
func (e *Engine) AddRule(def Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.table.Load()
	next := cur.clone()
	err := next.appendDefinition(def)
	if next.Len() > cur.Len() {
		e.publish(next)
	}
	return err
}

func (e *Engine) RemoveRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.table.Load()
	if _, ok := cur.index[name]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}

	e.publish(cur.without(name))
	return nil
}

func (e *Engine) SetRuleEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.table.Load()
	i, ok := cur.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	if cur.rules[i].Enabled == enabled {
		return nil
	}

	next := cur.clone()
	next.rules[i].Enabled = enabled
	e.publish(next)
	return nil
}

func (e *Engine) SetStepEnabled(name string, step int, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.table.Load()
	if _, ok := cur.index[name]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	if step < 0 || step >= len(cur.mappings[name]) {
		return fmt.Errorf("%w: %s[%d]", ErrStepNotFound, name, step)
	}

	next := cur.clone()
	next.mappings[name][step].Enabled = enabled
	e.publish(next)
	return nil
}

func (e *Engine) publish(t *Table) {
	e.table.Store(t)
	metrics.SetActiveRules(t.ActiveCount())
}

// Evaluate matches line against a single snapshot of the rule table.
func (e *Engine) Evaluate(line string) []Firing {
	var firings []Firing
	e.table.Load().evaluate(line, func(f Firing) {
		firings = append(firings, f)
	}, func(rule string) {
		e.matches.Add(1)
		metrics.IncRuleMatch(rule)
	})
	return firings
}

// MatchCount is the number of rule matches seen so far, including matches
// whose rule had no enabled steps.
func (e *Engine) MatchCount() uint64 {
	return e.matches.Load()
}
