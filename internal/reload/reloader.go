package reload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"logtrigger/internal/logger"
	"logtrigger/internal/rules"
	"logtrigger/pkg/metrics"
)

// LoadFunc reads the current rule definitions from their backing store.
type LoadFunc func(ctx context.Context) ([]rules.Definition, error)

// CooldownStore drops cooldown state for rules that no longer exist.
type CooldownStore interface {
	Retain(names []string)
	Forget(rules ...string)
}

type Result struct {
	Trigger     string    `json:"trigger"`
	Rules       int       `json:"rules"`
	ActiveRules int       `json:"active_rules"`
	Problems    []string  `json:"problems,omitempty"`
	At          time.Time `json:"at"`
}

// Reloader swaps the engine's rule table from a LoadFunc. Reloads are
// serialized; a load failure leaves the current table in place.
type Reloader struct {
	load   LoadFunc
	engine *rules.Engine
	gate   CooldownStore
	logger logger.Logger

	mu   sync.Mutex
	last *Result
}

func NewReloader(load LoadFunc, engine *rules.Engine, gate CooldownStore, log logger.Logger) *Reloader {
	return &Reloader{
		load:   load,
		engine: engine,
		gate:   gate,
		logger: log,
	}
}

// Reload loads and publishes a new rule table. Per-rule problems do not
// prevent the swap; they are listed in the result. The error is non-nil only
// when nothing was published.
func (r *Reloader) Reload(ctx context.Context, trigger string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs, err := r.load(ctx)
	if err != nil {
		metrics.IncRuleReload(trigger, "failure")
		r.logger.Errorw("Failed to load rules, keeping current table",
			"trigger", trigger,
			"error", err,
		)
		return Result{}, fmt.Errorf("load rules: %w", err)
	}

	res := Result{Trigger: trigger, At: time.Now().UTC()}

	status := "success"
	if err := r.engine.Reload(defs); err != nil {
		status = "partial"
		res.Problems = flatten(err)
	}

	table := r.engine.Snapshot()
	if r.gate != nil {
		r.gate.Retain(table.Names())
	}
	res.Rules = table.Len()
	res.ActiveRules = table.ActiveCount()

	metrics.IncRuleReload(trigger, status)
	r.logger.Infow("Rules reloaded",
		"trigger", trigger,
		"rules_count", res.Rules,
		"active_rules", res.ActiveRules,
		"problems", len(res.Problems),
	)

	r.last = &res
	return res, nil
}

// Remove drops one rule from the active table along with its cooldown, so a
// rule later re-added under the same name starts cold.
func (r *Reloader) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.engine.RemoveRule(name); err != nil {
		return err
	}
	if r.gate != nil {
		r.gate.Forget(name)
	}
	r.logger.Infow("Rule removed", "rule", name)
	return nil
}

// Last returns the result of the most recent successful reload.
func (r *Reloader) Last() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

func flatten(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
