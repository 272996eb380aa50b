package rules

import (
	"sync"
	"time"
)

// CooldownGate records when each rule last fired. Its lock is separate from
// the rule table so gating never contends with evaluation.
type CooldownGate struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

type GateOption func(*CooldownGate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GateOption {
	return func(g *CooldownGate) {
		g.now = now
	}
}

func NewCooldownGate(opts ...GateOption) *CooldownGate {
	g := &CooldownGate{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShouldFire reports whether rule may fire now and, if so, records the fire
// time in the same critical section.
func (g *CooldownGate) ShouldFire(rule string, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.last[rule]; ok && now.Sub(last) < cooldown {
		return false
	}
	g.last[rule] = now
	return true
}

// LastFire returns the last recorded fire time of rule.
func (g *CooldownGate) LastFire(rule string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.last[rule]
	return t, ok
}

// Forget drops the state of the given rules, or of every rule when called
// without arguments.
func (g *CooldownGate) Forget(rules ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(rules) == 0 {
		clear(g.last)
		return
	}
	for _, r := range rules {
		delete(g.last, r)
	}
}

// Retain drops the state of every rule not in names.
func (g *CooldownGate) Retain(names []string) {
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for r := range g.last {
		if _, ok := keep[r]; !ok {
			delete(g.last, r)
		}
	}
}
