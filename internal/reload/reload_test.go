package reload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logtrigger/internal/broker"
	"logtrigger/internal/logger"
	"logtrigger/internal/rules"
	"logtrigger/pkg/models"
	"logtrigger/pkg/retry"
)

func def(name, pattern string) rules.Definition {
	return rules.Definition{
		Name: name, Pattern: pattern, Enabled: true,
		Steps: []rules.StepTemplate{{Type: rules.ActionText, Template: "#", Enabled: true}},
	}
}

func staticLoad(defs ...rules.Definition) LoadFunc {
	return func(context.Context) ([]rules.Definition, error) { return defs, nil }
}

func TestReloader_PublishesAndPrunesCooldowns(t *testing.T) {
	engine := rules.NewEngine(logger.NopLogger())
	gate := rules.NewCooldownGate()
	require.NoError(t, engine.Reload([]rules.Definition{def("old", "x"), def("keep", "y")}))
	gate.ShouldFire("old", time.Minute)
	gate.ShouldFire("keep", time.Minute)

	r := NewReloader(staticLoad(def("keep", "y"), def("new", "z")), engine, gate, logger.NopLogger())
	res, err := r.Reload(context.Background(), "admin")

	require.NoError(t, err)
	assert.Equal(t, 2, res.Rules)
	assert.Equal(t, 2, res.ActiveRules)
	assert.Empty(t, res.Problems)
	assert.Equal(t, []string{"keep", "new"}, engine.Snapshot().Names())

	_, oldKnown := gate.LastFire("old")
	_, keepKnown := gate.LastFire("keep")
	assert.False(t, oldKnown)
	assert.True(t, keepKnown)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "admin", last.Trigger)
}

func TestReloader_PartialProblems(t *testing.T) {
	engine := rules.NewEngine(logger.NopLogger())
	r := NewReloader(staticLoad(def("good", "ok"), def("bad", "(unclosed"), def("good", "dup")), engine, nil, logger.NopLogger())

	res, err := r.Reload(context.Background(), "file")

	require.NoError(t, err)
	assert.Equal(t, 2, res.Rules)
	assert.Equal(t, 1, res.ActiveRules)
	assert.Len(t, res.Problems, 2)
}

func TestReloader_LoadFailureKeepsTable(t *testing.T) {
	engine := rules.NewEngine(logger.NopLogger())
	require.NoError(t, engine.Reload([]rules.Definition{def("current", "x")}))

	r := NewReloader(func(context.Context) ([]rules.Definition, error) {
		return nil, errors.New("yaml: line 3: did not find expected key")
	}, engine, nil, logger.NopLogger())

	_, err := r.Reload(context.Background(), "file")
	require.Error(t, err)
	assert.Equal(t, []string{"current"}, engine.Snapshot().Names())

	_, ok := r.Last()
	assert.False(t, ok)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	var loads atomic.Int32
	engine := rules.NewEngine(logger.NopLogger())
	r := NewReloader(func(context.Context) ([]rules.Definition, error) {
		loads.Add(1)
		return []rules.Definition{def("r", "x")}, nil
	}, engine, nil, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewWatcher(path, 20*time.Millisecond, r, logger.NopLogger()).Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0o600))

	require.Eventually(t, func() bool { return loads.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), loads.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestEventHandler(t *testing.T) {
	enabled := false

	tests := []struct {
		name      string
		payload   string
		wantNames []string
		wantOn    map[string]bool
		fatal     bool
	}{
		{
			name:      "rules updated reloads",
			payload:   `{"event_type":"rules_updated","action":"reload"}`,
			wantNames: []string{"a", "b", "c"},
			wantOn:    map[string]bool{"a": true, "b": true, "c": true},
		},
		{
			name:      "toggle disables",
			payload:   `{"event_type":"rule_toggled","action":"toggle","rule":"a","enabled":false}`,
			wantNames: []string{"a", "b"},
			wantOn:    map[string]bool{"a": enabled, "b": true},
		},
		{
			name:      "delete removes",
			payload:   `{"event_type":"rules_updated","action":"delete","rule":"b"}`,
			wantNames: []string{"a"},
			wantOn:    map[string]bool{"a": true},
		},
		{
			name:      "unknown rule is fatal",
			payload:   `{"event_type":"rule_toggled","rule":"zzz","enabled":true}`,
			wantNames: []string{"a", "b"},
			wantOn:    map[string]bool{"a": true, "b": true},
			fatal:     true,
		},
		{
			name:      "invalid event ignored",
			payload:   `{"event_type":"something_else"}`,
			wantNames: []string{"a", "b"},
			wantOn:    map[string]bool{"a": true, "b": true},
		},
		{
			name:      "malformed payload is fatal",
			payload:   `{"event_type":`,
			wantNames: []string{"a", "b"},
			wantOn:    map[string]bool{"a": true, "b": true},
			fatal:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := rules.NewEngine(logger.NopLogger())
			require.NoError(t, engine.Reload([]rules.Definition{def("a", "x"), def("b", "y")}))
			r := NewReloader(staticLoad(def("a", "x"), def("b", "y"), def("c", "z")), engine, nil, logger.NopLogger())
			h := NewEventHandler(r, engine, logger.NopLogger())

			err := h.HandleMessage(context.Background(), broker.Message{Topic: "config", Value: []byte(tt.payload)})
			if tt.fatal {
				var fatal retry.FatalError
				assert.ErrorAs(t, err, &fatal)
			} else {
				assert.NoError(t, err)
			}

			table := engine.Snapshot()
			assert.Equal(t, tt.wantNames, table.Names())
			for name, on := range tt.wantOn {
				rule, ok := table.Rule(name)
				require.True(t, ok)
				assert.Equal(t, on, rule.Enabled, name)
			}
		})
	}
}

func TestEventHandler_DeleteForgetsCooldown(t *testing.T) {
	engine := rules.NewEngine(logger.NopLogger())
	gate := rules.NewCooldownGate()
	r := NewReloader(staticLoad(def("a", "x"), def("b", "y")), engine, gate, logger.NopLogger())
	_, err := r.Reload(context.Background(), "startup")
	require.NoError(t, err)

	require.True(t, gate.ShouldFire("a", time.Hour))
	require.True(t, gate.ShouldFire("b", time.Hour))

	h := NewEventHandler(r, engine, logger.NopLogger())
	require.NoError(t, h.Apply(context.Background(), models.ConfigUpdateEvent{
		EventType: models.EventTypeRulesUpdated, Action: models.ActionDelete, Rule: "b",
	}))

	assert.Equal(t, []string{"a"}, engine.Snapshot().Names())
	_, bKnown := gate.LastFire("b")
	_, aKnown := gate.LastFire("a")
	assert.False(t, bKnown)
	assert.True(t, aKnown)

	_, err = r.Reload(context.Background(), "kafka")
	require.NoError(t, err)
	assert.True(t, gate.ShouldFire("b", time.Hour), "re-added rule must not inherit the old cooldown")
	assert.False(t, gate.ShouldFire("a", time.Hour))
}

func TestEventHandler_ApplyValidates(t *testing.T) {
	engine := rules.NewEngine(logger.NopLogger())
	h := NewEventHandler(NewReloader(staticLoad(), engine, nil, logger.NopLogger()), engine, logger.NopLogger())

	assert.NoError(t, h.Apply(context.Background(), models.ConfigUpdateEvent{EventType: models.EventTypeRuleToggled, Rule: "x"}))
}
