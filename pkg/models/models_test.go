package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineEnvelopeBuilder(t *testing.T) {
	env := NewLineEnvelopeBuilder("Bob tells you, 'hi'").
		WithSource("eqlog").
		WithLabel("zone", "gfay").
		Build()

	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())
	assert.Equal(t, "gfay", env.Metadata.Labels["zone"])
	assert.NoError(t, ValidateLineEnvelope(env))
	assert.Error(t, ValidateLineEnvelope(&LineEnvelope{}))
}

func TestValidateConfigUpdateEvent(t *testing.T) {
	enabled := true

	tests := []struct {
		name      string
		evt       *ConfigUpdateEvent
		wantError bool
	}{
		{name: "reload", evt: &ConfigUpdateEvent{EventType: EventTypeRulesUpdated, Action: ActionReload}},
		{name: "toggle", evt: &ConfigUpdateEvent{EventType: EventTypeRuleToggled, Rule: "tell", Enabled: &enabled}},
		{name: "toggle without rule", evt: &ConfigUpdateEvent{EventType: EventTypeRuleToggled, Enabled: &enabled}, wantError: true},
		{name: "toggle without enabled", evt: &ConfigUpdateEvent{EventType: EventTypeRuleToggled, Rule: "tell"}, wantError: true},
		{name: "unknown", evt: &ConfigUpdateEvent{EventType: "other"}, wantError: true},
		{name: "nil", evt: nil, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfigUpdateEvent(tt.evt)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewNotification_DefaultSubject(t *testing.T) {
	n := NewNotification("tell", "", "hello", "Bob tells you, 'hello'")
	assert.Equal(t, DefaultNotificationSubject, n.Subject)
	assert.NotEmpty(t, n.ID)
}
