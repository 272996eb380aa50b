package models

import "time"

// ConfigUpdateEvent asks running instances to change their rule table.
type ConfigUpdateEvent struct {
	EventType string                 `json:"event_type"`
	Action    string                 `json:"action"`
	Rule      string                 `json:"rule,omitempty"`
	Enabled   *bool                  `json:"enabled,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	ChangedBy string                 `json:"changed_by,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeRulesUpdated = "rules_updated"
	EventTypeRuleToggled  = "rule_toggled"
)

const (
	ActionReload = "reload"
	ActionToggle = "toggle"
	ActionDelete = "delete"
)
