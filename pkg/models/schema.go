package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateLineEnvelope(msg *LineEnvelope) error {
	if msg == nil {
		return &ValidationError{
			Field:   "envelope",
			Message: "line envelope cannot be nil",
		}
	}

	if msg.Text == "" {
		return &ValidationError{
			Field:   "text",
			Message: "line text is required",
		}
	}

	return nil
}

func ValidateConfigUpdateEvent(evt *ConfigUpdateEvent) error {
	if evt == nil {
		return &ValidationError{
			Field:   "event",
			Message: "config update event cannot be nil",
		}
	}

	switch evt.EventType {
	case EventTypeRulesUpdated:
		return nil
	case EventTypeRuleToggled:
		if evt.Rule == "" {
			return &ValidationError{
				Field:   "rule",
				Message: "rule name is required for rule_toggled",
			}
		}
		if evt.Enabled == nil {
			return &ValidationError{
				Field:   "enabled",
				Message: "enabled is required for rule_toggled",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "event_type",
			Message: fmt.Sprintf("unsupported event type: %s", evt.EventType),
		}
	}
}
