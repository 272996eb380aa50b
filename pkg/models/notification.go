package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultNotificationSubject = "EQ Tell Message"

// Notification is the payload of an sms action, delivered by e-mail or
// published to a notification topic.
type Notification struct {
	ID        string    `json:"id"`
	Rule      string    `json:"rule"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

func NewNotification(rule, subject, body, line string) Notification {
	if subject == "" {
		subject = DefaultNotificationSubject
	}
	return Notification{
		ID:        uuid.NewString(),
		Rule:      rule,
		Subject:   subject,
		Body:      body,
		Line:      line,
		Timestamp: time.Now().UTC(),
	}
}
