package models

import "time"

// LineEnvelope is the wire form of a log line published to a line topic.
type LineEnvelope struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

type Metadata struct {
	TraceID string            `json:"trace_id,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}
