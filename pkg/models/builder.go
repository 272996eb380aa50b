package models

import (
	"time"

	"github.com/google/uuid"
)

type LineEnvelopeBuilder struct {
	envelope *LineEnvelope
}

func NewLineEnvelopeBuilder(text string) *LineEnvelopeBuilder {
	return &LineEnvelopeBuilder{
		envelope: &LineEnvelope{Text: text},
	}
}

func (b *LineEnvelopeBuilder) WithID(id string) *LineEnvelopeBuilder {
	b.envelope.ID = id
	return b
}

func (b *LineEnvelopeBuilder) WithSource(source string) *LineEnvelopeBuilder {
	b.envelope.Source = source
	return b
}

func (b *LineEnvelopeBuilder) WithTimestamp(timestamp time.Time) *LineEnvelopeBuilder {
	b.envelope.Timestamp = timestamp
	return b
}

func (b *LineEnvelopeBuilder) WithTraceID(traceID string) *LineEnvelopeBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

func (b *LineEnvelopeBuilder) WithLabel(key, value string) *LineEnvelopeBuilder {
	if b.envelope.Metadata.Labels == nil {
		b.envelope.Metadata.Labels = make(map[string]string)
	}
	b.envelope.Metadata.Labels[key] = value
	return b
}

func (b *LineEnvelopeBuilder) Build() *LineEnvelope {
	if b.envelope.ID == "" {
		b.envelope.ID = uuid.NewString()
	}
	if b.envelope.Timestamp.IsZero() {
		b.envelope.Timestamp = time.Now()
	}
	return b.envelope
}
