package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"logtrigger/pkg/retry"
)

// Message is a record read from a topic. Value holds the raw payload; use
// Decode to turn it into a typed event.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Timestamp time.Time
	Offset    int64
}

type Producer interface {
	// Publish encodes value as JSON and writes it to topic.
	Publish(ctx context.Context, topic, key string, value any) error
	Close() error
}

type Consumer interface {
	// Consume blocks until ctx is done, calling handler for each message.
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error

// ErrStopConsuming is returned (possibly wrapped) by a handler that can no
// longer accept messages. Consume returns it without retrying or committing
// the message, so the group re-delivers it to the next reader.
var ErrStopConsuming = errors.New("stop consuming")

// Decode unmarshals a JSON payload. A malformed payload will never succeed,
// so the error is marked fatal and the consumer does not retry it.
func Decode(msg Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return retry.NewFatalError(fmt.Errorf("failed to decode message from %s: %w", msg.Topic, err))
	}
	return nil
}
