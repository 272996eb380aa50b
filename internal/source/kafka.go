package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"logtrigger/internal/broker"
	"logtrigger/internal/logger"
	"logtrigger/internal/pipeline"
	"logtrigger/internal/queue"
	"logtrigger/pkg/logging"
	"logtrigger/pkg/metrics"
	"logtrigger/pkg/models"
)

// errQueueStopped ends consumption once the pipeline no longer accepts lines.
// The message that hit it stays uncommitted.
var errQueueStopped = fmt.Errorf("line queue stopped: %w", broker.ErrStopConsuming)

// KafkaSource reads lines from a topic. A JSON object carrying a "text" key is
// a models.LineEnvelope; any other payload is taken as the raw line text.
type KafkaSource struct {
	consumer broker.Consumer
	topic    string
	logger   logger.Logger
	count    atomic.Uint64
}

func NewKafkaSource(consumer broker.Consumer, topic string, log logger.Logger) *KafkaSource {
	consumer.SetServiceName("logtrigger-source")
	return &KafkaSource{consumer: consumer, topic: topic, logger: log}
}

func (s *KafkaSource) Name() string {
	return "kafka"
}

func (s *KafkaSource) Run(ctx context.Context, q *queue.Queue[pipeline.LogLine]) error {
	defer q.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := s.consumer.Consume(ctx, s.topic, func(ctx context.Context, msg broker.Message) error {
		line, ok := s.decode(ctx, msg)
		if !ok {
			return nil
		}
		if !q.Push(line) {
			cancel()
			return errQueueStopped
		}
		metrics.IncLinesIngested("kafka")
		return nil
	})

	if errors.Is(err, context.Canceled) || errors.Is(err, broker.ErrStopConsuming) {
		return nil
	}
	return err
}

func (s *KafkaSource) decode(ctx context.Context, msg broker.Message) (pipeline.LogLine, bool) {
	text := strings.TrimRight(string(msg.Value), "\r\n")
	src := msg.Topic

	if env, ok := envelope(msg.Value); ok {
		if verr := models.ValidateLineEnvelope(&env); verr != nil {
			s.logger.WarnwCtx(ctx, "Skipping invalid line envelope", "error", verr, "offset", msg.Offset)
			return pipeline.LogLine{}, false
		}
		text = env.Text
		if env.Source != "" {
			src = env.Source
		}
		if env.Metadata.TraceID != "" {
			ctx = logging.WithTraceID(ctx, env.Metadata.TraceID)
		}
	}

	if strings.TrimSpace(text) == "" {
		return pipeline.LogLine{}, false
	}

	n := s.count.Add(1)
	s.logger.DebugwCtx(ctx, "Line received", "source", src, "number", n)
	return pipeline.NewLogLine(text, src, n), true
}

// envelope reports whether payload is a line envelope. Structured log lines
// such as {"level":"warn","msg":"..."} have no text key and stay raw.
func envelope(payload []byte) (models.LineEnvelope, bool) {
	var keys struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &keys); err != nil || keys.Text == nil {
		return models.LineEnvelope{}, false
	}
	var env models.LineEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return models.LineEnvelope{}, false
	}
	return env, true
}
