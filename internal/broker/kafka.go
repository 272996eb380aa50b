package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"logtrigger/internal/config"
	"logtrigger/internal/constants"
	"logtrigger/internal/logger"
	"logtrigger/pkg/errors"
	"logtrigger/pkg/logging"
	"logtrigger/pkg/metrics"
	"logtrigger/pkg/retry"
	"logtrigger/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, nil)

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   body,
			Headers: headers,
			Time:    start,
		},
	)
	metrics.ObserveKafkaWriteDuration(logging.GetServiceName(ctx), topic, time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(logging.GetServiceName(ctx), topic)
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	mu          sync.Mutex
	readers     []*kafka.Reader
	logger      logger.Logger
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	c.wg.Add(1)
	defer c.wg.Done()

	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Started consuming", "topic", topic)

	for {
		start := time.Now()
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"topic", topic,
					"reason", "context canceled",
				)
				return ctx.Err()
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
				"error", err,
				"topic", topic,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		metrics.ObserveKafkaReadDuration(c.serviceName, topic, time.Since(start))
		metrics.IncKafkaMessagesRead(c.serviceName, topic)

		if err := c.handle(consumeCtx, reader, m, handler); err != nil {
			c.logger.InfowCtx(consumeCtx, "Stopped consuming",
				"topic", topic,
				"reason", err.Error(),
			)
			return err
		}
	}
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// handle runs handler for one message with retries and commits it once it
// is handled or retries are exhausted, so a poison message never blocks the
// partition. A handler that stops consumption, or a cancelled ctx, leaves
// the message uncommitted and is returned to the caller.
func (c *KafkaConsumer) handle(ctx context.Context, reader committer, m kafka.Message, handler HandlerFunc) error {
	msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
	defer span.End()

	if sc := span.SpanContext(); sc.HasTraceID() {
		msgCtx = logging.WithTraceID(msgCtx, sc.TraceID().String())
	}
	if len(m.Key) > 0 {
		msgCtx = logging.WithMessageID(msgCtx, string(m.Key))
	}

	msg := Message{
		Topic:     m.Topic,
		Key:       string(m.Key),
		Value:     m.Value,
		Timestamp: m.Time,
		Offset:    m.Offset,
	}

	if err := c.processMessageWithRetry(msgCtx, msg, handler); err != nil {
		span.RecordError(err)
		if stderrors.Is(err, ErrStopConsuming) {
			return ErrStopConsuming
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.ErrorwCtx(msgCtx, "Failed to process message, skipping",
			"error", err,
			"topic", m.Topic,
			"offset", m.Offset,
		)
	}

	// the fetch context may already be cancelled; commit what was handled
	if err := reader.CommitMessages(context.WithoutCancel(ctx), m); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
			"error", err,
			"topic", m.Topic,
		)
	}
	return nil
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	readers := c.readers
	c.readers = nil
	c.mu.Unlock()

	var err error
	for _, r := range readers {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.wg.Wait()
	return err
}

func (c *KafkaConsumer) processMessageWithRetry(ctx context.Context, msg Message, handler HandlerFunc) error {
	policy := PolicyFromConfig(c.cfg.Retry)

	return retry.RetryWithCallback(ctx, policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				c.logger.ErrorwCtx(ctx, "Panic recovered during message processing",
					"error", err,
					"topic", msg.Topic,
				)
			}
		}()
		if err := handler(ctx, msg); err != nil {
			if stderrors.Is(err, ErrStopConsuming) {
				return retry.NewFatalError(err)
			}
			return err
		}
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt("kafka_consumer", msg.Topic)
		c.logger.WarnwCtx(ctx, "Retrying message processing",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
			"topic", msg.Topic,
		)
	})
}

// PolicyFromConfig fills unset fields from retry.DefaultPolicy.
func PolicyFromConfig(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxElapsedTime = 0

	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}
