package source

import (
	"context"
	"fmt"

	"logtrigger/internal/broker"
	"logtrigger/internal/config"
	"logtrigger/internal/constants"
	"logtrigger/internal/logger"
	"logtrigger/internal/pipeline"
	"logtrigger/internal/queue"
)

// Source produces log lines. Run blocks until ctx is done or the source is
// exhausted, and always stops q before returning so the pipeline can drain.
type Source interface {
	Run(ctx context.Context, q *queue.Queue[pipeline.LogLine]) error
	Name() string
}

// New builds the source selected by cfg.Source.Type. consumer is only used
// by the kafka source and may be nil otherwise.
func New(cfg *config.Config, consumer broker.Consumer, log logger.Logger) (Source, error) {
	switch cfg.Source.Type {
	case constants.SourceTypeFile:
		return NewFileSource(cfg.Source.File, log), nil
	case constants.SourceTypeKafka:
		if consumer == nil {
			return nil, fmt.Errorf("kafka source requires a broker consumer")
		}
		return NewKafkaSource(consumer, cfg.Broker.Kafka.LineTopic, log), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source.Type)
	}
}
