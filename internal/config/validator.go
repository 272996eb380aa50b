package config

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"logtrigger/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks settings that cannot change at runtime. Rule entries
// are not checked here; the rule engine reports them individually and keeps
// the offending rules inert.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateSource(cfg.Source); err != nil {
		errs = append(errs, err)
	}

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errs = append(errs, err)
	}

	if err := validateExecutor(cfg.Executor); err != nil {
		errs = append(errs, err)
	}

	if err := validateNotify(cfg.Notify); err != nil {
		errs = append(errs, err)
	}

	if cfg.UsesKafka() {
		if err := validateKafka(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Server.Enabled {
		if err := validateServer(cfg.Server); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Tracing.Enabled {
		if err := validateTracing(cfg.Tracing); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Reload.DebounceMs < 0 {
		errs = append(errs, &ValidationError{
			Field:   "reload.debounce_ms",
			Message: "debounce must be non-negative",
		})
	}

	if cfg.StatusIntervalSeconds < 0 {
		errs = append(errs, &ValidationError{
			Field:   "status_interval_seconds",
			Message: "status interval must be non-negative",
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func validateTracing(cfg TracingConfig) error {
	if cfg.OTLP.Endpoint == "" {
		return &ValidationError{Field: "tracing.otlp.endpoint", Message: "endpoint is required when tracing is enabled"}
	}
	switch cfg.Sampler.Type {
	case "", "always_on", "always_off":
	case "ratio":
		if cfg.Sampler.Param < 0 || cfg.Sampler.Param > 1 {
			return &ValidationError{Field: "tracing.sampler.param", Message: "ratio must be between 0 and 1"}
		}
	default:
		return &ValidationError{
			Field:   "tracing.sampler.type",
			Message: fmt.Sprintf("unknown sampler %q (supported: always_on, always_off, ratio)", cfg.Sampler.Type),
		}
	}
	return nil
}

// UsesKafka reports whether any configured component needs the broker.
func (cfg *Config) UsesKafka() bool {
	return cfg.Source.Type == constants.SourceTypeKafka ||
		cfg.Notify.Transport == constants.NotifyTransportKafka ||
		cfg.Broker.Kafka.ConfigUpdateTopic != ""
}

func validateSource(cfg SourceConfig) error {
	switch cfg.Type {
	case constants.SourceTypeFile:
		if cfg.File.Path == "" {
			return &ValidationError{
				Field:   "source.file.path",
				Message: "log file path is required for the file source",
			}
		}
		if cfg.File.PollIntervalMs <= 0 {
			return &ValidationError{
				Field:   "source.file.poll_interval_ms",
				Message: "poll interval must be positive",
			}
		}
	case constants.SourceTypeKafka:
	default:
		return &ValidationError{
			Field:   "source.type",
			Message: fmt.Sprintf("unknown source type: %s (supported: file, kafka)", cfg.Type),
		}
	}
	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if cfg.Workers < 0 {
		return &ValidationError{
			Field:   "pipeline.workers",
			Message: "workers must be non-negative",
		}
	}
	if cfg.StallWarningMs < 0 {
		return &ValidationError{
			Field:   "pipeline.stall_warning_ms",
			Message: "stall warning must be non-negative",
		}
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "pipeline.shutdown_timeout_seconds",
			Message: "shutdown timeout must be positive",
		}
	}
	return nil
}

func validateExecutor(cfg ExecutorConfig) error {
	switch cfg.Mode {
	case constants.ExecutorModeDryRun:
		return nil
	case constants.ExecutorModeTmux:
		if cfg.Tmux.Target == "" {
			return &ValidationError{
				Field:   "executor.tmux.target",
				Message: "tmux target pane is required",
			}
		}
		if cfg.Tmux.CommandTimeoutMs <= 0 {
			return &ValidationError{
				Field:   "executor.tmux.command_timeout_ms",
				Message: "command timeout must be positive",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "executor.mode",
			Message: fmt.Sprintf("unknown executor mode: %s (supported: tmux, dryrun)", cfg.Mode),
		}
	}
}

func validateNotify(cfg NotifyConfig) error {
	switch cfg.Transport {
	case constants.NotifyTransportNone, constants.NotifyTransportKafka:
	case constants.NotifyTransportSMTP:
		if err := validateSMTP(cfg.SMTP); err != nil {
			return err
		}
	default:
		return &ValidationError{
			Field:   "notify.transport",
			Message: fmt.Sprintf("unknown notify transport: %s (supported: none, smtp, kafka)", cfg.Transport),
		}
	}
	return validateRetry("notify.retry", cfg.Retry)
}

func validateSMTP(cfg SMTPConfig) error {
	if cfg.Server == "" {
		return &ValidationError{
			Field:   "notify.smtp.server",
			Message: "SMTP server is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "notify.smtp.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return &ValidationError{
			Field:   "notify.smtp.from",
			Message: fmt.Sprintf("invalid sender address %q", cfg.From),
		}
	}

	if len(cfg.To) == 0 {
		return &ValidationError{
			Field:   "notify.smtp.to",
			Message: "at least one recipient is required",
		}
	}

	for i, to := range cfg.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("notify.smtp.to[%d]", i),
				Message: fmt.Sprintf("invalid recipient address %q", to),
			}
		}
	}

	return nil
}

func validateKafka(cfg *Config) error {
	k := cfg.Broker.Kafka

	if len(k.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range k.Brokers {
		if strings.TrimSpace(broker) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if k.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Source.Type == constants.SourceTypeKafka && k.LineTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.line_topic",
			Message: "line topic is required for the kafka source",
		}
	}

	if cfg.Notify.Transport == constants.NotifyTransportKafka && k.NotificationTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.notification_topic",
			Message: "notification topic is required for the kafka transport",
		}
	}

	return validateRetry("broker.kafka.retry", k.Retry)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		return &ValidationError{
			Field:   "server.rate_limit",
			Message: "rps and burst must be positive when rate limiting is enabled",
		}
	}

	return nil
}
