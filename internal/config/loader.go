package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"logtrigger/internal/constants"
)

// LoadConfig reads a YAML config file with environment overrides. Each call
// uses its own viper instance so hot reloads may run concurrently with other
// readers.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigFile(configFile)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyLegacyKeys(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply legacy keys: %w", err)
	}

	if err := applyEnvOverrides(v, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.type", "file")
	v.SetDefault("source.file.poll_interval_ms", constants.DefaultPollIntervalMs)

	v.SetDefault("pipeline.parallel", false)
	v.SetDefault("pipeline.workers", 0)
	v.SetDefault("pipeline.stall_warning_ms", constants.DefaultStallWarningMs)
	v.SetDefault("pipeline.shutdown_timeout_seconds", constants.DefaultShutdownTimeoutSeconds)

	v.SetDefault("executor.mode", "dryrun")
	v.SetDefault("executor.tmux.binary", "tmux")
	v.SetDefault("executor.tmux.command_timeout_ms", constants.DefaultTmuxCommandTimeoutMs)

	v.SetDefault("notify.transport", "none")
	v.SetDefault("notify.subject", constants.DefaultNotificationSubject)
	v.SetDefault("notify.smtp.port", constants.DefaultSMTPPort)
	v.SetDefault("notify.retry.max_attempts", 3)
	v.SetDefault("notify.retry.initial_interval", "500ms")
	v.SetDefault("notify.retry.max_interval", "5s")
	v.SetDefault("notify.retry.multiplier", 2.0)

	v.SetDefault("broker.kafka.group_id", "logtrigger")
	v.SetDefault("broker.kafka.retry.max_attempts", 3)
	v.SetDefault("broker.kafka.retry.initial_interval", "1s")
	v.SetDefault("broker.kafka.retry.max_interval", "30s")
	v.SetDefault("broker.kafka.retry.multiplier", 2.0)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", constants.DefaultAdminPort)
	v.SetDefault("server.read_timeout_seconds", 10)
	v.SetDefault("server.write_timeout_seconds", 10)
	v.SetDefault("server.rate_limit.rps", 10)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("server.rate_limit.cleanup_interval", 60)
	v.SetDefault("server.rate_limit.max_age", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.service_name", "logtrigger")
	v.SetDefault("tracing.sampler.type", "always_on")

	v.SetDefault("reload.watch", true)
	v.SetDefault("reload.debounce_ms", constants.DefaultReloadDebounceMs)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 1)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 3)

	v.SetDefault("status_interval_seconds", constants.DefaultStatusIntervalSeconds)
}

func bindEnvVariables(v *viper.Viper) {
	v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	v.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")

	v.BindEnv("notify.smtp.username", "NOTIFY_SMTP_USERNAME")
	v.BindEnv("notify.smtp.password", "NOTIFY_SMTP_PASSWORD")

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("logging.level", "LOGGING_LEVEL")
	v.BindEnv("logging.format", "LOGGING_FORMAT")

	v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
}

// applyLegacyKeys maps the flat keys of the older rule file format onto the
// sectioned layout. Sectioned keys win when both are present.
func applyLegacyKeys(v *viper.Viper, cfg *Config) error {
	if path := v.GetString("log_file_path"); path != "" && cfg.Source.File.Path == "" {
		cfg.Source.File.Path = path
	}
	if v.InConfig("parallel_processing") && !v.InConfig("pipeline.parallel") {
		cfg.Pipeline.Parallel = v.GetBool("parallel_processing")
	}

	if server := v.GetString("email_smtp_server"); server != "" && cfg.Notify.SMTP.Server == "" {
		cfg.Notify.SMTP.Server = server
		if !v.InConfig("notify.transport") {
			cfg.Notify.Transport = "smtp"
		}
		if v.InConfig("email_smtp_port") {
			cfg.Notify.SMTP.Port = v.GetInt("email_smtp_port")
		}
		cfg.Notify.SMTP.Username = v.GetString("email_username")
		cfg.Notify.SMTP.Password = v.GetString("email_password")
		cfg.Notify.SMTP.From = v.GetString("email_from")
		if to := v.GetString("email_to"); to != "" {
			cfg.Notify.SMTP.To = splitList(to)
		}
		cfg.Notify.SMTP.EnableSSL = v.GetBool("email_enable_ssl")
	}

	if len(cfg.Rules) == 0 && v.InConfig("regex_rules") {
		var legacy []RuleConfig
		if err := v.UnmarshalKey("regex_rules", &legacy); err != nil {
			return fmt.Errorf("failed to decode regex_rules: %w", err)
		}
		cfg.Rules = legacy
	}

	return nil
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) error {
	if brokersEnv := v.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		if brokers := splitList(brokersEnv); len(brokers) > 0 {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := v.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
