package config

import (
	"time"

	"logtrigger/internal/rules"
)

type Config struct {
	Source                SourceConfig         `mapstructure:"source"`
	Pipeline              PipelineConfig       `mapstructure:"pipeline"`
	Executor              ExecutorConfig       `mapstructure:"executor"`
	Notify                NotifyConfig         `mapstructure:"notify"`
	Broker                BrokerConfig         `mapstructure:"broker"`
	Server                ServerConfig         `mapstructure:"server"`
	Logging               LoggingConfig        `mapstructure:"logging"`
	Tracing               TracingConfig        `mapstructure:"tracing"`
	Reload                ReloadConfig         `mapstructure:"reload"`
	CircuitBreaker        CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	StatusIntervalSeconds int                  `mapstructure:"status_interval_seconds"`
	Rules                 []RuleConfig         `mapstructure:"rules"`
}

type SourceConfig struct {
	Type string           `mapstructure:"type"` // "file" or "kafka"
	File FileSourceConfig `mapstructure:"file"`
}

type FileSourceConfig struct {
	Path           string `mapstructure:"path"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`
	FromBeginning  bool   `mapstructure:"from_beginning"`
}

func (c FileSourceConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

type PipelineConfig struct {
	Parallel               bool `mapstructure:"parallel"`
	Workers                int  `mapstructure:"workers"`
	StallWarningMs         int  `mapstructure:"stall_warning_ms"`
	ShutdownTimeoutSeconds int  `mapstructure:"shutdown_timeout_seconds"`
}

func (c PipelineConfig) StallThreshold() time.Duration {
	return time.Duration(c.StallWarningMs) * time.Millisecond
}

func (c PipelineConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

type ExecutorConfig struct {
	Mode string     `mapstructure:"mode"` // "tmux" or "dryrun"
	Tmux TmuxConfig `mapstructure:"tmux"`
}

type TmuxConfig struct {
	Binary           string `mapstructure:"binary"`
	Target           string `mapstructure:"target"`
	CommandTimeoutMs int    `mapstructure:"command_timeout_ms"`
}

func (c TmuxConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

type NotifyConfig struct {
	Transport string      `mapstructure:"transport"` // "smtp", "kafka" or "none"
	Subject   string      `mapstructure:"subject"`
	SMTP      SMTPConfig  `mapstructure:"smtp"`
	Retry     RetryConfig `mapstructure:"retry"`
}

type SMTPConfig struct {
	Server    string   `mapstructure:"server"`
	Port      int      `mapstructure:"port"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	From      string   `mapstructure:"from"`
	To        []string `mapstructure:"to"`
	EnableSSL bool     `mapstructure:"enable_ssl"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers           []string    `mapstructure:"brokers"`
	GroupID           string      `mapstructure:"group_id"`
	LineTopic         string      `mapstructure:"line_topic"`
	NotificationTopic string      `mapstructure:"notification_topic"`
	ConfigUpdateTopic string      `mapstructure:"config_update_topic"`
	Retry             RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type ServerConfig struct {
	Enabled             bool            `mapstructure:"enabled"`
	Port                int             `mapstructure:"port"`
	ReadTimeoutSeconds  int             `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int             `mapstructure:"write_timeout_seconds"`
	RateLimit           RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ReloadConfig struct {
	Watch      bool `mapstructure:"watch"`
	DebounceMs int  `mapstructure:"debounce_ms"`
}

func (c ReloadConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// RuleConfig is one entry of the rules list. A non-empty Actions list takes
// precedence over the single-action fields.
type RuleConfig struct {
	Name        string         `mapstructure:"name" yaml:"name"`
	Pattern     string         `mapstructure:"pattern" yaml:"pattern"`
	Description string         `mapstructure:"description" yaml:"description,omitempty"`
	Enabled     *bool          `mapstructure:"enabled" yaml:"enabled,omitempty"`
	CooldownMs  int            `mapstructure:"cooldown_ms" yaml:"cooldown_ms,omitempty"`
	ActionType  string         `mapstructure:"action_type" yaml:"action_type,omitempty"`
	ActionValue string         `mapstructure:"action_value" yaml:"action_value,omitempty"`
	Modifiers   int            `mapstructure:"modifiers" yaml:"modifiers,omitempty"`
	Actions     []ActionConfig `mapstructure:"actions" yaml:"actions,omitempty"`
}

type ActionConfig struct {
	Type      string `mapstructure:"type" yaml:"type"`
	Value     string `mapstructure:"value" yaml:"value"`
	Modifiers int    `mapstructure:"modifiers" yaml:"modifiers,omitempty"`
	DelayMs   int    `mapstructure:"delay_ms" yaml:"delay_ms,omitempty"`
	Enabled   *bool  `mapstructure:"enabled" yaml:"enabled,omitempty"`
}

// Definition converts the entry into a rule definition. Unknown action types
// and out-of-range modifiers are carried through so the rule engine reports
// them and keeps the rule inert.
func (r RuleConfig) Definition() rules.Definition {
	def := rules.Definition{
		Name:        r.Name,
		Pattern:     r.Pattern,
		Description: r.Description,
		Enabled:     boolOr(r.Enabled, true),
		CooldownMs:  r.CooldownMs,
	}

	switch {
	case len(r.Actions) > 0:
		for _, a := range r.Actions {
			def.Steps = append(def.Steps, rules.StepTemplate{
				Type:      actionType(a.Type),
				Template:  a.Value,
				Modifiers: modifiers(a.Modifiers),
				Enabled:   boolOr(a.Enabled, true),
				DelayMs:   a.DelayMs,
			})
		}
	case r.ActionType != "":
		def.Steps = []rules.StepTemplate{{
			Type:      actionType(r.ActionType),
			Template:  r.ActionValue,
			Modifiers: modifiers(r.Modifiers),
			Enabled:   true,
		}}
	}

	return def
}

func (c *Config) Definitions() []rules.Definition {
	defs := make([]rules.Definition, 0, len(c.Rules))
	for _, r := range c.Rules {
		defs = append(defs, r.Definition())
	}
	return defs
}

func actionType(s string) rules.ActionType {
	t, err := rules.ParseActionType(s)
	if err != nil {
		return rules.ActionUnknown
	}
	return t
}

func modifiers(v int) rules.Modifiers {
	if v < 0 || v > 0xff {
		return 0xff
	}
	return rules.Modifiers(v)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
