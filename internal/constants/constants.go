package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	EnvPrefix = "LOGTRIGGER"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultPollIntervalMs         = 250
	DefaultStallWarningMs         = 5000
	DefaultShutdownTimeoutSeconds = 10
	DefaultStatusIntervalSeconds  = 60
	DefaultReloadDebounceMs       = 250
)

const (
	DefaultTmuxCommandTimeoutMs = 2000
	DefaultAdminPort            = 8090
	DefaultSMTPPort             = 587
	DefaultNotificationSubject  = "EQ Tell Message"
)

const (
	SourceTypeFile  = "file"
	SourceTypeKafka = "kafka"
)

const (
	ExecutorModeTmux   = "tmux"
	ExecutorModeDryRun = "dryrun"
)

const (
	NotifyTransportNone  = "none"
	NotifyTransportSMTP  = "smtp"
	NotifyTransportKafka = "kafka"
)

const (
	ReloadTriggerStartup = "startup"
	ReloadTriggerFile    = "file"
	ReloadTriggerAdmin   = "admin"
	ReloadTriggerKafka   = "kafka"
)

const (
	DefaultTruncateLen = 100
)
