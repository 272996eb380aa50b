package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	LinesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_lines_ingested_total",
			Help: "Total number of lines pushed into the ingestion queue (count)",
		},
		[]string{"source"},
	)

	LinesProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "logtrigger_lines_processed_total",
			Help: "Total number of lines that completed matching and dispatch (count)",
		},
	)

	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_rule_matches_total",
			Help: "Total number of rule matches (count)",
		},
		[]string{"rule"},
	)

	FiringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_firings_total",
			Help: "Total number of firings by outcome: executed, failed, suppressed, dropped (count)",
		},
		[]string{"rule", "outcome"},
	)

	ActionStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_action_steps_total",
			Help: "Total number of executed action steps (count)",
		},
		[]string{"type", "status"},
	)

	EvaluateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logtrigger_evaluate_duration_ms",
			Help:    "Rule evaluation duration per line in milliseconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		},
	)

	ExecuteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logtrigger_execute_duration_ms",
			Help:    "Action sequence execution duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"status"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logtrigger_queue_depth",
			Help: "Current number of items waiting in a pipeline queue (count)",
		},
		[]string{"queue"},
	)

	ReorderBufferPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logtrigger_reorder_buffer_pending",
			Help: "Number of out-of-order results awaiting their turn (count)",
		},
	)

	DispatchStalled = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logtrigger_dispatch_stalled",
			Help: "1 when the current executor call exceeds the stall threshold, else 0",
		},
	)

	ActiveRules = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logtrigger_active_rules",
			Help: "Number of enabled rules in the current rule table (count)",
		},
	)

	RuleReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_rule_reloads_total",
			Help: "Total number of rule table reloads (count)",
		},
		[]string{"trigger", "status"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_notifications_total",
			Help: "Total number of SMS notifications sent (count)",
		},
		[]string{"transport", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logtrigger_retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component", "target"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaReadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_read_duration_ms",
			Help:    "Duration of reading messages from Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(LinesIngestedTotal)
	prometheus.MustRegister(LinesProcessedTotal)
	prometheus.MustRegister(RuleMatchesTotal)
	prometheus.MustRegister(FiringsTotal)
	prometheus.MustRegister(ActionStepsTotal)
	prometheus.MustRegister(EvaluateDuration)
	prometheus.MustRegister(ExecuteDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ReorderBufferPending)
	prometheus.MustRegister(DispatchStalled)
	prometheus.MustRegister(ActiveRules)
	prometheus.MustRegister(RuleReloadsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaReadDuration)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncLinesIngested(source string) {
	LinesIngestedTotal.WithLabelValues(source).Inc()
}

func IncLinesProcessed() {
	LinesProcessedTotal.Inc()
}

func IncRuleMatch(rule string) {
	RuleMatchesTotal.WithLabelValues(rule).Inc()
}

func IncFiring(rule, outcome string) {
	FiringsTotal.WithLabelValues(rule, outcome).Inc()
}

func IncActionStep(actionType, status string) {
	ActionStepsTotal.WithLabelValues(actionType, status).Inc()
}

func ObserveEvaluateDuration(duration time.Duration) {
	EvaluateDuration.Observe(float64(duration.Microseconds()) / 1000)
}

func ObserveExecuteDuration(duration time.Duration, status string) {
	ExecuteDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetQueueDepth(queue string, size int) {
	QueueDepth.WithLabelValues(queue).Set(float64(size))
}

func SetReorderBufferPending(count int) {
	ReorderBufferPending.Set(float64(count))
}

func SetDispatchStalled(stalled bool) {
	if stalled {
		DispatchStalled.Set(1)
		return
	}
	DispatchStalled.Set(0)
}

func SetActiveRules(count int) {
	ActiveRules.Set(float64(count))
}

func IncRuleReload(trigger, status string) {
	RuleReloadsTotal.WithLabelValues(trigger, status).Inc()
}

func IncRetryAttempt(component, target string) {
	RetryAttemptsTotal.WithLabelValues(component, target).Inc()
}

func IncNotification(transport, status string) {
	NotificationsTotal.WithLabelValues(transport, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
