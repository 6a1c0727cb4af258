package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PersonalizationResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_personalization_responses_total",
			Help: "Total number of personalization responses handled (count)",
		},
		[]string{"outcome"},
	)

	ResponseProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_response_processing_duration_ms",
			Help:    "Processing duration of personalization responses in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		},
		[]string{"outcome"},
	)

	PropositionsParsedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_propositions_parsed_total",
			Help: "Total number of propositions seen by the payload parser (count)",
		},
		[]string{"status"},
	)

	PropositionsPartitionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_propositions_partitioned_total",
			Help: "Total number of propositions placed in a partition bucket (count)",
		},
		[]string{"bucket"},
	)

	ActiveRules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "messaging_active_rules",
			Help: "Number of rules loaded in a rules engine (count)",
		},
		[]string{"engine"},
	)

	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_rule_matches_total",
			Help: "Total number of rule evaluations by result (count)",
		},
		[]string{"engine", "result"},
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_inapp_messages_total",
			Help: "Total number of in-app messages created (count)",
		},
		[]string{"status"},
	)

	InteractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_interactions_total",
			Help: "Total number of proposition interaction events dispatched (count)",
		},
		[]string{"event_type", "status"},
	)

	CacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_cache_operations_total",
			Help: "Total number of durable cache operations (count)",
		},
		[]string{"backend", "operation", "status"},
	)

	CacheOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_cache_operation_duration_ms",
			Help:    "Duration of durable cache operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"backend", "operation"},
	)

	AssetDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_asset_downloads_total",
			Help: "Total number of image asset downloads (count)",
		},
		[]string{"status"},
	)

	AssetDownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "messaging_asset_download_duration_ms",
			Help:    "Duration of image asset downloads in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	AssetsCached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_assets_cached",
			Help: "Number of image assets mapped to a local file (count)",
		},
	)

	AssetsEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_assets_evicted_total",
			Help: "Total number of cached image assets evicted (count)",
		},
	)

	EventQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_event_queue_size",
			Help: "Current number of queued messaging events (count)",
		},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
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

	KafkaMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_message_size_bytes",
			Help:    "Size of Kafka messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"service", "topic", "direction"},
	)

	KafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag (difference between latest offset and committed offset) (count)",
		},
		[]string{"service", "topic", "partition"},
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

var registerOnce sync.Once

// RegisterMessagingMetrics registers every collector with the default
// registry. Safe to call more than once.
func RegisterMessagingMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PersonalizationResponsesTotal,
			ResponseProcessingDuration,
			PropositionsParsedTotal,
			PropositionsPartitionedTotal,
			ActiveRules,
			RuleMatchesTotal,
			MessagesTotal,
			InteractionsTotal,
			CacheOperationsTotal,
			CacheOperationDuration,
			AssetDownloadsTotal,
			AssetDownloadDuration,
			AssetsCached,
			AssetsEvictedTotal,
			EventQueueSize,
			RetryAttemptsTotal,
			DLQMessagesTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
			KafkaMessageSizeBytes,
			KafkaConsumerLag,
			KafkaReadDuration,
			KafkaWriteDuration,
		)
	})
}

func ObserveResponseDuration(duration time.Duration, outcome string) {
	PersonalizationResponsesTotal.WithLabelValues(outcome).Inc()
	ResponseProcessingDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func SetActiveRules(engine string, count int) {
	ActiveRules.WithLabelValues(engine).Set(float64(count))
}

func IncRuleMatch(engine string, matched bool) {
	result := "no_match"
	if matched {
		result = "match"
	}
	RuleMatchesTotal.WithLabelValues(engine, result).Inc()
}

func ObserveCacheOperation(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	CacheOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	CacheOperationDuration.WithLabelValues(backend, operation).Observe(float64(duration.Milliseconds()))
}

func ObserveAssetDownload(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	AssetDownloadsTotal.WithLabelValues(status).Inc()
	AssetDownloadDuration.Observe(float64(duration.Milliseconds()))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaMessageSize(service, topic, direction string, sizeBytes int) {
	KafkaMessageSizeBytes.WithLabelValues(service, topic, direction).Observe(float64(sizeBytes))
}

func SetKafkaConsumerLag(service, topic string, partition int, lag int64) {
	KafkaConsumerLag.WithLabelValues(service, topic, fmt.Sprintf("%d", partition)).Set(float64(lag))
}

func ObserveKafkaReadDuration(service, topic string, duration time.Duration) {
	KafkaReadDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
