package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultDownloadTimeout = 30 * time.Second
)

const (
	DefaultRequestTopic  = "edge_requests"
	DefaultResponseTopic = "personalization_decisions"
	DefaultAppEventTopic = "app_events"
	DefaultControlTopic  = "messaging_control"
)

const (
	DefaultMongoDBName     = "messaging"
	DefaultMongoCollection = "cache_entries"
	DefaultRedisKeyPrefix  = "messaging:"
)

// Durable cache layout: one blob under a fixed name inside a fixed directory.
const (
	CacheDirectory       = "messaging"
	PropositionCacheName = "propositions"
	ImageAssetsDirectory = "images"
)

const (
	CacheBackendFile     = "file"
	CacheBackendRedis    = "redis"
	CacheBackendMongoDB  = "mongodb"
	CacheBackendPostgres = "postgres"
)

const (
	DefaultAssetConcurrency = 4
	MaxAssetConcurrency     = 32
)

const (
	ShutdownTimeout = 5 * time.Second
	EventQueueSize  = 256
)
