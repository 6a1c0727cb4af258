package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"messaging/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "10s")

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("broker.kafka.request_topic", constants.DefaultRequestTopic)
	viper.SetDefault("broker.kafka.response_topic", constants.DefaultResponseTopic)
	viper.SetDefault("broker.kafka.app_event_topic", constants.DefaultAppEventTopic)
	viper.SetDefault("broker.kafka.control_topic", constants.DefaultControlTopic)
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("cache.backend", constants.CacheBackendFile)
	viper.SetDefault("cache.dir", "./data")
	viper.SetDefault("cache.redis.key_prefix", constants.DefaultRedisKeyPrefix)
	viper.SetDefault("cache.mongodb.database", constants.DefaultMongoDBName)
	viper.SetDefault("cache.mongodb.collection", constants.DefaultMongoCollection)

	viper.SetDefault("assets.enabled", true)
	viper.SetDefault("assets.dir", "./data")
	viper.SetDefault("assets.concurrency", constants.DefaultAssetConcurrency)
	viper.SetDefault("assets.download_timeout", constants.DefaultDownloadTimeout)

	viper.SetDefault("messaging.auto_track", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.request_topic", "BROKER_KAFKA_REQUEST_TOPIC")
	viper.BindEnv("broker.kafka.response_topic", "BROKER_KAFKA_RESPONSE_TOPIC")
	viper.BindEnv("broker.kafka.app_event_topic", "BROKER_KAFKA_APP_EVENT_TOPIC")
	viper.BindEnv("broker.kafka.control_topic", "BROKER_KAFKA_CONTROL_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("cache.backend", "CACHE_BACKEND")
	viper.BindEnv("cache.dir", "CACHE_DIR")

	viper.BindEnv("cache.postgres.host", "CACHE_POSTGRES_HOST")
	viper.BindEnv("cache.postgres.port", "CACHE_POSTGRES_PORT")
	viper.BindEnv("cache.postgres.user", "CACHE_POSTGRES_USER")
	viper.BindEnv("cache.postgres.password", "CACHE_POSTGRES_PASSWORD")
	viper.BindEnv("cache.postgres.dbname", "CACHE_POSTGRES_DBNAME")
	viper.BindEnv("cache.postgres.sslmode", "CACHE_POSTGRES_SSLMODE")

	viper.BindEnv("cache.redis.host", "CACHE_REDIS_HOST")
	viper.BindEnv("cache.redis.port", "CACHE_REDIS_PORT")
	viper.BindEnv("cache.redis.password", "CACHE_REDIS_PASSWORD")
	viper.BindEnv("cache.redis.db", "CACHE_REDIS_DB")

	viper.BindEnv("cache.mongodb.uri", "CACHE_MONGODB_URI")
	viper.BindEnv("cache.mongodb.database", "CACHE_MONGODB_DATABASE")

	viper.BindEnv("messaging.app_id", "MESSAGING_APP_ID")
	viper.BindEnv("messaging.auto_track", "MESSAGING_AUTO_TRACK")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
