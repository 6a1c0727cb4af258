package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"messaging/internal/cache"
	"messaging/internal/config"
	"messaging/internal/constants"
	"messaging/internal/logger"
	"messaging/pkg/circuitbreaker"
	"messaging/pkg/health"
	"messaging/pkg/migrations"
)

// DatabaseConnector opens the durable cache backend selected by
// cache.backend and keeps the client so it can be health checked and closed.
type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger

	redis    *redis.Client
	postgres *sql.DB
	mongo    *mongo.Client
	breaker  *circuitbreaker.Wrapper
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// InitCacheStore returns the instrumented store for the configured backend.
// Remote backends are wrapped in a circuit breaker when enabled.
func (dc *DatabaseConnector) InitCacheStore(ctx context.Context, fs afero.Fs) (cache.Store, error) {
	cfg := dc.Config.Cache

	var store cache.Store
	switch cfg.Backend {
	case constants.CacheBackendFile, "":
		store = cache.NewFileStore(fs, cfg.Dir)
		dc.Logger.InfowCtx(ctx, "Using file proposition cache", "dir", cfg.Dir)
		return cache.Instrument(store), nil

	case constants.CacheBackendRedis:
		client, err := dc.InitRedis(ctx)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
		store = cache.NewRedisStore(client, cfg.Redis.KeyPrefix, ttl)

	case constants.CacheBackendPostgres:
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			version, dirty, err := migrations.RunPostgres(db)
			if err != nil {
				return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
			}
			dc.Logger.InfowCtx(ctx, "Cache schema migrated", "version", version, "dirty", dirty)
		}
		store = cache.NewPostgresStore(db)

	case constants.CacheBackendMongoDB:
		client, err := dc.InitMongoDB(ctx)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDB.Database)
		if err := migrations.EnsureMongoCacheCollection(ctx, db, cfg.MongoDB.Collection); err != nil {
			return nil, fmt.Errorf("failed to prepare cache collection: %w", err)
		}
		store = cache.NewMongoStore(db.Collection(cfg.MongoDB.Collection))

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}

	if dc.Config.CircuitBreaker.Enabled {
		cb := dc.Config.CircuitBreaker
		dc.breaker = circuitbreaker.NewWrapper(circuitbreaker.ConfigFromSettings("cache-"+cfg.Backend, circuitbreaker.Settings{
			MaxRequests:  cb.MaxRequests,
			Interval:     cb.Interval,
			Timeout:      cb.Timeout,
			FailureRatio: cb.FailureRatio,
			MinRequests:  cb.MinRequests,
		}))
		store = cache.NewCircuitBreakerStore(store, dc.breaker)
	}

	dc.Logger.InfowCtx(ctx, "Using remote proposition cache", "backend", cfg.Backend)
	return cache.Instrument(store), nil
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	cfg := dc.Config.Cache.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.redis = rdb
	dc.Logger.InfowCtx(ctx, "Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	cfg := dc.Config.Cache.Postgres
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dc.postgres = db
	dc.Logger.InfowCtx(ctx, "PostgreSQL connected successfully")
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mongoOpts := options.Client().ApplyURI(dc.Config.Cache.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.mongo = mongoClient
	dc.Logger.InfowCtx(ctx, "MongoDB connected successfully")
	return mongoClient, nil
}

// RegisterHealthChecks adds a checker for every opened backend.
func (dc *DatabaseConnector) RegisterHealthChecks(registry *health.CheckerRegistry) {
	if dc.redis != nil {
		registry.Register(health.NewRedisChecker(dc.redis))
	}
	if dc.postgres != nil {
		registry.Register(health.NewPostgreSQLChecker(dc.postgres))
	}
	if dc.mongo != nil {
		registry.Register(health.NewMongoDBChecker(dc.mongo))
	}
	if dc.breaker != nil {
		registry.Register(health.NewCircuitBreakerChecker(dc.breaker))
	}
}

// AssetsDir is where downloaded images are written.
func (dc *DatabaseConnector) AssetsDir() string {
	if dc.Config.Assets.Dir != "" {
		return dc.Config.Assets.Dir
	}
	return filepath.Join(dc.Config.Cache.Dir, constants.CacheDirectory)
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context) []error {
	var errs []error

	if dc.redis != nil {
		if err := dc.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if dc.postgres != nil {
		if err := dc.postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}

	if dc.mongo != nil {
		if err := dc.mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
