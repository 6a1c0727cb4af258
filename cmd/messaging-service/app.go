package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"messaging/internal/assets"
	"messaging/internal/broker"
	"messaging/internal/cache"
	"messaging/internal/config"
	"messaging/internal/constants"
	"messaging/internal/logger"
	"messaging/internal/messaging"
	"messaging/internal/rules"
	"messaging/pkg/bootstrap"
	"messaging/pkg/cel"
	"messaging/pkg/circuitbreaker"
	"messaging/pkg/health"
	"messaging/pkg/metrics"
	"messaging/pkg/middleware"
	"messaging/pkg/models"
	"messaging/pkg/ratelimit"
	"messaging/pkg/retry"
	"messaging/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	fs             afero.Fs
	assets         *assets.Cache
	extension      *messaging.Extension
	healthRegistry *health.CheckerRegistry
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:           bootstrap.NewBase(cfg, log),
		dbConnector:    bootstrap.NewDatabaseConnector(cfg, log),
		fs:             afero.NewOsFs(),
		healthRegistry: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterMessagingMetrics()

	tp, err := tracing.Init(ctx, a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initExtension(ctx); err != nil {
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	if err := a.initHTTPServer(ctx); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initExtension(ctx context.Context) error {
	store, err := a.dbConnector.InitCacheStore(ctx, a.fs)
	if err != nil {
		return fmt.Errorf("failed to initialize proposition cache: %w", err)
	}
	a.dbConnector.RegisterHealthChecks(a.healthRegistry)

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}

	parser, err := rules.NewParser(evaluator, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create rules parser: %w", err)
	}

	opts := messaging.HandlerOptions{
		AppSurface:  models.NewSurface(a.Config.Messaging.AppID, ""),
		Dispatcher:  broker.NewTopicDispatcher(a.Producer, a.Config.Broker.Kafka.RequestTopic),
		Classifier:  messaging.NewClassifier(parser),
		InAppEngine: rules.NewEngine("inapp", evaluator, a.Logger),
		FeedEngine:  rules.NewFeedEngine("feed", evaluator, a.Logger),
		Store:       cache.NewPropositionCache(store, a.Logger),
		Presenter:   messaging.LogPresenter{Logger: a.Logger},
		AutoTrack:   a.Config.Messaging.AutoTrack,
		DatasetID:   a.Config.Messaging.DatasetID,
		Logger:      a.Logger,
	}
	if !opts.AppSurface.Valid() {
		return fmt.Errorf("invalid app id %q", a.Config.Messaging.AppID)
	}

	if a.Config.Assets.Enabled {
		a.assets = a.newAssetCache()
		opts.Assets = a.assets
	}

	a.extension = messaging.NewExtension(messaging.NewResponseHandler(opts), constants.EventQueueSize, a.Logger)
	return nil
}

func (a *App) newAssetCache() *assets.Cache {
	cfg := a.Config.Assets

	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = constants.DefaultDownloadTimeout
	}

	var breaker *circuitbreaker.Wrapper
	if a.Config.CircuitBreaker.Enabled {
		cb := a.Config.CircuitBreaker
		breaker = circuitbreaker.NewWrapper(circuitbreaker.ConfigFromSettings("asset-download", circuitbreaker.Settings{
			MaxRequests:  cb.MaxRequests,
			Interval:     cb.Interval,
			Timeout:      cb.Timeout,
			FailureRatio: cb.FailureRatio,
			MinRequests:  cb.MinRequests,
		}))
		a.healthRegistry.Register(health.NewCircuitBreakerChecker(breaker))
	}

	client := &http.Client{Timeout: timeout}
	downloader := assets.NewHTTPDownloader(client, breaker, retry.FromConfig(cfg.Retry), a.Logger)
	return assets.NewCache(a.fs, a.dbConnector.AssetsDir(), downloader, cfg.Concurrency, a.Logger)
}

func (a *App) initHTTPServer(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinRequestAttributes())
	}
	router.Use(middleware.LoggerMiddleware(a.Logger))

	if a.Config.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.Config.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.Logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	messaging.NewHandler(a.extension, a.Logger).RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		h := a.healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}

	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.extension.Run(gCtx)
	})

	g.Go(func() error {
		if err := a.extension.Start(gCtx); err != nil {
			return fmt.Errorf("failed to load cached propositions: %w", err)
		}
		if !a.Config.Messaging.FetchOnStart {
			return nil
		}
		if err := a.extension.RefreshMessages(gCtx); err != nil {
			a.Logger.WarnwCtx(gCtx, "Initial message fetch failed", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	kafkaCfg := a.Config.Broker.Kafka
	for _, topic := range []string{kafkaCfg.ResponseTopic, kafkaCfg.AppEventTopic, kafkaCfg.ControlTopic} {
		if topic == "" {
			continue
		}
		topic := topic
		g.Go(func() error {
			a.Logger.InfowCtx(gCtx, "Starting consumer", "topic", topic)
			return a.Consumer.Consume(gCtx, topic, a.extension.HandleEvent)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.assets != nil {
			waitDone := make(chan struct{})
			go func() {
				a.assets.Wait()
				close(waitDone)
			}()
			select {
			case <-waitDone:
			case <-time.After(constants.ShutdownTimeout):
				errs = append(errs, fmt.Errorf("asset downloads still running after %s", constants.ShutdownTimeout))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
