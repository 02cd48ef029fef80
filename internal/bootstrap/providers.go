package bootstrap

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/adapters/config"
	errnoop "marketresearch/internal/adapters/errors/noop"
	"marketresearch/internal/adapters/errors/sentry"
	"marketresearch/internal/adapters/kafka"
	redisclient "marketresearch/internal/adapters/redis"
	"marketresearch/internal/adapters/search"
	"marketresearch/internal/agents"
	"marketresearch/internal/api"
	"marketresearch/internal/api/health"
	"marketresearch/internal/events"
	"marketresearch/internal/metrics"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
	"marketresearch/pkg/templates"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger, error tracker and metrics
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.ErrorTracker = initErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
	c.Log = logger.Get()

	metrics.Init()
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// ========================================
// Phase 2: Infrastructure
// ========================================

// MustInitInfrastructure connects optional Redis and Kafka. Neither is required:
// without Redis the rate limiter is process-local, without Kafka events are dropped.
func (c *Container) MustInitInfrastructure(ctx context.Context) {
	if c.Config.Redis.Enabled() {
		client, err := redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			c.Log.Warnf("Redis unavailable, continuing without it: %v", err)
		} else {
			c.Redis = client
			c.Log.Infof("✓ Redis connected at %s", c.Config.Redis.Addr())
		}
	}

	if c.Config.Kafka.Enabled() {
		c.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      c.Config.Kafka.Brokers,
			WriteTimeout: c.Config.Kafka.PublishTimeout,
		})
		c.Publisher = events.NewKafkaPublisher(c.KafkaProducer, c.Config.Kafka.AnalysisTopic, c.Config.Kafka.PublishTimeout)
		c.Log.Infof("✓ Kafka publisher ready (topic %s)", c.Config.Kafka.AnalysisTopic)
	} else {
		c.Publisher = events.NoopPublisher{}
	}
}

func (c *Container) redisClient() *redis.Client {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Client()
}

// ========================================
// Phase 3: External adapters
// ========================================

// MustInitAdapters builds the search provider and usage accounting
func (c *Container) MustInitAdapters() {
	c.Usage = ai.NewUsageTracker()
	c.Search = search.NewDuckDuckGo(c.Config.Search)
	c.SearchRunner = newSearchRunner(c.Search, c.Config.Search)

	prometheus.MustRegister(metrics.NewUsageCollector(c.Usage, c.redisClient()))
}

// newSearchRunner bounds one web_search call. SEARCH_TIMEOUT applies per attempt,
// so the overall deadline covers every attempt plus the backoff between them.
// With the default of zero retries a failed search is attempted exactly once.
func newSearchRunner(base search.Runner, cfg config.SearchConfig) search.Runner {
	attempts := cfg.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var budget time.Duration
	if cfg.Timeout > 0 {
		budget = cfg.Timeout*time.Duration(attempts) + cfg.RetryBackoff*time.Duration(attempts-1)
	}

	return search.Chain(base,
		search.TimeoutMiddleware{Timeout: budget},
		search.RetryMiddleware{Attempts: attempts, Backoff: cfg.RetryBackoff},
	)
}

// ========================================
// Phase 4: Pipeline
// ========================================

// MustInitPipeline builds the three agents and the coordinator. A failure
// (typically a missing API key) is recorded, not fatal: the UI explains it.
func (c *Container) MustInitPipeline() {
	var searcher agents.Searcher = c.Search
	if c.SearchRunner != nil {
		searcher = c.SearchRunner
	}

	coordinator, err := agents.NewCoordinatorFromConfig(c.Config, agents.Deps{
		Redis:     c.redisClient(),
		Searcher:  searcher,
		Usage:     c.Usage,
		Tracker:   c.ErrorTracker,
		Templates: templates.Get(),
	}, c.Publisher)
	if err != nil {
		c.CoordinatorErr = err
		c.Log.Warnw("Pipeline unavailable", "error", err, "kind", errors.KindOf(err))
		return
	}

	c.Coordinator = coordinator
	c.Log.Infof("✓ Pipeline ready (mode %s, structured output %t)", coordinator.Mode(), c.Config.Pipeline.StructuredOutput)
}

// ========================================
// Phase 5: HTTP
// ========================================

// MustInitHTTP wires handlers, health checks and the server
func (c *Container) MustInitHTTP() {
	var analyzer api.Analyzer
	if c.Coordinator != nil {
		analyzer = c.Coordinator
	}

	handlers, err := api.NewHandlers(analyzer, c.CoordinatorErr, c.Log)
	if err != nil {
		panic("failed to init http handlers: " + err.Error())
	}
	if c.Search != nil {
		handlers.WithSources(c.Search)
	}

	checks := []health.Check{{Name: "agents", Fn: handlers.Ready}}
	if c.Redis != nil {
		checks = append(checks, health.Check{Name: "redis", Fn: c.Redis.Health})
	}
	healthHandler := health.New(c.Log, c.Config.App.Name, c.Config.App.Version, checks...)

	router := api.NewRouter(handlers, healthHandler, c.Log.With("component", "http"))
	c.HTTPServer = api.NewServer(api.ServerConfig{
		Addr:         c.Config.HTTP.Addr(),
		ReadTimeout:  c.Config.HTTP.ReadTimeout,
		WriteTimeout: c.Config.HTTP.WriteTimeout,
	}, router, c.Log)

	c.Lifecycle.httpTimeout = c.Config.HTTP.ShutdownTimeout
}
