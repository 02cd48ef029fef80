package bootstrap

import (
	"context"
	"os/signal"
	"syscall"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/adapters/config"
	"marketresearch/internal/adapters/kafka"
	redisclient "marketresearch/internal/adapters/redis"
	"marketresearch/internal/adapters/search"
	"marketresearch/internal/agents"
	"marketresearch/internal/api"
	"marketresearch/internal/events"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure (optional)
	Redis         *redisclient.Client
	KafkaProducer *kafka.Producer
	Publisher     events.Publisher

	// External adapters
	Usage        *ai.UsageTracker
	Search       *search.DuckDuckGo
	SearchRunner search.Runner

	// Pipeline. Coordinator is nil when CoordinatorErr is set.
	Coordinator    *agents.Coordinator
	CoordinatorErr error

	// Application
	HTTPServer *api.Server

	Lifecycle *Lifecycle
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{
		Lifecycle: NewLifecycle(),
	}
}

// MustInit runs every initialization phase in order. Only configuration and
// HTTP wiring failures are fatal; the pipeline may fail and is reported.
func (c *Container) MustInit(ctx context.Context) {
	c.MustInitConfig()
	c.MustInitInfrastructure(ctx)
	c.MustInitAdapters()
	c.MustInitPipeline()
	c.MustInitHTTP()
}

// Run serves HTTP until SIGINT/SIGTERM or a server error, then shuts down.
func (c *Container) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.HTTPServer.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		c.Log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			runErr = err
			c.Log.Errorf("HTTP server stopped: %v", err)
		}
	}

	c.Shutdown()
	return runErr
}

// Shutdown releases every component in order
func (c *Container) Shutdown() {
	c.Lifecycle.Shutdown(c.HTTPServer, c.Publisher, c.Redis, c.ErrorTracker, c.Log)
}
