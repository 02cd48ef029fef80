package bootstrap

import (
	"context"
	"time"

	redisclient "marketresearch/internal/adapters/redis"
	"marketresearch/internal/api"
	"marketresearch/internal/events"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
	httpTimeout     time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
		httpTimeout:     30 * time.Second,
	}
}

// Shutdown performs coordinated cleanup in a fixed order:
// 1. Stop accepting requests and let in-flight analyses finish
// 2. Close the event publisher (flushes Kafka writers)
// 3. Flush the error tracker
// 4. Sync logs
// 5. Close Redis last, the rate limiter may still use it during step 1
func (l *Lifecycle) Shutdown(
	httpServer *api.Server,
	publisher events.Publisher,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server
	// ========================================
	log.Info("[1/5] Stopping HTTP server...")
	if httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, l.httpTimeout)
		if err := httpServer.Shutdown(httpCtx); err != nil {
			log.Errorf("HTTP server shutdown failed: %v", err)
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Close Event Publisher
	// ========================================
	log.Info("[2/5] Closing event publisher...")
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Errorf("Event publisher close failed: %v", err)
		} else {
			log.Info("✓ Event publisher closed")
		}
	}

	// ========================================
	// Step 3: Flush Error Tracker
	// ========================================
	log.Info("[3/5] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)

	// ========================================
	// Step 4: Sync Logs
	// ========================================
	log.Info("[4/5] Syncing logs...")
	if err := logger.Sync(); err != nil {
		log.Warn("Log sync completed with warnings")
	}

	// ========================================
	// Step 5: Close Redis
	// ========================================
	log.Info("[5/5] Closing Redis...")
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Warnf("Redis close failed: %v", err)
		} else {
			log.Info("✓ Redis closed")
		}
	}

	log.Info("✅ Graceful shutdown complete")
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnf("Error tracker flush failed: %v", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}
