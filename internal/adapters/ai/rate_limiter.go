package ai

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"marketresearch/pkg/errors"
)

// RateLimiter gates model requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// TokenBucketLimiter is an in-process limiter for single-instance deployments.
type TokenBucketLimiter struct {
	limiter  *rate.Limiter
	provider ProviderName
}

// NewTokenBucketLimiter creates a limiter allowing reqPerMinute with the given burst.
// A non-positive burst defaults to 10% of the per-minute rate.
func NewTokenBucketLimiter(provider ProviderName, reqPerMinute float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), normalizeBurst(reqPerMinute, burst)),
		provider: provider,
	}
}

// Wait blocks until a token is available or context is cancelled.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter wait cancelled for provider %s", l.provider)
	}
	return nil
}

// Allow consumes a token if one is available.
func (l *TokenBucketLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the current rate limit in requests per minute.
func (l *TokenBucketLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOpLimiter never blocks. Used when rate limiting is disabled.
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

// Wait always returns immediately without error.
func (l *NoOpLimiter) Wait(ctx context.Context) error {
	return nil
}

// Allow always returns true.
func (l *NoOpLimiter) Allow() bool {
	return true
}

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 {
	return -1
}

// RateLimitConfig contains rate limit configuration for a provider.
type RateLimitConfig struct {
	Enabled      bool
	ReqPerMinute float64
	Burst        int
}

// RateLimiterFactory creates rate limiters, distributed when a Redis client is present.
type RateLimiterFactory struct {
	redisClient *redis.Client
}

// NewRateLimiterFactory creates a factory for rate limiters.
// A nil client yields in-memory limiters.
func NewRateLimiterFactory(redisClient *redis.Client) *RateLimiterFactory {
	return &RateLimiterFactory{redisClient: redisClient}
}

// Create creates a rate limiter for the specified provider.
func (f *RateLimiterFactory) Create(provider ProviderName, config RateLimitConfig) RateLimiter {
	if !config.Enabled || config.ReqPerMinute <= 0 {
		return NewNoOpLimiter()
	}

	if f.redisClient != nil {
		return NewRedisRateLimiter(f.redisClient, provider, config.ReqPerMinute, config.Burst)
	}

	return NewTokenBucketLimiter(provider, config.ReqPerMinute, config.Burst)
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

// Error implements error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func normalizeBurst(reqPerMinute float64, burst int) int {
	if burst > 0 {
		return burst
	}
	burst = int(reqPerMinute / 10)
	if burst < 1 {
		burst = 1
	}
	return burst
}
