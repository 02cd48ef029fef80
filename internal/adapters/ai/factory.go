package ai

import (
	"github.com/redis/go-redis/v9"

	"marketresearch/internal/adapters/config"
)

// NewChatProvider builds the OpenAI provider from configuration. The SDK's
// transport retries follow AI_MAX_RETRIES, which defaults to none.
// redisClient is optional; when set and rate limiting is enabled, the limit is shared across instances.
func NewChatProvider(cfg config.AIConfig, redisClient *redis.Client) (*OpenAIProvider, error) {
	limiter := NewRateLimiterFactory(redisClient).Create(ProviderNameOpenAI, RateLimitConfig{
		Enabled:      cfg.RateLimitEnabled,
		ReqPerMinute: cfg.RateLimitRPM,
		Burst:        cfg.RateLimitBurst,
	})

	return NewOpenAIProvider(OpenAIOptions{
		APIKey:     cfg.OpenAIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    DefaultTimeout,
		MaxRetries: max(cfg.MaxRetries, 0),
		Limiter:    limiter,
	})
}
