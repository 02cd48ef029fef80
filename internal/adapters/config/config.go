package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"marketresearch/pkg/errors"
)

// Pipeline execution modes
const (
	PipelineModeSequential = "sequential"
	PipelineModeParallel   = "parallel"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	AI            AIConfig
	Search        SearchConfig
	Pipeline      PipelineConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"marketresearch"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	Host            string        `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"HTTP_PORT" default:"8501"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10m"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AIConfig holds the model endpoint settings shared by all three agents.
// The API key is optional here; agent construction rejects an empty one.
type AIConfig struct {
	OpenAIKey   string        `envconfig:"OPENAI_API_KEY"`
	BaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	Model       string        `envconfig:"MODEL_NAME" default:"gpt-4o-mini"`
	Temperature float64       `envconfig:"DEFAULT_TEMPERATURE" default:"0.7"`
	MaxTokens   int           `envconfig:"MAX_TOKENS" default:"2000"`
	Verbose     bool          `envconfig:"AGENT_VERBOSE" default:"true"`
	CallTimeout time.Duration `envconfig:"AGENT_CALL_TIMEOUT" default:"2m"`
	MaxRetries  int           `envconfig:"AI_MAX_RETRIES" default:"0"`

	RateLimitEnabled bool    `envconfig:"AI_RATE_LIMIT_ENABLED" default:"false"`
	RateLimitRPM     float64 `envconfig:"AI_RATE_LIMIT_RPM" default:"500"`
	RateLimitBurst   int     `envconfig:"AI_RATE_LIMIT_BURST" default:"50"`
}

type SearchConfig struct {
	BaseURL    string        `envconfig:"SEARCH_BASE_URL" default:"https://html.duckduckgo.com/html/"`
	MaxResults int           `envconfig:"SEARCH_MAX_RESULTS" default:"5"`
	Timeout    time.Duration `envconfig:"SEARCH_TIMEOUT" default:"25s"`
	Region     string        `envconfig:"SEARCH_REGION" default:"wt-wt"`
	UserAgent  string        `envconfig:"SEARCH_USER_AGENT" default:"Mozilla/5.0 (compatible; marketresearch/1.0)"`

	Retries      int           `envconfig:"SEARCH_RETRIES" default:"0"`
	RetryBackoff time.Duration `envconfig:"SEARCH_RETRY_BACKOFF" default:"500ms"`
}

type PipelineConfig struct {
	Mode             string `envconfig:"PIPELINE_MODE" default:"sequential"`
	StructuredOutput bool   `envconfig:"PIPELINE_STRUCTURED_OUTPUT" default:"false"`
}

// RedisConfig is optional; an empty host disables the distributed rate limiter.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig is optional; no brokers means analysis events are dropped.
type KafkaConfig struct {
	Brokers        []string      `envconfig:"KAFKA_BROKERS"`
	AnalysisTopic  string        `envconfig:"KAFKA_ANALYSIS_TOPIC" default:"analysis.completed"`
	PublishTimeout time.Duration `envconfig:"KAFKA_PUBLISH_TIMEOUT" default:"2s"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot constrain by type alone
func (c *Config) Validate() error {
	var errs errors.MultiError

	c.Pipeline.Mode = strings.ToLower(strings.TrimSpace(c.Pipeline.Mode))
	switch c.Pipeline.Mode {
	case PipelineModeSequential, PipelineModeParallel:
	default:
		errs.Add(errors.NewConfigError("pipeline", "PIPELINE_MODE",
			errors.Wrapf(errors.ErrInvalidConfig, "unknown mode %q", c.Pipeline.Mode)))
	}

	if c.AI.MaxTokens <= 0 {
		errs.Add(errors.NewConfigError("ai", "MAX_TOKENS",
			errors.Wrapf(errors.ErrInvalidConfig, "must be positive, got %d", c.AI.MaxTokens)))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs.Add(errors.NewConfigError("ai", "DEFAULT_TEMPERATURE",
			errors.Wrapf(errors.ErrInvalidConfig, "must be within [0, 2], got %v", c.AI.Temperature)))
	}
	if c.Search.MaxResults <= 0 {
		errs.Add(errors.NewConfigError("search", "SEARCH_MAX_RESULTS",
			errors.Wrapf(errors.ErrInvalidConfig, "must be positive, got %d", c.Search.MaxResults)))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs.Add(errors.NewConfigError("http", "HTTP_PORT",
			errors.Wrapf(errors.ErrInvalidConfig, "out of range: %d", c.HTTP.Port)))
	}

	return errs.ToError()
}
