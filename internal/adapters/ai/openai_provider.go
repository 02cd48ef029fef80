package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/shopspring/decimal"

	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// OpenAIOptions configures an OpenAIProvider.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string // Empty uses the public endpoint
	Timeout    time.Duration
	MaxRetries int
	Limiter    RateLimiter
	HTTPClient *http.Client
}

// OpenAIProvider talks to the chat completions API through the official SDK.
type OpenAIProvider struct {
	client      openai.Client // NewClient returns Client (not *Client)
	rateLimiter RateLimiter
	timeout     time.Duration
	models      []ModelInfo
	log         *logger.Logger
}

// NewOpenAIProvider creates a provider. It performs no network I/O.
func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.NewConfigError("openai", "OPENAI_API_KEY", errors.ErrMissingCredential)
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Limiter == nil {
		opts.Limiter = NewNoOpLimiter()
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &OpenAIProvider{
		client:      openai.NewClient(reqOpts...),
		rateLimiter: opts.Limiter,
		timeout:     opts.Timeout,
		models:      openAIModels(),
		log:         logger.Get().With("component", "openai_chat"),
	}, nil
}

// Name returns provider name.
func (p *OpenAIProvider) Name() string { return ProviderNameOpenAI.String() }

// GetModel returns model info by name.
func (p *OpenAIProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	return LookupModel(model)
}

// ListModels lists the priced models.
func (p *OpenAIProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// LookupModel finds a catalog entry by name, case-insensitively.
func LookupModel(model string) (ModelInfo, error) {
	for _, m := range openAIModels() {
		if strings.EqualFold(m.Name, model) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "openai model %s not found", model)
}

func openAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT4oMini,
			Family:          "gpt-4o",
			ContextWindow:   128000,
			InputCostPer1K:  decimal.RequireFromString("0.00015"),
			OutputCostPer1K: decimal.RequireFromString("0.0006"),
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT4o,
			Family:          "gpt-4o",
			ContextWindow:   128000,
			InputCostPer1K:  decimal.RequireFromString("0.0025"),
			OutputCostPer1K: decimal.RequireFromString("0.01"),
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT41Mini,
			Family:          "gpt-4.1",
			ContextWindow:   1047576,
			InputCostPer1K:  decimal.RequireFromString("0.0004"),
			OutputCostPer1K: decimal.RequireFromString("0.0016"),
			SupportsTools:   true,
		},
	}
}
