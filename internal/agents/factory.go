package agents

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/adapters/config"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
	"marketresearch/pkg/templates"
)

// Searcher is the web search collaborator behind the web_search tool.
type Searcher interface {
	Run(ctx context.Context, query string) (string, error)
}

// Deps carries everything needed to build an agent.
type Deps struct {
	AI config.AIConfig

	// Provider is built from AI when nil
	Provider ai.ChatProvider
	// Redis backs the distributed rate limiter when Provider is built here
	Redis *redis.Client

	Searcher  Searcher
	Usage     *ai.UsageTracker
	Tracker   errors.Tracker
	Templates *templates.Registry
}

// NewResearchAgent builds the industry research persona
func NewResearchAgent(deps Deps) (*Agent, error) {
	return NewAgent(AgentResearch, deps)
}

// NewMarketAgent builds the AI/ML use case persona
func NewMarketAgent(deps Deps) (*Agent, error) {
	return NewAgent(AgentMarket, deps)
}

// NewResourceAgent builds the implementation resource persona
func NewResourceAgent(deps Deps) (*Agent, error) {
	return NewAgent(AgentResource, deps)
}

// NewAgent builds an agent of the given type. An empty API key fails before
// any provider is built, so no network I/O happens.
func NewAgent(agentType AgentType, deps Deps) (*Agent, error) {
	cfg, err := ConfigFor(agentType)
	if err != nil {
		return nil, err
	}

	if err := checkCredential(deps.AI); err != nil {
		return nil, err
	}
	if deps.Searcher == nil {
		return nil, errors.NewConfigError(cfg.Name, "search", errors.Wrap(errors.ErrInvalidConfig, "searcher is required"))
	}

	provider := deps.Provider
	if provider == nil {
		p, err := ai.NewChatProvider(deps.AI, deps.Redis)
		if err != nil {
			return nil, errors.Wrapf(err, "build provider for %s", cfg.Name)
		}
		provider = p
	}

	reg := deps.Templates
	if reg == nil {
		reg = templates.Get()
	}
	systemPrompt, err := reg.Render(cfg.SystemPromptTemplate, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "render system prompt for %s", cfg.Name)
	}
	toolDesc, err := reg.Render(cfg.ToolDescTemplate, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "render tool description for %s", cfg.Name)
	}

	model := deps.AI.Model
	if model == "" {
		model = ai.DefaultModel
	}
	maxTokens := deps.AI.MaxTokens
	if maxTokens <= 0 {
		maxTokens = ai.DefaultMaxTokens
	}

	searcher := deps.Searcher
	return &Agent{
		cfg:          cfg,
		provider:     provider,
		model:        model,
		temperature:  deps.AI.Temperature,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
		tool:         NewWebSearchBinding(toolDesc, searcher.Run),
		memory:       NewConversationMemory(),
		usage:        deps.Usage,
		tracker:      deps.Tracker,
		callTimeout:  deps.AI.CallTimeout,
		verbose:      deps.AI.Verbose,
		log:          logger.Get().With("component", "agent", "agent", cfg.Name),
	}, nil
}

func checkCredential(cfg config.AIConfig) error {
	if strings.TrimSpace(cfg.OpenAIKey) == "" {
		return errors.NewConfigError("agents", "OPENAI_API_KEY", errors.ErrMissingCredential)
	}
	return nil
}
