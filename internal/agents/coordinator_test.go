package agents

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/adapters/config"
	"marketresearch/internal/events"
	"marketresearch/pkg/errors"
)

// stubResponder returns canned outcomes and records prompts.
type stubResponder struct {
	name  string
	text  string
	err   error
	delay time.Duration

	mu      sync.Mutex
	prompts []string
}

func (s *stubResponder) Name() string { return s.name }

func (s *stubResponder) Run(ctx context.Context, prompt string) (*Outcome, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return &Outcome{State: StateFailed, Iterations: 1}, s.err
	}
	return &Outcome{
		Text:       s.text,
		State:      StateDone,
		Iterations: 1,
		Usage:      ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (s *stubResponder) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.AnalysisCompleted
}

func (p *recordingPublisher) PublishAnalysisCompleted(_ context.Context, e events.AnalysisCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newStubs() (*stubResponder, *stubResponder, *stubResponder) {
	return &stubResponder{name: "ResearchAgent", text: "industry text"},
		&stubResponder{name: "MarketAgent", text: "use case text"},
		&stubResponder{name: "ResourceAgent", text: "resource text"}
}

func TestAnalyzeCompanyReturnsThreeFields(t *testing.T) {
	research, market, resource := newStubs()
	publisher := &recordingPublisher{}
	c, err := NewCoordinator(research, market, resource, CoordinatorOptions{Publisher: publisher})
	require.NoError(t, err)
	assert.Equal(t, config.PipelineModeSequential, c.Mode())

	result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "industry text", result.IndustryAnalysis)
	assert.Equal(t, "use case text", result.UseCases)
	assert.Equal(t, "resource text", result.Resources)
	assert.Equal(t, AnalysisOK, result.Status())
	assert.Equal(t, 45, result.TotalUsage().TotalTokens)

	require.Len(t, result.Stages, 3)
	assert.Equal(t, []AgentType{AgentResearch, AgentMarket, AgentResource},
		[]AgentType{result.Stages[0].Stage, result.Stages[1].Stage, result.Stages[2].Stage})

	require.Len(t, publisher.events, 1)
	assert.Equal(t, result.ID, publisher.events[0].ID)
	assert.Equal(t, "ok", publisher.events[0].Status)
	assert.Len(t, publisher.events[0].Stages, 3)
}

func TestAnalyzeCompanyPrompts(t *testing.T) {
	research, market, resource := newStubs()
	c, err := NewCoordinator(research, market, resource, CoordinatorOptions{})
	require.NoError(t, err)

	c.AnalyzeCompany(context.Background(), "Acme", "Retail")

	assert.Equal(t, "Analyze the company Acme in the Retail industry", research.lastPrompt())
	assert.Equal(t, "Generate AI/ML use cases for Acme in Retail", market.lastPrompt())
	assert.Equal(t, "Find implementation resources for Acme in Retail", resource.lastPrompt())
}

func TestAnalyzeCompanyStageIsolation(t *testing.T) {
	for _, mode := range []string{config.PipelineModeSequential, config.PipelineModeParallel} {
		t.Run(mode, func(t *testing.T) {
			research, market, resource := newStubs()
			market.err = errors.Wrap(errors.ErrExternal, "openai status 500")

			c, err := NewCoordinator(research, market, resource, CoordinatorOptions{Mode: mode})
			require.NoError(t, err)

			result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")
			assert.Equal(t, "industry text", result.IndustryAnalysis)
			assert.Equal(t, "resource text", result.Resources)
			assert.True(t, strings.HasPrefix(result.UseCases, "Error getting response: "))
			assert.NotEmpty(t, result.UseCases)
			assert.Equal(t, AnalysisPartial, result.Status())

			stage, ok := result.Stage(AgentMarket)
			require.True(t, ok)
			assert.Equal(t, StageError, stage.Status)
			assert.Equal(t, errors.KindModel, stage.Kind)

			stage, _ = result.Stage(AgentResource)
			assert.Equal(t, StageOK, stage.Status)
		})
	}
}

func TestAnalyzeCompanyAllFailedStillHasText(t *testing.T) {
	research, market, resource := newStubs()
	for _, s := range []*stubResponder{research, market, resource} {
		s.err = errors.Wrap(errors.ErrTimeout, "deadline")
	}
	c, err := NewCoordinator(research, market, resource, CoordinatorOptions{})
	require.NoError(t, err)

	result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")
	assert.NotEmpty(t, result.IndustryAnalysis)
	assert.NotEmpty(t, result.UseCases)
	assert.NotEmpty(t, result.Resources)
	assert.Equal(t, AnalysisFailed, result.Status())
	for _, s := range result.Stages {
		assert.Equal(t, errors.KindTimeout, s.Kind)
	}
}

func TestAnalyzeCompanyParallelRunsConcurrently(t *testing.T) {
	research, market, resource := newStubs()
	for _, s := range []*stubResponder{research, market, resource} {
		s.delay = 100 * time.Millisecond
	}
	c, err := NewCoordinator(research, market, resource, CoordinatorOptions{Mode: " Parallel "})
	require.NoError(t, err)
	assert.Equal(t, config.PipelineModeParallel, c.Mode())

	start := time.Now()
	result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")
	elapsed := time.Since(start)

	assert.Equal(t, AnalysisOK, result.Status())
	assert.Equal(t, "use case text", result.UseCases)
	assert.Less(t, elapsed, 280*time.Millisecond)
}

func TestAnalyzeCompanyIterationLimitKeepsText(t *testing.T) {
	provider := &fakeProvider{respond: func(call int, req ai.ChatRequest) (*ai.ChatResponse, error) {
		return toolResponse("c", WebSearchToolName, `{"query":"loop"}`), nil
	}}
	looping := newTestAgent(t, AgentMarket, provider, &fakeSearcher{result: "r"})
	research, _, resource := newStubs()

	c, err := NewCoordinator(research, looping, resource, CoordinatorOptions{})
	require.NoError(t, err)

	result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")
	assert.Equal(t, IterationLimitMessage, result.UseCases)

	stage, _ := result.Stage(AgentMarket)
	assert.Equal(t, errors.KindLimit, stage.Kind)
	assert.Equal(t, MaxIterations, stage.Iterations)
}

func TestAnalyzeCompanyStructuredMode(t *testing.T) {
	research := &stubResponder{name: "ResearchAgent", text: "```json\n" +
		`{"industry_analysis":{"overview":"Retail overview","key_players":["Walmart"],"tech_trends":["Vision"],"opportunities":["Pricing"],"challenges":["Data"]}}` +
		"\n```"}
	market := &stubResponder{name: "MarketAgent", text: "Use cases: forecasting, pricing"}
	resource := &stubResponder{name: "ResourceAgent", text: `{"resources":[{"title":"Guide","url":"https://example.com/guide","description":"How-to","quality_assessment":"Good"}]}`}

	c, err := NewCoordinator(research, market, resource, CoordinatorOptions{Structured: true})
	require.NoError(t, err)

	result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")

	assert.Contains(t, research.lastPrompt(), "Analyze the company Acme in the Retail industry\n\n")
	assert.Contains(t, market.lastPrompt(), "High|Medium|Low")

	assert.Contains(t, result.IndustryAnalysis, "**Key Players**\n- Walmart")
	assert.Contains(t, result.Resources, "[Guide](https://example.com/guide)")

	stage, _ := result.Stage(AgentMarket)
	assert.Equal(t, StageError, stage.Status)
	assert.Equal(t, errors.KindSchema, stage.Kind)
	assert.True(t, strings.HasPrefix(result.UseCases, "Error getting response: "))
}

func TestNewCoordinatorValidation(t *testing.T) {
	research, market, resource := newStubs()

	_, err := NewCoordinator(research, nil, resource, CoordinatorOptions{})
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = NewCoordinator(research, market, resource, CoordinatorOptions{Mode: "batch"})
	var cfgErr *errors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "PIPELINE_MODE", cfgErr.Setting)
}

func TestNewCoordinatorFromConfig(t *testing.T) {
	provider := &fakeProvider{respond: func(int, ai.ChatRequest) (*ai.ChatResponse, error) {
		return textResponse("answer"), nil
	}}
	cfg := &config.Config{}
	cfg.AI = testAIConfig()
	cfg.Pipeline.Mode = config.PipelineModeParallel
	cfg.App.Name = "marketresearch-test"

	c, err := NewCoordinatorFromConfig(cfg, Deps{Provider: provider, Searcher: &fakeSearcher{}}, nil)
	require.NoError(t, err)

	result := c.AnalyzeCompany(context.Background(), "Acme", "Retail")
	assert.Equal(t, AnalysisOK, result.Status())
	assert.Equal(t, "answer", result.IndustryAnalysis)
	assert.Equal(t, 3, provider.calls())
}
