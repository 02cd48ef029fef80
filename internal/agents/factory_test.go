package agents

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketresearch/internal/adapters/config"
	"marketresearch/pkg/errors"
)

func TestNewAgentPersonas(t *testing.T) {
	tests := []struct {
		agentType    AgentType
		name         string
		promptPrefix string
		toolDesc     string
	}{
		{AgentResearch, "ResearchAgent", "You are an expert research analyst specializing in AI/ML technologies.", "Search the web for information about companies and industries"},
		{AgentMarket, "MarketAgent", "You are an expert in AI/ML solutions and market analysis.", "Search for AI/ML use cases and market trends"},
		{AgentResource, "ResourceAgent", "You are an expert in finding and evaluating AI/ML implementation resources.", "Search for AI/ML implementation resources, tutorials, and documentation"},
	}

	for _, tt := range tests {
		t.Run(string(tt.agentType), func(t *testing.T) {
			agent := newTestAgent(t, tt.agentType, &fakeProvider{}, &fakeSearcher{})
			assert.Equal(t, tt.name, agent.Name())
			assert.Equal(t, tt.agentType, agent.Type())
			assert.True(t, strings.HasPrefix(agent.SystemPrompt(), tt.promptPrefix))
			assert.Equal(t, tt.toolDesc, agent.Tool().Description)
			assert.Equal(t, WebSearchToolName, agent.Tool().Name)
			assert.Empty(t, agent.Memory())
		})
	}
}

func TestNewAgentMissingCredential(t *testing.T) {
	cfg := testAIConfig()
	cfg.OpenAIKey = "  "

	_, err := NewAgent(AgentResearch, Deps{AI: cfg, Provider: &fakeProvider{}, Searcher: &fakeSearcher{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingCredential))
	assert.Equal(t, errors.KindConfig, errors.KindOf(err))

	var cfgErr *errors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Setting)
}

func TestNewAgentRequiresSearcher(t *testing.T) {
	_, err := NewAgent(AgentMarket, Deps{AI: testAIConfig(), Provider: &fakeProvider{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestNewAgentUnknownType(t *testing.T) {
	_, err := NewAgent(AgentType("planner"), Deps{AI: testAIConfig(), Provider: &fakeProvider{}, Searcher: &fakeSearcher{}})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestNewAgentBuildsOpenAIProvider(t *testing.T) {
	agent, err := NewAgent(AgentResearch, Deps{AI: testAIConfig(), Searcher: &fakeSearcher{}})
	require.NoError(t, err)
	assert.Equal(t, "openai", agent.provider.Name())
}

func TestCoordinatorFromConfigMissingCredentialMakesNoNetworkCall(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.AI = testAIConfig()
	cfg.AI.OpenAIKey = ""
	cfg.AI.BaseURL = server.URL + "/v1/"
	cfg.Pipeline.Mode = config.PipelineModeSequential

	coordinator, err := NewCoordinatorFromConfig(cfg, Deps{Searcher: &fakeSearcher{}}, nil)
	require.Error(t, err)
	assert.Nil(t, coordinator)
	assert.True(t, errors.Is(err, errors.ErrMissingCredential))
	assert.Zero(t, atomic.LoadInt32(&hits))
}
