package agents

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/adapters/config"
)

// fakeProvider answers Chat with a scripted function and records requests.
type fakeProvider struct {
	mu       sync.Mutex
	respond  func(call int, req ai.ChatRequest) (*ai.ChatResponse, error)
	requests []ai.ChatRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) GetModel(context.Context, string) (ai.ModelInfo, error) {
	return ai.ModelInfo{Name: ai.DefaultModel}, nil
}

func (p *fakeProvider) ListModels(context.Context) ([]ai.ModelInfo, error) {
	return nil, nil
}

func (p *fakeProvider) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	call := len(p.requests)
	p.mu.Unlock()
	return p.respond(call, req)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) request(i int) ai.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

func textResponse(content string) *ai.ChatResponse {
	return &ai.ChatResponse{
		Choices: []ai.Choice{{
			Message:      ai.Message{Role: ai.RoleAssistant, Content: content},
			FinishReason: ai.FinishReasonStop,
		}},
		Usage: ai.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
}

func toolResponse(id, name, arguments string) *ai.ChatResponse {
	return &ai.ChatResponse{
		Choices: []ai.Choice{{
			Message: ai.Message{
				Role:      ai.RoleAssistant,
				ToolCalls: []ai.ToolCall{{ID: id, Name: name, Arguments: arguments}},
			},
			FinishReason: ai.FinishReasonToolCalls,
		}},
		Usage: ai.Usage{PromptTokens: 80, CompletionTokens: 10, TotalTokens: 90},
	}
}

// fakeSearcher records queries and returns a fixed answer.
type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	result  string
	err     error
}

func (s *fakeSearcher) Run(_ context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.result, s.err
}

func testAIConfig() config.AIConfig {
	return config.AIConfig{
		OpenAIKey:   "test-key",
		Model:       ai.ModelGPT4oMini,
		Temperature: 0.7,
		MaxTokens:   2000,
	}
}

func newTestAgent(t *testing.T, agentType AgentType, provider ai.ChatProvider, searcher Searcher) *Agent {
	t.Helper()
	agent, err := NewAgent(agentType, Deps{
		AI:       testAIConfig(),
		Provider: provider,
		Searcher: searcher,
		Usage:    ai.NewUsageTracker(),
	})
	require.NoError(t, err)
	return agent
}
