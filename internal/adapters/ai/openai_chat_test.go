package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketresearch/pkg/errors"
)

type capturedRequest struct {
	Model       string                   `json:"model"`
	Temperature float64                  `json:"temperature"`
	MaxTokens   int                      `json:"max_tokens"`
	Messages    []map[string]interface{} `json:"messages"`
	Tools       []struct {
		Type     string `json:"type"`
		Function struct {
			Name        string                 `json:"name"`
			Description string                 `json:"description"`
			Parameters  map[string]interface{} `json:"parameters"`
		} `json:"function"`
	} `json:"tools"`
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOpenAIProvider(OpenAIOptions{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1/",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return provider
}

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "web_search", "arguments": "{\"query\":\"acme retail ai\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
}`

func TestOpenAIProviderChat_ToolCall(t *testing.T) {
	var captured capturedRequest
	var auth string
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallCompletion))
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   2000,
		Messages: []Message{
			{Role: RoleSystem, Content: "You are an expert"},
			{Role: RoleUser, Content: "Analyze the company Acme in the Retail industry"},
		},
		Tools: []ToolDefinition{{
			Name:        "web_search",
			Description: "Search the web",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
				"required":   []string{"query"},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-9)
	assert.Equal(t, 2000, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0]["role"])
	assert.Equal(t, "user", captured.Messages[1]["role"])
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "web_search", captured.Tools[0].Function.Name)

	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, FinishReasonToolCalls, choice.FinishReason)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "call_1", choice.Message.ToolCalls[0].ID)
	assert.Equal(t, "web_search", choice.Message.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"acme retail ai"}`, choice.Message.ToolCalls[0].Arguments)
	assert.Equal(t, 150, resp.Usage.TotalTokens)
}

func TestOpenAIProviderChat_ReplaysToolTurns(t *testing.T) {
	var captured capturedRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c2","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Final answer"}}],
			"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "q"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "web_search", Arguments: `{"query":"x"}`}}},
			{Role: RoleTool, ToolCallID: "call_1", Content: "result text"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, captured.Model)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "assistant", captured.Messages[1]["role"])
	assert.NotEmpty(t, captured.Messages[1]["tool_calls"])
	assert.Equal(t, "tool", captured.Messages[2]["role"])
	assert.Equal(t, "call_1", captured.Messages[2]["tool_call_id"])

	assert.Equal(t, "Final answer", resp.Choices[0].Message.Content)
	assert.Equal(t, FinishReasonStop, resp.Choices[0].FinishReason)
}

func TestOpenAIProviderChat_APIError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request_error","code":"model_not_found"}}`))
	})

	_, err := provider.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrExternal))
	assert.Equal(t, errors.KindModel, errors.KindOf(err))
}

func TestOpenAIProviderChat_RateLimited(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	})

	_, err := provider.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
}

func TestOpenAIProviderChat_Timeout(t *testing.T) {
	release := make(chan struct{})
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := provider.Chat(ctx, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.Error(t, err)
	assert.Equal(t, errors.KindTimeout, errors.KindOf(err))
}

func TestOpenAIProviderChat_WaitsForLimiter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	limiter := NewTokenBucketLimiter(ProviderNameOpenAI, 6, 1)
	require.True(t, limiter.Allow())

	provider, err := NewOpenAIProvider(OpenAIOptions{APIKey: "k", BaseURL: server.URL, Limiter: limiter})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = provider.Chat(ctx, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})
	require.Error(t, err)

	var rlErr *RateLimitError
	assert.True(t, errors.As(err, &rlErr))
	assert.Zero(t, calls.Load(), "request must not reach the endpoint")
}

func TestNewOpenAIProvider_MissingKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIOptions{APIKey: "  "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingCredential))

	var cfgErr *errors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Setting)
}

func TestModelCatalogAndUsage(t *testing.T) {
	info, err := LookupModel("GPT-4o-mini")
	require.NoError(t, err)
	assert.True(t, info.SupportsTools)

	cost := info.Cost(Usage{PromptTokens: 1000, CompletionTokens: 1000})
	assert.True(t, decimal.RequireFromString("0.00075").Equal(cost), cost.String())

	_, err = LookupModel("unknown-model")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	tracker := NewUsageTracker()
	tracker.Record(ModelGPT4oMini, Usage{PromptTokens: 1000, CompletionTokens: 1000})
	tracker.Record(ModelGPT4oMini, Usage{PromptTokens: 1000})
	tracker.Record("local-model", Usage{PromptTokens: 10})

	snapshot := tracker.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "gpt-4o-mini", snapshot[0].Model)
	assert.Equal(t, int64(2), snapshot[0].Calls)
	assert.Equal(t, int64(2000), snapshot[0].InputTokens)
	assert.True(t, decimal.RequireFromString("0.0009").Equal(snapshot[0].CostUSD), snapshot[0].CostUSD.String())
	assert.True(t, snapshot[1].CostUSD.IsZero())
}

func TestUsageAdd(t *testing.T) {
	total := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}.Add(Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	assert.Equal(t, Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}, total)
}
