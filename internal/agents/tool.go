package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/agents/schemas"
	"marketresearch/internal/metrics"
	"marketresearch/pkg/errors"
)

// InvokeFunc executes a search query and returns text for the model.
type InvokeFunc func(ctx context.Context, query string) (string, error)

// ToolBinding is the single callable tool an agent exposes to the model.
type ToolBinding struct {
	Name        string
	Description string
	Invoke      InvokeFunc
}

// NewWebSearchBinding binds a search function under the web_search name.
func NewWebSearchBinding(description string, invoke InvokeFunc) ToolBinding {
	return ToolBinding{
		Name:        WebSearchToolName,
		Description: description,
		Invoke:      invoke,
	}
}

// Definition is the tool schema advertised to the model.
func (b ToolBinding) Definition() ai.ToolDefinition {
	return ai.ToolDefinition{
		Name:        b.Name,
		Description: b.Description,
		Parameters:  schemas.WebSearchParameters(),
	}
}

// Execute runs one requested call and returns the observation to fold back
// into the scratchpad. The observation is never empty. A non-nil error
// reports what went wrong for logging only; the loop carries on either way.
func (b ToolBinding) Execute(ctx context.Context, call ai.ToolCall) (string, error) {
	start := time.Now()

	if call.Name != b.Name {
		err := errors.Wrapf(errors.ErrMalformedToolCall, "unknown tool %q", call.Name)
		metrics.RecordToolExecution(b.Name, "malformed", time.Since(start))
		return fmt.Sprintf("Invalid or incomplete tool call: unknown tool %q, available tools: %s", call.Name, b.Name), err
	}

	query, err := parseQuery(call.Arguments)
	if err != nil {
		metrics.RecordToolExecution(b.Name, "malformed", time.Since(start))
		return "Invalid or incomplete tool call: " + err.Error(), errors.Wrap(errors.ErrMalformedToolCall, err.Error())
	}

	result, err := b.Invoke(ctx, query)
	if err != nil {
		metrics.RecordToolExecution(b.Name, "error", time.Since(start))
		return fmt.Sprintf("Error performing web search: %v", err), err
	}

	metrics.RecordToolExecution(b.Name, "ok", time.Since(start))
	if strings.TrimSpace(result) == "" {
		return "No results found.", nil
	}
	return result, nil
}

// parseQuery expects a JSON object carrying a non-empty string "query".
func parseQuery(arguments string) (string, error) {
	if strings.TrimSpace(arguments) == "" {
		return "", fmt.Errorf("missing arguments, expected {\"query\": string}")
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("arguments are not a JSON object: %v", err)
	}

	raw, ok := args["query"]
	if !ok {
		return "", fmt.Errorf("missing required field \"query\"")
	}
	query, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field \"query\" must be a string, got %T", raw)
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("field \"query\" is empty")
	}
	return query, nil
}
