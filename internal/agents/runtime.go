package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketresearch/internal/adapters/ai"
	"marketresearch/internal/metrics"
	"marketresearch/pkg/errors"
	"marketresearch/pkg/logger"
)

// Outcome is the typed result of one agent call.
type Outcome struct {
	Text       string
	State      State
	Iterations int
	ToolCalls  int
	Usage      ai.Usage
	CostUSD    decimal.Decimal
	Duration   time.Duration
}

// Agent runs one persona: a model endpoint, the web_search binding,
// a conversation memory and an iteration-capped loop.
type Agent struct {
	cfg          AgentConfig
	provider     ai.ChatProvider
	model        string
	temperature  float64
	maxTokens    int
	systemPrompt string
	tool         ToolBinding
	memory       *ConversationMemory
	usage        *ai.UsageTracker
	tracker      errors.Tracker
	callTimeout  time.Duration
	verbose      bool

	// Serializes calls so memory turns stay paired
	mu sync.Mutex

	log *logger.Logger
}

// Name returns the persona name
func (a *Agent) Name() string { return a.cfg.Name }

// Type returns the persona type
func (a *Agent) Type() AgentType { return a.cfg.Type }

// Model returns the model the agent is bound to
func (a *Agent) Model() string { return a.model }

// SystemPrompt returns the rendered system instruction
func (a *Agent) SystemPrompt() string { return a.systemPrompt }

// Tool returns the agent's tool binding
func (a *Agent) Tool() ToolBinding { return a.tool }

// Memory returns a copy of the conversation history
func (a *Agent) Memory() []Turn { return a.memory.Turns() }

// Respond answers prompt with text. It never fails: errors come back as
// "Error getting response: <cause>".
func (a *Agent) Respond(ctx context.Context, prompt string) string {
	out, err := a.Run(ctx, prompt)
	if err != nil {
		if errors.Is(err, errors.ErrIterationLimit) && out != nil {
			return out.Text
		}
		return fmt.Sprintf("Error getting response: %v", err)
	}
	return out.Text
}

// Run executes the loop for one prompt.
//
// On iteration exhaustion both a usable Outcome (best-effort text) and an
// error wrapping ErrIterationLimit are returned. On failure the Outcome carries
// usage and state only.
func (a *Agent) Run(ctx context.Context, prompt string) (*Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	a.log.Verbosef(a.verbose, "Entering agent loop: agent=%s prompt=%q", a.cfg.Name, prompt)

	history := a.memory.Messages()
	scratchpad := []ai.Message{{Role: ai.RoleUser, Content: prompt}}

	out := &Outcome{State: StateAwaitingModel}
	var (
		pending []ai.ToolCall
		partial string
		runErr  error
	)

	for !out.State.Terminal() {
		switch out.State {
		case StateAwaitingModel:
			if out.Iterations >= a.cfg.MaxIterations {
				out.State = StateIterationExhausted
				continue
			}
			if err := ctx.Err(); err != nil {
				runErr = errors.Wrap(err, "agent call aborted")
				out.State = StateFailed
				continue
			}

			resp, err := a.callModel(ctx, history, scratchpad)
			out.Iterations++
			if err != nil {
				runErr = err
				out.State = StateFailed
				continue
			}
			out.Usage = out.Usage.Add(resp.Usage)

			msg := resp.Choices[0].Message
			if strings.TrimSpace(msg.Content) != "" {
				partial = msg.Content
			}

			if len(msg.ToolCalls) > 0 {
				scratchpad = append(scratchpad, ai.Message{
					Role:      ai.RoleAssistant,
					Content:   msg.Content,
					ToolCalls: msg.ToolCalls,
				})
				pending = msg.ToolCalls
				out.State = StateToolRequested
				continue
			}

			if strings.TrimSpace(msg.Content) == "" {
				runErr = errors.Wrapf(errors.ErrEmptyResponse, "finish reason %q", resp.Choices[0].FinishReason)
				out.State = StateFailed
				continue
			}

			out.Text = msg.Content
			out.State = StateDone

		case StateToolRequested:
			for _, call := range pending {
				observation := a.executeTool(ctx, call)
				scratchpad = append(scratchpad, ai.Message{
					Role:       ai.RoleTool,
					Content:    observation,
					ToolCallID: call.ID,
				})
				out.ToolCalls++
			}
			pending = nil
			out.State = StateAwaitingModel
		}

		a.log.Verbosef(a.verbose, "Agent %s -> %s (round %d)", a.cfg.Name, out.State, out.Iterations)
	}

	if out.State == StateIterationExhausted {
		out.Text = partial
		if strings.TrimSpace(out.Text) == "" {
			out.Text = IterationLimitMessage
		}
		runErr = errors.Wrapf(errors.ErrIterationLimit, "%s stopped after %d rounds", a.cfg.Name, out.Iterations)
	}

	if out.State != StateFailed {
		a.memory.AddUserMessage(prompt)
		a.memory.AddAssistantMessage(out.Text)
	}

	out.Duration = time.Since(start)
	a.recordUsage(out)

	status := string(out.State)
	metrics.RecordAgentCall(a.cfg.Type.String(), a.model, status, out.Duration, out.Iterations)

	switch out.State {
	case StateFailed:
		a.log.ErrorWithContext(ctx, runErr, map[string]string{"agent": a.cfg.Name})
		return out, errors.Wrapf(runErr, "%s", a.cfg.Name)
	case StateIterationExhausted:
		a.log.Warnw("Agent hit iteration limit",
			"agent", a.cfg.Name,
			"rounds", out.Iterations,
			"tool_calls", out.ToolCalls,
		)
		return out, runErr
	}

	a.log.Verbosef(a.verbose, "Finished agent loop: agent=%s rounds=%d tool_calls=%d tokens=%d duration=%s",
		a.cfg.Name, out.Iterations, out.ToolCalls, out.Usage.TotalTokens, out.Duration)
	return out, nil
}

func (a *Agent) callModel(ctx context.Context, history, scratchpad []ai.Message) (*ai.ChatResponse, error) {
	messages := make([]ai.Message, 0, len(history)+len(scratchpad)+1)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: a.systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, scratchpad...)

	resp, err := a.provider.Chat(ctx, ai.ChatRequest{
		Model:       a.model,
		Messages:    messages,
		Tools:       []ai.ToolDefinition{a.tool.Definition()},
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return nil, errors.Wrap(err, "model call")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyResponse, "no choices")
	}
	return resp, nil
}

func (a *Agent) executeTool(ctx context.Context, call ai.ToolCall) string {
	a.log.Verbosef(a.verbose, "Invoking %s with %s", call.Name, call.Arguments)

	if a.tracker != nil {
		a.tracker.AddBreadcrumb(ctx, "tool call", "agent.tool", errors.LevelInfo, map[string]interface{}{
			"agent": a.cfg.Name,
			"tool":  call.Name,
		})
	}

	observation, err := a.tool.Execute(ctx, call)
	if err != nil {
		a.log.Warnw("Tool call failed, folding error back to model",
			"agent", a.cfg.Name,
			"tool", call.Name,
			"error", err,
		)
	}
	return observation
}

func (a *Agent) recordUsage(out *Outcome) {
	if out.Usage.TotalTokens == 0 && out.Usage.PromptTokens == 0 && out.Usage.CompletionTokens == 0 {
		return
	}
	if a.usage != nil {
		out.CostUSD = a.usage.Record(a.model, out.Usage)
	}
	metrics.RecordAgentUsage(a.cfg.Type.String(), a.model,
		out.Usage.PromptTokens, out.Usage.CompletionTokens, out.CostUSD.InexactFloat64())
}
