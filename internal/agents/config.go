package agents

import (
	"marketresearch/pkg/errors"
)

// MaxIterations caps model rounds per call. Not configurable.
const MaxIterations = 5

// IterationLimitMessage is returned when the cap is hit before any assistant text.
const IterationLimitMessage = "Agent stopped due to iteration limit or time limit."

// WebSearchToolName is the single tool every persona can call.
const WebSearchToolName = "web_search"

// AgentConfig captures the persona settings of an agent instance.
type AgentConfig struct {
	Type AgentType
	Name string

	// Template ids in the embedded registry
	SystemPromptTemplate string
	ToolDescTemplate     string
	PromptTemplate       string
	StructuredTemplate   string

	MaxIterations int
}

// DefaultAgentConfigs holds the three personas.
var DefaultAgentConfigs = map[AgentType]AgentConfig{
	AgentResearch: {
		Type:                 AgentResearch,
		Name:                 "ResearchAgent",
		SystemPromptTemplate: "agents/research",
		ToolDescTemplate:     "tools/research",
		PromptTemplate:       "prompts/research",
		StructuredTemplate:   "structured/research",
		MaxIterations:        MaxIterations,
	},
	AgentMarket: {
		Type:                 AgentMarket,
		Name:                 "MarketAgent",
		SystemPromptTemplate: "agents/market",
		ToolDescTemplate:     "tools/market",
		PromptTemplate:       "prompts/market",
		StructuredTemplate:   "structured/market",
		MaxIterations:        MaxIterations,
	},
	AgentResource: {
		Type:                 AgentResource,
		Name:                 "ResourceAgent",
		SystemPromptTemplate: "agents/resource",
		ToolDescTemplate:     "tools/resource",
		PromptTemplate:       "prompts/resource",
		StructuredTemplate:   "structured/resource",
		MaxIterations:        MaxIterations,
	},
}

// ConfigFor returns the persona config for t.
func ConfigFor(t AgentType) (AgentConfig, error) {
	cfg, ok := DefaultAgentConfigs[t]
	if !ok {
		return AgentConfig{}, errors.Wrapf(errors.ErrInvalidInput, "unknown agent type %q", t)
	}
	return cfg, nil
}
