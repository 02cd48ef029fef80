package agents

// AgentType enumerates the three pipeline personas.
type AgentType string

const (
	AgentResearch AgentType = "research"
	AgentMarket   AgentType = "market"
	AgentResource AgentType = "resource"
)

// AgentTypes returns the personas in pipeline order.
func AgentTypes() []AgentType {
	return []AgentType{AgentResearch, AgentMarket, AgentResource}
}

// String returns the string representation of the agent type
func (t AgentType) String() string {
	return string(t)
}

// Valid reports whether t is a known persona.
func (t AgentType) Valid() bool {
	switch t {
	case AgentResearch, AgentMarket, AgentResource:
		return true
	default:
		return false
	}
}

// State is a step of the agent execution loop.
type State string

const (
	StateAwaitingModel      State = "awaiting_model"
	StateToolRequested      State = "tool_requested"
	StateDone               State = "done"
	StateIterationExhausted State = "iteration_exhausted"
	StateFailed             State = "failed"
)

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateIterationExhausted || s == StateFailed
}
