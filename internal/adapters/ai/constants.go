package ai

import "time"

// ProviderName represents an AI provider identifier
type ProviderName string

const ProviderNameOpenAI ProviderName = "openai"

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// Model name constants
const (
	ModelGPT4oMini = "gpt-4o-mini"
	ModelGPT4o     = "gpt-4o"
	ModelGPT41Mini = "gpt-4.1-mini"
)

// Request defaults, used when the caller leaves a field at its zero value
const (
	DefaultModel       = ModelGPT4oMini
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
	DefaultTimeout     = 60 * time.Second
)
