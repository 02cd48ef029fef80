package ai

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider describes a model endpoint independently of how it is called.
type Provider interface {
	Name() string

	// GetModel returns metadata for a specific model.
	GetModel(ctx context.Context, model string) (ModelInfo, error)

	// ListModels returns the models known to the provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo describes the capabilities and pricing of a model.
type ModelInfo struct {
	Provider        ProviderName
	Name            string          // Provider-specific model identifier
	Family          string          // Family name (e.g. "gpt-4o")
	ContextWindow   int             // Maximum context length in tokens
	InputCostPer1K  decimal.Decimal // USD per 1K input tokens
	OutputCostPer1K decimal.Decimal // USD per 1K output tokens
	SupportsTools   bool
}

// Cost prices a usage record against this model.
func (m ModelInfo) Cost(usage Usage) decimal.Decimal {
	thousand := decimal.NewFromInt(1000)
	in := decimal.NewFromInt(int64(usage.PromptTokens)).Div(thousand).Mul(m.InputCostPer1K)
	out := decimal.NewFromInt(int64(usage.CompletionTokens)).Div(thousand).Mul(m.OutputCostPer1K)
	return in.Add(out)
}
