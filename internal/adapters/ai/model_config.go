package ai

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// ModelUsage is the accumulated consumption of one model.
type ModelUsage struct {
	Model        string
	Calls        int64
	InputTokens  int64
	OutputTokens int64
	CostUSD      decimal.Decimal
}

// UsageTracker accumulates token usage and cost per model for the process lifetime.
type UsageTracker struct {
	mu    sync.Mutex
	usage map[string]*ModelUsage
}

// NewUsageTracker creates a new tracker instance.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{usage: make(map[string]*ModelUsage)}
}

// Record adds one call's usage and returns the cost of that call.
// Models missing from the catalog are counted at zero cost.
func (t *UsageTracker) Record(model string, usage Usage) decimal.Decimal {
	cost := decimal.Zero
	if info, err := LookupModel(model); err == nil {
		cost = info.Cost(usage)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.usage[model]
	if !ok {
		entry = &ModelUsage{Model: model, CostUSD: decimal.Zero}
		t.usage[model] = entry
	}
	entry.Calls++
	entry.InputTokens += int64(usage.PromptTokens)
	entry.OutputTokens += int64(usage.CompletionTokens)
	entry.CostUSD = entry.CostUSD.Add(cost)

	return cost
}

// Snapshot returns a copy of the accumulated usage ordered by model name.
func (t *UsageTracker) Snapshot() []ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ModelUsage, 0, len(t.usage))
	for _, v := range t.usage {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })

	return out
}
