package llm

import "strings"

// ModelPricing holds per-million-token rates in USD.
type ModelPricing struct {
	Input  float64
	Output float64
}

// PricingTable maps model identifiers to their rates. Lookup falls back to
// prefix matching so dated model snapshots resolve to their family rates.
type PricingTable map[string]ModelPricing

// DefaultPricingTable covers the models the service is configured with in
// practice. Unknown models price at zero, which means escalations to them
// are effectively unmetered; keep the table in sync with configured models.
func DefaultPricingTable() PricingTable {
	return PricingTable{
		"claude-3-haiku":    {Input: 0.25, Output: 1.25},
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
		"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
		"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
		"gpt-4o":            {Input: 2.50, Output: 10.00},
		"gpt-4.1-mini":      {Input: 0.40, Output: 1.60},
		"mistral-small":     {Input: 0.10, Output: 0.30},
	}
}

// Lookup resolves a model to its pricing, trying an exact match first and
// then the longest matching prefix.
func (t PricingTable) Lookup(model string) (ModelPricing, bool) {
	if p, ok := t[model]; ok {
		return p, true
	}
	var (
		best    ModelPricing
		bestLen int
		found   bool
	)
	for prefix, p := range t {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = p
			bestLen = len(prefix)
			found = true
		}
	}
	return best, found
}

// Cost returns the dollar cost of a completion.
func (t PricingTable) Cost(model string, promptTokens, completionTokens int) float64 {
	p, ok := t.Lookup(model)
	if !ok {
		return 0
	}
	cost := float64(promptTokens) * p.Input / 1_000_000
	cost += float64(completionTokens) * p.Output / 1_000_000
	return cost
}
