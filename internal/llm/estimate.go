package llm

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator predicts the dollar cost of a completion before it is sent, so
// admission can be decided without spending anything. Prompt tokens come from
// tiktoken; output tokens are assumed to hit the configured cap, which makes
// the estimate a ceiling rather than a guess.
type Estimator struct {
	model     string
	maxTokens int
	pricing   PricingTable

	once  sync.Once
	codec tokenizer.Codec
}

// NewEstimator creates an estimator for the given model. maxTokens is the
// completion cap used as the assumed output length.
func NewEstimator(model string, maxTokens int, pricing PricingTable) *Estimator {
	if pricing == nil {
		pricing = DefaultPricingTable()
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &Estimator{model: model, maxTokens: maxTokens, pricing: pricing}
}

// EstimateCost returns the ceiling dollar cost of completing the given
// system+user prompt pair.
func (e *Estimator) EstimateCost(systemPrompt, userPrompt string) float64 {
	prompt := e.countTokens(systemPrompt) + e.countTokens(userPrompt)
	// Per-message overhead (role and formatting tokens) plus assistant
	// priming, per OpenAI's chat token accounting.
	prompt += 2*4 + 3
	return e.pricing.Cost(e.model, prompt, e.maxTokens)
}

func (e *Estimator) countTokens(text string) int {
	if text == "" {
		return 0
	}
	if codec := e.getCodec(); codec != nil {
		if ids, _, err := codec.Encode(text); err == nil {
			return len(ids)
		}
	}
	// ~4 chars per token is a rough approximation for most models.
	return (len(text) + 3) / 4
}

func (e *Estimator) getCodec() tokenizer.Codec {
	e.once.Do(func() {
		codec, err := tokenizer.Get(modelEncoding(e.model))
		if err != nil {
			return
		}
		e.codec = codec
	})
	return e.codec
}

// modelEncoding picks the tiktoken encoding for a model. Non-OpenAI models
// use Cl100kBase, which is close enough for a pre-admission ceiling.
func modelEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
