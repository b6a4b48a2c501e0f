// Package llm wraps the metered inference provider behind the expensive
// tier. It is backed by github.com/mozilla-ai/any-llm-go so the same client
// serves OpenAI, Anthropic, Mistral, Groq, or a local Ollama instance, and
// it converts token usage into dollar cost for budget accounting.
package llm

import (
	"context"
	"fmt"
	"strings"

	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	"github.com/mozilla-ai/any-llm-go/providers/openai"
)

// Config selects the backend provider and model.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// Completion is a single non-streaming model reply with its accounting.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	// Cost is the true dollar cost of this call per the pricing table.
	Cost float64
}

// Client is a thin completion client. Safe for concurrent use.
type Client struct {
	backend     anyllm.Provider
	model       string
	maxTokens   int
	temperature float64
	pricing     PricingTable
}

// NewClient creates a client for the configured provider. API keys fall back
// to the provider's environment variable when Config.APIKey is empty.
func NewClient(cfg Config, pricing PricingTable) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model must not be empty")
	}
	if pricing == nil {
		pricing = DefaultPricingTable()
	}

	var opts []anyllm.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllm.WithAPIKey(cfg.APIKey))
	}

	backend, err := createBackend(cfg.Provider, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", cfg.Provider, err)
	}

	return &Client{
		backend:     backend,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		pricing:     pricing,
	}, nil
}

func createBackend(provider string, opts ...anyllm.Option) (anyllm.Provider, error) {
	switch strings.ToLower(provider) {
	case "openai":
		return openai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, mistral, groq, ollama", provider)
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends one system+user prompt pair and returns the reply with its
// dollar cost. The caller bounds the call through ctx.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error) {
	messages := []anyllm.Message{
		{Role: anyllm.RoleSystem, Content: systemPrompt},
		{Role: anyllm.RoleUser, Content: userPrompt},
	}

	params := anyllm.CompletionParams{
		Model:    c.model,
		Messages: messages,
	}
	if c.temperature != 0 {
		t := c.temperature
		params.Temperature = &t
	}
	if c.maxTokens > 0 {
		mt := c.maxTokens
		params.MaxTokens = &mt
	}

	resp, err := c.backend.Completion(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("llm: empty choices in response")
	}

	out := Completion{Text: resp.Choices[0].Message.ContentString()}
	if resp.Usage != nil {
		out.PromptTokens = resp.Usage.PromptTokens
		out.CompletionTokens = resp.Usage.CompletionTokens
	}
	out.Cost = c.pricing.Cost(c.model, out.PromptTokens, out.CompletionTokens)
	return out, nil
}
