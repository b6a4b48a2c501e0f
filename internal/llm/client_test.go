package llm

import "testing"

func TestNewClientEmptyModel(t *testing.T) {
	_, err := NewClient(Config{Provider: "openai"}, nil)
	if err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "fakecloud", Model: "some-model", APIKey: "dummy"}, nil)
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestNewClientOpenAI(t *testing.T) {
	c, err := NewClient(Config{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Model() != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", c.Model())
	}
	if c.pricing == nil {
		t.Error("expected default pricing table")
	}
}

func TestNewClientOllamaNoKey(t *testing.T) {
	c, err := NewClient(Config{Provider: "ollama", Model: "llama3"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestNewClientProviderCaseInsensitive(t *testing.T) {
	_, err := NewClient(Config{Provider: "Anthropic", Model: "claude-3-5-haiku-latest", APIKey: "sk-ant-test"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
