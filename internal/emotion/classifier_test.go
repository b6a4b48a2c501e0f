package emotion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumo-games/companion-gateway/internal/gateway"
	"github.com/lumo-games/companion-gateway/internal/llm"
)

type fakeCompleter struct {
	reply   string
	cost    float64
	err     error
	systems []string
	users   []string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error) {
	f.systems = append(f.systems, systemPrompt)
	f.users = append(f.users, userPrompt)
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.reply, Cost: f.cost}, nil
}

func TestClassifyParsesReply(t *testing.T) {
	completer := &fakeCompleter{
		reply: `{"emotion": "amazed", "intensity": 0.97, "reasoning": "First legendary drop", "confidence": 0.9}`,
		cost:  0.0004,
	}
	classifier := NewClassifier(completer)

	reaction, cost, err := classifier.Classify(context.Background(), &Request{EventType: "player.lootlegendary"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaction.Emotion != "amazed" || reaction.Action != "surprised_jump" {
		t.Errorf("unexpected reaction: %+v", reaction)
	}
	if reaction.Intensity != 0.97 {
		t.Errorf("intensity = %v", reaction.Intensity)
	}
	if cost != 0.0004 {
		t.Errorf("cost = %v", cost)
	}
}

func TestClassifyStripsMarkdownFences(t *testing.T) {
	completer := &fakeCompleter{
		reply: "```json\n{\"emotion\": \"proud\", \"intensity\": 0.8, \"reasoning\": \"ok\", \"confidence\": 0.85}\n```",
	}
	reaction, _, err := NewClassifier(completer).Classify(context.Background(), &Request{EventType: "player.levelup"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaction.Emotion != "proud" {
		t.Errorf("emotion = %q", reaction.Emotion)
	}
}

func TestClassifyInvalidLabelFallsBackToNeutral(t *testing.T) {
	completer := &fakeCompleter{
		reply: `{"emotion": "euphoric", "intensity": 0.9, "reasoning": "x", "confidence": 0.9}`,
	}
	reaction, _, err := NewClassifier(completer).Classify(context.Background(), &Request{EventType: "player.victory"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaction.Emotion != "neutral" || reaction.Action != "idle" {
		t.Errorf("unexpected reaction: %+v", reaction)
	}
}

func TestClassifyClampsRanges(t *testing.T) {
	completer := &fakeCompleter{
		reply: `{"emotion": "happy", "intensity": 3.5, "reasoning": "x", "confidence": -1}`,
	}
	reaction, _, err := NewClassifier(completer).Classify(context.Background(), &Request{EventType: "player.victory"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaction.Intensity != 1.0 {
		t.Errorf("intensity = %v, want clamped to 1.0", reaction.Intensity)
	}
	if reaction.Confidence != 0 {
		t.Errorf("confidence = %v, want clamped to 0", reaction.Confidence)
	}
}

func TestClassifyMalformedReplyIsError(t *testing.T) {
	completer := &fakeCompleter{reply: "I feel like the player is happy!"}
	_, _, err := NewClassifier(completer).Classify(context.Background(), &Request{EventType: "player.victory"}, nil)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClassifyPropagatesCompleterError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("provider down")}
	_, _, err := NewClassifier(completer).Classify(context.Background(), &Request{EventType: "player.victory"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestClassifierPromptIncludesEventAndMemories(t *testing.T) {
	completer := &fakeCompleter{
		reply: `{"emotion": "happy", "intensity": 0.8, "reasoning": "x", "confidence": 0.9}`,
	}
	aux := []gateway.ContextRecord{
		{ID: "m1", Content: "Defeated the dragon for the first time", Importance: 0.9, CreatedAt: time.Now()},
	}
	req := &Request{
		EventType: "player.victory",
		Data:      map[string]any{"rarity": "legendary"},
		Context:   map[string]any{"inCombat": true},
	}
	if _, _, err := NewClassifier(completer).Classify(context.Background(), req, aux); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := completer.users[0]
	for _, want := range []string{"player.victory", "rarity: legendary", "inCombat: true", "Defeated the dragon"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.Contains(completer.systems[0], "neutral") {
		t.Error("system prompt should list the emotion set")
	}
}
