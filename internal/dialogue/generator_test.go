package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"

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

func TestGenerateReturnsLine(t *testing.T) {
	completer := &fakeCompleter{reply: "What a legendary moment, you earned this!", cost: 0.0006}
	gen := NewGenerator(completer, 150)

	req := &Request{EventType: "player.lootlegendary", Emotion: "excited", Persona: PersonaCheerful}
	line, cost, err := gen.Generate(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.Dialogue != "What a legendary moment, you earned this!" {
		t.Errorf("dialogue = %q", line.Dialogue)
	}
	if line.Persona != PersonaCheerful || line.Emotion != "excited" {
		t.Errorf("unexpected line: %+v", line)
	}
	if cost != 0.0006 {
		t.Errorf("cost = %v", cost)
	}
}

func TestGenerateTrimsQuotes(t *testing.T) {
	completer := &fakeCompleter{reply: "  \"Nice win!\"  "}
	line, _, err := NewGenerator(completer, 150).Generate(context.Background(),
		&Request{EventType: "player.victory", Emotion: "happy"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if line.Dialogue != "Nice win!" {
		t.Errorf("dialogue = %q", line.Dialogue)
	}
}

func TestGenerateTruncatesLongReplies(t *testing.T) {
	completer := &fakeCompleter{reply: strings.Repeat("a", 400)}
	line, _, err := NewGenerator(completer, 150).Generate(context.Background(),
		&Request{EventType: "player.victory", Emotion: "happy"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len([]rune(line.Dialogue)) != 153 {
		t.Errorf("length = %d, want 150 plus ellipsis", len([]rune(line.Dialogue)))
	}
	if !strings.HasSuffix(line.Dialogue, "...") {
		t.Error("truncated line should end with an ellipsis")
	}
}

func TestGenerateEmptyReplyIsError(t *testing.T) {
	completer := &fakeCompleter{reply: "   "}
	_, _, err := NewGenerator(completer, 150).Generate(context.Background(),
		&Request{EventType: "player.victory", Emotion: "happy"}, nil)
	if err == nil {
		t.Fatal("expected error for empty reply")
	}
}

func TestGeneratePropagatesError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("provider down")}
	_, _, err := NewGenerator(completer, 150).Generate(context.Background(),
		&Request{EventType: "player.victory", Emotion: "happy"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestGeneratePromptContents(t *testing.T) {
	completer := &fakeCompleter{reply: "line"}
	gen := NewGenerator(completer, 150)

	req := &Request{
		EventType:  "player.victory",
		Emotion:    "excited",
		Persona:    PersonaCute,
		PlayerName: "Rin",
		Context: map[string]any{
			"rarity":     "legendary",
			"win_streak": float64(7),
			"mvp":        true,
		},
	}
	aux := []gateway.ContextRecord{
		{Content: "Beat the final boss last week", Importance: 0.92},
		{Content: "Prefers stealth builds", Importance: 0.4},
	}
	if _, _, err := gen.Generate(context.Background(), req, aux); err != nil {
		t.Fatal(err)
	}

	prompt := completer.users[0]
	for _, want := range []string{
		"the player won the match",
		"Rin",
		"excited",
		"legendary rarity",
		"7-win streak",
		"MVP performance",
		"Beat the final boss last week",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if !strings.Contains(completer.systems[0], "sweet, gentle") {
		t.Errorf("system prompt should carry the cute persona:\n%s", completer.systems[0])
	}
}

func TestGeneratePromptCapsMemories(t *testing.T) {
	completer := &fakeCompleter{reply: "line"}
	gen := NewGenerator(completer, 150)

	aux := []gateway.ContextRecord{
		{Content: "memory one"}, {Content: "memory two"},
		{Content: "memory three"}, {Content: "memory four"},
	}
	req := &Request{EventType: "player.victory", Emotion: "happy"}
	if _, _, err := gen.Generate(context.Background(), req, aux); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(completer.users[0], "memory four") {
		t.Error("prompt should include at most three memories")
	}
}
