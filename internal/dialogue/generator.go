package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/lumo-games/companion-gateway/internal/gateway"
	"github.com/lumo-games/companion-gateway/internal/llm"
)

// Completer is the slice of the LLM client the generator needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

var personaPrompts = map[string]string{
	PersonaCheerful: "You are a lively, upbeat game companion full of positive energy. You speak enthusiastically, cheer the player on, and celebrate their wins.",
	PersonaCool:     "You are a calm, analytical game mentor. You speak in short, matter-of-fact sentences and give objective feedback without exclamation.",
	PersonaCute:     "You are a sweet, gentle game companion. You speak softly with a playful '~' at the end of phrases and care about how the player feels.",
}

var eventDescriptions = map[string]string{
	"player.victory":        "the player won the match",
	"player.defeat":         "the player lost the match",
	"player.kill":           "the player eliminated an enemy",
	"player.death":          "the player was eliminated",
	"player.achievement":    "the player unlocked an achievement",
	"player.levelup":        "the player leveled up",
	"player.lootlegendary":  "the player found legendary loot",
	"player.lootepic":       "the player found epic loot",
	"player.loot":           "the player found loot",
	"player.questcomplete":  "the player completed a quest",
	"player.questfailed":    "the player failed a quest",
	"player.teamvictory":    "the player's team won together",
	"player.revived":        "the player was revived by a teammate",
	"player.savedally":      "the player saved a teammate",
	"player.betrayed":       "the player was betrayed by a teammate",
	"player.skillcombo":     "the player pulled off a skill combo",
	"player.sessionstart":   "the player started a play session",
	"player.sessionend":     "the player ended their play session",
	"player.timeout":        "the player's connection timed out",
	"player.outofresources": "the player is running low on resources",
}

// Generator is the expensive tier: a model writes a bespoke line in the
// persona's voice, informed by the player's stored memories.
type Generator struct {
	completer Completer
	maxLength int
}

// NewGenerator wraps a completion client. maxLength bounds the emitted line
// in runes; longer replies are truncated.
func NewGenerator(completer Completer, maxLength int) *Generator {
	if maxLength <= 0 {
		maxLength = 150
	}
	return &Generator{completer: completer, maxLength: maxLength}
}

// Generate asks the model for a line. An empty reply is an error so the
// gateway downgrades to the template tier.
func (g *Generator) Generate(ctx context.Context, req *Request, aux []gateway.ContextRecord) (Line, float64, error) {
	persona := req.persona()
	completion, err := g.completer.Complete(ctx, g.systemPrompt(persona), g.buildPrompt(req, aux))
	if err != nil {
		return Line{}, 0, err
	}

	text := strings.TrimSpace(strings.Trim(strings.TrimSpace(completion.Text), `"`))
	if text == "" {
		return Line{}, 0, fmt.Errorf("model returned an empty line")
	}
	if runes := []rune(text); len(runes) > g.maxLength {
		text = string(runes[:g.maxLength]) + "..."
	}

	return Line{Dialogue: text, Emotion: req.Emotion, Persona: persona}, completion.Cost, nil
}

func (g *Generator) systemPrompt(persona string) string {
	return fmt.Sprintf("%s\nReply with one short, natural line of dialogue (at most %d characters). Output the line only, with no quotes or explanation.",
		personaPrompts[persona], g.maxLength)
}

func (g *Generator) buildPrompt(req *Request, aux []gateway.ContextRecord) string {
	var b strings.Builder

	event := eventDescriptions[req.EventType]
	if event == "" {
		event = req.EventType
	}
	name := req.PlayerName
	if name == "" {
		name = "the player"
	}
	fmt.Fprintf(&b, "Situation: %s.\n", event)
	fmt.Fprintf(&b, "Player: %s\n", name)
	fmt.Fprintf(&b, "Player's mood: %s\n", req.Emotion)

	if facts := specialFacts(req.Context); len(facts) > 0 {
		fmt.Fprintf(&b, "Special circumstances: %s\n", strings.Join(facts, ", "))
	}

	if len(aux) > 0 {
		b.WriteString("Relevant memories of this player:\n")
		limit := len(aux)
		if limit > 3 {
			limit = 3
		}
		for i := 0; i < limit; i++ {
			fmt.Fprintf(&b, "%d. %s (importance %.2f)\n", i+1, aux[i].Content, aux[i].Importance)
		}
	}
	return b.String()
}

func specialFacts(context map[string]any) []string {
	var facts []string
	if rarity := stringField(context, "rarity"); rarity == "legendary" || rarity == "mythic" {
		facts = append(facts, fmt.Sprintf("%s rarity", rarity))
	}
	if streak := intField(context, "win_streak"); streak >= 5 {
		facts = append(facts, fmt.Sprintf("%d-win streak", streak))
	}
	if streak := intField(context, "loss_streak"); streak >= 5 {
		facts = append(facts, fmt.Sprintf("%d-loss streak", streak))
	}
	if boolField(context, "mvp") {
		facts = append(facts, "MVP performance")
	}
	if boolField(context, "is_first_time") {
		facts = append(facts, "first time ever")
	}
	if boolField(context, "clutch") {
		facts = append(facts, "clutch moment")
	}
	return facts
}
