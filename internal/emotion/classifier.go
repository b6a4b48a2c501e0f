package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lumo-games/companion-gateway/internal/gateway"
	"github.com/lumo-games/companion-gateway/internal/llm"
)

// Completer is the slice of the LLM client the classifier needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (llm.Completion, error)
}

const classifierSystemPrompt = `You are an emotion analyst for a game companion character.
Given a game event and the player's situation, pick the companion's most
likely emotional reaction. Reply with a single JSON object and nothing else:
{"emotion": "<label>", "intensity": <0.0-1.0>, "reasoning": "<one short sentence>", "confidence": <0.0-1.0>}
The emotion must be one of: %s.`

// Classifier is the expensive tier: it asks a language model for the
// reaction when the rule table is not confident enough.
type Classifier struct {
	completer Completer
}

// NewClassifier wraps a completion client.
func NewClassifier(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify asks the model for a reaction. Invalid labels fall back to
// neutral rather than failing; a malformed reply is an error so the gateway
// downgrades to the rule tier.
func (c *Classifier) Classify(ctx context.Context, req *Request, aux []gateway.ContextRecord) (Reaction, float64, error) {
	system := fmt.Sprintf(classifierSystemPrompt, strings.Join(Emotions, ", "))
	user := buildClassifierPrompt(req, aux)

	completion, err := c.completer.Complete(ctx, system, user)
	if err != nil {
		return Reaction{}, 0, err
	}

	reaction, err := parseReaction(completion.Text)
	if err != nil {
		return Reaction{}, 0, fmt.Errorf("parse classifier reply: %w", err)
	}
	reaction.Action = ActionFor(reaction.Emotion)
	return reaction, completion.Cost, nil
}

func buildClassifierPrompt(req *Request, aux []gateway.ContextRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", req.EventType)
	writeFields(&b, "Event data", req.Data)
	writeFields(&b, "Player context", req.Context)
	if len(aux) > 0 {
		b.WriteString("Recent memories:\n")
		for _, record := range aux {
			fmt.Fprintf(&b, "  - %s (importance %.2f)\n", record.Content, record.Importance)
		}
	}
	return b.String()
}

func writeFields(b *strings.Builder, label string, fields map[string]any) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "%s:\n", label)
	for _, k := range keys {
		fmt.Fprintf(b, "  - %s: %v\n", k, fields[k])
	}
}

func parseReaction(text string) (Reaction, error) {
	var parsed struct {
		Emotion    string  `json:"emotion"`
		Intensity  float64 `json:"intensity"`
		Reasoning  string  `json:"reasoning"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return Reaction{}, err
	}

	emotion := parsed.Emotion
	if !ValidEmotion(emotion) {
		emotion = "neutral"
	}
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "Model analysis"
	}
	return Reaction{
		Emotion:    emotion,
		Intensity:  round2(clampRange(parsed.Intensity, 0.5)),
		Reasoning:  reasoning,
		Confidence: round2(clampRange(parsed.Confidence, 0.7)),
	}, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

func clampRange(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
