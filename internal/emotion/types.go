// Package emotion decides how the companion character feels about a game
// event. A rule table answers most requests; ambiguous or special events
// escalate to a language model through the tiered gateway.
package emotion

import (
	"github.com/lumo-games/companion-gateway/internal/gateway"
)

// Request is one game event to react to. Data and Context arrive as loose
// JSON objects from the game client; the request knows which of their fields
// are stable enough to cache on and which signal an escalation.
type Request struct {
	PlayerID  string         `json:"player_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	Context   map[string]any `json:"context"`
	ForceLLM  bool           `json:"force_llm,omitempty"`
}

// Reaction is the companion's response to an event.
type Reaction struct {
	Emotion    string  `json:"emotion"`
	Intensity  float64 `json:"intensity"`
	Action     string  `json:"action"`
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}

// factorKeys are the boolean event flags that count toward the
// complex-context trigger. isMVP is normalized to mvp.
var factorKeys = []string{"mvp", "clutch", "comeback", "flawless", "overtime"}

// CacheFields implements gateway.Request. Raw counters and percentages are
// bucketed so near-identical events share a cache line; volatile fields
// (player ID, timestamps) never appear.
func (r *Request) CacheFields() map[string]any {
	fields := map[string]any{"event_type": r.EventType}

	if rarity := stringField(r.Data, "rarity"); rarity != "" {
		fields["rarity"] = rarity
	}
	if difficulty := stringField(r.Data, "difficulty"); difficulty != "" {
		fields["difficulty"] = difficulty
	}
	if boolField(r.Data, "mvp") || boolField(r.Data, "isMVP") {
		fields["mvp"] = true
	}
	if bucket := gateway.BucketCount(intField(r.Data, "killCount")); bucket != "" {
		fields["kill_count"] = bucket
	}
	if bucket := gateway.BucketStreak(intField(r.Data, "winStreak")); bucket != "" {
		fields["win_streak"] = bucket
	}
	if bucket := gateway.BucketStreak(intField(r.Data, "lossStreak")); bucket != "" {
		fields["loss_streak"] = bucket
	}

	health := floatField(r.Context, "playerHealth", 100)
	if bucket := gateway.BucketPercent(health); bucket != "normal" {
		fields["health"] = bucket
	}
	if boolField(r.Context, "inCombat") {
		fields["in_combat"] = true
	}

	return fields
}

// Signals implements gateway.Request.
func (r *Request) Signals() gateway.Signals {
	counters := map[string]int{}
	for _, key := range []string{"killCount", "level", "comboLength", "questCount"} {
		if n := intField(r.Data, key); n > 0 {
			counters[key] = n
		}
	}

	var factors []string
	if boolField(r.Data, "mvp") || boolField(r.Data, "isMVP") {
		factors = append(factors, "mvp")
	}
	for _, key := range factorKeys[1:] {
		if boolField(r.Data, key) {
			factors = append(factors, key)
		}
	}

	return gateway.Signals{
		Force:      r.ForceLLM,
		Rarity:     stringField(r.Data, "rarity"),
		FirstTime:  boolField(r.Data, "firstTime") || boolField(r.Data, "first_time"),
		Counters:   counters,
		WinStreak:  intField(r.Data, "winStreak"),
		LossStreak: intField(r.Data, "lossStreak"),
		Factors:    factors,
	}
}

// JSON numbers decode to float64; the game's Unreal SDK also sends proper
// ints through some paths, so both are accepted.
func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func floatField(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	b, ok := m[key].(bool)
	return ok && b
}
