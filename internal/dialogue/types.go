// Package dialogue produces the companion character's spoken lines. A
// template library answers most events instantly; special moments escalate
// to a language model that writes in the configured persona's voice.
package dialogue

import (
	"github.com/lumo-games/companion-gateway/internal/gateway"
)

// Personas the companion can speak as.
const (
	PersonaCheerful = "cheerful"
	PersonaCool     = "cool"
	PersonaCute     = "cute"
)

// ValidPersona reports whether the persona is a known voice.
func ValidPersona(p string) bool {
	return p == PersonaCheerful || p == PersonaCool || p == PersonaCute
}

// Request is one line-generation request. Context carries the loose event
// facts the game client sends (rarity, streaks, mvp, clutch...).
type Request struct {
	PlayerID   string         `json:"player_id"`
	PlayerName string         `json:"player_name,omitempty"`
	EventType  string         `json:"event_type"`
	Emotion    string         `json:"emotion"`
	Persona    string         `json:"persona"`
	Context    map[string]any `json:"context"`
	ForceLLM   bool           `json:"force_llm,omitempty"`
}

// persona returns the requested persona, defaulting to cheerful.
func (r *Request) persona() string {
	if ValidPersona(r.Persona) {
		return r.Persona
	}
	return PersonaCheerful
}

// Line is a generated dialogue line.
type Line struct {
	Dialogue string `json:"dialogue"`
	Emotion  string `json:"emotion"`
	Persona  string `json:"persona"`
}

// CacheFields implements gateway.Request. Lines depend on the event, the
// emotion, the persona, and the coarse special-situation flags; player
// identity never enters the key.
func (r *Request) CacheFields() map[string]any {
	fields := map[string]any{
		"event_type": r.EventType,
		"emotion":    r.Emotion,
		"persona":    r.persona(),
	}
	if rarity := stringField(r.Context, "rarity"); rarity != "" {
		fields["rarity"] = rarity
	}
	if bucket := gateway.BucketStreak(intField(r.Context, "win_streak")); bucket != "" {
		fields["win_streak"] = bucket
	}
	if bucket := gateway.BucketStreak(intField(r.Context, "loss_streak")); bucket != "" {
		fields["loss_streak"] = bucket
	}
	if boolField(r.Context, "mvp") {
		fields["mvp"] = true
	}
	if boolField(r.Context, "is_first_time") {
		fields["first_time"] = true
	}
	if boolField(r.Context, "clutch") {
		fields["clutch"] = true
	}
	return fields
}

// Signals implements gateway.Request.
func (r *Request) Signals() gateway.Signals {
	var factors []string
	for _, key := range []string{"mvp", "clutch", "comeback", "flawless"} {
		if boolField(r.Context, key) {
			factors = append(factors, key)
		}
	}

	counters := map[string]int{}
	for _, key := range []string{"kill_count", "level", "total_wins"} {
		if n := intField(r.Context, key); n > 0 {
			counters[key] = n
		}
	}

	return gateway.Signals{
		Force:      r.ForceLLM,
		Rarity:     stringField(r.Context, "rarity"),
		FirstTime:  boolField(r.Context, "is_first_time"),
		Counters:   counters,
		WinStreak:  intField(r.Context, "win_streak"),
		LossStreak: intField(r.Context, "loss_streak"),
		Factors:    factors,
	}
}

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
