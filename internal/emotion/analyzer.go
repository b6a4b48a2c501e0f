package emotion

import "fmt"

// Emotions the companion can express. The classifier rejects anything
// outside this set.
var Emotions = []string{
	"happy", "excited", "amazed", "proud", "satisfied",
	"cheerful", "grateful", "sad", "disappointed", "frustrated",
	"angry", "worried", "tired", "neutral",
}

var actionMap = map[string]string{
	"happy":        "smile",
	"excited":      "cheer",
	"amazed":       "surprised_jump",
	"proud":        "proud_pose",
	"satisfied":    "nod",
	"cheerful":     "wave",
	"grateful":     "thank",
	"sad":          "comfort",
	"disappointed": "sigh",
	"frustrated":   "encourage",
	"angry":        "calm_down",
	"worried":      "concerned",
	"tired":        "rest",
	"neutral":      "idle",
}

// ActionFor maps an emotion to the character animation to play.
func ActionFor(emotion string) string {
	if action, ok := actionMap[emotion]; ok {
		return action
	}
	return "idle"
}

// ValidEmotion reports whether the label is one the character can express.
func ValidEmotion(label string) bool {
	for _, e := range Emotions {
		if e == label {
			return true
		}
	}
	return false
}

// Analyzer is the rule-based emotion engine. It is deterministic, free, and
// stateless.
type Analyzer struct{}

// Analyze derives an emotion from the event type and adjusts it for the
// player's situation. Base confidence is 0.85; strong corroborating signals
// (streaks, difficulty, MVP) raise it to 0.95.
func (a *Analyzer) Analyze(req *Request) Reaction {
	base := baseReaction(req.EventType, req.Data)
	adjusted := adjustForContext(base, req)
	adjusted.Action = ActionFor(adjusted.Emotion)
	return adjusted
}

func baseReaction(eventType string, data map[string]any) Reaction {
	switch eventType {
	case "player.victory":
		return reaction("happy", 0.9, "Player won the match")
	case "player.defeat":
		return reaction("sad", 0.7, "Player lost the match")
	case "player.kill":
		killCount := intField(data, "killCount")
		switch {
		case boolField(data, "isLegendary"):
			return reaction("amazed", 1.0, "Legendary kill achievement")
		case killCount >= 2:
			return reaction("excited", 0.95, fmt.Sprintf("Multi-kill (%d)", killCount))
		default:
			return reaction("satisfied", 0.7, "Successful kill")
		}
	case "player.death":
		if streak := intField(data, "deathStreak"); streak >= 3 {
			return reaction("frustrated", 0.8, fmt.Sprintf("Death streak (%d)", streak))
		}
		return reaction("disappointed", 0.6, "Player died")
	case "player.assist":
		return reaction("satisfied", 0.6, "Assisted teammate")

	case "player.achievement":
		switch stringField(data, "rarity") {
		case "legendary":
			return reaction("amazed", 1.0, "Legendary achievement unlocked")
		case "epic":
			return reaction("excited", 0.9, "Epic achievement unlocked")
		default:
			return reaction("happy", 0.7, "Achievement unlocked")
		}
	case "player.levelup":
		level := intField(data, "level")
		if level >= 50 {
			return reaction("proud", 0.9, fmt.Sprintf("Reached level %d", level))
		}
		return reaction("happy", 0.7, fmt.Sprintf("Level up to %d", level))

	case "player.teamvictory":
		return reaction("happy", 0.85, "Team won together")
	case "player.teamdefeat":
		return reaction("disappointed", 0.6, "Team lost")
	case "player.revived":
		return reaction("grateful", 0.75, "Revived by teammate")
	case "player.savedally":
		return reaction("proud", 0.8, "Saved teammate")

	case "player.lootlegendary":
		return reaction("excited", 0.95, "Found legendary loot")
	case "player.lootepic":
		return reaction("happy", 0.8, "Found epic loot")
	case "player.loot":
		return reaction("satisfied", 0.6, "Found loot")

	case "player.questcomplete":
		return reaction("satisfied", 0.75, "Quest completed")
	case "player.questfailed":
		return reaction("disappointed", 0.65, "Quest failed")

	case "player.skillcombo":
		combo := intField(data, "comboLength")
		if combo >= 10 {
			return reaction("excited", 0.95, fmt.Sprintf("Amazing combo (%d)", combo))
		}
		return reaction("satisfied", 0.75, fmt.Sprintf("Combo executed (%d)", combo))

	case "player.betrayed":
		return reaction("angry", 0.8, "Betrayed by teammate")
	case "player.timeout":
		return reaction("frustrated", 0.7, "Connection timeout")
	case "player.outofresources":
		return reaction("worried", 0.65, "Running low on resources")

	case "player.sessionstart":
		return reaction("cheerful", 0.7, "Starting new session")
	case "player.sessionend":
		if intField(data, "duration") > 7200 {
			return reaction("tired", 0.6, "Long gaming session")
		}
		return reaction("neutral", 0.5, "Session ended")

	default:
		return reaction("neutral", 0.5, "Unknown event type")
	}
}

func adjustForContext(base Reaction, req *Request) Reaction {
	out := base
	out.Confidence = 0.85

	health := floatField(req.Context, "playerHealth", 100)
	if health < 20 {
		switch {
		case isPositive(out.Emotion):
			out.Intensity *= 0.8
			out.Reasoning += " (but health is critical)"
		case out.Emotion == "worried" || out.Emotion == "frustrated":
			out.Intensity = clamp(out.Intensity * 1.2)
			out.Reasoning += " (and health is critical)"
		}
	}

	if boolField(req.Context, "inCombat") && !isHighArousal(out.Emotion) {
		out.Intensity = clamp(out.Intensity * 1.1)
		out.Reasoning += " (in combat)"
	}

	if streak := intField(req.Data, "winStreak"); streak >= 3 && isPositive(out.Emotion) {
		out.Intensity = clamp(out.Intensity * 1.2)
		out.Reasoning += fmt.Sprintf(" (win streak: %d)", streak)
		out.Confidence = 0.95
	}
	if streak := intField(req.Data, "lossStreak"); streak >= 3 && isNegative(out.Emotion) {
		out.Intensity = clamp(out.Intensity * 1.3)
		out.Reasoning += fmt.Sprintf(" (loss streak: %d)", streak)
		out.Confidence = 0.95
	}

	if difficulty := stringField(req.Data, "difficulty"); difficulty == "hard" || difficulty == "nightmare" {
		if isPositive(out.Emotion) || out.Emotion == "proud" {
			out.Intensity = clamp(out.Intensity * 1.25)
			out.Reasoning += fmt.Sprintf(" (on %s difficulty)", difficulty)
			out.Confidence = 0.9
		}
	}

	if boolField(req.Data, "mvp") || boolField(req.Data, "isMVP") {
		if isPositive(out.Emotion) {
			out.Intensity = clamp(out.Intensity * 1.3)
			out.Reasoning += " (MVP!)"
			out.Confidence = 0.95
		}
	}

	out.Intensity = round2(out.Intensity)
	return out
}

func reaction(emotion string, intensity float64, reasoning string) Reaction {
	return Reaction{Emotion: emotion, Intensity: intensity, Reasoning: reasoning}
}

func isPositive(emotion string) bool {
	return emotion == "happy" || emotion == "excited" || emotion == "satisfied"
}

func isNegative(emotion string) bool {
	return emotion == "sad" || emotion == "frustrated" || emotion == "disappointed"
}

func isHighArousal(emotion string) bool {
	switch emotion {
	case "excited", "amazed", "angry", "frustrated":
		return true
	}
	return false
}

func clamp(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
