package dialogue

import (
	"math/rand"
	"sync"
)

type templateKey struct {
	event   string
	emotion string
	persona string
}

// Confidence levels reported by template selection. An exact hit needs no
// model; the emergency fallback is weak enough to trip the low-confidence
// escalation trigger.
const (
	confidenceExact    = 1.0
	confidenceFallback = 0.9
	confidenceGeneric  = 0.3
)

// emergencyLines is the last-resort line per persona when no template fits.
var emergencyLines = map[string]string{
	PersonaCheerful: "Let's go!",
	PersonaCool:     "Continue.",
	PersonaCute:     "Let's do our best~",
}

// TemplateLibrary picks a pre-written line for (event, emotion, persona).
// Selection is random among the variants so repeated identical events do not
// read identically. Safe for concurrent use.
type TemplateLibrary struct {
	mu    sync.Mutex
	rng   *rand.Rand
	table map[templateKey][]string
}

// NewTemplateLibrary builds the built-in English library.
func NewTemplateLibrary(seed int64) *TemplateLibrary {
	return &TemplateLibrary{
		rng:   rand.New(rand.NewSource(seed)),
		table: builtinTemplates(),
	}
}

// Select returns a line and the confidence of the match. Lookup order:
// exact, then the cheerful persona, then the neutral emotion, then neutral
// cheerful, then the per-persona emergency line.
func (l *TemplateLibrary) Select(event, emotion, persona string) (string, float64) {
	keys := []struct {
		key        templateKey
		confidence float64
	}{
		{templateKey{event, emotion, persona}, confidenceExact},
		{templateKey{event, emotion, PersonaCheerful}, confidenceFallback},
		{templateKey{event, "neutral", persona}, confidenceFallback},
		{templateKey{event, "neutral", PersonaCheerful}, confidenceFallback},
	}
	for _, candidate := range keys {
		if variants, ok := l.table[candidate.key]; ok && len(variants) > 0 {
			return l.pick(variants), candidate.confidence
		}
	}

	line, ok := emergencyLines[persona]
	if !ok {
		line = emergencyLines[PersonaCheerful]
	}
	return line, confidenceGeneric
}

// Has reports whether an exact template exists.
func (l *TemplateLibrary) Has(event, emotion, persona string) bool {
	_, ok := l.table[templateKey{event, emotion, persona}]
	return ok
}

func (l *TemplateLibrary) pick(variants []string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return variants[l.rng.Intn(len(variants))]
}

func builtinTemplates() map[templateKey][]string {
	return map[templateKey][]string{
		// Victory
		{"player.victory", "happy", PersonaCheerful}: {
			"Awesome! You won!",
			"Wow! That was an amazing match!",
			"Victory! Well done!",
			"You did it! That was incredible!",
			"What a great win!",
		},
		{"player.victory", "excited", PersonaCheerful}: {
			"That was AMAZING!! Total domination!",
			"WOW! Those plays were absolutely insane!",
			"Unstoppable!! You're on fire!",
			"What an epic victory!!",
		},
		{"player.victory", "proud", PersonaCheerful}: {
			"I'm so proud of you!",
			"You totally earned that win!",
			"That's the result of all your hard work!",
		},
		{"player.victory", "happy", PersonaCool}: {
			"Nice. You won.",
			"Victory. As expected.",
			"Well played.",
			"Solid performance.",
		},
		{"player.victory", "excited", PersonaCool}: {
			"Impressive execution.",
			"Flawless victory.",
			"Dominant performance.",
		},
		{"player.victory", "proud", PersonaCool}: {
			"Worthy of respect.",
			"You've proven yourself.",
		},
		{"player.victory", "happy", PersonaCute}: {
			"Yay~ We won! You're amazing!",
			"Wow~ I'm so happy! We did it!",
			"So cool~ You're the best!",
		},
		{"player.victory", "excited", PersonaCute}: {
			"OMG OMG!! That was so cool!!",
			"You're super strong~! Amazing!",
			"So exciting~! You crushed them!",
		},
		{"player.victory", "proud", PersonaCute}: {
			"I knew you could do it~!",
			"You're my hero~!",
		},
		{"player.victory", "neutral", PersonaCheerful}: {
			"You won! Nice job!",
		},

		// Defeat
		{"player.defeat", "sad", PersonaCheerful}: {
			"No worries, you'll get them next time!",
			"Hey, we all have bad games. Let's bounce back!",
			"That's okay! Every loss is a lesson!",
		},
		{"player.defeat", "disappointed", PersonaCheerful}: {
			"You played well, just wasn't meant to be!",
			"Don't worry, we'll come back stronger!",
		},
		{"player.defeat", "frustrated", PersonaCheerful}: {
			"I know it's frustrating, but stay positive!",
			"Hey, even the pros lose sometimes!",
		},
		{"player.defeat", "sad", PersonaCool}: {
			"Lost. Analyze what went wrong.",
			"Not this time. Review and improve.",
			"Defeat. Learn from it.",
		},
		{"player.defeat", "disappointed", PersonaCool}: {
			"Room for improvement identified.",
			"They were better. That's data.",
		},
		{"player.defeat", "frustrated", PersonaCool}: {
			"Channel that frustration into practice.",
			"Keep your composure.",
		},
		{"player.defeat", "sad", PersonaCute}: {
			"Aww... it's okay~ We'll win next time!",
			"Don't be sad~ You did great!",
			"Cheer up~ I'm here for you!",
		},
		{"player.defeat", "disappointed", PersonaCute}: {
			"You tried so hard... I'm proud of you~",
			"It's okay~ Every loss helps us grow~",
		},
		{"player.defeat", "frustrated", PersonaCute}: {
			"Hey hey~ Take a deep breath~",
			"Don't give up~ I believe in you~",
		},
		{"player.defeat", "neutral", PersonaCheerful}: {
			"Better luck next time!",
		},

		// Kills and deaths
		{"player.kill", "satisfied", PersonaCheerful}: {
			"Nice elimination!",
			"Great kill!",
			"Got 'em!",
		},
		{"player.kill", "excited", PersonaCheerful}: {
			"What a play!!",
			"Incredible kill!",
		},
		{"player.kill", "satisfied", PersonaCool}: {
			"Clean execution.",
			"Eliminated.",
		},
		{"player.kill", "excited", PersonaCool}: {
			"Excellent takedown.",
		},
		{"player.kill", "satisfied", PersonaCute}: {
			"Nice one~!",
			"You got them~!",
		},
		{"player.kill", "excited", PersonaCute}: {
			"So cool~!!",
			"Amazing~!",
		},
		{"player.kill", "neutral", PersonaCheerful}: {
			"Got them!",
		},
		{"player.death", "disappointed", PersonaCheerful}: {
			"Ouch! Respawn and get back in there!",
			"No worries, next life you'll get them!",
		},
		{"player.death", "frustrated", PersonaCheerful}: {
			"Hey, it's all part of the game!",
			"Shake it off and respawn!",
		},
		{"player.death", "disappointed", PersonaCool}: {
			"Eliminated. Respawn.",
		},
		{"player.death", "frustrated", PersonaCool}: {
			"Happens. Stay focused.",
		},
		{"player.death", "disappointed", PersonaCute}: {
			"Oh no~ It's okay though!",
			"Aww~ Next time for sure~!",
		},
		{"player.death", "frustrated", PersonaCute}: {
			"Don't worry~ You'll get them~!",
		},

		// Achievements and progression
		{"player.achievement", "excited", PersonaCheerful}: {
			"Woohoo! Achievement unlocked!!",
			"Amazing! You earned it!",
			"That's a big one! Well done!",
		},
		{"player.achievement", "proud", PersonaCheerful}: {
			"You really deserve this achievement!",
			"All that hard work paid off!",
		},
		{"player.achievement", "excited", PersonaCool}: {
			"Achievement unlocked. Impressive.",
			"Well earned.",
		},
		{"player.achievement", "proud", PersonaCool}: {
			"Respectable achievement.",
		},
		{"player.achievement", "excited", PersonaCute}: {
			"Yay~ Achievement!! So proud of you~!",
			"Wow~! You got it! Amazing~!",
		},
		{"player.achievement", "proud", PersonaCute}: {
			"I knew you could do it~!",
		},
		{"player.levelup", "happy", PersonaCheerful}: {
			"Level up! You're getting stronger!",
			"Congratulations on leveling up!",
		},
		{"player.levelup", "excited", PersonaCheerful}: {
			"LEVEL UP!! That's awesome!",
		},
		{"player.levelup", "happy", PersonaCool}: {
			"Level up. Progress.",
		},
		{"player.levelup", "excited", PersonaCool}: {
			"Another milestone reached.",
		},
		{"player.levelup", "happy", PersonaCute}: {
			"Level up~! Yay~!",
		},
		{"player.levelup", "excited", PersonaCute}: {
			"Wow~ Level up!! So exciting~!",
		},

		// Loot
		{"player.loot", "happy", PersonaCheerful}: {
			"Nice loot!",
			"Ooh, good find!",
		},
		{"player.loot", "excited", PersonaCheerful}: {
			"Wow! That's awesome loot!",
			"Jackpot! Great drop!",
		},
		{"player.loot", "happy", PersonaCool}: {
			"Loot acquired.",
		},
		{"player.loot", "excited", PersonaCool}: {
			"Rare find.",
		},
		{"player.loot", "happy", PersonaCute}: {
			"Ooh~ Shiny~!",
		},
		{"player.loot", "excited", PersonaCute}: {
			"Wowww~ Amazing loot~!",
			"So lucky~!",
		},

		// Sessions
		{"player.sessionstart", "cheerful", PersonaCheerful}: {
			"Welcome back! Ready to play?",
			"Hey! Great to see you!",
			"Let's do this! Time to play!",
		},
		{"player.sessionstart", "cheerful", PersonaCool}: {
			"You're back. Let's begin.",
			"Welcome. Ready when you are.",
		},
		{"player.sessionstart", "cheerful", PersonaCute}: {
			"Yay~ You're here~!",
			"Welcome back~! Missed you~!",
		},
		{"player.sessionend", "neutral", PersonaCheerful}: {
			"Good session! See you next time!",
			"Nice playing with you! Come back soon!",
		},
		{"player.sessionend", "neutral", PersonaCool}: {
			"Session end. See you.",
		},
		{"player.sessionend", "neutral", PersonaCute}: {
			"Bye bye~! Come back soon~!",
		},
	}
}
