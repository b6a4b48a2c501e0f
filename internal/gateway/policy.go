package gateway

// Escalation reason tags, one per trigger. Preserved in the response metadata
// even when admission later vetoes the escalation.
const (
	ReasonForced         = "force_llm"
	ReasonRarity         = "legendary_rarity"
	ReasonFirstTime      = "first_time_event"
	ReasonMilestone      = "milestone_event"
	ReasonLongStreak     = "long_streak"
	ReasonHighImportance = "high_importance_memory"
	ReasonComplexContext = "complex_context"
	ReasonLowConfidence  = "low_confidence"
)

// TriggerInput is everything a trigger may inspect: the request's signals,
// the auxiliary context records, and the cheap tier's self-assessment.
type TriggerInput struct {
	Signals    Signals
	Context    []ContextRecord
	Confidence float64
}

// Trigger inspects one independent aspect of a request and reports a reason
// when it fires. Triggers are pure functions of their input.
type Trigger func(in TriggerInput) (reason string, fired bool)

// Decision is the escalation policy's verdict. Reasons are additive; any
// single fired trigger sets ShouldEscalate.
type Decision struct {
	ShouldEscalate bool     `json:"should_escalate"`
	Reasons        []string `json:"reasons,omitempty"`
}

// PolicyConfig holds the trigger thresholds. Zero values disable the
// corresponding trigger except where noted.
type PolicyConfig struct {
	// ExceptionalRarities escalate on exact (case-insensitive at the caller's
	// discretion) rarity match.
	ExceptionalRarities []string
	// Milestones are round-number counter values worth escalating for.
	Milestones []int
	// StreakThreshold escalates win or loss streaks at or above it.
	StreakThreshold int
	// ImportanceThreshold escalates when any context record scores at or
	// above it.
	ImportanceThreshold float64
	// CompositeMinimum is how many interesting factors must be present
	// jointly before they escalate. Defaults to 2 when unset.
	CompositeMinimum int
	// ConfidenceThreshold escalates when the cheap tier reports confidence
	// strictly below it.
	ConfidenceThreshold float64
}

// Policy decides whether a request justifies the expensive tier. It is
// stateless and never touches the cache or ledger.
type Policy struct {
	triggers []Trigger
}

// NewPolicy builds a policy from the standard trigger set.
func NewPolicy(cfg PolicyConfig) *Policy {
	if cfg.CompositeMinimum <= 0 {
		cfg.CompositeMinimum = 2
	}
	return &Policy{triggers: []Trigger{
		rarityTrigger(cfg.ExceptionalRarities),
		firstTimeTrigger(),
		milestoneTrigger(cfg.Milestones),
		streakTrigger(cfg.StreakThreshold),
		importanceTrigger(cfg.ImportanceThreshold),
		compositeTrigger(cfg.CompositeMinimum),
		confidenceTrigger(cfg.ConfidenceThreshold),
	}}
}

// NewPolicyFromTriggers builds a policy from an explicit trigger list,
// mainly for tests that exercise triggers in isolation.
func NewPolicyFromTriggers(triggers ...Trigger) *Policy {
	return &Policy{triggers: triggers}
}

// Decide runs every trigger and collects the fired reasons. A forced request
// short-circuits: it escalates regardless of the remaining triggers.
func (p *Policy) Decide(in TriggerInput) Decision {
	if in.Signals.Force {
		return Decision{ShouldEscalate: true, Reasons: []string{ReasonForced}}
	}
	var reasons []string
	for _, trigger := range p.triggers {
		if reason, fired := trigger(in); fired {
			reasons = append(reasons, reason)
		}
	}
	return Decision{ShouldEscalate: len(reasons) > 0, Reasons: reasons}
}

func rarityTrigger(rarities []string) Trigger {
	set := make(map[string]struct{}, len(rarities))
	for _, r := range rarities {
		set[r] = struct{}{}
	}
	return func(in TriggerInput) (string, bool) {
		_, ok := set[in.Signals.Rarity]
		return ReasonRarity, ok
	}
}

func firstTimeTrigger() Trigger {
	return func(in TriggerInput) (string, bool) {
		return ReasonFirstTime, in.Signals.FirstTime
	}
}

func milestoneTrigger(milestones []int) Trigger {
	set := make(map[int]struct{}, len(milestones))
	for _, m := range milestones {
		set[m] = struct{}{}
	}
	return func(in TriggerInput) (string, bool) {
		for _, value := range in.Signals.Counters {
			if _, ok := set[value]; ok {
				return ReasonMilestone, true
			}
		}
		return ReasonMilestone, false
	}
}

func streakTrigger(threshold int) Trigger {
	return func(in TriggerInput) (string, bool) {
		if threshold <= 0 {
			return ReasonLongStreak, false
		}
		fired := in.Signals.WinStreak >= threshold || in.Signals.LossStreak >= threshold
		return ReasonLongStreak, fired
	}
}

func importanceTrigger(threshold float64) Trigger {
	return func(in TriggerInput) (string, bool) {
		if threshold <= 0 {
			return ReasonHighImportance, false
		}
		for _, record := range in.Context {
			if record.Importance >= threshold {
				return ReasonHighImportance, true
			}
		}
		return ReasonHighImportance, false
	}
}

func compositeTrigger(minimum int) Trigger {
	return func(in TriggerInput) (string, bool) {
		return ReasonComplexContext, len(in.Signals.Factors) >= minimum
	}
}

func confidenceTrigger(threshold float64) Trigger {
	return func(in TriggerInput) (string, bool) {
		if threshold <= 0 {
			return ReasonLowConfidence, false
		}
		return ReasonLowConfidence, in.Confidence < threshold
	}
}
