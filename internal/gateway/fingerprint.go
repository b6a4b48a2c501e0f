package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Request is the view of a service request the gateway needs.
// Implementations own the mapping from their wire types to the two views.
type Request interface {
	// CacheFields returns the stable, already-bucketed fields that determine
	// the answer. Volatile fields (free-form IDs, timestamps, raw counters)
	// must be omitted or bucketed before they appear here. Requests whose
	// CacheFields are equal share a cache line.
	CacheFields() map[string]any

	// Signals returns the escalation-relevant view of the request.
	Signals() Signals
}

// Signals is the normalized set of fields the escalation policy inspects.
type Signals struct {
	// Force requests the expensive tier unconditionally (testing hook).
	Force bool

	// Rarity is a categorical tier tag such as "rare" or "legendary".
	Rarity string

	// FirstTime marks the first occurrence of this event for the player.
	FirstTime bool

	// Counters holds cumulative counts (kills, wins, level) checked against
	// the configured milestone values.
	Counters map[string]int

	WinStreak  int
	LossStreak int

	// Factors lists the boolean "interesting" flags present on the request
	// (mvp, clutch, comeback, ...). No single factor escalates on its own.
	Factors []string
}

// ContextRecord is one auxiliary record attached to a request, typically a
// stored player memory retrieved from the memory service.
type ContextRecord struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Kind       string    `json:"type"`
	Emotion    string    `json:"emotion,omitempty"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Fingerprint derives the deterministic cache key for a request.
// encoding/json marshals map keys in sorted order, so the canonical form is
// order-independent without extra bookkeeping. Marshal failures cannot occur
// for the primitive field values CacheFields is documented to return; if one
// does, the raw error string is hashed so the call stays total.
func Fingerprint(r Request) string {
	canonical, err := json.Marshal(r.CacheFields())
	if err != nil {
		canonical = []byte(fmt.Sprintf("unmarshalable:%v", err))
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// BucketCount collapses a raw count into a coarse range so near-identical
// requests share a fingerprint. Zero returns "" and should be omitted.
func BucketCount(n int) string {
	switch {
	case n <= 0:
		return ""
	case n == 1:
		return "single"
	case n < 5:
		return "multi"
	default:
		return "ultra"
	}
}

// BucketPercent collapses a 0-100 value (health, charge) into a coarse range.
func BucketPercent(p float64) string {
	switch {
	case p < 20:
		return "critical"
	case p < 50:
		return "low"
	default:
		return "normal"
	}
}

// BucketStreak collapses a win/loss streak. Streaks under 3 return "" and
// should be omitted.
func BucketStreak(n int) string {
	switch {
	case n < 3:
		return ""
	case n < 5:
		return "medium"
	default:
		return "high"
	}
}
