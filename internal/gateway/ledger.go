package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Method identifies which tier produced a response.
type Method string

const (
	MethodCheap     Method = "cheap"
	MethodExpensive Method = "expensive"
	MethodCached    Method = "cached"
)

// DateLayout is the ledger's day-bucket key format. Days are UTC.
const DateLayout = "2006-01-02"

// BudgetDay holds the counters for one calendar day. Once the ledger rolls
// past a date, its BudgetDay is immutable history.
type BudgetDay struct {
	Date              string  `json:"date" db:"date"`
	TotalRequests     int     `json:"total_requests" db:"total_requests"`
	CheapRequests     int     `json:"cheap_requests" db:"cheap_requests"`
	ExpensiveRequests int     `json:"expensive_requests" db:"expensive_requests"`
	CachedRequests    int     `json:"cached_requests" db:"cached_requests"`
	TotalCost         float64 `json:"total_cost" db:"total_cost"`
	TotalLatencyMs    float64 `json:"total_latency_ms" db:"total_latency_ms"`
}

// AverageCost is derived on read so it can never drift from the counters.
func (d BudgetDay) AverageCost() float64 {
	if d.TotalRequests == 0 {
		return 0
	}
	return d.TotalCost / float64(d.TotalRequests)
}

func (d BudgetDay) AverageLatencyMs() float64 {
	if d.TotalRequests == 0 {
		return 0
	}
	return d.TotalLatencyMs / float64(d.TotalRequests)
}

// EscalationRate is expensive requests over non-cached requests.
func (d BudgetDay) EscalationRate() float64 {
	nonCached := d.TotalRequests - d.CachedRequests
	if nonCached <= 0 {
		return 0
	}
	return float64(d.ExpensiveRequests) / float64(nonCached)
}

// Admission is the result of a budget check. It never mutates ledger state.
type Admission struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// BudgetStatus is the introspection view of the ledger's current day.
type BudgetStatus struct {
	Date              string  `json:"date"`
	DailyBudget       float64 `json:"daily_budget"`
	DailyCost         float64 `json:"daily_cost"`
	Remaining         float64 `json:"remaining"`
	EscalationRate    float64 `json:"escalation_rate"`
	TargetRate        float64 `json:"target_escalation_rate"`
	TotalRequests     int     `json:"total_requests"`
	CheapRequests     int     `json:"cheap_requests"`
	ExpensiveRequests int     `json:"expensive_requests"`
	CachedRequests    int     `json:"cached_requests"`
	AverageCost       float64 `json:"average_cost"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
}

// DayStore persists budget days so spend survives a restart. Implementations
// must tolerate being called from multiple goroutines.
type DayStore interface {
	SaveDay(ctx context.Context, day BudgetDay) error
	LoadDay(ctx context.Context, date string) (BudgetDay, bool, error)
}

// LedgerConfig holds the admission-control knobs.
type LedgerConfig struct {
	// DailyBudget is the rolling per-day spend cap in dollars.
	DailyBudget float64
	// PerRequestCap rejects any single escalation estimated above it.
	PerRequestCap float64
	// TargetRate is the intended share of non-cached requests served by the
	// expensive tier. Admission denies once the observed rate exceeds
	// TargetRate * RateTolerance.
	TargetRate    float64
	RateTolerance float64
	// HistoryDays bounds how many closed days are retained in memory.
	HistoryDays int
	// FailOpen controls admission while the ledger has no view of today's
	// spend because the backing store failed to restore. The default (false)
	// fails closed: escalation is denied until a write succeeds.
	FailOpen bool
}

// Ledger tracks per-day spend and request counts and gates escalation.
// All counter updates happen under one mutex so Status never observes a
// torn read, and no lock is held across any I/O.
type Ledger struct {
	mu       sync.Mutex
	cfg      LedgerConfig
	clock    Clock
	logger   *slog.Logger
	store    DayStore // may be nil
	current  BudgetDay
	history  []BudgetDay // most recent first, excludes current
	degraded bool
}

// NewLedger creates a ledger starting an empty bucket for today.
func NewLedger(cfg LedgerConfig, clock Clock, logger *slog.Logger) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RateTolerance <= 0 {
		cfg.RateTolerance = 1.5
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 7
	}
	return &Ledger{
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		current: BudgetDay{Date: clock.Now().UTC().Format(DateLayout)},
	}
}

// WithStore attaches a durable day store and restores today's counters from
// it. A restore failure leaves the ledger degraded; see LedgerConfig.FailOpen.
func (l *Ledger) WithStore(ctx context.Context, store DayStore) *Ledger {
	l.mu.Lock()
	date := l.current.Date
	l.mu.Unlock()

	day, found, err := store.LoadDay(ctx, date)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.store = store
	if err != nil {
		l.degraded = true
		l.logger.Error("budget store restore failed",
			slog.String("date", date),
			slog.Bool("fail_open", l.cfg.FailOpen),
			slog.String("error", err.Error()))
		return l
	}
	if found && day.Date == l.current.Date {
		l.current = day
		l.logger.Info("budget restored from store",
			slog.String("date", day.Date),
			slog.Float64("total_cost", day.TotalCost),
			slog.Int("total_requests", day.TotalRequests))
	}
	return l
}

// rollover advances the current day bucket if the calendar day changed.
// Must be called with l.mu held. Checked on every access rather than on a
// background timer so the invariant holds regardless of scheduling.
func (l *Ledger) rollover() {
	date := l.clock.Now().UTC().Format(DateLayout)
	if date == l.current.Date {
		return
	}
	l.history = append([]BudgetDay{l.current}, l.history...)
	if len(l.history) > l.cfg.HistoryDays {
		l.history = l.history[:l.cfg.HistoryDays]
	}
	l.current = BudgetDay{Date: date}
}

// CanEscalate is a pure admission check against current ledger state.
// Denial is monotone in the estimate: a higher estimate can never be
// admitted when a lower one was denied at the same state.
func (l *Ledger) CanEscalate(estimatedCost float64) Admission {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if l.degraded && !l.cfg.FailOpen {
		return Admission{Reason: "budget state unavailable (failing closed)"}
	}
	if l.cfg.PerRequestCap > 0 && estimatedCost > l.cfg.PerRequestCap {
		return Admission{Reason: fmt.Sprintf("estimated cost $%.4f exceeds per-request cap $%.4f", estimatedCost, l.cfg.PerRequestCap)}
	}
	if l.current.TotalCost+estimatedCost > l.cfg.DailyBudget {
		return Admission{Reason: fmt.Sprintf("daily budget exhausted ($%.2f of $%.2f spent)", l.current.TotalCost, l.cfg.DailyBudget)}
	}
	if l.cfg.TargetRate > 0 {
		rate := l.current.EscalationRate()
		if rate > l.cfg.TargetRate*l.cfg.RateTolerance {
			return Admission{Reason: fmt.Sprintf("escalation rate %.1f%% above target %.1f%%", rate*100, l.cfg.TargetRate*100)}
		}
	}
	return Admission{Allowed: true, Reason: "ok"}
}

// Record is the only ledger mutator. The durable write, if any, happens
// outside the lock and its failure is logged, never surfaced.
func (l *Ledger) Record(ctx context.Context, method Method, cost float64, latency time.Duration) {
	l.mu.Lock()
	l.rollover()

	l.current.TotalRequests++
	l.current.TotalCost += cost
	l.current.TotalLatencyMs += float64(latency.Microseconds()) / 1000
	switch method {
	case MethodCheap:
		l.current.CheapRequests++
	case MethodExpensive:
		l.current.ExpensiveRequests++
	case MethodCached:
		l.current.CachedRequests++
	}
	snapshot := l.current
	store := l.store
	l.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.SaveDay(ctx, snapshot); err != nil {
		l.logger.Warn("budget store write failed",
			slog.String("date", snapshot.Date),
			slog.String("error", err.Error()))
		return
	}
	l.mu.Lock()
	l.degraded = false
	l.mu.Unlock()
}

// Status returns the current day's derived view.
func (l *Ledger) Status() BudgetStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	day := l.current
	remaining := l.cfg.DailyBudget - day.TotalCost
	if remaining < 0 {
		remaining = 0
	}
	return BudgetStatus{
		Date:              day.Date,
		DailyBudget:       l.cfg.DailyBudget,
		DailyCost:         day.TotalCost,
		Remaining:         remaining,
		EscalationRate:    day.EscalationRate(),
		TargetRate:        l.cfg.TargetRate,
		TotalRequests:     day.TotalRequests,
		CheapRequests:     day.CheapRequests,
		ExpensiveRequests: day.ExpensiveRequests,
		CachedRequests:    day.CachedRequests,
		AverageCost:       day.AverageCost(),
		AverageLatencyMs:  day.AverageLatencyMs(),
	}
}

// History returns the retained closed days, most recent first.
func (l *Ledger) History() []BudgetDay {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	out := make([]BudgetDay, len(l.history))
	copy(out, l.history)
	return out
}
