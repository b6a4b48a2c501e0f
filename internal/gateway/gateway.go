// Package gateway implements the tiered inference gateway: a cache lookup,
// a cheap deterministic computation, an escalation decision, budget
// admission, and an expensive metered computation with fallback, composed so
// the caller always receives a usable answer.
//
// The only error Evaluate can return is a cheap-tier failure. Budget
// exhaustion, cache-backend faults, and expensive-tier outages degrade the
// response to the cheap tier and are visible only through Status.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheapResult is the cheap tier's answer plus its self-assessed confidence,
// which the escalation policy may inspect.
type CheapResult[P any] struct {
	Payload    P
	Confidence float64
}

// CheapFunc is the fast, free, deterministic computation. It must not call
// the network. A CheapFunc error is the one hard failure Evaluate surfaces.
type CheapFunc[R Request, P any] func(ctx context.Context, req R) (CheapResult[P], error)

// ExpensiveResult carries the expensive tier's answer and the true dollar
// cost incurred, used for budget accounting.
type ExpensiveResult[P any] struct {
	Payload P
	Cost    float64
}

// ExpensiveFunc is the metered external computation. It must respect ctx
// cancellation; the gateway bounds it with the configured timeout.
type ExpensiveFunc[R Request, P any] func(ctx context.Context, req R, aux []ContextRecord) (ExpensiveResult[P], error)

// ContextFunc fetches auxiliary context records for a request. Failures are
// swallowed; auxiliary context is best effort.
type ContextFunc[R Request] func(ctx context.Context, req R) ([]ContextRecord, error)

// EstimateFunc predicts the dollar cost of escalating a request, fed to the
// ledger's admission check before the expensive call is made.
type EstimateFunc[R Request] func(req R) float64

// Params wires a Gateway. Cheap, Policy, Cache, and Ledger are required.
type Params[R Request, P any] struct {
	// Name labels log lines and status output for this gateway instance.
	Name string

	Cheap     CheapFunc[R, P]
	Expensive ExpensiveFunc[R, P] // nil disables escalation entirely

	FetchContext ContextFunc[R]  // optional
	Estimate     EstimateFunc[R] // optional; DefaultEstimate is used when nil

	Policy *Policy
	Cache  Cache[P]
	Ledger *Ledger

	Clock  Clock        // defaults to SystemClock
	Logger *slog.Logger // defaults to slog.Default()

	CacheTTL         time.Duration // defaults to 1h
	ExpensiveTimeout time.Duration // defaults to 5s
	DefaultEstimate  float64
}

// Result is what Evaluate hands back: the payload plus observability
// metadata. Reasons are preserved even when the escalation was vetoed or
// failed, so downgrades remain auditable.
type Result[P any] struct {
	Payload   P        `json:"payload"`
	Method    Method   `json:"method"`
	Cost      float64  `json:"cost"`
	CacheHit  bool     `json:"cache_hit"`
	LatencyMs float64  `json:"latency_ms"`
	Escalated bool     `json:"escalated"`
	Reasons   []string `json:"reasons,omitempty"`
}

// Status combines cache and budget introspection for one gateway.
type Status struct {
	Name   string       `json:"name"`
	Cache  CacheStats   `json:"cache"`
	Budget BudgetStatus `json:"budget"`
}

// Gateway orchestrates the two tiers for one request/payload type pair.
type Gateway[R Request, P any] struct {
	name         string
	cheap        CheapFunc[R, P]
	expensive    ExpensiveFunc[R, P]
	fetchContext ContextFunc[R]
	estimate     EstimateFunc[R]
	policy       *Policy
	cache        Cache[P]
	ledger       *Ledger
	clock        Clock
	logger       *slog.Logger

	cacheTTL         time.Duration
	expensiveTimeout time.Duration
	defaultEstimate  float64
}

// New validates Params and builds a Gateway.
func New[R Request, P any](p Params[R, P]) (*Gateway[R, P], error) {
	if p.Cheap == nil {
		return nil, fmt.Errorf("gateway %q: cheap computation required", p.Name)
	}
	if p.Policy == nil {
		return nil, fmt.Errorf("gateway %q: escalation policy required", p.Name)
	}
	if p.Cache == nil {
		return nil, fmt.Errorf("gateway %q: cache required", p.Name)
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("gateway %q: budget ledger required", p.Name)
	}
	if p.Clock == nil {
		p.Clock = SystemClock
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.CacheTTL <= 0 {
		p.CacheTTL = time.Hour
	}
	if p.ExpensiveTimeout <= 0 {
		p.ExpensiveTimeout = 5 * time.Second
	}
	return &Gateway[R, P]{
		name:             p.Name,
		cheap:            p.Cheap,
		expensive:        p.Expensive,
		fetchContext:     p.FetchContext,
		estimate:         p.Estimate,
		policy:           p.Policy,
		cache:            p.Cache,
		ledger:           p.Ledger,
		clock:            p.Clock,
		logger:           p.Logger,
		cacheTTL:         p.CacheTTL,
		expensiveTimeout: p.ExpensiveTimeout,
		defaultEstimate:  p.DefaultEstimate,
	}, nil
}

// Evaluate runs the per-request state machine: cache lookup, cheap
// computation, escalation decision, budget admission, expensive computation
// with fallback, cache write, ledger update.
func (g *Gateway[R, P]) Evaluate(ctx context.Context, req R) (Result[P], error) {
	start := g.clock.Now()

	fingerprint := Fingerprint(req)
	if payload, cost, found := g.cache.Get(ctx, fingerprint); found {
		elapsed := g.clock.Now().Sub(start)
		// A hit incurs no new spend; the entry's original cost is reported
		// as metadata only.
		g.ledger.Record(ctx, MethodCached, 0, elapsed)
		return Result[P]{
			Payload:   payload,
			Method:    MethodCached,
			Cost:      cost,
			CacheHit:  true,
			LatencyMs: millis(elapsed),
		}, nil
	}

	cheap, aux, err := g.computeCheap(ctx, req)
	if err != nil {
		return Result[P]{}, fmt.Errorf("cheap computation: %w", err)
	}

	decision := g.policy.Decide(TriggerInput{
		Signals:    req.Signals(),
		Context:    aux,
		Confidence: cheap.Confidence,
	})

	payload := cheap.Payload
	cost := 0.0
	method := MethodCheap

	if decision.ShouldEscalate && g.expensive != nil {
		if expensive, ok := g.tryExpensive(ctx, req, aux, decision.Reasons); ok {
			payload = expensive.Payload
			cost = expensive.Cost
			method = MethodExpensive
		}
	}

	g.cache.Set(ctx, fingerprint, payload, cost, g.cacheTTL)
	elapsed := g.clock.Now().Sub(start)
	g.ledger.Record(ctx, method, cost, elapsed)

	return Result[P]{
		Payload:   payload,
		Method:    method,
		Cost:      cost,
		LatencyMs: millis(elapsed),
		Escalated: method == MethodExpensive,
		Reasons:   decision.Reasons,
	}, nil
}

// computeCheap runs the cheap computation and the auxiliary context fetch
// concurrently. Only the cheap computation can fail the request; a context
// fetch error is logged and the request proceeds without aux records.
func (g *Gateway[R, P]) computeCheap(ctx context.Context, req R) (CheapResult[P], []ContextRecord, error) {
	var (
		cheap CheapResult[P]
		aux   []ContextRecord
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		cheap, err = g.cheap(groupCtx, req)
		return err
	})
	if g.fetchContext != nil {
		group.Go(func() error {
			records, err := g.fetchContext(groupCtx, req)
			if err != nil {
				g.logger.Warn("auxiliary context fetch failed",
					slog.String("gateway", g.name),
					slog.String("error", err.Error()))
				return nil
			}
			aux = records
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return CheapResult[P]{}, nil, err
	}
	return cheap, aux, nil
}

// tryExpensive checks admission and attempts the expensive call. The call is
// bounded by the configured timeout and made without holding any lock; a
// denial or failure downgrades silently to the cheap tier.
func (g *Gateway[R, P]) tryExpensive(ctx context.Context, req R, aux []ContextRecord, reasons []string) (ExpensiveResult[P], bool) {
	estimate := g.defaultEstimate
	if g.estimate != nil {
		estimate = g.estimate(req)
	}

	admission := g.ledger.CanEscalate(estimate)
	if !admission.Allowed {
		g.logger.Info("escalation denied, serving cheap tier",
			slog.String("gateway", g.name),
			slog.String("denial", admission.Reason),
			slog.Any("triggers", reasons))
		return ExpensiveResult[P]{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, g.expensiveTimeout)
	defer cancel()

	expensive, err := g.expensive(callCtx, req, aux)
	if err != nil {
		g.logger.Warn("expensive tier failed, serving cheap tier",
			slog.String("gateway", g.name),
			slog.Any("triggers", reasons),
			slog.String("error", err.Error()))
		return ExpensiveResult[P]{}, false
	}
	return expensive, true
}

// Status reports cache and budget introspection.
func (g *Gateway[R, P]) Status() Status {
	return Status{
		Name:   g.name,
		Cache:  g.cache.Stats(),
		Budget: g.ledger.Status(),
	}
}

// ClearCache drops all cached entries and resets hit/miss counters.
func (g *Gateway[R, P]) ClearCache(ctx context.Context) {
	g.cache.Clear(ctx)
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
