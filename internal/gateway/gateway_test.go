package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func newTestLedger() *Ledger {
	return NewLedger(testLedgerConfig(), nil, nil)
}

func newTestGateway(t *testing.T, p Params[testRequest, string]) *Gateway[testRequest, string] {
	t.Helper()
	if p.Cheap == nil {
		p.Cheap = func(_ context.Context, _ testRequest) (CheapResult[string], error) {
			return CheapResult[string]{Payload: "cheap answer", Confidence: 0.9}, nil
		}
	}
	if p.Policy == nil {
		p.Policy = NewPolicy(testPolicyConfig())
	}
	if p.Cache == nil {
		p.Cache = NewMemoryCache[string](p.Clock)
	}
	if p.Ledger == nil {
		p.Ledger = newTestLedger()
	}
	gw, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw
}

func plainRequest() testRequest {
	return testRequest{fields: map[string]any{"event": "player.kill"}}
}

func legendaryRequest() testRequest {
	return testRequest{
		fields:  map[string]any{"event": "player.achievement", "rarity": "legendary"},
		signals: Signals{Rarity: "legendary"},
	}
}

func TestGateway_CheapPath(t *testing.T) {
	expensiveCalls := 0
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		Expensive: func(_ context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			expensiveCalls++
			return ExpensiveResult[string]{Payload: "expensive answer", Cost: 0.005}, nil
		},
	})

	result, err := gw.Evaluate(context.Background(), plainRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Payload != "cheap answer" || result.Method != MethodCheap {
		t.Errorf("got (%q, %s), want cheap tier", result.Payload, result.Method)
	}
	if result.Cost != 0 || result.Escalated || result.CacheHit {
		t.Errorf("unexpected metadata: %+v", result)
	}
	if expensiveCalls != 0 {
		t.Errorf("expensive tier invoked %d times for a plain request", expensiveCalls)
	}
}

func TestGateway_EscalatesAndCaches(t *testing.T) {
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		Expensive: func(_ context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			return ExpensiveResult[string]{Payload: "expensive answer", Cost: 0.005}, nil
		},
	})
	ctx := context.Background()

	result, err := gw.Evaluate(ctx, legendaryRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Payload != "expensive answer" || result.Method != MethodExpensive {
		t.Errorf("got (%q, %s), want expensive tier", result.Payload, result.Method)
	}
	if !result.Escalated || result.Cost != 0.005 {
		t.Errorf("unexpected metadata: %+v", result)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != ReasonRarity {
		t.Errorf("reasons = %v, want [%s]", result.Reasons, ReasonRarity)
	}

	// Replay within TTL: served from cache, zero additional cost recorded.
	replay, err := gw.Evaluate(ctx, legendaryRequest())
	if err != nil {
		t.Fatalf("Evaluate replay: %v", err)
	}
	if !replay.CacheHit || replay.Method != MethodCached {
		t.Errorf("replay not served from cache: %+v", replay)
	}
	if replay.Cost != 0.005 {
		t.Errorf("cached cost metadata = %v, want original 0.005", replay.Cost)
	}

	status := gw.Status()
	if status.Budget.DailyCost != 0.005 {
		t.Errorf("daily cost = %v, want 0.005 (cache hit must not re-charge)", status.Budget.DailyCost)
	}
	if status.Cache.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", status.Cache.Hits)
	}
}

func TestGateway_FallbackOnExpensiveFailure(t *testing.T) {
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		Expensive: func(_ context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			return ExpensiveResult[string]{}, errors.New("provider down")
		},
	})

	// The expensive tier always errors; every evaluation must still succeed.
	for i := 0; i < 5; i++ {
		result, err := gw.Evaluate(context.Background(), testRequest{
			fields:  map[string]any{"event": "e", "n": i},
			signals: Signals{Rarity: "legendary"},
		})
		if err != nil {
			t.Fatalf("Evaluate %d: %v", i, err)
		}
		if result.Payload != "cheap answer" || result.Method != MethodCheap {
			t.Errorf("fallback not applied: %+v", result)
		}
		if len(result.Reasons) == 0 {
			t.Error("triggered reasons must be preserved on fallback")
		}
	}
}

func TestGateway_BudgetDeniedDowngrade(t *testing.T) {
	ledger := newTestLedger()
	// Pre-spend the whole daily budget.
	ledger.Record(context.Background(), MethodExpensive, 10.0, time.Second)

	expensiveCalls := 0
	gw := newTestGateway(t, Params[testRequest, string]{
		Name:   "test",
		Ledger: ledger,
		Expensive: func(_ context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			expensiveCalls++
			return ExpensiveResult[string]{Payload: "expensive answer", Cost: 0.005}, nil
		},
	})

	result, err := gw.Evaluate(context.Background(), legendaryRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Method != MethodCheap {
		t.Errorf("method = %s, want silent downgrade to cheap", result.Method)
	}
	if expensiveCalls != 0 {
		t.Error("expensive tier must not be invoked when admission denies")
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != ReasonRarity {
		t.Errorf("reasons must survive the veto, got %v", result.Reasons)
	}
}

func TestGateway_CheapFailureSurfaces(t *testing.T) {
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		Cheap: func(_ context.Context, _ testRequest) (CheapResult[string], error) {
			return CheapResult[string]{}, errors.New("rule table corrupt")
		},
	})

	if _, err := gw.Evaluate(context.Background(), plainRequest()); err == nil {
		t.Fatal("cheap-tier failure must surface to the caller")
	}
}

func TestGateway_ContextFetchFailureIgnored(t *testing.T) {
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		FetchContext: func(_ context.Context, _ testRequest) ([]ContextRecord, error) {
			return nil, errors.New("memory service unreachable")
		},
	})

	result, err := gw.Evaluate(context.Background(), plainRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Method != MethodCheap {
		t.Errorf("method = %s, want cheap", result.Method)
	}
}

func TestGateway_ImportantContextEscalates(t *testing.T) {
	var sawAux []ContextRecord
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		FetchContext: func(_ context.Context, _ testRequest) ([]ContextRecord, error) {
			return []ContextRecord{{ID: "m1", Content: "first legendary drop", Importance: 0.95}}, nil
		},
		Expensive: func(_ context.Context, _ testRequest, aux []ContextRecord) (ExpensiveResult[string], error) {
			sawAux = aux
			return ExpensiveResult[string]{Payload: "personal answer", Cost: 0.003}, nil
		},
	})

	result, err := gw.Evaluate(context.Background(), plainRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Method != MethodExpensive {
		t.Fatalf("high-importance memory must escalate, got %+v", result)
	}
	if len(sawAux) != 1 || sawAux[0].ID != "m1" {
		t.Errorf("expensive tier must receive the aux records, got %v", sawAux)
	}
}

func TestGateway_TimeoutAppliedToExpensiveCall(t *testing.T) {
	gw := newTestGateway(t, Params[testRequest, string]{
		Name:             "test",
		ExpensiveTimeout: 10 * time.Millisecond,
		Expensive: func(ctx context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			<-ctx.Done()
			return ExpensiveResult[string]{}, ctx.Err()
		},
	})

	start := time.Now()
	result, err := gw.Evaluate(context.Background(), legendaryRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Method != MethodCheap {
		t.Errorf("timed-out escalation must fall back, got %s", result.Method)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not enforced, evaluation took %v", elapsed)
	}
}

func TestGateway_HundredPlainRequests(t *testing.T) {
	expensiveCalls := 0
	gw := newTestGateway(t, Params[testRequest, string]{
		Name: "test",
		Expensive: func(_ context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			expensiveCalls++
			return ExpensiveResult[string]{Payload: "x", Cost: 0.01}, nil
		},
	})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		// Distinct fingerprints so nothing is served from cache.
		req := testRequest{fields: map[string]any{"event": "player.kill", "n": fmt.Sprintf("%d", i)}}
		result, err := gw.Evaluate(ctx, req)
		if err != nil {
			t.Fatalf("Evaluate %d: %v", i, err)
		}
		if result.Method != MethodCheap {
			t.Fatalf("request %d escalated unexpectedly: %+v", i, result)
		}
	}

	status := gw.Status()
	if expensiveCalls != 0 {
		t.Errorf("expensive calls = %d, want 0", expensiveCalls)
	}
	if status.Budget.EscalationRate != 0 {
		t.Errorf("escalation rate = %v, want 0", status.Budget.EscalationRate)
	}
	if status.Budget.TotalRequests != 100 {
		t.Errorf("total requests = %d, want 100", status.Budget.TotalRequests)
	}
}

func TestGateway_ClearCache(t *testing.T) {
	gw := newTestGateway(t, Params[testRequest, string]{Name: "test"})
	ctx := context.Background()

	if _, err := gw.Evaluate(ctx, plainRequest()); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if gw.Status().Cache.Size == 0 {
		t.Fatal("expected a cached entry")
	}

	gw.ClearCache(ctx)
	if stats := gw.Status().Cache; stats.Size != 0 || stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("cache not cleared: %+v", stats)
	}
}

func TestGateway_RequiredParams(t *testing.T) {
	cheap := func(_ context.Context, _ testRequest) (CheapResult[string], error) {
		return CheapResult[string]{}, nil
	}
	policy := NewPolicy(PolicyConfig{})
	cache := NewMemoryCache[string](nil)
	ledger := newTestLedger()

	tests := []struct {
		name   string
		params Params[testRequest, string]
	}{
		{"missing cheap", Params[testRequest, string]{Policy: policy, Cache: cache, Ledger: ledger}},
		{"missing policy", Params[testRequest, string]{Cheap: cheap, Cache: cache, Ledger: ledger}},
		{"missing cache", Params[testRequest, string]{Cheap: cheap, Policy: policy, Ledger: ledger}},
		{"missing ledger", Params[testRequest, string]{Cheap: cheap, Policy: policy, Cache: cache}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.params); err == nil {
				t.Error("expected constructor error")
			}
		})
	}
}

func TestGateway_EstimateFeedsAdmission(t *testing.T) {
	var estimates []float64
	ledger := newTestLedger() // per-request cap 0.01
	gw := newTestGateway(t, Params[testRequest, string]{
		Name:   "test",
		Ledger: ledger,
		Estimate: func(_ testRequest) float64 {
			estimates = append(estimates, 0.05)
			return 0.05 // above the cap
		},
		Expensive: func(_ context.Context, _ testRequest, _ []ContextRecord) (ExpensiveResult[string], error) {
			t.Error("expensive tier must not run when the estimate is over the cap")
			return ExpensiveResult[string]{}, nil
		},
	})

	result, err := gw.Evaluate(context.Background(), legendaryRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Method != MethodCheap {
		t.Errorf("method = %s, want cheap", result.Method)
	}
	if len(estimates) != 1 {
		t.Errorf("estimate called %d times, want 1", len(estimates))
	}
}
