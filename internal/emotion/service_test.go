package emotion

import (
	"context"
	"testing"

	"github.com/lumo-games/companion-gateway/internal/gateway"
)

func testPolicy() gateway.PolicyConfig {
	return gateway.PolicyConfig{
		ExceptionalRarities: []string{"legendary", "mythic"},
		Milestones:          []int{10, 50, 100, 250, 500, 1000, 5000, 10000},
		StreakThreshold:     5,
		ImportanceThreshold: 0.8,
		CompositeMinimum:    2,
		ConfidenceThreshold: 0.6,
	}
}

func newTestService(t *testing.T, completer Completer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Completer:       completer,
		Policy:          testPolicy(),
		Cache:           gateway.NewMemoryCache[Reaction](nil),
		Ledger:          gateway.NewLedger(gateway.LedgerConfig{DailyBudget: 10, PerRequestCap: 0.01, TargetRate: 0.10}, nil, nil),
		DefaultEstimate: 0.001,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestServiceRulePath(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.Analyze(context.Background(), &Request{EventType: "player.victory"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Method != gateway.MethodCheap {
		t.Errorf("method = %v, want cheap", result.Method)
	}
	if result.Payload.Emotion != "happy" || result.Payload.Action != "smile" {
		t.Errorf("unexpected payload: %+v", result.Payload)
	}
	if result.Cost != 0 {
		t.Errorf("cost = %v, want 0", result.Cost)
	}
}

func TestServiceEscalatesLegendaryAndCaches(t *testing.T) {
	completer := &fakeCompleter{
		reply: `{"emotion": "amazed", "intensity": 1.0, "reasoning": "Legendary!", "confidence": 0.95}`,
		cost:  0.0008,
	}
	svc := newTestService(t, completer)

	req := &Request{
		EventType: "player.achievement",
		Data:      map[string]any{"rarity": "legendary"},
	}
	first, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Method != gateway.MethodExpensive {
		t.Fatalf("method = %v, want expensive (reasons %v)", first.Method, first.Reasons)
	}
	if first.Payload.Emotion != "amazed" {
		t.Errorf("payload = %+v", first.Payload)
	}

	second, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.CacheHit || second.Method != gateway.MethodCached {
		t.Errorf("replay should hit the cache: %+v", second)
	}
	if len(completer.users) != 1 {
		t.Errorf("model called %d times, want 1", len(completer.users))
	}

	status := svc.Status()
	if status.Budget.DailyCost != 0.0008 {
		t.Errorf("daily cost = %v, want 0.0008", status.Budget.DailyCost)
	}
}

func TestServiceFallsBackWhenModelFails(t *testing.T) {
	completer := &fakeCompleter{reply: "not json at all"}
	svc := newTestService(t, completer)

	result, err := svc.Analyze(context.Background(), &Request{
		EventType: "player.achievement",
		Data:      map[string]any{"rarity": "mythic"},
	})
	if err != nil {
		t.Fatalf("fallback must not surface an error: %v", err)
	}
	if result.Method != gateway.MethodCheap {
		t.Errorf("method = %v, want cheap fallback", result.Method)
	}
	if len(result.Reasons) == 0 {
		t.Error("trigger reasons must survive the downgrade")
	}
}

func TestServiceRejectsMissingEventType(t *testing.T) {
	svc := newTestService(t, nil)
	if _, err := svc.Analyze(context.Background(), &Request{}); err == nil {
		t.Fatal("expected error for missing event_type")
	}
}

func TestServiceForceLLM(t *testing.T) {
	completer := &fakeCompleter{
		reply: `{"emotion": "happy", "intensity": 0.8, "reasoning": "forced", "confidence": 0.9}`,
		cost:  0.0002,
	}
	svc := newTestService(t, completer)

	result, err := svc.Analyze(context.Background(), &Request{EventType: "player.loot", ForceLLM: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Method != gateway.MethodExpensive {
		t.Errorf("method = %v, want expensive", result.Method)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != gateway.ReasonForced {
		t.Errorf("reasons = %v, want [force_llm]", result.Reasons)
	}
}

func TestServiceClearCache(t *testing.T) {
	svc := newTestService(t, nil)
	req := &Request{EventType: "player.victory"}
	ctx := context.Background()

	if _, err := svc.Analyze(ctx, req); err != nil {
		t.Fatal(err)
	}
	svc.ClearCache(ctx)
	result, err := svc.Analyze(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if result.CacheHit {
		t.Error("cache should be empty after clear")
	}
}
