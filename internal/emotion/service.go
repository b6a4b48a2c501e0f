package emotion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lumo-games/companion-gateway/internal/gateway"
	"github.com/lumo-games/companion-gateway/internal/llm"
)

// ServiceParams wires an emotion Service. Cache and Ledger are required;
// a nil Completer disables the LLM tier so the rule table always answers.
type ServiceParams struct {
	Completer    Completer
	Estimator    *llm.Estimator
	FetchContext gateway.ContextFunc[*Request]

	Policy gateway.PolicyConfig
	Cache  gateway.Cache[Reaction]
	Ledger *gateway.Ledger

	Clock  gateway.Clock
	Logger *slog.Logger

	CacheTTL         time.Duration
	ExpensiveTimeout time.Duration
	DefaultEstimate  float64
}

// Service answers emotion requests through the tiered gateway.
type Service struct {
	gw       *gateway.Gateway[*Request, Reaction]
	analyzer *Analyzer
}

// NewService builds the emotion service.
func NewService(p ServiceParams) (*Service, error) {
	analyzer := &Analyzer{}

	cheap := func(ctx context.Context, req *Request) (gateway.CheapResult[Reaction], error) {
		if req.EventType == "" {
			return gateway.CheapResult[Reaction]{}, fmt.Errorf("event_type is required")
		}
		reaction := analyzer.Analyze(req)
		return gateway.CheapResult[Reaction]{Payload: reaction, Confidence: reaction.Confidence}, nil
	}

	var expensive gateway.ExpensiveFunc[*Request, Reaction]
	if p.Completer != nil {
		classifier := NewClassifier(p.Completer)
		expensive = func(ctx context.Context, req *Request, aux []gateway.ContextRecord) (gateway.ExpensiveResult[Reaction], error) {
			reaction, cost, err := classifier.Classify(ctx, req, aux)
			if err != nil {
				return gateway.ExpensiveResult[Reaction]{}, err
			}
			return gateway.ExpensiveResult[Reaction]{Payload: reaction, Cost: cost}, nil
		}
	}

	var estimate gateway.EstimateFunc[*Request]
	if p.Estimator != nil {
		estimator := p.Estimator
		system := fmt.Sprintf(classifierSystemPrompt, strings.Join(Emotions, ", "))
		estimate = func(req *Request) float64 {
			return estimator.EstimateCost(system, buildClassifierPrompt(req, nil))
		}
	}

	gw, err := gateway.New(gateway.Params[*Request, Reaction]{
		Name:             "emotion",
		Cheap:            cheap,
		Expensive:        expensive,
		FetchContext:     p.FetchContext,
		Estimate:         estimate,
		Policy:           gateway.NewPolicy(p.Policy),
		Cache:            p.Cache,
		Ledger:           p.Ledger,
		Clock:            p.Clock,
		Logger:           p.Logger,
		CacheTTL:         p.CacheTTL,
		ExpensiveTimeout: p.ExpensiveTimeout,
		DefaultEstimate:  p.DefaultEstimate,
	})
	if err != nil {
		return nil, err
	}
	return &Service{gw: gw, analyzer: analyzer}, nil
}

// Analyze evaluates one event. The only error is a malformed request; every
// other failure mode degrades to the rule tier.
func (s *Service) Analyze(ctx context.Context, req *Request) (gateway.Result[Reaction], error) {
	return s.gw.Evaluate(ctx, req)
}

// Status reports cache and budget introspection.
func (s *Service) Status() gateway.Status {
	return s.gw.Status()
}

// ClearCache drops all cached reactions.
func (s *Service) ClearCache(ctx context.Context) {
	s.gw.ClearCache(ctx)
}
