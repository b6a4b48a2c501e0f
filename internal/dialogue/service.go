package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumo-games/companion-gateway/internal/gateway"
	"github.com/lumo-games/companion-gateway/internal/llm"
)

// ServiceParams wires a dialogue Service. Cache and Ledger are required;
// a nil Completer disables the LLM tier so templates always answer.
type ServiceParams struct {
	Completer    Completer
	Estimator    *llm.Estimator
	FetchContext gateway.ContextFunc[*Request]

	Policy gateway.PolicyConfig
	Cache  gateway.Cache[Line]
	Ledger *gateway.Ledger

	Clock  gateway.Clock
	Logger *slog.Logger

	CacheTTL         time.Duration
	ExpensiveTimeout time.Duration
	DefaultEstimate  float64

	// MaxLineLength bounds generated lines in runes. Defaults to 150.
	MaxLineLength int
	// TemplateSeed seeds variant selection; 0 means time-based.
	TemplateSeed int64
}

// Service answers dialogue requests through the tiered gateway.
type Service struct {
	gw        *gateway.Gateway[*Request, Line]
	templates *TemplateLibrary
}

// NewService builds the dialogue service.
func NewService(p ServiceParams) (*Service, error) {
	seed := p.TemplateSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	templates := NewTemplateLibrary(seed)

	cheap := func(ctx context.Context, req *Request) (gateway.CheapResult[Line], error) {
		if req.EventType == "" {
			return gateway.CheapResult[Line]{}, fmt.Errorf("event_type is required")
		}
		if req.Emotion == "" {
			return gateway.CheapResult[Line]{}, fmt.Errorf("emotion is required")
		}
		text, confidence := templates.Select(req.EventType, req.Emotion, req.persona())
		line := Line{Dialogue: text, Emotion: req.Emotion, Persona: req.persona()}
		return gateway.CheapResult[Line]{Payload: line, Confidence: confidence}, nil
	}

	var expensive gateway.ExpensiveFunc[*Request, Line]
	var generator *Generator
	if p.Completer != nil {
		generator = NewGenerator(p.Completer, p.MaxLineLength)
		expensive = func(ctx context.Context, req *Request, aux []gateway.ContextRecord) (gateway.ExpensiveResult[Line], error) {
			line, cost, err := generator.Generate(ctx, req, aux)
			if err != nil {
				return gateway.ExpensiveResult[Line]{}, err
			}
			return gateway.ExpensiveResult[Line]{Payload: line, Cost: cost}, nil
		}
	}

	var estimate gateway.EstimateFunc[*Request]
	if p.Estimator != nil && generator != nil {
		estimator := p.Estimator
		gen := generator
		estimate = func(req *Request) float64 {
			return estimator.EstimateCost(gen.systemPrompt(req.persona()), gen.buildPrompt(req, nil))
		}
	}

	gw, err := gateway.New(gateway.Params[*Request, Line]{
		Name:             "dialogue",
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
	return &Service{gw: gw, templates: templates}, nil
}

// Generate produces one line. The only error is a malformed request; every
// other failure mode degrades to the template tier.
func (s *Service) Generate(ctx context.Context, req *Request) (gateway.Result[Line], error) {
	return s.gw.Evaluate(ctx, req)
}

// Status reports cache and budget introspection.
func (s *Service) Status() gateway.Status {
	return s.gw.Status()
}

// ClearCache drops all cached lines.
func (s *Service) ClearCache(ctx context.Context) {
	s.gw.ClearCache(ctx)
}
