package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lumo-games/companion-gateway/internal/config"
	"github.com/lumo-games/companion-gateway/internal/dialogue"
	"github.com/lumo-games/companion-gateway/internal/emotion"
	"github.com/lumo-games/companion-gateway/internal/gateway"
	"github.com/lumo-games/companion-gateway/internal/llm"
	"github.com/lumo-games/companion-gateway/internal/memoryctx"
	"github.com/lumo-games/companion-gateway/internal/server"
	"github.com/lumo-games/companion-gateway/internal/storage/sqldb"
	"github.com/lumo-games/companion-gateway/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init("companion-gateway", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Durable storage is optional; without it the cache and ledger are
	// memory-only and reset on restart.
	var store *sqldb.Store
	if cfg.Storage.Path != "" {
		store, err = sqldb.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open storage: %v", err)
		}
		defer store.Close()
		logger.Info("storage opened", slog.String("path", cfg.Storage.Path))
	}

	// The LLM tier is optional; without it every request is answered by the
	// rule table and templates.
	var completer *llm.Client
	var estimator *llm.Estimator
	if cfg.LLM.Provider != "" {
		completer, err = llm.NewClient(llm.Config{
			Provider:    cfg.LLM.Provider,
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, nil)
		if err != nil {
			log.Fatalf("Failed to create LLM client: %v", err)
		}
		estimator = llm.NewEstimator(cfg.LLM.Model, cfg.LLM.MaxTokens, nil)
		logger.Info("llm tier enabled",
			slog.String("provider", cfg.LLM.Provider),
			slog.String("model", cfg.LLM.Model),
		)
	} else {
		logger.Info("llm tier disabled, running rules and templates only")
	}

	var memory *memoryctx.Client
	if cfg.Memory.URL != "" {
		memory = memoryctx.NewClient(memoryctx.Config{
			BaseURL: cfg.Memory.URL,
			Limit:   cfg.Memory.Limit,
			Timeout: cfg.MemoryTimeout(),
		})
		logger.Info("memory service configured", slog.String("url", cfg.Memory.URL))
	}

	policy := gateway.PolicyConfig{
		ExceptionalRarities: cfg.Policy.ExceptionalRarities,
		Milestones:          cfg.Policy.Milestones,
		StreakThreshold:     cfg.Policy.StreakThreshold,
		ImportanceThreshold: cfg.Policy.ImportanceThreshold,
		CompositeMinimum:    cfg.Policy.CompositeMinimum,
		ConfidenceThreshold: cfg.Policy.ConfidenceThreshold,
	}
	ledgerCfg := gateway.LedgerConfig{
		DailyBudget:   cfg.Budget.DailyBudget,
		PerRequestCap: cfg.Budget.PerRequestCap,
		TargetRate:    cfg.Budget.TargetRate,
		RateTolerance: cfg.Budget.RateTolerance,
		HistoryDays:   cfg.Budget.HistoryDays,
		FailOpen:      cfg.Budget.FailOpen,
	}

	ctx := context.Background()

	emotionSvc, err := emotion.NewService(emotion.ServiceParams{
		Completer:        completerOrNil(completer),
		Estimator:        estimator,
		FetchContext:     emotionContext(memory),
		Policy:           policy,
		Cache:            emotionCache(store, logger),
		Ledger:           newLedger(ctx, ledgerCfg, store, "emotion", logger),
		Logger:           logger.With(slog.String("service", "emotion")),
		CacheTTL:         cfg.CacheTTL(),
		ExpensiveTimeout: cfg.LLMTimeout(),
	})
	if err != nil {
		log.Fatalf("Failed to create emotion service: %v", err)
	}

	dialogueSvc, err := dialogue.NewService(dialogue.ServiceParams{
		Completer:        dialogueCompleterOrNil(completer),
		Estimator:        estimator,
		FetchContext:     dialogueContext(memory),
		Policy:           policy,
		Cache:            dialogueCache(store, logger),
		Ledger:           newLedger(ctx, ledgerCfg, store, "dialogue", logger),
		Logger:           logger.With(slog.String("service", "dialogue")),
		CacheTTL:         cfg.CacheTTL(),
		ExpensiveTimeout: cfg.LLMTimeout(),
		MaxLineLength:    cfg.Dialogue.MaxLineLength,
	})
	if err != nil {
		log.Fatalf("Failed to create dialogue service: %v", err)
	}

	var health server.HealthChecker
	if memory != nil {
		health = memory
	}
	srv := server.New(cfg.Server.Port, cfg.ServerTimeout(), logger, emotionSvc, dialogueSvc, health)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// completerOrNil keeps a typed nil *llm.Client from masquerading as a
// non-nil interface value.
func completerOrNil(c *llm.Client) emotion.Completer {
	if c == nil {
		return nil
	}
	return c
}

func dialogueCompleterOrNil(c *llm.Client) dialogue.Completer {
	if c == nil {
		return nil
	}
	return c
}

func emotionContext(m *memoryctx.Client) gateway.ContextFunc[*emotion.Request] {
	if m == nil {
		return nil
	}
	return func(ctx context.Context, req *emotion.Request) ([]gateway.ContextRecord, error) {
		return m.FetchContext(ctx, req.PlayerID, req.EventType)
	}
}

func dialogueContext(m *memoryctx.Client) gateway.ContextFunc[*dialogue.Request] {
	if m == nil {
		return nil
	}
	return func(ctx context.Context, req *dialogue.Request) ([]gateway.ContextRecord, error) {
		return m.FetchContext(ctx, req.PlayerID, req.EventType)
	}
}

func emotionCache(store *sqldb.Store, logger *slog.Logger) gateway.Cache[emotion.Reaction] {
	if store == nil {
		return gateway.NewMemoryCache[emotion.Reaction](nil)
	}
	return sqldb.NewCache[emotion.Reaction](store, "emotion", nil, logger)
}

func dialogueCache(store *sqldb.Store, logger *slog.Logger) gateway.Cache[dialogue.Line] {
	if store == nil {
		return gateway.NewMemoryCache[dialogue.Line](nil)
	}
	return sqldb.NewCache[dialogue.Line](store, "dialogue", nil, logger)
}

func newLedger(ctx context.Context, cfg gateway.LedgerConfig, store *sqldb.Store, service string, logger *slog.Logger) *gateway.Ledger {
	ledger := gateway.NewLedger(cfg, nil, logger.With(slog.String("ledger", service)))
	if store != nil {
		ledger = ledger.WithStore(ctx, store.DayStore(service))
	}
	return ledger
}
