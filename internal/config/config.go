// Package config loads the companiond configuration from an optional yaml
// file plus COMPANION_ environment overrides, applies defaults, and
// validates the result at startup.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	LLM      LLMConfig      `koanf:"llm"`
	Memory   MemoryConfig   `koanf:"memory"`
	Budget   BudgetConfig   `koanf:"budget"`
	Policy   PolicyConfig   `koanf:"policy"`
	Cache    CacheConfig    `koanf:"cache"`
	Dialogue DialogueConfig `koanf:"dialogue"`
}

type ServerConfig struct {
	Port           int `koanf:"port"`
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

type StorageConfig struct {
	// Path to the sqlite database file. Empty disables durable storage; the
	// cache and budget ledger then live in memory only.
	Path string `koanf:"path"`
}

type LLMConfig struct {
	// Provider is one of: openai, anthropic, mistral, groq, ollama.
	// Empty disables the expensive tier entirely.
	Provider       string  `koanf:"provider"`
	Model          string  `koanf:"model"`
	APIKey         string  `koanf:"api_key"`
	MaxTokens      int     `koanf:"max_tokens"`
	Temperature    float64 `koanf:"temperature"`
	TimeoutSeconds int     `koanf:"timeout_seconds"`
}

type MemoryConfig struct {
	// URL of the memory service. Empty disables auxiliary context.
	URL            string `koanf:"url"`
	Limit          int    `koanf:"limit"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

type BudgetConfig struct {
	DailyBudget   float64 `koanf:"daily_budget"`
	PerRequestCap float64 `koanf:"per_request_cap"`
	TargetRate    float64 `koanf:"target_rate"`
	RateTolerance float64 `koanf:"rate_tolerance"`
	HistoryDays   int     `koanf:"history_days"`
	FailOpen      bool    `koanf:"fail_open"`
}

type PolicyConfig struct {
	ExceptionalRarities []string `koanf:"exceptional_rarities"`
	Milestones          []int    `koanf:"milestones"`
	StreakThreshold     int      `koanf:"streak_threshold"`
	ImportanceThreshold float64  `koanf:"importance_threshold"`
	CompositeMinimum    int      `koanf:"composite_minimum"`
	ConfidenceThreshold float64  `koanf:"confidence_threshold"`
}

type CacheConfig struct {
	TTLSeconds int `koanf:"ttl_seconds"`
}

type DialogueConfig struct {
	MaxLineLength int `koanf:"max_line_length"`
}

// ServerTimeout returns the per-request HTTP timeout.
func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// CacheTTL returns the cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// LLMTimeout returns the expensive-tier call bound.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// MemoryTimeout returns the memory service call bound.
func (c *Config) MemoryTimeout() time.Duration {
	return time.Duration(c.Memory.TimeoutSeconds) * time.Second
}

// Load reads path (yaml, optional: a missing file is fine) and then applies
// COMPANION_ environment overrides, where a double underscore separates
// nesting levels (COMPANION_BUDGET__DAILY_BUDGET=20).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("COMPANION_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "COMPANION_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults() {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":                 8080,
		"server.timeout_seconds":      30,
		"llm.max_tokens":              150,
		"llm.temperature":             0.7,
		"llm.timeout_seconds":         5,
		"memory.limit":                5,
		"memory.timeout_seconds":      5,
		"budget.daily_budget":         10.0,
		"budget.per_request_cap":      0.01,
		"budget.target_rate":          0.10,
		"budget.rate_tolerance":       1.5,
		"budget.history_days":         7,
		"policy.exceptional_rarities": []string{"legendary", "mythic"},
		"policy.milestones":           []int{10, 50, 100, 250, 500, 1000, 5000, 10000},
		"policy.streak_threshold":     5,
		"policy.importance_threshold": 0.8,
		"policy.composite_minimum":    2,
		"policy.confidence_threshold": 0.6,
		"cache.ttl_seconds":           3600,
		"dialogue.max_line_length":    150,
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be positive")
	}
	if c.Budget.DailyBudget < 0 {
		return fmt.Errorf("budget.daily_budget must not be negative")
	}
	if c.Budget.PerRequestCap < 0 {
		return fmt.Errorf("budget.per_request_cap must not be negative")
	}
	if c.Budget.TargetRate < 0 || c.Budget.TargetRate > 1 {
		return fmt.Errorf("budget.target_rate %v out of [0,1]", c.Budget.TargetRate)
	}
	if c.Budget.RateTolerance < 1 {
		return fmt.Errorf("budget.rate_tolerance must be at least 1")
	}
	if c.Cache.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be positive")
	}
	if c.Policy.ConfidenceThreshold < 0 || c.Policy.ConfidenceThreshold > 1 {
		return fmt.Errorf("policy.confidence_threshold %v out of [0,1]", c.Policy.ConfidenceThreshold)
	}
	if c.Policy.ImportanceThreshold < 0 || c.Policy.ImportanceThreshold > 1 {
		return fmt.Errorf("policy.importance_threshold %v out of [0,1]", c.Policy.ImportanceThreshold)
	}
	if c.LLM.Provider != "" && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required when llm.provider is set")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature %v out of [0,2]", c.LLM.Temperature)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive")
	}
	if c.Dialogue.MaxLineLength <= 0 {
		return fmt.Errorf("dialogue.max_line_length must be positive")
	}
	return nil
}
