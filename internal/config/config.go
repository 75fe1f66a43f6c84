package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// DefaultSystemPrompt is prepended to every assembled context unless SYSTEM_PROMPT overrides it.
const DefaultSystemPrompt = `You are PromptLearn, a helpful, concise AI assistant and programming tutor.

Rules:
- Always answer the user's latest message first and directly.
- Use prior context only when it is relevant; ignore unrelated memories.
- Do not repeat yourself or restate earlier answers unless asked.
- Keep responses clear and compact. Ask a brief clarifying question only if needed.
- Provide code only when the user asks for code or it clearly helps.
- If the user asks about a specific word or line, explain that, not a different topic.

Style:
- Friendly and professional
- Short paragraphs or bullets when helpful
- Match the user's language`

// Config holds the configuration for the memory service.
// Environment variables are parsed with the MEMORY_SERVICE_ prefix; provider
// credentials also fall back to their unprefixed names (GOOGLE_API_KEY, ...).
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8000"`

	// Store Configuration
	StoreDriver string `envconfig:"STORE_DRIVER" default:"file"`
	DataDir     string `envconfig:"DATA_DIR" default:"data/memory"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	BoltPath    string `envconfig:"BOLT_PATH" default:""`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Generation Configuration
	LLMProvider       string `envconfig:"LLM_PROVIDER" default:"gemini"`
	GoogleAPIKey      string `envconfig:"GOOGLE_API_KEY" default:""`
	GeminiBaseURL     string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	GeminiModels      string `envconfig:"GEMINI_MODELS" default:"models/gemini-1.5-flash,models/gemini-1.5-pro,models/gemini-2.0-flash"`
	GrokAPIKey        string `envconfig:"GROK_API_KEY" default:""`
	GrokBaseURL       string `envconfig:"GROK_BASE_URL" default:"https://api.x.ai/v1"`
	GrokModel         string `envconfig:"GROK_MODEL" default:"grok-2-mini"`
	AnthropicAPIKey   string `envconfig:"ANTHROPIC_API_KEY" default:""`
	AnthropicModel    string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest"`
	LLMTimeoutSeconds int    `envconfig:"LLM_TIMEOUT_SECONDS" default:"30"`
	LLMMaxRetries     int    `envconfig:"LLM_MAX_RETRIES" default:"3"`

	// Embedding Configuration
	EmbedProvider       string `envconfig:"EMBED_PROVIDER" default:"gemini"`
	EmbedModel          string `envconfig:"EMBED_MODEL" default:"text-embedding-004"`
	OllamaURL           string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	EmbedTimeoutSeconds int    `envconfig:"EMBED_TIMEOUT_SECONDS" default:"15"`
	EmbedCacheSize      int    `envconfig:"EMBED_CACHE_SIZE" default:"1024"`

	// Memory Pipeline Configuration
	ConsolidationThreshold int     `envconfig:"CONSOLIDATION_THRESHOLD" default:"20"`
	ConsolidationStrategy  string  `envconfig:"CONSOLIDATION_STRATEGY" default:"full"`
	SummaryMaxTurns        int     `envconfig:"SUMMARY_MAX_TURNS" default:"30"`
	TokenBudget            int     `envconfig:"TOKEN_BUDGET" default:"3000"`
	TokensPerChar          float64 `envconfig:"TOKENS_PER_CHAR" default:"0.3"`
	MaxMemories            int     `envconfig:"MAX_MEMORIES" default:"3"`
	SummaryShare           float64 `envconfig:"SUMMARY_SHARE" default:"0.2"`
	MemoryShare            float64 `envconfig:"MEMORY_SHARE" default:"0.3"`
	SystemPrompt           string  `envconfig:"SYSTEM_PROMPT" default:""`

	// Health Configuration
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates drivers/providers and derives file paths left empty.
func (c *Config) ResolveDefaults() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.EmbedProvider = strings.ToLower(strings.TrimSpace(c.EmbedProvider))
	c.ConsolidationStrategy = strings.ToLower(strings.TrimSpace(c.ConsolidationStrategy))

	switch c.StoreDriver {
	case "file":
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = c.DataDir + "/memory.db"
		}
	case "bolt":
		if c.BoltPath == "" {
			c.BoltPath = c.DataDir + "/memory.bolt"
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}

	allowedLLM := map[string]bool{"gemini": true, "grok": true, "anthropic": true}
	if !allowedLLM[c.LLMProvider] {
		return fmt.Errorf("unsupported LLM_PROVIDER: %s", c.LLMProvider)
	}
	allowedEmbed := map[string]bool{"gemini": true, "ollama": true, "hash": true}
	if !allowedEmbed[c.EmbedProvider] {
		return fmt.Errorf("unsupported EMBED_PROVIDER: %s", c.EmbedProvider)
	}
	if c.ConsolidationStrategy != "full" && c.ConsolidationStrategy != "progressive" {
		return fmt.Errorf("unsupported CONSOLIDATION_STRATEGY: %s", c.ConsolidationStrategy)
	}

	if c.TokenBudget <= 0 {
		return fmt.Errorf("TOKEN_BUDGET must be > 0, got %d", c.TokenBudget)
	}
	if c.TokensPerChar <= 0 {
		return fmt.Errorf("TOKENS_PER_CHAR must be > 0, got %f", c.TokensPerChar)
	}
	if c.ConsolidationThreshold <= 0 {
		return fmt.Errorf("CONSOLIDATION_THRESHOLD must be > 0, got %d", c.ConsolidationThreshold)
	}
	if c.SummaryShare <= 0 || c.SummaryShare > 1 {
		return fmt.Errorf("SUMMARY_SHARE must be in (0, 1], got %f", c.SummaryShare)
	}
	if c.MemoryShare <= 0 || c.MemoryShare > 1 {
		return fmt.Errorf("MEMORY_SHARE must be in (0, 1], got %f", c.MemoryShare)
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with MEMORY_SERVICE_
// Example: MEMORY_SERVICE_HTTP_PORT, MEMORY_SERVICE_STORE_DRIVER
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MEMORY_SERVICE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("store_driver", cfg.StoreDriver).
		Str("data_dir", cfg.DataDir).
		Str("llm_provider", cfg.LLMProvider).
		Str("embed_provider", cfg.EmbedProvider).
		Int("consolidation_threshold", cfg.ConsolidationThreshold).
		Str("consolidation_strategy", cfg.ConsolidationStrategy).
		Int("token_budget", cfg.TokenBudget).
		Int("max_memories", cfg.MaxMemories).
		Bool("google_api_key_present", cfg.GoogleAPIKey != "").
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  8000,
		StoreDriver:               "file",
		DataDir:                   "data/memory",
		LLMProvider:               "gemini",
		GeminiBaseURL:             "https://generativelanguage.googleapis.com",
		GeminiModels:              "models/gemini-1.5-flash",
		GrokBaseURL:               "https://api.x.ai/v1",
		GrokModel:                 "grok-2-mini",
		AnthropicModel:            "claude-3-5-haiku-latest",
		LLMTimeoutSeconds:         5,
		LLMMaxRetries:             1,
		EmbedProvider:             "hash",
		EmbedModel:                "text-embedding-004",
		OllamaURL:                 "http://localhost:11434",
		EmbedTimeoutSeconds:       5,
		EmbedCacheSize:            128,
		ConsolidationThreshold:    20,
		ConsolidationStrategy:     "full",
		SummaryMaxTurns:           30,
		TokenBudget:               3000,
		TokensPerChar:             0.3,
		MaxMemories:               3,
		SummaryShare:              0.2,
		MemoryShare:               0.3,
		SystemPrompt:              DefaultSystemPrompt,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GeminiModelList splits GEMINI_MODELS into a clean list.
func (c *Config) GeminiModelList() []string {
	var out []string
	for _, m := range strings.Split(c.GeminiModels, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}

// LLMTimeout is the per-request timeout for generation calls.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// EmbedTimeout is the per-request timeout for embedding calls.
func (c *Config) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

// HealthInterval is the period between health probes.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSeconds) * time.Second
}

// HealthProbeTimeout bounds a single health probe.
func (c *Config) HealthProbeTimeout() time.Duration {
	return time.Duration(c.HealthProbeTimeoutSeconds) * time.Second
}
