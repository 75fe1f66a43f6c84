package config

import (
	"strings"
	"testing"
)

func TestConfigLoad_Defaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.StoreDriver != "file" || cfg.LLMProvider != "gemini" || cfg.EmbedProvider != "gemini" {
		t.Fatalf("unexpected default drivers: %+v", cfg)
	}
	if cfg.ConsolidationThreshold != 20 || cfg.TokenBudget != 3000 || cfg.MaxMemories != 3 || cfg.TokensPerChar != 0.3 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg)
	}
	if cfg.SummaryShare != 0.2 || cfg.MemoryShare != 0.3 {
		t.Fatalf("unexpected share defaults: summary=%v memories=%v", cfg.SummaryShare, cfg.MemoryShare)
	}
	if !strings.HasPrefix(cfg.SystemPrompt, "You are PromptLearn") {
		t.Fatalf("system prompt default not applied: %q", cfg.SystemPrompt)
	}
	if got := cfg.GeminiModelList(); len(got) != 3 || got[0] != "models/gemini-1.5-flash" {
		t.Fatalf("GeminiModelList = %v", got)
	}
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("MEMORY_SERVICE_STORE_DRIVER", "SQLite")
	t.Setenv("MEMORY_SERVICE_DATA_DIR", "/tmp/mem")
	t.Setenv("MEMORY_SERVICE_TOKEN_BUDGET", "1200")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.StoreDriver != "sqlite" || cfg.SQLitePath != "/tmp/mem/memory.db" {
		t.Fatalf("sqlite derivation failed: driver=%s path=%s", cfg.StoreDriver, cfg.SQLitePath)
	}
	if cfg.TokenBudget != 1200 {
		t.Fatalf("token budget override failed, got %d", cfg.TokenBudget)
	}
}

func TestConfigLoad_UnprefixedCredentialFallback(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := New()
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	if cfg.GoogleAPIKey != "g-key" {
		t.Fatalf("GoogleAPIKey = %q, want g-key", cfg.GoogleAPIKey)
	}
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"store":    func(c *Config) { c.StoreDriver = "mongo" },
		"postgres": func(c *Config) { c.StoreDriver = "postgres"; c.PostgresDSN = "" },
		"llm":      func(c *Config) { c.LLMProvider = "llama" },
		"embed":    func(c *Config) { c.EmbedProvider = "openai" },
		"strategy": func(c *Config) { c.ConsolidationStrategy = "sometimes" },
		"budget":   func(c *Config) { c.TokenBudget = 0 },
		"summary":  func(c *Config) { c.SummaryShare = 0 },
		"memories": func(c *Config) { c.MemoryShare = 1.5 },
	}
	for name, mutate := range cases {
		cfg := NewForTesting()
		mutate(cfg)
		if err := cfg.ResolveDefaults(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
