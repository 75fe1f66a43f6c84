package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/config"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm/anthropic"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm/gemini"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm/grok"
)

// NewGenerator returns the instrumented generator named by cfg.LLMProvider.
// A missing credential is a startup error.
func NewGenerator(cfg *config.Config, log zerolog.Logger) (llm.Generator, error) {
	var (
		gen llm.Generator
		err error
	)
	switch cfg.LLMProvider {
	case "", "gemini":
		gen, err = gemini.New(gemini.Config{
			APIKey:     cfg.GoogleAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			Models:     cfg.GeminiModelList(),
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: cfg.LLMMaxRetries,
		}, log)
	case "grok":
		gen, err = grok.New(grok.Config{
			APIKey:     cfg.GrokAPIKey,
			BaseURL:    cfg.GrokBaseURL,
			Model:      cfg.GrokModel,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: cfg.LLMMaxRetries,
		})
	case "anthropic":
		gen, err = anthropic.New(anthropic.Config{
			APIKey:     cfg.AnthropicAPIKey,
			Model:      cfg.AnthropicModel,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: cfg.LLMMaxRetries,
		})
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	provider := cfg.LLMProvider
	if provider == "" {
		provider = "gemini"
	}
	return llm.Instrument(provider, gen, log), nil
}
