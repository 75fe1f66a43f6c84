package factory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/config"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings/gemini"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings/hash"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings/ollama"
)

// NewEmbeddingProvider creates an embedding provider based on config.
// Launches an async warmup; returns the provider immediately for fast startup.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) embeddings.Provider {
	var provider embeddings.Provider

	switch cfg.EmbedProvider {
	case "", "gemini":
		if cfg.GoogleAPIKey == "" {
			log.Warn().Msg("GOOGLE_API_KEY not set; cross-conversation memories disabled")
		}
		provider = gemini.New(cfg.GoogleAPIKey, cfg.GeminiBaseURL, cfg.EmbedModel, cfg.EmbedTimeout())
	case "ollama":
		provider = ollama.New(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedTimeout())
	case "hash":
		provider = hash.New(0)
	default:
		log.Warn().Str("provider", cfg.EmbedProvider).Msg("unknown embedding provider; using hash")
		provider = hash.New(0)
	}

	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, cfg.EmbedTimeout()+5*time.Second)
		defer cancel()

		if vec, err := provider.Embed(warmupCtx, "factory-warmup-check"); err != nil || len(vec) == 0 {
			log.Warn().Err(err).Int("vec_len", len(vec)).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup completed")
		}
	}()

	return provider
}
