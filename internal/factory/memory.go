package factory

import (
	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/config"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/contextbuilder"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/memory"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/retriever"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/summarizer"
)

// NewOrchestrator assembles the memory pipeline over st. The summarizer shares gen
// with the chat path.
func NewOrchestrator(cfg *config.Config, st store.Store, emb embeddings.Provider, gen llm.Generator, log zerolog.Logger) (*memory.Orchestrator, error) {
	ret, err := retriever.New(st, emb, cfg.EmbedCacheSize, log, retriever.WithEmbedTimeout(cfg.EmbedTimeout()))
	if err != nil {
		return nil, err
	}
	sum := summarizer.New(gen,
		summarizer.WithMaxTurns(cfg.SummaryMaxTurns),
		summarizer.WithTimeout(cfg.LLMTimeout()),
	)
	builder := contextbuilder.New(
		contextbuilder.WithSystemPrompt(cfg.SystemPrompt),
		contextbuilder.WithEstimator(contextbuilder.RatioEstimator{K: cfg.TokensPerChar}),
		contextbuilder.WithShares(cfg.SummaryShare, cfg.MemoryShare),
	)
	return memory.New(st, builder, sum, ret, memory.Config{
		ConsolidationThreshold: cfg.ConsolidationThreshold,
		Strategy:               memory.Strategy(cfg.ConsolidationStrategy),
		TokenBudget:            cfg.TokenBudget,
		MaxMemories:            cfg.MaxMemories,
	}, log), nil
}
