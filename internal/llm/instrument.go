package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/observability"
)

// Instrument counts calls to g by outcome (ok, busy, error) under the provider label
// and logs each request at debug level.
func Instrument(provider string, g Generator, log zerolog.Logger) Generator {
	return GeneratorFunc(func(ctx context.Context, messages []model.Message, opts Options) (string, error) {
		start := time.Now()
		text, err := g.Generate(ctx, messages, opts)
		outcome := "ok"
		switch {
		case err == nil:
		case model.IsUpstreamUnavailable(err) || IsBusy(err):
			outcome = "busy"
		default:
			outcome = "error"
		}
		observability.LLMRequests.WithLabelValues(provider, outcome).Inc()
		log.Debug().
			Str("provider", provider).
			Str("outcome", outcome).
			Int("messages", len(messages)).
			Dur("took", time.Since(start)).
			Msg("generation finished")
		return text, err
	})
}
