package embeddings

import (
	"context"
	"errors"
)

// Provider produces vector representations for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNoEmbedding means the provider cannot produce vectors at all, typically because
// its credential is not configured. Callers treat it as "no memories" rather than a failure.
var ErrNoEmbedding = errors.New("no embedding available")
