// Package retriever finds summaries of a user's other conversations that are
// semantically close to a new message.
package retriever

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/observability"
)

const (
	DefaultMaxMemories = 3
	DefaultCacheSize   = 1024
)

// SummarySource is the part of the store the retriever reads.
type SummarySource interface {
	ListConversations(ctx context.Context, userID string) ([]model.ConversationInfo, error)
	GetSummary(ctx context.Context, userID, conversationID string) (string, bool, error)
}

type Retriever struct {
	src      SummarySource
	embedder embeddings.Provider
	cache    *lru.Cache[string, []float32]
	timeout  time.Duration
	log      zerolog.Logger
}

type Option func(*Retriever)

// WithEmbedTimeout bounds every uncached embedding call.
func WithEmbedTimeout(d time.Duration) Option { return func(r *Retriever) { r.timeout = d } }

func New(src SummarySource, embedder embeddings.Provider, cacheSize int, log zerolog.Logger, opts ...Option) (*Retriever, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, err
	}
	r := &Retriever{src: src, embedder: embedder, cache: cache, log: log.With().Str("component", "retriever").Logger()}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

type candidate struct {
	conversationID string
	summary        string
	similarity     float64
}

// FindRelevant returns up to k summaries from the user's other conversations, most
// similar first. It never fails: any store or embedding problem yields no memories.
func (r *Retriever) FindRelevant(ctx context.Context, userID, conversationID, query string, k int) []model.RetrievedMemory {
	if k <= 0 {
		k = DefaultMaxMemories
	}
	convs, err := r.src.ListConversations(ctx, userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("list conversations failed; skipping retrieval")
		return nil
	}
	others := convs[:0:0]
	for _, c := range convs {
		if c.ConversationID != conversationID {
			others = append(others, c)
		}
	}
	if len(others) == 0 {
		return nil
	}

	q, err := r.embed(ctx, query)
	if err != nil {
		r.logEmbedFailure(err)
		return nil
	}

	var found []candidate
	for _, c := range others {
		summary, ok, err := r.src.GetSummary(ctx, userID, c.ConversationID)
		if err != nil {
			r.log.Warn().Err(err).Str("conversation_id", c.ConversationID).Msg("summary unreadable; skipping")
			continue
		}
		if !ok || summary == "" {
			continue
		}
		vec, err := r.embed(ctx, summary)
		if errors.Is(err, embeddings.ErrNoEmbedding) {
			r.logEmbedFailure(err)
			return nil
		}
		if err != nil {
			r.log.Warn().Err(err).Str("conversation_id", c.ConversationID).Msg("summary embedding failed; skipping")
			continue
		}
		found = append(found, candidate{c.ConversationID, summary, CosineSimilarity(q, vec)})
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].similarity != found[j].similarity {
			return found[i].similarity > found[j].similarity
		}
		return found[i].conversationID < found[j].conversationID
	})
	if len(found) > k {
		found = found[:k]
	}
	out := make([]model.RetrievedMemory, 0, len(found))
	for _, c := range found {
		out = append(out, model.RetrievedMemory{
			Content:              c.summary,
			Similarity:           c.similarity,
			SourceConversationID: c.conversationID,
		})
	}
	observability.MemoriesRetrieved.Observe(float64(len(out)))
	return out
}

func (r *Retriever) logEmbedFailure(err error) {
	if errors.Is(err, embeddings.ErrNoEmbedding) {
		r.log.Debug().Msg("no embedding provider credential; retrieval disabled")
		return
	}
	r.log.Warn().Err(err).Msg("query embedding failed; skipping retrieval")
}

// embed returns the cached vector for text, computing it on a miss.
func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := r.cache.Get(text); ok {
		observability.EmbeddingCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	observability.EmbeddingCache.WithLabelValues("miss").Inc()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	v, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	r.cache.Add(text, v)
	return v, nil
}

// CacheLen reports how many embeddings are cached.
func (r *Retriever) CacheLen() int { return r.cache.Len() }

// CosineSimilarity is the cosine of the angle between a and b, clamped to [0,1].
// Empty, unequal-length or zero-magnitude inputs give 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(sim) || sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}
