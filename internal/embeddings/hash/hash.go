// Package hash is an offline embeddings provider that hashes words into a fixed
// number of buckets. Texts sharing vocabulary get similar vectors, which is enough
// for development and tests without network access.
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimensions = 256

type Embedder struct {
	dimensions int
}

func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		vec[sum%uint64(e.dimensions)] += 1
	}
	return normalize(vec), nil
}

// HealthPing always succeeds.
func (e *Embedder) HealthPing(context.Context) error { return nil }

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
