package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubProvider struct {
	vec []float32
	err error
}

func (s stubProvider) Embed(context.Context, string) ([]float32, error) { return s.vec, s.err }

type pingProvider struct {
	stubProvider
	pingErr error
}

func (p pingProvider) HealthPing(context.Context) error { return p.pingErr }

func TestProviderHealthChecker(t *testing.T) {
	cases := []struct {
		name string
		p    Provider
		want bool
	}{
		{"embeds", stubProvider{vec: []float32{1}}, true},
		{"empty vector", stubProvider{}, false},
		{"error", stubProvider{err: errors.New("down")}, false},
		{"no credential", stubProvider{err: ErrNoEmbedding}, false},
		{"ping wins over embed", pingProvider{stubProvider: stubProvider{err: errors.New("x")}}, true},
		{"ping fails", pingProvider{pingErr: errors.New("x")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewProviderHealthChecker(tc.p, zerolog.Nop(), time.Second)
			c.check(context.Background())
			if c.IsHealthy() != tc.want {
				t.Fatalf("IsHealthy = %v, want %v", c.IsHealthy(), tc.want)
			}
		})
	}
}
