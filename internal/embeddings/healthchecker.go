package embeddings

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/health"
)

// ProviderHealthChecker monitors an embeddings provider by calling Embed, or
// HealthPing when the provider has one.
type ProviderHealthChecker struct {
	provider     Provider
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

func NewProviderHealthChecker(p Provider, log zerolog.Logger, probeTimeout time.Duration) *ProviderHealthChecker {
	return &ProviderHealthChecker{provider: p, log: log, probeTimeout: probeTimeout}
}

func (c *ProviderHealthChecker) Name() string    { return "embedder" }
func (c *ProviderHealthChecker) IsHealthy() bool { return c.healthy.Load() == 1 }

func (c *ProviderHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

func (c *ProviderHealthChecker) check(ctx context.Context) {
	to := c.probeTimeout
	if to <= 0 {
		to = 2 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, to)
	defer cancel()

	var err error
	if p, ok := c.provider.(health.HealthPinger); ok {
		err = p.HealthPing(checkCtx)
	} else {
		var vec []float32
		vec, err = c.provider.Embed(checkCtx, "health-check")
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
	}
	if err != nil {
		c.healthy.Store(0)
		c.log.Error().Stack().Str("checker", c.Name()).Err(err).Msg("embedder health check failed")
		return
	}
	c.healthy.Store(1)
}
