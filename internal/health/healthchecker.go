package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers (store, embedder).
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// HealthPinger can be implemented by components to expose a specialized
// health check. HealthPing must return nil when the component is healthy.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// ServiceHealthChecker aggregates component checkers into a single service health flag.
//
// Required checkers decide whether the service is healthy. Optional checkers only
// mark the service degraded: memory enrichment is best-effort, so an unreachable
// embedder must not take the service down.
type ServiceHealthChecker struct {
	healthy  atomic.Int32
	degraded atomic.Int32
	required []HealthChecker
	optional []HealthChecker
	log      zerolog.Logger

	mu         sync.RWMutex
	components map[string]bool
}

func NewServiceHealthChecker(log zerolog.Logger, required ...HealthChecker) *ServiceHealthChecker {
	h := &ServiceHealthChecker{required: required, log: log, components: map[string]bool{}}
	h.healthy.Store(0)
	return h
}

// WithOptional registers checkers whose failure degrades but does not fail the service.
func (h *ServiceHealthChecker) WithOptional(optional ...HealthChecker) *ServiceHealthChecker {
	h.optional = append(h.optional, optional...)
	return h
}

// IsHealthy returns cached service health.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() == 1 }

// IsDegraded reports whether any optional component is currently down.
func (h *ServiceHealthChecker) IsDegraded() bool { return h.degraded.Load() == 1 }

// Components returns the last observed health of every component by name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]bool, len(h.components))
	for k, v := range h.components {
		out[k] = v
	}
	return out
}

// Start periodically evaluates dependency health and updates the service flag.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(0)
	eval := func() {
		snapshot := make(map[string]bool, len(h.required)+len(h.optional))
		all := true
		for _, c := range h.required {
			ok := c.IsHealthy()
			snapshot[c.Name()] = ok
			all = all && ok
		}
		degraded := false
		for _, c := range h.optional {
			ok := c.IsHealthy()
			snapshot[c.Name()] = ok
			degraded = degraded || !ok
		}
		h.mu.Lock()
		h.components = snapshot
		h.mu.Unlock()

		if degraded {
			h.degraded.Store(1)
		} else {
			h.degraded.Store(0)
		}
		if all {
			h.healthy.Store(1)
		} else {
			h.healthy.Store(0)
		}
		cur := h.healthy.Load()
		if cur != prev {
			if cur == 1 {
				h.log.Info().Msg("service health: UP")
			} else {
				h.log.Error().Stack().Msg("service health: DOWN")
			}
			prev = cur
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
