package memoryservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/api"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/config"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/factory"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/health"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/logger"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/memory"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

// Run starts the memory service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("memory-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	logger.SetLevel(cfg.LogLevel)

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("store_driver", cfg.StoreDriver).
		Int("http_port", cfg.HTTPPort).
		Str("llm_provider", cfg.LLMProvider).
		Str("embed_provider", cfg.EmbedProvider).
		Str("embed_model", cfg.EmbedModel).
		Msg("Memory service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.store.Close()

	svcHealth := startHealthCheckers(ctx, cfg, log, deps.store, deps.embedder)

	router := buildRouter(deps, svcHealth)

	// Block startup until the store reports healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

type dependencies struct {
	store    store.Store
	embedder embeddings.Provider
	gen      llm.Generator
	memory   *memory.Orchestrator
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	gen, err := factory.NewGenerator(cfg, log)
	if err != nil {
		_ = st.Close()
		log.Error().Stack().Err(err).Msg("Generation provider unavailable")
		return nil, err
	}

	embProvider := factory.NewEmbeddingProvider(ctx, cfg, log)

	orch, err := factory.NewOrchestrator(cfg, st, embProvider, gen, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &dependencies{store: st, embedder: embProvider, gen: gen, memory: orch}, nil
}

// buildRouter wires HTTP routes to handlers.
func buildRouter(deps *dependencies, svcHealth *health.ServiceHealthChecker) *mux.Router {
	return api.NewRouter(api.NewHandler(deps.memory, deps.gen, svcHealth))
}

// startHealthCheckers starts component checkers and the service-level aggregator.
// The embedder is optional: when it is down the service reports degraded, not unhealthy.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store, embProvider embeddings.Provider) *health.ServiceHealthChecker {
	probeTimeout := cfg.HealthProbeTimeout()
	interval := cfg.HealthInterval()

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	embChecker := embeddings.NewProviderHealthChecker(embProvider, log, probeTimeout)
	go embChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker).WithOptional(embChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// generation with retries across fallback models can take a while
		WriteTimeout: cfg.LLMTimeout()*time.Duration(max(cfg.LLMMaxRetries, 1)) + 15*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
