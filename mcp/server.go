package mcp

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/client"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/mcp/internal/handlers"
)

// Configuration holds all settings for the MCP server
type config struct {
	MemoryServiceURL string
	HTTPAddr         string
	LogLevel         zerolog.Level
	ServerName       string
	ServerVersion    string
	ShutdownTimeout  time.Duration
	HTTPReadTimeout  time.Duration
	HTTPIdleTimeout  time.Duration
}

// loadConfig loads configuration from environment variables and flags
func loadConfig() *config {
	cfg := &config{
		// Default values
		MemoryServiceURL: getEnvOrDefault("MEMORY_SERVICE_URL", "http://localhost:8000"),
		HTTPAddr:         getEnvOrDefault("MCP_HTTP_ADDR", ":8001"),
		ServerName:       getEnvOrDefault("MCP_SERVER_NAME", "memory-mcp-server"),
		ServerVersion:    getEnvOrDefault("MCP_SERVER_VERSION", "0.1.0"),
		ShutdownTimeout:  parseDurationOrDefault("SHUTDOWN_TIMEOUT", "10s"),
		HTTPReadTimeout:  parseDurationOrDefault("HTTP_READ_TIMEOUT", "5s"),
		HTTPIdleTimeout:  parseDurationOrDefault("HTTP_IDLE_TIMEOUT", "120s"),
	}

	// Parse log level from environment
	cfg.LogLevel = parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info"))

	// Command line flags (will override env vars)
	var rawLogLevel string
	flag.StringVar(&cfg.MemoryServiceURL, "memory-service-url", cfg.MemoryServiceURL, "Base URL of the memory service")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Listen address for the Streamable HTTP transport")
	flag.StringVar(&rawLogLevel, "log-level", cfg.LogLevel.String(), "Log level: debug|info|warn|error")
	flag.Parse()

	// Override log level from flag if provided
	if rawLogLevel != "" {
		cfg.LogLevel = parseLogLevel(rawLogLevel)
	}

	return cfg
}

// initLogger initializes the logger with the configured level
func (c *config) initLogger() {
	zerolog.SetGlobalLevel(c.LogLevel)
	log.Logger = log.With().Caller().Logger()
}

// Helper functions
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(envKey, defaultValue string) time.Duration {
	if value := os.Getenv(envKey); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}

func parseLogLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewServer builds an MCP server exposing the memory tools over c.
func NewServer(c *client.Client, name, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)
	if err := handlers.NewMemoryHandler(c).RegisterTools(s); err != nil {
		return nil, err
	}
	return s, nil
}

// RunMCPServer starts the MCP server with the given configuration
func RunMCPServer() error {
	cfg := loadConfig()
	cfg.initLogger()

	log.Info().Str("memory_service_url", cfg.MemoryServiceURL).Msg("Creating memory service client")
	memClient, err := client.New(cfg.MemoryServiceURL)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed to create client")
		return err
	}

	s, err := NewServer(memClient, cfg.ServerName, cfg.ServerVersion)
	if err != nil {
		return err
	}

	// Auto-detect transport method
	if shouldUseStdio() {
		// Stdio transport (for desktop hosts that launch the process)
		log.Info().Msg("Starting memory MCP server (stdio transport)")
		return server.ServeStdio(s)
	}

	log.Info().Str("addr", cfg.HTTPAddr).Msg("Starting memory MCP server (Streamable HTTP)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	streamSrv := server.NewStreamableHTTPServer(
		s,
		server.WithEndpointPath("/mcp"),
		server.WithHeartbeatInterval(30*time.Second),
	)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      streamSrv,
		ReadTimeout:  cfg.HTTPReadTimeout, // Keep short for request parsing
		WriteTimeout: 0,                   // No deadline - required for SSE streaming
		IdleTimeout:  cfg.HTTPIdleTimeout, // Keep for after requests finish
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server error")
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}
	if err := streamSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during MCP server shutdown")
	}
	log.Info().Msg("MCP server shutdown complete")
	return nil
}

// shouldUseStdio determines whether to use stdio transport based on environment
func shouldUseStdio() bool {
	// Force stdio mode with environment variable
	if os.Getenv("MCP_STDIO") == "true" {
		return true
	}

	// Force HTTP mode with environment variable
	if os.Getenv("MCP_HTTP") == "true" {
		return false
	}

	// Auto-detect: Use stdio if stdin is not a terminal (launched by another process)
	if fileInfo, err := os.Stdin.Stat(); err == nil {
		return (fileInfo.Mode() & os.ModeCharDevice) == 0
	}

	// Default to HTTP if detection fails
	return false
}
