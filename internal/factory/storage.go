// Package factory builds the service's adapters from configuration.
package factory

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/config"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/boltstore"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/filestore"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/postgres"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/sqlite"
)

// NewStore opens the store selected by cfg.StoreDriver. SQL backends are
// bootstrapped before returning so the first request finds its tables.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.StoreDriver {
	case "", "file":
		st, err = filestore.Open(cfg.DataDir)
	case "sqlite":
		st, err = sqlite.New(ctx, cfg.SQLitePath)
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("MEMORY_SERVICE_POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
		st, err = postgres.New(ctx, cfg.PostgresDSN)
	case "bolt":
		st, err = boltstore.Open(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER: %s", cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	log.Debug().Str("driver", cfg.StoreDriver).Msg("store opened")
	return st, nil
}
