//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/storetest"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "memory",
			"POSTGRES_PASSWORD": "memory",
			"POSTGRES_DB":       "memory",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	endpoint, err := c.PortEndpoint(ctx, "5432/tcp", "")
	if err != nil {
		t.Fatalf("postgres endpoint: %v", err)
	}
	return fmt.Sprintf("postgres://memory:memory@%s/memory?sslmode=disable", endpoint)
}

func TestPostgresStore_ComplianceContainer(t *testing.T) {
	dsn := startPostgres(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(context.Background(), dsn)
		if err != nil {
			t.Fatalf("postgres new: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
