// Package postgres is the server SQL backend of the conversation store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/sqlstore"
)

// Dialect is the PostgreSQL flavour of the conversation schema.
var Dialect = sqlstore.Dialect{
	Name:           "postgres",
	NumberedParams: true,
	LockClause:     " FOR UPDATE",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS Conversations (
            UserId TEXT NOT NULL,
            ConversationId TEXT NOT NULL,
            TurnCount INTEGER NOT NULL,
            LastUpdated TIMESTAMPTZ NOT NULL,
            PRIMARY KEY(UserId, ConversationId)
        )`,
		`CREATE TABLE IF NOT EXISTS Turns (
            UserId TEXT NOT NULL,
            ConversationId TEXT NOT NULL,
            Seq INTEGER NOT NULL,
            TurnId UUID NOT NULL,
            Role TEXT NOT NULL,
            Content TEXT NOT NULL,
            CreatedAt TIMESTAMPTZ NOT NULL,
            PRIMARY KEY(UserId, ConversationId, Seq)
        )`,
		`CREATE TABLE IF NOT EXISTS ConversationStates (
            UserId TEXT NOT NULL,
            ConversationId TEXT NOT NULL,
            Summary TEXT,
            ConsolidationCount INTEGER NOT NULL DEFAULT 0,
            CreatedAt TIMESTAMPTZ NOT NULL,
            UpdatedAt TIMESTAMPTZ NOT NULL,
            PRIMARY KEY(UserId, ConversationId)
        )`,
	},
}

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New connects to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	s := sqlstore.New(db, Dialect)
	if err := s.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
