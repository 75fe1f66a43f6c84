// Package sqlite is the embedded SQL backend of the conversation store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/sqlstore"
)

// Dialect is the SQLite flavour of the conversation schema.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS Conversations (
            UserId TEXT NOT NULL,
            ConversationId TEXT NOT NULL,
            TurnCount INTEGER NOT NULL,
            LastUpdated TIMESTAMP NOT NULL,
            PRIMARY KEY(UserId, ConversationId)
        );`,
		`CREATE TABLE IF NOT EXISTS Turns (
            UserId TEXT NOT NULL,
            ConversationId TEXT NOT NULL,
            Seq INTEGER NOT NULL,
            TurnId TEXT NOT NULL,
            Role TEXT NOT NULL,
            Content TEXT NOT NULL,
            CreatedAt TIMESTAMP NOT NULL,
            PRIMARY KEY(UserId, ConversationId, Seq)
        );`,
		`CREATE TABLE IF NOT EXISTS ConversationStates (
            UserId TEXT NOT NULL,
            ConversationId TEXT NOT NULL,
            Summary TEXT,
            ConsolidationCount INTEGER NOT NULL DEFAULT 0,
            CreatedAt TIMESTAMP NOT NULL,
            UpdatedAt TIMESTAMP NOT NULL,
            PRIMARY KEY(UserId, ConversationId)
        );`,
	},
}

// Open opens (or creates) a SQLite database at the given path and enables WAL journal mode.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// single writer; transactions queue on the pool instead of failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens the database at path and ensures the schema exists.
func New(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	s := sqlstore.New(db, Dialect)
	if err := s.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
