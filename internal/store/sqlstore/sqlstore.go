// Package sqlstore implements store.Store on database/sql. Dialect-specific bits
// (placeholders, schema, row locking) are supplied by the sqlite and postgres packages.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

// Dialect describes how a database flavour differs from the queries below.
type Dialect struct {
	Name string
	// Schema holds idempotent CREATE statements run by Bootstrap.
	Schema []string
	// Numbered placeholders ($1, $2, ...) instead of '?'.
	NumberedParams bool
	// LockClause is appended to read-before-write selects inside a transaction.
	LockClause string
}

// Store is a store.Store over a *sql.DB.
type Store struct {
	db  *sql.DB
	d   Dialect
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps db. Call Bootstrap before first use on a fresh database.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, d: d, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Bootstrap creates the tables if they do not exist.
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range s.d.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.Name, err)
		}
	}
	return nil
}

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) q(query string) string {
	if !s.d.NumberedParams {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) SaveTurn(ctx context.Context, userID, conversationID, content string, role model.Role) (model.Turn, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.Turn{}, err
	}
	turn := model.Turn{ID: uuid.NewString(), Role: role, Content: content}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			count int
			last  time.Time
		)
		row := tx.QueryRowContext(ctx,
			s.q(`SELECT TurnCount, LastUpdated FROM Conversations WHERE UserId = ? AND ConversationId = ?`+s.d.LockClause),
			userID, conversationID)
		if err := row.Scan(&count, &last); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		turn.Timestamp = store.Timestamp(s.now())
		if turn.Timestamp.Before(last) {
			turn.Timestamp = last.UTC()
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO Turns (UserId, ConversationId, Seq, TurnId, Role, Content, CreatedAt) VALUES (?,?,?,?,?,?,?)`),
			userID, conversationID, count, turn.ID, string(turn.Role), turn.Content, turn.Timestamp); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO Conversations (UserId, ConversationId, TurnCount, LastUpdated) VALUES (?,?,?,?)
				ON CONFLICT (UserId, ConversationId) DO UPDATE SET TurnCount = excluded.TurnCount, LastUpdated = excluded.LastUpdated`),
			userID, conversationID, count+1, turn.Timestamp)
		return err
	})
	if err != nil {
		return model.Turn{}, fmt.Errorf("save turn: %w", err)
	}
	return turn, nil
}

func (s *Store) GetHistory(ctx context.Context, userID, conversationID string, limit int) ([]model.Turn, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return nil, err
	}
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx,
			s.q(`SELECT TurnId, Role, Content, CreatedAt FROM Turns WHERE UserId = ? AND ConversationId = ? ORDER BY Seq DESC LIMIT ?`),
			userID, conversationID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			s.q(`SELECT TurnId, Role, Content, CreatedAt FROM Turns WHERE UserId = ? AND ConversationId = ? ORDER BY Seq ASC`),
			userID, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	turns := []model.Turn{}
	for rows.Next() {
		var (
			t    model.Turn
			role string
		)
		if err := rows.Scan(&t.ID, &role, &t.Content, &t.Timestamp); err != nil {
			return nil, model.NewCorruptionError(store.RecordKey(userID, conversationID), err)
		}
		t.Role = model.Role(role)
		t.Timestamp = t.Timestamp.UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	if limit > 0 {
		for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
			turns[i], turns[j] = turns[j], turns[i]
		}
	}
	if err := store.CheckTurns(store.RecordKey(userID, conversationID), turns); err != nil {
		return nil, err
	}
	return turns, nil
}

type stateRow struct {
	summary   sql.NullString
	count     int
	createdAt time.Time
	updatedAt time.Time
	found     bool
}

func (r stateRow) state() model.ConversationState {
	st := model.ConversationState{ConsolidationCount: r.count}
	if r.found {
		st.Summary = r.summary.String
		st.UpdatedAt = r.updatedAt.UTC()
	}
	return st
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadState reads the state row. Driver and connection failures are returned as is;
// only a row that cannot be scanned is reported as corruption.
func (s *Store) loadState(ctx context.Context, q queryer, userID, conversationID, lock string) (stateRow, error) {
	rows, err := q.QueryContext(ctx,
		s.q(`SELECT Summary, ConsolidationCount, CreatedAt, UpdatedAt FROM ConversationStates WHERE UserId = ? AND ConversationId = ?`+lock),
		userID, conversationID)
	if err != nil {
		return stateRow{}, fmt.Errorf("load state: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return stateRow{}, fmt.Errorf("load state: %w", err)
		}
		return stateRow{}, nil
	}
	var r stateRow
	if err := rows.Scan(&r.summary, &r.count, &r.createdAt, &r.updatedAt); err != nil {
		return stateRow{}, model.NewCorruptionError(store.RecordKey(userID, conversationID), err)
	}
	if err := rows.Close(); err != nil {
		return stateRow{}, fmt.Errorf("load state: %w", err)
	}
	r.found = true
	return r, nil
}

func (s *Store) upsertState(ctx context.Context, tx *sql.Tx, userID, conversationID string, st model.ConversationState, createdAt time.Time) error {
	var summary sql.NullString
	if st.Summary != "" {
		summary = sql.NullString{String: st.Summary, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		s.q(`INSERT INTO ConversationStates (UserId, ConversationId, Summary, ConsolidationCount, CreatedAt, UpdatedAt) VALUES (?,?,?,?,?,?)
			ON CONFLICT (UserId, ConversationId) DO UPDATE SET Summary = excluded.Summary,
				ConsolidationCount = excluded.ConsolidationCount, UpdatedAt = excluded.UpdatedAt`),
		userID, conversationID, summary, st.ConsolidationCount, createdAt, st.UpdatedAt)
	return err
}

func (s *Store) SaveSummary(ctx context.Context, userID, conversationID, summary string) error {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.loadState(ctx, tx, userID, conversationID, s.d.LockClause)
		if err != nil {
			return err
		}
		now := store.Timestamp(s.now())
		st := r.state()
		st.Summary, st.UpdatedAt = summary, now
		return s.upsertState(ctx, tx, userID, conversationID, st, now)
	})
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (s *Store) GetSummary(ctx context.Context, userID, conversationID string) (string, bool, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return "", false, err
	}
	r, err := s.loadState(ctx, s.db, userID, conversationID, "")
	if err != nil {
		return "", false, err
	}
	if !r.found || !r.summary.Valid || r.summary.String == "" {
		return "", false, nil
	}
	return r.summary.String, true, nil
}

func (s *Store) GetState(ctx context.Context, userID, conversationID string) (model.ConversationState, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.ConversationState{}, err
	}
	r, err := s.loadState(ctx, s.db, userID, conversationID, "")
	if err != nil {
		return model.ConversationState{}, err
	}
	return r.state(), nil
}

func (s *Store) UpdateState(ctx context.Context, userID, conversationID string, patch model.StatePatch) (model.ConversationState, error) {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return model.ConversationState{}, err
	}
	var out model.ConversationState
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := s.loadState(ctx, tx, userID, conversationID, s.d.LockClause)
		if err != nil {
			return err
		}
		now := store.Timestamp(s.now())
		createdAt := r.createdAt
		if !r.found {
			createdAt = now
		}
		out = patch.Apply(r.state(), now)
		return s.upsertState(ctx, tx, userID, conversationID, out, createdAt)
	})
	if err != nil {
		return model.ConversationState{}, fmt.Errorf("update state: %w", err)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, userID, conversationID string) error {
	if err := store.ValidateKey(userID, conversationID); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"Turns", "Conversations", "ConversationStates"} {
			if _, err := tx.ExecContext(ctx,
				s.q(`DELETE FROM `+table+` WHERE UserId = ? AND ConversationId = ?`),
				userID, conversationID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", store.RecordKey(userID, conversationID), err)
	}
	return nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]model.ConversationInfo, error) {
	if err := store.ValidateUser(userID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT ConversationId, TurnCount, LastUpdated FROM Conversations WHERE UserId = ? ORDER BY ConversationId`),
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := []model.ConversationInfo{}
	for rows.Next() {
		var info model.ConversationInfo
		if err := rows.Scan(&info.ConversationID, &info.TurnCount, &info.LastUpdated); err != nil {
			return nil, model.NewCorruptionError(userID, err)
		}
		info.LastUpdated = info.LastUpdated.UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}
