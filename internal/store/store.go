package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

// Store is the durable record of turns, summaries and per-conversation state,
// keyed by (user, conversation).
//
// Every mutation replaces a whole record; readers never observe a partial write.
// Callers serialise writes for a user (see memory.Orchestrator); backends do not
// assume any locking beyond their own transaction or file-rename semantics.
type Store interface {
	// SaveTurn appends a turn stamped with the current time and returns it.
	SaveTurn(ctx context.Context, userID, conversationID, content string, role model.Role) (model.Turn, error)
	// GetHistory returns the turn log in insertion order, or its last limit entries when limit > 0.
	// A missing conversation yields an empty slice.
	GetHistory(ctx context.Context, userID, conversationID string, limit int) ([]model.Turn, error)

	SaveSummary(ctx context.Context, userID, conversationID, summary string) error
	// GetSummary reports ok=false when no summary is stored.
	GetSummary(ctx context.Context, userID, conversationID string) (summary string, ok bool, err error)

	GetState(ctx context.Context, userID, conversationID string) (model.ConversationState, error)
	UpdateState(ctx context.Context, userID, conversationID string, patch model.StatePatch) (model.ConversationState, error)

	// Clear removes the turn log and the summary/state record. Clearing an absent conversation is not an error.
	Clear(ctx context.Context, userID, conversationID string) error
	ListConversations(ctx context.Context, userID string) ([]model.ConversationInfo, error)

	Close() error
}

// ValidateKey rejects identifiers that cannot address a record safely on any backend.
func ValidateKey(userID, conversationID string) error {
	if err := validateID("user_id", userID); err != nil {
		return err
	}
	return validateID("conversation_id", conversationID)
}

// ValidateUser is ValidateKey for user-scoped operations.
func ValidateUser(userID string) error { return validateID("user_id", userID) }

func validateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return model.NewValidationError(field, "must not be empty")
	}
	if len(id) > 128 {
		return model.NewValidationError(field, "must be at most 128 characters")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return model.NewValidationError(field, "contains illegal characters")
	}
	return nil
}

// RecordKey names a conversation record in logs and corruption errors.
func RecordKey(userID, conversationID string) string { return userID + "/" + conversationID }

// Timestamp normalises a clock reading to the precision every backend can round-trip.
func Timestamp(now time.Time) time.Time { return now.UTC().Truncate(time.Microsecond) }

// CheckTurns rejects a decoded turn log whose roles are not ones this service writes.
func CheckTurns(key string, turns []model.Turn) error {
	for i, t := range turns {
		if t.Role != model.RoleUser && t.Role != model.RoleAssistant && t.Role != model.RoleSystem {
			return model.NewCorruptionError(key, fmt.Errorf("turn %d has unknown role %q", i, t.Role))
		}
	}
	return nil
}
