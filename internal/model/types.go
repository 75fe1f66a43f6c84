package model

import (
	"fmt"
	"strings"
	"time"
)

// Role attributes a message to its author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole validates a raw role string coming from a request or a persisted record.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", NewValidationError("role", fmt.Sprintf("unsupported role %q", s))
	}
}

// Message is a role-tagged piece of text exchanged with the generation capability.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is one persisted message of a conversation. Turns are immutable once written.
type Turn struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message returns the turn as a Message.
func (t Turn) Message() Message { return Message{Role: t.Role, Content: t.Content} }

// RecordMetadata is kept alongside the turn log.
type RecordMetadata struct {
	TurnCount   int       `json:"turn_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// ConversationRecord is the persisted aggregate of a conversation's turn log.
type ConversationRecord struct {
	Turns    []Turn         `json:"turns"`
	Metadata RecordMetadata `json:"metadata"`
}

// Append adds a turn and refreshes the metadata. The turn timestamp is moved forward
// if needed so the log stays non-decreasing.
func (r *ConversationRecord) Append(t Turn) Turn {
	if n := len(r.Turns); n > 0 && t.Timestamp.Before(r.Turns[n-1].Timestamp) {
		t.Timestamp = r.Turns[n-1].Timestamp
	}
	r.Turns = append(r.Turns, t)
	r.Metadata.TurnCount = len(r.Turns)
	r.Metadata.LastUpdated = t.Timestamp
	return t
}

// Tail returns the last limit turns, or all of them when limit <= 0.
func (r *ConversationRecord) Tail(limit int) []Turn {
	turns := r.Turns
	if limit > 0 && limit < len(turns) {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// ConversationState is the per-conversation consolidation state.
type ConversationState struct {
	Summary            string    `json:"summary,omitempty"`
	ConsolidationCount int       `json:"consolidation_count"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// HasSummary reports whether a non-empty summary is stored.
func (s ConversationState) HasSummary() bool { return strings.TrimSpace(s.Summary) != "" }

// StatePatch carries the fields to merge into a stored ConversationState.
// Nil fields are left untouched.
type StatePatch struct {
	Summary            *string
	ConsolidationCount *int
}

// Apply merges the patch over s and stamps UpdatedAt. ConsolidationCount never decreases.
func (p StatePatch) Apply(s ConversationState, now time.Time) ConversationState {
	if p.Summary != nil {
		s.Summary = *p.Summary
	}
	if p.ConsolidationCount != nil && *p.ConsolidationCount > s.ConsolidationCount {
		s.ConsolidationCount = *p.ConsolidationCount
	}
	s.UpdatedAt = now
	return s
}

// SummaryRecord is the persisted summary/state document of a conversation.
type SummaryRecord struct {
	Summary            string    `json:"summary"`
	ConversationID     string    `json:"conversation_id"`
	UserID             string    `json:"user_id"`
	ConsolidationCount int       `json:"consolidation_count"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// State projects the record onto a ConversationState.
func (r SummaryRecord) State() ConversationState {
	return ConversationState{Summary: r.Summary, ConsolidationCount: r.ConsolidationCount, UpdatedAt: r.UpdatedAt}
}

// ConversationInfo describes a stored conversation of a user.
type ConversationInfo struct {
	ConversationID string    `json:"conversationId"`
	TurnCount      int       `json:"turnCount"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// RetrievedMemory is a past conversation summary judged relevant to the current message.
type RetrievedMemory struct {
	Content              string  `json:"content"`
	Similarity           float64 `json:"similarity"`
	SourceConversationID string  `json:"sourceConversationId"`
}

// ContextEntry is one element of the assembled prompt context.
type ContextEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Message returns the entry as a Message.
func (e ContextEntry) Message() Message { return Message{Role: e.Role, Content: e.Content} }
