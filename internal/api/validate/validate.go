// Package validate checks and normalizes request input at the HTTP boundary.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

// MaxMessageLen bounds a single message accepted from a client.
const MaxMessageLen = 32000

// ID is an identifier that clients may send as a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number")
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Message is a history entry as sent by clients.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Key validates the user and conversation identifiers.
func Key(userID, conversationID ID) error {
	if userID == "" {
		return model.NewValidationError("user_id", "is required")
	}
	if conversationID == "" {
		return model.NewValidationError("conversation_id", "is required")
	}
	return store.ValidateKey(string(userID), string(conversationID))
}

// UserMessage validates the new user message.
func UserMessage(v string) error {
	if strings.TrimSpace(v) == "" {
		return model.NewValidationError("message", "is required")
	}
	if len(v) > MaxMessageLen {
		return model.NewValidationError("message", fmt.Sprintf("exceeds %d characters", MaxMessageLen))
	}
	return nil
}

// History converts client history into typed messages. Only user and assistant
// roles are accepted from clients.
func History(in []Message) ([]model.Message, error) {
	out := make([]model.Message, 0, len(in))
	for i, m := range in {
		role, err := model.ParseRole(m.Role)
		if err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("messages[%d].role", i), err.Error())
		}
		if role == model.RoleSystem {
			return nil, model.NewValidationError(fmt.Sprintf("messages[%d].role", i), "must be user or assistant")
		}
		out = append(out, model.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

// Limit accepts a missing or non-negative history limit; 0 means everything.
func Limit(v *int) (int, error) {
	if v == nil {
		return 0, nil
	}
	if *v < 0 {
		return 0, model.NewValidationError("limit", "must not be negative")
	}
	return *v, nil
}
