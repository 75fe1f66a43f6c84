package client

import "time"

// Message is a prior conversation message sent along with a generate request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Message        string    `json:"message"`
	Messages       []Message `json:"messages,omitempty"`
	// Options are passed through: temperature, top_p, top_k, max_output_tokens,
	// stop, response_length (short, medium, long).
	Options map[string]any `json:"options,omitempty"`
}

// GenerateMeta describes how memory shaped the reply.
type GenerateMeta struct {
	STMTurns             int    `json:"stm_turns"`
	LTMMemoriesRetrieved int    `json:"ltm_memories_retrieved"`
	HasSummary           bool   `json:"has_summary"`
	ConsolidationCount   int    `json:"consolidation_count"`
	TotalTokens          int    `json:"total_tokens"`
	PipelineVersion      string `json:"pipeline_version"`
	MemoryUsed           bool   `json:"memory_used"`
}

type GenerateResponse struct {
	AssistantMessage string       `json:"assistant_message"`
	Meta             GenerateMeta `json:"meta"`
}

type HistoryEntry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	TotalTurns         int        `json:"total_turns"`
	HasSummary         bool       `json:"has_summary"`
	ConsolidationCount int        `json:"consolidation_count"`
	LastUpdated        *time.Time `json:"last_updated"`
}

type HealthStatus struct {
	Status       string `json:"status"`
	MemorySystem string `json:"memory_system"`
	Timestamp    string `json:"timestamp"`
}

// Healthy reports whether the service answered "healthy".
func (h *HealthStatus) Healthy() bool { return h != nil && h.Status == "healthy" }

type conversationRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Limit          *int   `json:"limit,omitempty"`
}

type historyResponse struct {
	Success bool           `json:"success"`
	History []HistoryEntry `json:"history"`
	Count   int            `json:"count"`
}

type statsResponse struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}

type summaryResponse struct {
	Success bool    `json:"success"`
	Summary *string `json:"summary"`
}

type keyFactsResponse struct {
	Success  bool     `json:"success"`
	KeyFacts []string `json:"key_facts"`
	Count    int      `json:"count"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
