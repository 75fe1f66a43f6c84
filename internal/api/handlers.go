package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/api/respond"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/api/validate"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/memory"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

// PipelineVersion tags generate responses produced by the memory pipeline.
const PipelineVersion = "memory_v1"

const maxBodyBytes = 1 << 20

// Memory is the orchestrator surface the handlers use.
type Memory interface {
	ProcessTurn(ctx context.Context, req memory.TurnRequest) (*memory.TurnResult, error)
	SaveAssistantReply(ctx context.Context, userID, conversationID, text string) error
	GetHistory(ctx context.Context, userID, conversationID string, limit int) ([]model.Turn, error)
	GetStats(ctx context.Context, userID, conversationID string) (memory.Stats, error)
	GetSummary(ctx context.Context, userID, conversationID string) (string, bool, error)
	KeyFacts(ctx context.Context, userID, conversationID string) ([]string, error)
	Clear(ctx context.Context, userID, conversationID string) error
}

// HealthReporter exposes cached service health.
type HealthReporter interface {
	IsHealthy() bool
	IsDegraded() bool
}

// Handler serves the /ai routes.
type Handler struct {
	mem    Memory
	gen    llm.Generator
	health HealthReporter
}

func NewHandler(mem Memory, gen llm.Generator, health HealthReporter) *Handler {
	return &Handler{mem: mem, gen: gen, health: health}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

type generateRequest struct {
	UserID         validate.ID        `json:"user_id"`
	ConversationID validate.ID        `json:"conversation_id"`
	Message        string             `json:"message"`
	Messages       []validate.Message `json:"messages"`
	Options        map[string]any     `json:"options"`
}

type generateMeta struct {
	memory.Metadata
	PipelineVersion string `json:"pipeline_version"`
	MemoryUsed      bool   `json:"memory_used"`
}

type generateResponse struct {
	AssistantMessage string       `json:"assistant_message"`
	Meta             generateMeta `json:"meta"`
}

// Generate handles POST /ai/generate.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Key(req.UserID, req.ConversationID); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if err := validate.UserMessage(req.Message); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	history, err := validate.History(req.Messages)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	opts, err := llm.ParseOptions(req.Options)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	ctx := r.Context()
	user, conv := req.UserID.String(), req.ConversationID.String()
	res, err := h.mem.ProcessTurn(ctx, memory.TurnRequest{
		UserID:         user,
		ConversationID: conv,
		Message:        req.Message,
		History:        history,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	// generation runs outside the per-user memory lock
	reply, err := h.gen.Generate(ctx, res.Context.Messages(), opts)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if err := h.mem.SaveAssistantReply(ctx, user, conv, reply); err != nil {
		respond.WriteDomainError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusOK, generateResponse{
		AssistantMessage: reply,
		Meta: generateMeta{
			Metadata:        res.Metadata,
			PipelineVersion: PipelineVersion,
			MemoryUsed:      len(res.Context.Entries) > 1,
		},
	})
}

type conversationRequest struct {
	UserID         validate.ID `json:"user_id"`
	ConversationID validate.ID `json:"conversation_id"`
	Limit          *int        `json:"limit,omitempty"`
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (conversationRequest, bool) {
	var req conversationRequest
	if !decode(w, r, &req) {
		return req, false
	}
	if err := validate.Key(req.UserID, req.ConversationID); err != nil {
		respond.WriteDomainError(w, err)
		return req, false
	}
	return req, true
}

type historyEntry struct {
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
}

// History handles POST /ai/memory/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	req, ok := h.conversation(w, r)
	if !ok {
		return
	}
	limit, err := validate.Limit(req.Limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	turns, err := h.mem.GetHistory(r.Context(), req.UserID.String(), req.ConversationID.String(), limit)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	out := make([]historyEntry, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyEntry{Role: t.Role, Content: t.Content, Timestamp: t.Timestamp})
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"history": out,
		"count":   len(out),
	})
}

// Stats handles POST /ai/memory/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	req, ok := h.conversation(w, r)
	if !ok {
		return
	}
	st, err := h.mem.GetStats(r.Context(), req.UserID.String(), req.ConversationID.String())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": st})
}

// Summary handles POST /ai/memory/summary. A conversation without a summary yields null.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	req, ok := h.conversation(w, r)
	if !ok {
		return
	}
	summary, found, err := h.mem.GetSummary(r.Context(), req.UserID.String(), req.ConversationID.String())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	var out *string
	if found {
		out = &summary
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "summary": out})
}

// KeyFacts handles POST /ai/memory/key-facts.
func (h *Handler) KeyFacts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.conversation(w, r)
	if !ok {
		return
	}
	facts, err := h.mem.KeyFacts(r.Context(), req.UserID.String(), req.ConversationID.String())
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"key_facts": facts,
		"count":     len(facts),
	})
}

// Clear handles POST /ai/memory/clear.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	req, ok := h.conversation(w, r)
	if !ok {
		return
	}
	if err := h.mem.Clear(r.Context(), req.UserID.String(), req.ConversationID.String()); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	log.Info().Str("user_id", req.UserID.String()).Str("conversation_id", req.ConversationID.String()).Msg("conversation memory cleared")
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Memory cleared successfully",
	})
}

// Health handles GET /ai/memory/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if h.health != nil && !h.health.IsHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	system := "operational"
	if h.health != nil && (h.health.IsDegraded() || !h.health.IsHealthy()) {
		system = "degraded"
	}
	respond.WriteJSON(w, code, map[string]interface{}{
		"status":        status,
		"memory_system": system,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}
