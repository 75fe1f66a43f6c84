// Package memory runs the per-turn memory pipeline: consolidate long conversations
// into a summary, retrieve related summaries from the user's other conversations,
// assemble a budgeted context and persist the turn.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/contextbuilder"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/observability"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

// Strategy selects how a conversation is re-summarized once it crosses the threshold.
type Strategy string

const (
	StrategyFull        Strategy = "full"
	StrategyProgressive Strategy = "progressive"
)

const (
	DefaultConsolidationThreshold = 20
	DefaultTokenBudget            = 3000
	DefaultMaxMemories            = 3
)

// progressiveWindow is how many trailing messages are folded into an existing summary:
// the previous assistant reply and the new user message.
const progressiveWindow = 2

type Summarizer interface {
	Summarize(ctx context.Context, turns []model.Message) (string, error)
	ProgressiveSummarize(ctx context.Context, oldSummary string, newTurns []model.Message) (string, error)
	ExtractKeyFacts(ctx context.Context, turns []model.Message) ([]string, error)
}

type Retriever interface {
	FindRelevant(ctx context.Context, userID, conversationID, query string, k int) []model.RetrievedMemory
}

type ContextBuilder interface {
	Build(history []model.Message, summary string, memories []model.RetrievedMemory, budget int) (*contextbuilder.Context, error)
}

type Config struct {
	ConsolidationThreshold int
	Strategy               Strategy
	TokenBudget            int
	MaxMemories            int
}

func (c Config) withDefaults() Config {
	if c.ConsolidationThreshold <= 0 {
		c.ConsolidationThreshold = DefaultConsolidationThreshold
	}
	if c.Strategy == "" {
		c.Strategy = StrategyFull
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	if c.MaxMemories <= 0 {
		c.MaxMemories = DefaultMaxMemories
	}
	return c
}

// Orchestrator owns the pipeline collaborators and the per-user lock table.
// Locks are created on first use and kept for the life of the instance.
type Orchestrator struct {
	store      store.Store
	builder    ContextBuilder
	summarizer Summarizer
	retriever  Retriever
	cfg        Config
	log        zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(s store.Store, b ContextBuilder, sum Summarizer, r Retriever, cfg Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:      s,
		builder:    b,
		summarizer: sum,
		retriever:  r,
		cfg:        cfg.withDefaults(),
		log:        log.With().Str("component", "memory").Logger(),
		locks:      map[string]*sync.Mutex{},
	}
}

func (o *Orchestrator) userLock(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[userID] = l
	}
	return l
}

type TurnRequest struct {
	UserID         string
	ConversationID string
	Message        string
	// History is the conversation so far, oldest first. When empty the stored turn log is used.
	History []model.Message
}

type Metadata struct {
	STMTurns             int  `json:"stm_turns"`
	LTMMemoriesRetrieved int  `json:"ltm_memories_retrieved"`
	HasSummary           bool `json:"has_summary"`
	ConsolidationCount   int  `json:"consolidation_count"`
	TotalTokens          int  `json:"total_tokens"`
}

type TurnResult struct {
	Context  *contextbuilder.Context
	Metadata Metadata
}

// ProcessTurn enriches and persists one user message. Consolidation and retrieval
// problems are logged and leave the result without a new summary or memories;
// storage failures and an oversized system prompt are returned.
func (o *Orchestrator) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if err := store.ValidateKey(req.UserID, req.ConversationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, model.NewValidationError("message", "must not be empty")
	}

	l := o.userLock(req.UserID)
	l.Lock()
	defer l.Unlock()

	history, err := o.effectiveHistory(ctx, req)
	if err != nil {
		return nil, err
	}

	state, err := o.store.GetState(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if len(history) >= o.cfg.ConsolidationThreshold {
		if summary, ok := o.consolidate(ctx, req, state, history); ok {
			state.Summary = summary
			state.ConsolidationCount++
		}
	}

	memories := o.retriever.FindRelevant(ctx, req.UserID, req.ConversationID, req.Message, o.cfg.MaxMemories)

	built, err := o.builder.Build(history, state.Summary, memories, o.cfg.TokenBudget)
	if err != nil {
		return nil, err
	}

	if _, err := o.store.SaveTurn(ctx, req.UserID, req.ConversationID, req.Message, model.RoleUser); err != nil {
		return nil, err
	}
	summary, count := state.Summary, state.ConsolidationCount
	patch := model.StatePatch{ConsolidationCount: &count}
	if summary != "" {
		patch.Summary = &summary
	}
	if _, err := o.store.UpdateState(ctx, req.UserID, req.ConversationID, patch); err != nil {
		return nil, err
	}
	observability.TurnsProcessed.Inc()

	return &TurnResult{
		Context: built,
		Metadata: Metadata{
			STMTurns:             len(history),
			LTMMemoriesRetrieved: len(memories),
			HasSummary:           state.Summary != "",
			ConsolidationCount:   state.ConsolidationCount,
			TotalTokens:          built.Stats.TotalTokens,
		},
	}, nil
}

func (o *Orchestrator) effectiveHistory(ctx context.Context, req TurnRequest) ([]model.Message, error) {
	history := make([]model.Message, 0, len(req.History)+1)
	if len(req.History) > 0 {
		history = append(history, req.History...)
	} else {
		turns, err := o.store.GetHistory(ctx, req.UserID, req.ConversationID, 0)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, t := range turns {
			history = append(history, t.Message())
		}
	}
	last := len(history) - 1
	if last < 0 || history[last].Role != model.RoleUser || history[last].Content != req.Message {
		history = append(history, model.Message{Role: model.RoleUser, Content: req.Message})
	}
	return history, nil
}

func (o *Orchestrator) consolidate(ctx context.Context, req TurnRequest, state model.ConversationState, history []model.Message) (string, bool) {
	var (
		summary string
		err     error
	)
	if o.cfg.Strategy == StrategyProgressive && state.HasSummary() {
		window := history
		if len(window) > progressiveWindow {
			window = window[len(window)-progressiveWindow:]
		}
		summary, err = o.summarizer.ProgressiveSummarize(ctx, state.Summary, window)
	} else {
		summary, err = o.summarizer.Summarize(ctx, history)
	}
	if err == nil {
		err = o.store.SaveSummary(ctx, req.UserID, req.ConversationID, summary)
	}
	if err != nil {
		observability.Consolidations.WithLabelValues("failed").Inc()
		o.log.Warn().Err(err).
			Str("user_id", req.UserID).
			Str("conversation_id", req.ConversationID).
			Msg("consolidation failed; keeping previous summary")
		return "", false
	}
	observability.Consolidations.WithLabelValues("ok").Inc()
	o.log.Debug().
		Str("user_id", req.UserID).
		Str("conversation_id", req.ConversationID).
		Int("turns", len(history)).
		Str("strategy", string(o.cfg.Strategy)).
		Msg("conversation consolidated")
	return summary, true
}

// SaveAssistantReply appends the generated reply to the conversation.
func (o *Orchestrator) SaveAssistantReply(ctx context.Context, userID, conversationID, text string) error {
	l := o.userLock(userID)
	l.Lock()
	defer l.Unlock()
	_, err := o.store.SaveTurn(ctx, userID, conversationID, text, model.RoleAssistant)
	return err
}

func (o *Orchestrator) GetHistory(ctx context.Context, userID, conversationID string, limit int) ([]model.Turn, error) {
	return o.store.GetHistory(ctx, userID, conversationID, limit)
}

type Stats struct {
	TotalTurns         int        `json:"total_turns"`
	HasSummary         bool       `json:"has_summary"`
	ConsolidationCount int        `json:"consolidation_count"`
	LastUpdated        *time.Time `json:"last_updated"`
}

// GetStats reports turn count, summary presence and the timestamp of the latest turn.
func (o *Orchestrator) GetStats(ctx context.Context, userID, conversationID string) (Stats, error) {
	turns, err := o.store.GetHistory(ctx, userID, conversationID, 0)
	if err != nil {
		return Stats{}, err
	}
	state, err := o.store.GetState(ctx, userID, conversationID)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		TotalTurns:         len(turns),
		HasSummary:         state.HasSummary(),
		ConsolidationCount: state.ConsolidationCount,
	}
	if n := len(turns); n > 0 {
		ts := turns[n-1].Timestamp
		st.LastUpdated = &ts
	}
	return st, nil
}

// GetSummary returns the stored summary, or "", false when there is none.
func (o *Orchestrator) GetSummary(ctx context.Context, userID, conversationID string) (string, bool, error) {
	return o.store.GetSummary(ctx, userID, conversationID)
}

// KeyFacts extracts a bullet list of facts from the stored turns. A conversation
// without turns yields an empty list and no generation call.
func (o *Orchestrator) KeyFacts(ctx context.Context, userID, conversationID string) ([]string, error) {
	turns, err := o.store.GetHistory(ctx, userID, conversationID, 0)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return []string{}, nil
	}
	msgs := make([]model.Message, len(turns))
	for i, t := range turns {
		msgs[i] = t.Message()
	}
	facts, err := o.summarizer.ExtractKeyFacts(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("extract key facts: %w", err)
	}
	if facts == nil {
		facts = []string{}
	}
	return facts, nil
}

// Clear removes the conversation's turns and summary state.
func (o *Orchestrator) Clear(ctx context.Context, userID, conversationID string) error {
	l := o.userLock(userID)
	l.Lock()
	defer l.Unlock()
	return o.store.Clear(ctx, userID, conversationID)
}
