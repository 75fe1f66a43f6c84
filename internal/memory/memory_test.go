package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/contextbuilder"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings/hash"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/retriever"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store/filestore"
)

type fakeSummarizer struct {
	mu          sync.Mutex
	full        int
	progressive int
	facts       int
	lastOld     string
	lastWindow  []model.Message
	err         error
}

func (f *fakeSummarizer) Summarize(_ context.Context, turns []model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("summary of %d turns", len(turns)), nil
}

func (f *fakeSummarizer) ProgressiveSummarize(_ context.Context, old string, turns []model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressive++
	f.lastOld, f.lastWindow = old, turns
	if f.err != nil {
		return "", f.err
	}
	return old + " +" + fmt.Sprint(len(turns)), nil
}

func (f *fakeSummarizer) ExtractKeyFacts(_ context.Context, turns []model.Message) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.facts++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == model.RoleUser {
			out = append(out, "user said "+t.Content)
		}
	}
	return out, nil
}

type harness struct {
	orch  *Orchestrator
	store *filestore.Store
	sum   *fakeSummarizer
}

func newHarness(t *testing.T, cfg Config, opts ...contextbuilder.Option) *harness {
	t.Helper()
	s, err := filestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	r, err := retriever.New(s, hash.New(0), 64, zerolog.Nop())
	if err != nil {
		t.Fatalf("retriever.New: %v", err)
	}
	sum := &fakeSummarizer{}
	return &harness{
		orch:  New(s, contextbuilder.New(opts...), sum, r, cfg, zerolog.Nop()),
		store: s,
		sum:   sum,
	}
}

func (h *harness) turn(t *testing.T, user, conv, msg string) *TurnResult {
	t.Helper()
	res, err := h.orch.ProcessTurn(context.Background(), TurnRequest{UserID: user, ConversationID: conv, Message: msg})
	if err != nil {
		t.Fatalf("ProcessTurn(%q): %v", msg, err)
	}
	return res
}

func TestConsolidationAtThreshold(t *testing.T) {
	h := newHarness(t, Config{ConsolidationThreshold: 20})

	var res *TurnResult
	for i := 1; i <= 19; i++ {
		res = h.turn(t, "u1", "c1", fmt.Sprintf("user message %d", i))
	}
	if res.Metadata.HasSummary || res.Metadata.ConsolidationCount != 0 {
		t.Fatalf("after 19 turns: %+v", res.Metadata)
	}
	if res.Metadata.STMTurns != 19 {
		t.Fatalf("STMTurns = %d, want 19", res.Metadata.STMTurns)
	}

	res = h.turn(t, "u1", "c1", "user message 20")
	if !res.Metadata.HasSummary || res.Metadata.ConsolidationCount != 1 {
		t.Fatalf("after 20 turns: %+v", res.Metadata)
	}
	got, ok, err := h.orch.GetSummary(context.Background(), "u1", "c1")
	if err != nil || !ok || got != "summary of 20 turns" {
		t.Fatalf("GetSummary = %q ok=%v err=%v", got, ok, err)
	}
	st, err := h.orch.GetStats(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.TotalTurns != 20 || !st.HasSummary || st.ConsolidationCount != 1 || st.LastUpdated == nil {
		t.Fatalf("stats = %+v", st)
	}
}

func TestHistoryNormalization(t *testing.T) {
	h := newHarness(t, Config{})
	hist := []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
		{Role: model.RoleUser, Content: "what is a loop?"},
	}
	res, err := h.orch.ProcessTurn(context.Background(), TurnRequest{UserID: "u", ConversationID: "c", Message: "what is a loop?", History: hist})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Metadata.STMTurns != 3 {
		t.Fatalf("message appended twice: STMTurns = %d", res.Metadata.STMTurns)
	}

	res, err = h.orch.ProcessTurn(context.Background(), TurnRequest{UserID: "u", ConversationID: "c", Message: "and recursion?", History: hist})
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if res.Metadata.STMTurns != 4 {
		t.Fatalf("STMTurns = %d, want 4", res.Metadata.STMTurns)
	}
	entries := res.Context.Entries
	if last := entries[len(entries)-1]; last.Role != model.RoleUser || last.Content != "and recursion?" {
		t.Fatalf("last context entry = %+v", last)
	}
}

func TestConsolidationFailureIsAbsorbed(t *testing.T) {
	h := newHarness(t, Config{ConsolidationThreshold: 2})
	h.sum.err = model.ErrUpstreamUnavailable

	h.turn(t, "u", "c", "one")
	res := h.turn(t, "u", "c", "two")
	if res.Metadata.HasSummary || res.Metadata.ConsolidationCount != 0 {
		t.Fatalf("degraded turn should carry no summary: %+v", res.Metadata)
	}
	if h.sum.full != 1 {
		t.Fatalf("summarizer calls = %d", h.sum.full)
	}
	turns, _ := h.orch.GetHistory(context.Background(), "u", "c", 0)
	if len(turns) != 2 {
		t.Fatalf("turn not saved in degraded mode: %d", len(turns))
	}
}

func TestProgressiveStrategy(t *testing.T) {
	h := newHarness(t, Config{ConsolidationThreshold: 2, Strategy: StrategyProgressive})

	h.turn(t, "u", "c", "one")
	if err := h.orch.SaveAssistantReply(context.Background(), "u", "c", "reply one"); err != nil {
		t.Fatalf("SaveAssistantReply: %v", err)
	}
	res := h.turn(t, "u", "c", "two")
	if h.sum.full != 1 || h.sum.progressive != 0 {
		t.Fatalf("first consolidation must be full: full=%d progressive=%d", h.sum.full, h.sum.progressive)
	}
	if res.Metadata.ConsolidationCount != 1 {
		t.Fatalf("count = %d", res.Metadata.ConsolidationCount)
	}

	res = h.turn(t, "u", "c", "three")
	if h.sum.progressive != 1 || h.sum.lastOld != "summary of 3 turns" {
		t.Fatalf("progressive not used: %+v", h.sum)
	}
	if len(h.sum.lastWindow) != 2 || h.sum.lastWindow[1].Content != "three" {
		t.Fatalf("window = %+v", h.sum.lastWindow)
	}
	if res.Metadata.ConsolidationCount != 2 {
		t.Fatalf("count = %d", res.Metadata.ConsolidationCount)
	}
}

func TestRetrievesOtherConversations(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.turn(t, "u", "c1", "let's talk about recursion")
	if err := h.store.SaveSummary(ctx, "u", "c1", "discussed recursion and loops"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	res := h.turn(t, "u", "c2", "explain recursion again")
	if res.Metadata.LTMMemoriesRetrieved != 1 {
		t.Fatalf("memories = %d", res.Metadata.LTMMemoriesRetrieved)
	}
	found := false
	for _, e := range res.Context.Entries {
		if strings.HasPrefix(e.Content, contextbuilder.MemoryLabel) && strings.Contains(e.Content, "discussed recursion and loops") {
			found = true
		}
	}
	if !found {
		t.Fatalf("memory entry missing from context: %+v", res.Context.Entries)
	}
	if res.Metadata.TotalTokens != res.Context.Stats.TotalTokens || res.Metadata.TotalTokens == 0 {
		t.Fatalf("TotalTokens = %d", res.Metadata.TotalTokens)
	}
}

func TestClearScenario(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.turn(t, "u", "c", fmt.Sprintf("m%d", i))
	}
	if err := h.store.SaveSummary(ctx, "u", "c", "some summary"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := h.orch.Clear(ctx, "u", "c"); err != nil {
			t.Fatalf("Clear: %v", err)
		}
	}
	if turns, err := h.orch.GetHistory(ctx, "u", "c", 0); err != nil || len(turns) != 0 {
		t.Fatalf("history after clear: n=%d err=%v", len(turns), err)
	}
	if _, ok, err := h.orch.GetSummary(ctx, "u", "c"); err != nil || ok {
		t.Fatalf("summary after clear: ok=%v err=%v", ok, err)
	}
	st, err := h.orch.GetStats(ctx, "u", "c")
	if err != nil || st.TotalTurns != 0 || st.LastUpdated != nil {
		t.Fatalf("stats after clear: %+v err=%v", st, err)
	}
}

func TestCapacityExceededSavesNoTurn(t *testing.T) {
	h := newHarness(t, Config{TokenBudget: 10}, contextbuilder.WithSystemPrompt(strings.Repeat("long prompt ", 50)))
	_, err := h.orch.ProcessTurn(context.Background(), TurnRequest{UserID: "u", ConversationID: "c", Message: "hi"})
	if !model.IsCapacityExceeded(err) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
	if turns, _ := h.orch.GetHistory(context.Background(), "u", "c", 0); len(turns) != 0 {
		t.Fatalf("turn saved despite failure: %d", len(turns))
	}
}

// Consolidation runs before the context is built, so its summary is already stored
// when the build fails; the turn and the consolidation count are not.
func TestCapacityExceededAfterConsolidationKeepsSummary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{TokenBudget: 10, ConsolidationThreshold: 1},
		contextbuilder.WithSystemPrompt(strings.Repeat("long prompt ", 50)))

	_, err := h.orch.ProcessTurn(ctx, TurnRequest{UserID: "u", ConversationID: "c", Message: "hi"})
	if !model.IsCapacityExceeded(err) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
	if h.sum.full != 1 {
		t.Fatalf("summarize calls = %d, want 1", h.sum.full)
	}
	if turns, _ := h.orch.GetHistory(ctx, "u", "c", 0); len(turns) != 0 {
		t.Fatalf("turn saved despite failure: %d", len(turns))
	}
	summary, ok, err := h.orch.GetSummary(ctx, "u", "c")
	if err != nil || !ok || summary != "summary of 1 turns" {
		t.Fatalf("summary = %q ok=%v err=%v", summary, ok, err)
	}
	st, err := h.orch.GetStats(ctx, "u", "c")
	if err != nil || st.ConsolidationCount != 0 || st.TotalTurns != 0 {
		t.Fatalf("stats = %+v err=%v", st, err)
	}
}

func TestKeyFacts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{})

	facts, err := h.orch.KeyFacts(ctx, "u", "empty")
	if err != nil || len(facts) != 0 || facts == nil {
		t.Fatalf("KeyFacts on empty conversation = %#v err=%v", facts, err)
	}
	if h.sum.facts != 0 {
		t.Fatalf("extractor called for an empty conversation")
	}

	h.turn(t, "u", "c", "I use Go")
	if err := h.orch.SaveAssistantReply(ctx, "u", "c", "nice"); err != nil {
		t.Fatalf("SaveAssistantReply: %v", err)
	}
	h.turn(t, "u", "c", "I like tests")
	facts, err = h.orch.KeyFacts(ctx, "u", "c")
	if err != nil {
		t.Fatalf("KeyFacts: %v", err)
	}
	if len(facts) != 2 || facts[0] != "user said I use Go" || facts[1] != "user said I like tests" {
		t.Fatalf("KeyFacts = %v", facts)
	}

	h.sum.err = errors.New("model down")
	if _, err := h.orch.KeyFacts(ctx, "u", "c"); err == nil {
		t.Fatal("expected extractor error")
	}
}

type failingStore struct {
	store.Store
}

func (failingStore) SaveTurn(context.Context, string, string, string, model.Role) (model.Turn, error) {
	return model.Turn{}, errors.New("disk full")
}

func TestStorageFailureIsFatal(t *testing.T) {
	h := newHarness(t, Config{})
	r, _ := retriever.New(h.store, hash.New(0), 8, zerolog.Nop())
	o := New(failingStore{h.store}, contextbuilder.New(), h.sum, r, Config{}, zerolog.Nop())
	if _, err := o.ProcessTurn(context.Background(), TurnRequest{UserID: "u", ConversationID: "c", Message: "hi"}); err == nil {
		t.Fatal("expected storage error")
	}
}

func TestValidation(t *testing.T) {
	h := newHarness(t, Config{})
	cases := []TurnRequest{
		{UserID: "", ConversationID: "c", Message: "hi"},
		{UserID: "u", ConversationID: "../x", Message: "hi"},
		{UserID: "u", ConversationID: "c", Message: "   "},
	}
	for _, req := range cases {
		if _, err := h.orch.ProcessTurn(context.Background(), req); !model.IsValidation(err) {
			t.Fatalf("%+v: err = %v", req, err)
		}
	}
}

func TestConcurrentTurnsSameUser(t *testing.T) {
	h := newHarness(t, Config{ConsolidationThreshold: 1000})
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.ProcessTurn(context.Background(), TurnRequest{UserID: "u", ConversationID: "c", Message: fmt.Sprintf("m%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ProcessTurn: %v", err)
		}
	}
	turns, err := h.orch.GetHistory(context.Background(), "u", "c", 0)
	if err != nil || len(turns) != n {
		t.Fatalf("history after concurrent turns: n=%d err=%v", len(turns), err)
	}
}

func TestUserLockTable(t *testing.T) {
	h := newHarness(t, Config{})
	a1, a2, b := h.orch.userLock("a"), h.orch.userLock("a"), h.orch.userLock("b")
	if a1 != a2 || a1 == b {
		t.Fatal("lock table must hand out one mutex per user")
	}
}
