package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store and return it from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("AppendOnlyOrder", func(t *testing.T) { appendOnlyOrder(t, makeStore(t)) })
	t.Run("HistoryLimit", func(t *testing.T) { historyLimit(t, makeStore(t)) })
	t.Run("MissingIsEmpty", func(t *testing.T) { missingIsEmpty(t, makeStore(t)) })
	t.Run("SummaryIndependentOfTurns", func(t *testing.T) { summaryIndependent(t, makeStore(t)) })
	t.Run("StateShallowMerge", func(t *testing.T) { stateShallowMerge(t, makeStore(t)) })
	t.Run("ClearIdempotent", func(t *testing.T) { clearIdempotent(t, makeStore(t)) })
	t.Run("ListConversations", func(t *testing.T) { listConversations(t, makeStore(t)) })
	t.Run("UsersIsolated", func(t *testing.T) { usersIsolated(t, makeStore(t)) })
}

func ids() (string, string) {
	return "u-" + uuid.NewString()[:8], "c-" + uuid.NewString()[:8]
}

func appendOnlyOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, conv := ids()

	var want []string
	for i := 0; i < 7; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		content := fmt.Sprintf("message %d", i)
		turn, err := s.SaveTurn(ctx, user, conv, content, role)
		if err != nil {
			t.Fatalf("SaveTurn %d: %v", i, err)
		}
		if turn.Content != content || turn.Role != role || turn.Timestamp.IsZero() {
			t.Fatalf("SaveTurn %d returned %+v", i, turn)
		}
		want = append(want, content)
	}

	got, err := s.GetHistory(ctx, user, conv, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("GetHistory len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Content != want[i] {
			t.Fatalf("turn %d = %q, want %q", i, got[i].Content, want[i])
		}
		if i > 0 && got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("turn %d timestamp %v before previous %v", i, got[i].Timestamp, got[i-1].Timestamp)
		}
	}
	if got[1].Role != model.RoleAssistant {
		t.Fatalf("turn 1 role = %q, want assistant", got[1].Role)
	}
}

func historyLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, conv := ids()
	for i := 0; i < 5; i++ {
		if _, err := s.SaveTurn(ctx, user, conv, fmt.Sprintf("t%d", i), model.RoleUser); err != nil {
			t.Fatalf("SaveTurn: %v", err)
		}
	}
	got, err := s.GetHistory(ctx, user, conv, 2)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(got) != 2 || got[0].Content != "t3" || got[1].Content != "t4" {
		t.Fatalf("GetHistory(limit=2) = %+v", got)
	}
	got, err = s.GetHistory(ctx, user, conv, 50)
	if err != nil || len(got) != 5 {
		t.Fatalf("GetHistory(limit=50): n=%d err=%v", len(got), err)
	}
}

func missingIsEmpty(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, conv := ids()

	h, err := s.GetHistory(ctx, user, conv, 0)
	if err != nil || len(h) != 0 {
		t.Fatalf("GetHistory on missing: n=%d err=%v", len(h), err)
	}
	if _, ok, err := s.GetSummary(ctx, user, conv); err != nil || ok {
		t.Fatalf("GetSummary on missing: ok=%v err=%v", ok, err)
	}
	st, err := s.GetState(ctx, user, conv)
	if err != nil || st.HasSummary() || st.ConsolidationCount != 0 {
		t.Fatalf("GetState on missing: %+v err=%v", st, err)
	}
	lst, err := s.ListConversations(ctx, user)
	if err != nil || len(lst) != 0 {
		t.Fatalf("ListConversations on missing: %v err=%v", lst, err)
	}
}

func summaryIndependent(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, conv := ids()

	if err := s.SaveSummary(ctx, user, conv, "discussed recursion"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	got, ok, err := s.GetSummary(ctx, user, conv)
	if err != nil || !ok || got != "discussed recursion" {
		t.Fatalf("GetSummary = %q ok=%v err=%v", got, ok, err)
	}
	if h, err := s.GetHistory(ctx, user, conv, 0); err != nil || len(h) != 0 {
		t.Fatalf("summary leaked into turn log: n=%d err=%v", len(h), err)
	}

	count := 2
	if _, err := s.UpdateState(ctx, user, conv, model.StatePatch{ConsolidationCount: &count}); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if err := s.SaveSummary(ctx, user, conv, "discussed loops"); err != nil {
		t.Fatalf("SaveSummary overwrite: %v", err)
	}
	st, err := s.GetState(ctx, user, conv)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.Summary != "discussed loops" || st.ConsolidationCount != 2 {
		t.Fatalf("SaveSummary must keep consolidation count: %+v", st)
	}
}

func stateShallowMerge(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, conv := ids()

	summary := "first summary"
	one := 1
	st, err := s.UpdateState(ctx, user, conv, model.StatePatch{Summary: &summary, ConsolidationCount: &one})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if st.UpdatedAt.IsZero() {
		t.Fatalf("UpdateState did not stamp UpdatedAt: %+v", st)
	}
	first := st.UpdatedAt

	two := 2
	st, err = s.UpdateState(ctx, user, conv, model.StatePatch{ConsolidationCount: &two})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if st.Summary != "first summary" || st.ConsolidationCount != 2 {
		t.Fatalf("merge lost fields: %+v", st)
	}
	if st.UpdatedAt.Before(first) {
		t.Fatalf("UpdatedAt went backwards: %v < %v", st.UpdatedAt, first)
	}

	zero := 0
	st, err = s.UpdateState(ctx, user, conv, model.StatePatch{ConsolidationCount: &zero})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if st.ConsolidationCount != 2 {
		t.Fatalf("consolidation count decreased to %d", st.ConsolidationCount)
	}

	reloaded, err := s.GetState(ctx, user, conv)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if reloaded.Summary != st.Summary || reloaded.ConsolidationCount != st.ConsolidationCount {
		t.Fatalf("GetState = %+v, want %+v", reloaded, st)
	}
}

func clearIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, conv := ids()

	for i := 0; i < 5; i++ {
		if _, err := s.SaveTurn(ctx, user, conv, fmt.Sprintf("t%d", i), model.RoleUser); err != nil {
			t.Fatalf("SaveTurn: %v", err)
		}
	}
	if err := s.SaveSummary(ctx, user, conv, "a summary"); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Clear(ctx, user, conv); err != nil {
			t.Fatalf("Clear #%d: %v", i+1, err)
		}
		h, err := s.GetHistory(ctx, user, conv, 0)
		if err != nil || len(h) != 0 {
			t.Fatalf("GetHistory after clear #%d: n=%d err=%v", i+1, len(h), err)
		}
		if _, ok, err := s.GetSummary(ctx, user, conv); err != nil || ok {
			t.Fatalf("GetSummary after clear #%d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if lst, err := s.ListConversations(ctx, user); err != nil || len(lst) != 0 {
		t.Fatalf("ListConversations after clear: %v err=%v", lst, err)
	}
}

func listConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	user, _ := ids()

	counts := map[string]int{"alpha": 3, "beta": 1}
	for conv, n := range counts {
		for i := 0; i < n; i++ {
			if _, err := s.SaveTurn(ctx, user, conv, fmt.Sprintf("%s-%d", conv, i), model.RoleUser); err != nil {
				t.Fatalf("SaveTurn: %v", err)
			}
		}
	}

	lst, err := s.ListConversations(ctx, user)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(lst) != len(counts) {
		t.Fatalf("ListConversations len = %d, want %d (%+v)", len(lst), len(counts), lst)
	}
	for _, info := range lst {
		want, ok := counts[info.ConversationID]
		if !ok {
			t.Fatalf("unexpected conversation %q", info.ConversationID)
		}
		if info.TurnCount != want {
			t.Fatalf("%s TurnCount = %d, want %d", info.ConversationID, info.TurnCount, want)
		}
		if info.LastUpdated.IsZero() {
			t.Fatalf("%s LastUpdated is zero", info.ConversationID)
		}
	}
}

func usersIsolated(t *testing.T, s store.Store) {
	ctx := context.Background()
	userA, conv := ids()
	userB, _ := ids()

	if _, err := s.SaveTurn(ctx, userA, conv, "only for A", model.RoleUser); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	if h, err := s.GetHistory(ctx, userB, conv, 0); err != nil || len(h) != 0 {
		t.Fatalf("user B sees user A's turns: n=%d err=%v", len(h), err)
	}
	if lst, err := s.ListConversations(ctx, userB); err != nil || len(lst) != 0 {
		t.Fatalf("user B lists user A's conversations: %v err=%v", lst, err)
	}
}
