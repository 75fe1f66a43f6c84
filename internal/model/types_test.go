package model

import (
	"errors"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"user": RoleUser, " Assistant ": RoleAssistant, "SYSTEM": RoleSystem} {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseRole("tool"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordAppendKeepsTimestampsMonotonic(t *testing.T) {
	var r ConversationRecord
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.Append(Turn{Role: RoleUser, Content: "a", Timestamp: t0})
	got := r.Append(Turn{Role: RoleAssistant, Content: "b", Timestamp: t0.Add(-time.Minute)})
	if got.Timestamp.Before(t0) {
		t.Fatalf("timestamp went backwards: %v", got.Timestamp)
	}
	if r.Metadata.TurnCount != 2 || !r.Metadata.LastUpdated.Equal(t0) {
		t.Fatalf("metadata = %+v", r.Metadata)
	}
	if tail := r.Tail(1); len(tail) != 1 || tail[0].Content != "b" {
		t.Fatalf("Tail(1) = %+v", tail)
	}
	if tail := r.Tail(0); len(tail) != 2 {
		t.Fatalf("Tail(0) len = %d, want 2", len(tail))
	}
}

func TestStatePatchNeverLowersConsolidationCount(t *testing.T) {
	now := time.Now()
	s := ConversationState{Summary: "old", ConsolidationCount: 3}
	lower := 1
	summary := "new"
	got := StatePatch{Summary: &summary, ConsolidationCount: &lower}.Apply(s, now)
	if got.ConsolidationCount != 3 {
		t.Fatalf("ConsolidationCount = %d, want 3", got.ConsolidationCount)
	}
	if got.Summary != "new" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("state = %+v", got)
	}
	got = StatePatch{}.Apply(got, now)
	if got.Summary != "new" {
		t.Fatalf("empty patch changed summary: %q", got.Summary)
	}
}

func TestCorruptionErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := NewCorruptionError("u/c", cause)
	if !IsStorageCorruption(err) || !errors.Is(err, cause) {
		t.Fatalf("corruption error does not unwrap: %v", err)
	}
	if IsCapacityExceeded(err) {
		t.Fatal("corruption error matched capacity sentinel")
	}
}
