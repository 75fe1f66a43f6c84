package hash

import (
	"context"
	"math"
	"testing"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	e := New(0)
	a, err := e.Embed(context.Background(), "Recursion is when a function calls itself")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "Recursion is when a function calls itself")
	if len(a) != DefaultDimensions {
		t.Fatalf("len = %d", len(a))
	}
	if math.Abs(dot(a, a)-1) > 1e-5 {
		t.Fatalf("not unit length: %v", dot(a, a))
	}
	if math.Abs(dot(a, b)-1) > 1e-5 {
		t.Fatal("same text embedded differently")
	}
}

func TestSharedVocabularyIsCloser(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "explain recursion again")
	near, _ := e.Embed(ctx, "Explained recursion again with base cases")
	far, _ := e.Embed(ctx, "Talked about baking sourdough bread")
	if dot(q, near) <= dot(q, far) {
		t.Fatalf("near=%v far=%v", dot(q, near), dot(q, far))
	}
}

func TestEmptyTextIsZeroVector(t *testing.T) {
	v, err := New(8).Embed(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("want zero vector, got %v", v)
		}
	}
}
