package ollama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			_, _ = w.Write([]byte(`{"embedding":[1.5,-2]}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed(t *testing.T) {
	p := New(newServer(t).URL, "nomic-embed-text", time.Second)
	vec, err := p.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1.5 || vec[1] != -2 {
		t.Fatalf("vec = %v", vec)
	}
}

func TestHealthPing(t *testing.T) {
	srv := newServer(t)
	if err := New(srv.URL, "nomic-embed-text", time.Second).HealthPing(context.Background()); err != nil {
		t.Fatalf("HealthPing: %v", err)
	}
	if err := New(srv.URL, "mxbai-embed-large", time.Second).HealthPing(context.Background()); err == nil {
		t.Fatal("expected missing model error")
	}
}
