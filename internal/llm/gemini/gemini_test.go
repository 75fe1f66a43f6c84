package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

func reply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
	})
	return string(b)
}

func newTestClient(t *testing.T, h http.HandlerFunc, models ...string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, Models: models, MaxRetries: 3, BaseDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestBuildRequest(t *testing.T) {
	temp := 0.4
	req, err := buildRequest([]model.Message{
		{Role: model.RoleSystem, Content: "sys one"},
		{Role: model.RoleSystem, Content: "sys two"},
		{Role: model.RoleAssistant, Content: "earlier answer"},
		{Role: model.RoleUser, Content: "question"},
	}, llm.Options{Temperature: &temp, ResponseLength: "short"})
	require.NoError(t, err)

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "sys one\n\nsys two", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, openingUserText, req.Contents[0].Parts[0].Text)
	assert.Equal(t, "model", req.Contents[1].Role)
	require.NotNil(t, req.GenerationConfig)
	assert.Equal(t, 256, *req.GenerationConfig.MaxOutputTokens)
}

func TestBuildRequestSystemOnly(t *testing.T) {
	req, err := buildRequest([]model.Message{{Role: model.RoleSystem, Content: "summarize this"}}, llm.Options{})
	require.NoError(t, err)
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "summarize this", req.Contents[0].Parts[0].Text)
	assert.Nil(t, req.GenerationConfig)

	_, err = buildRequest(nil, llm.Options{})
	assert.True(t, model.IsValidation(err))
}

func TestGenerateSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/m1:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(reply("hi there")))
	}, "models/m1")

	text, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestGenerateFallsBackAcrossModels(t *testing.T) {
	var (
		mu   sync.Mutex
		hits = map[string]int{}
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		switch {
		case strings.Contains(r.URL.Path, "busy"):
			w.WriteHeader(http.StatusTooManyRequests)
		case strings.Contains(r.URL.Path, "gone"):
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = w.Write([]byte(reply("from fallback")))
		}
	}, "models/busy", "models/gone", "models/ok")

	text, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, llm.Options{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, 3, hits["/v1beta/models/busy:generateContent"])
	assert.Equal(t, 1, hits["/v1beta/models/gone:generateContent"])
}

func TestGenerateAllBusy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, "models/a", "models/b")

	_, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, llm.Options{})
	assert.True(t, model.IsUpstreamUnavailable(err))
}

func TestGenerateEmptyTextIsBusy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}, "models/a")

	_, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, llm.Options{})
	assert.True(t, model.IsUpstreamUnavailable(err))
}

func TestGenerateServerErrorIsNotBusy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "models/a", "models/b")

	_, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, llm.Options{})
	require.Error(t, err)
	assert.False(t, model.IsUpstreamUnavailable(err))
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop())
	assert.Error(t, err)
}
