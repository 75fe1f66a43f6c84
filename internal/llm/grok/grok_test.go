package grok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "secret", BaseURL: srv.URL, MaxRetries: 3, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	})

	topP := 0.8
	text, err := c.Generate(context.Background(), []model.Message{
		{Role: model.RoleSystem, Content: "be brief"},
		{Role: model.RoleUser, Content: "ping"},
	}, llm.Options{TopP: &topP, ResponseLength: "medium", StopSequences: []string{"##"}})
	require.NoError(t, err)
	assert.Equal(t, "pong", text)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 512, *got.MaxTokens)
	assert.Equal(t, []string{"##"}, got.Stop)
}

func TestGenerateBusy(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "ping"}}, llm.Options{})
	assert.True(t, model.IsUpstreamUnavailable(err))
	assert.Equal(t, 3, calls)
}

func TestGenerateEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})
	_, err := c.Generate(context.Background(), []model.Message{{Role: model.RoleUser, Content: "ping"}}, llm.Options{})
	assert.True(t, model.IsUpstreamUnavailable(err))
}
