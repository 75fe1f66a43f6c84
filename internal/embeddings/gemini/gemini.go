// Package gemini embeds text with the Gemini embedContent endpoint.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/embeddings"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "text-embedding-004"
	DefaultTimeout = 15 * time.Second
)

type Provider struct {
	client *resty.Client
	apiKey string
	model  string
}

var _ embeddings.Provider = (*Provider)(nil)

// New returns a provider. An empty apiKey is allowed: Embed then reports
// embeddings.ErrNoEmbedding so memory retrieval degrades to "no memories".
func New(apiKey, baseURL, model string, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Provider{client: c, apiKey: apiKey, model: strings.TrimPrefix(model, "models/")}
}

type part struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []part `json:"parts"`
	} `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, embeddings.ErrNoEmbedding
	}
	var req embedRequest
	req.Model = "models/" + p.model
	req.Content.Parts = []part{{Text: text}}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("key", p.apiKey).
		SetBody(&req).
		Post("/v1beta/models/" + p.model + ":embedContent")
	if err != nil {
		return nil, fmt.Errorf("gemini embed request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("gemini embed status %d: %s", resp.StatusCode(), resp.String())
	}
	var out embedResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode gemini embedding: %w", err)
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini embed: empty vector")
	}
	return out.Embedding.Values, nil
}
