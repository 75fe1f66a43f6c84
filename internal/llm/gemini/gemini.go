// Package gemini implements llm.Generator over the Gemini generateContent REST API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModels is tried in order until one answers.
var DefaultModels = []string{
	"models/gemini-1.5-flash",
	"models/gemini-1.5-pro",
	"models/gemini-2.0-flash",
}

// placeholder sent when the conversation would otherwise open with a model turn
const openingUserText = "Hello"

type Config struct {
	APIKey     string
	BaseURL    string
	Models     []string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

type Client struct {
	http *resty.Client
	cfg  Config
	log  zerolog.Logger
}

var _ llm.Generator = (*Client)(nil)

func New(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: GOOGLE_API_KEY is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = llm.DefaultBaseDelay
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{http: c, cfg: cfg, log: log.With().Str("provider", "gemini").Logger()}, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

func (g generationConfig) empty() bool {
	return g.Temperature == nil && g.TopP == nil && g.TopK == nil && g.MaxOutputTokens == nil && len(g.StopSequences) == 0
}

type request struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type response struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r response) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// buildRequest maps messages to the Gemini payload. System messages become the
// system instruction; assistant messages use the "model" role.
func buildRequest(messages []model.Message, opts llm.Options) (request, error) {
	var (
		system   []string
		contents []content
	)
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
		case model.RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	joined := strings.Join(system, "\n\n")
	if len(contents) == 0 {
		if len(system) == 0 {
			return request{}, model.NewValidationError("messages", "no messages to send")
		}
		contents = append(contents, content{Role: "user", Parts: []part{{Text: joined}}})
	}
	if contents[0].Role != "user" {
		contents = append([]content{{Role: "user", Parts: []part{{Text: openingUserText}}}}, contents...)
	}

	req := request{Contents: contents}
	if len(system) > 0 {
		req.SystemInstruction = &content{Parts: []part{{Text: joined}}}
	}
	o := opts.Resolve()
	gc := generationConfig{
		Temperature:     o.Temperature,
		TopP:            o.TopP,
		TopK:            o.TopK,
		MaxOutputTokens: o.MaxOutputTokens,
		StopSequences:   o.StopSequences,
	}
	if !gc.empty() {
		req.GenerationConfig = &gc
	}
	return req, nil
}

// Generate tries each configured model in order. Busy responses are retried with
// backoff; a model that rejects the request is skipped.
func (c *Client) Generate(ctx context.Context, messages []model.Message, opts llm.Options) (string, error) {
	req, err := buildRequest(messages, opts)
	if err != nil {
		return "", err
	}

	var lastErr error
	for _, m := range c.cfg.Models {
		text, err := llm.Retry(ctx, c.cfg.MaxRetries, c.cfg.BaseDelay, func(ctx context.Context) (string, error) {
			return c.call(ctx, m, req)
		})
		if err == nil {
			if text == "" {
				return "", llm.Unavailable(fmt.Errorf("%s returned empty response", m))
			}
			return text, nil
		}
		var se *llm.StatusError
		if !errors.As(err, &se) {
			return "", fmt.Errorf("gemini generate: %w", err)
		}
		lastErr = err
		switch {
		case llm.Busy(se.StatusCode):
			c.log.Warn().Str("model", m).Int("status", se.StatusCode).Msg("model busy, trying next")
		case se.StatusCode == http.StatusBadRequest || se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusNotFound:
			c.log.Warn().Str("model", m).Int("status", se.StatusCode).Msg("model rejected request, trying next")
		default:
			return "", fmt.Errorf("gemini generate: %w", err)
		}
	}
	return "", llm.Unavailable(lastErr)
}

func (c *Client) call(ctx context.Context, modelName string, req request) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(&req).
		Post("/v1beta/" + modelName + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &llm.StatusError{Provider: "gemini", Model: modelName, StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	var out response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	return out.text(), nil
}
