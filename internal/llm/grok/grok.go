// Package grok implements llm.Generator over an OpenAI-compatible chat completions API.
package grok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

const (
	DefaultBaseURL = "https://api.x.ai/v1"
	DefaultModel   = "grok-2-mini"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

type Client struct {
	http *resty.Client
	cfg  Config
}

var _ llm.Generator = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("grok: GROK_API_KEY is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
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
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout)
	return &Client{http: c, cfg: cfg}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) buildRequest(messages []model.Message, opts llm.Options) chatRequest {
	o := opts.Resolve()
	req := chatRequest{
		Model:       c.cfg.Model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: o.Temperature,
		TopP:        o.TopP,
		MaxTokens:   o.MaxOutputTokens,
		Stop:        o.StopSequences,
	}
	for _, m := range messages {
		role := m.Role
		if role != model.RoleSystem && role != model.RoleAssistant {
			role = model.RoleUser
		}
		req.Messages = append(req.Messages, chatMessage{Role: string(role), Content: m.Content})
	}
	return req
}

// Generate sends one chat completion, retrying busy responses. top_k has no
// equivalent in this API and is ignored.
func (c *Client) Generate(ctx context.Context, messages []model.Message, opts llm.Options) (string, error) {
	req := c.buildRequest(messages, opts)
	text, err := llm.Retry(ctx, c.cfg.MaxRetries, c.cfg.BaseDelay, func(ctx context.Context) (string, error) {
		resp, err := c.http.R().SetContext(ctx).SetBody(&req).Post("/chat/completions")
		if err != nil {
			return "", fmt.Errorf("grok request: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return "", &llm.StatusError{Provider: "grok", Model: c.cfg.Model, StatusCode: resp.StatusCode(), Body: resp.String()}
		}
		var out chatResponse
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return "", fmt.Errorf("decode grok response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", nil
		}
		return out.Choices[0].Message.Content, nil
	})
	switch {
	case err != nil && llm.IsBusy(err):
		return "", llm.Unavailable(err)
	case err != nil:
		return "", fmt.Errorf("grok generate: %w", err)
	case text == "":
		return "", llm.Unavailable(errors.New("grok returned empty response"))
	}
	return text, nil
}
