// Package anthropic implements llm.Generator over the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 1024
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type Client struct {
	api   anthropic.Client
	model string
}

var _ llm.Generator = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: ANTHROPIC_API_KEY is not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.MaxRetries-1, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{api: anthropic.NewClient(opts...), model: cfg.Model}, nil
}

func (c *Client) buildParams(messages []model.Message, opts llm.Options) (anthropic.MessageNewParams, error) {
	var (
		system []string
		msgs   []anthropic.MessageParam
	)
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			system = append(system, m.Content)
		case model.RoleAssistant:
			if len(msgs) == 0 {
				msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock("Hello")))
			}
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	joined := strings.Join(system, "\n\n")
	if len(msgs) == 0 {
		if joined == "" {
			return anthropic.MessageNewParams{}, model.NewValidationError("messages", "no messages to send")
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(joined)))
		joined = ""
	}

	o := opts.Resolve()
	maxTokens := defaultMaxTokens
	if o.MaxOutputTokens != nil {
		maxTokens = *o.MaxOutputTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if joined != "" {
		params.System = []anthropic.TextBlockParam{{Text: joined}}
	}
	if o.Temperature != nil {
		params.Temperature = anthropic.Float(*o.Temperature)
	}
	if o.TopP != nil {
		params.TopP = anthropic.Float(*o.TopP)
	}
	if o.TopK != nil {
		params.TopK = anthropic.Int(int64(*o.TopK))
	}
	if len(o.StopSequences) > 0 {
		params.StopSequences = o.StopSequences
	}
	return params, nil
}

// Generate sends one Messages request. Retries are left to the SDK.
func (c *Client) Generate(ctx context.Context, messages []model.Message, opts llm.Options) (string, error) {
	params, err := c.buildParams(messages, opts)
	if err != nil {
		return "", err
	}
	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && llm.Busy(apiErr.StatusCode) {
			return "", llm.Unavailable(err)
		}
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", llm.Unavailable(errors.New("anthropic returned empty response"))
	}
	return b.String(), nil
}
