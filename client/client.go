// Package client is a Go SDK for the conversational memory service HTTP API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout     = 60 * time.Second
	defaultMaxAttempts = 3
	defaultBaseBackoff = 250 * time.Millisecond
	maxBackoff         = 5 * time.Second
)

type Client struct {
	http        *resty.Client
	maxAttempts int
	baseBackoff time.Duration
}

// New constructs a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL cannot be empty")
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}

	// Auto-enable debug via env variable without changing code.
	if debugLoggingRequested() {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Generate sends one user message through the memory pipeline and returns the reply.
// It is never retried: the service stores the user turn before calling the model.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := validateKey(req.UserID, req.ConversationID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is required")
	}
	var out GenerateResponse
	if err := c.do(ctx, "generate", "/ai/generate", req, &out, 1); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the stored turns, or the last limit of them when limit > 0.
func (c *Client) History(ctx context.Context, userID, conversationID string, limit int) ([]HistoryEntry, error) {
	if err := validateKey(userID, conversationID); err != nil {
		return nil, err
	}
	body := conversationRequest{UserID: userID, ConversationID: conversationID}
	if limit > 0 {
		body.Limit = &limit
	}
	var out historyResponse
	if err := c.do(ctx, "history", "/ai/memory/history", body, &out, c.maxAttempts); err != nil {
		return nil, err
	}
	return out.History, nil
}

func (c *Client) Stats(ctx context.Context, userID, conversationID string) (*Stats, error) {
	if err := validateKey(userID, conversationID); err != nil {
		return nil, err
	}
	var out statsResponse
	body := conversationRequest{UserID: userID, ConversationID: conversationID}
	if err := c.do(ctx, "stats", "/ai/memory/stats", body, &out, c.maxAttempts); err != nil {
		return nil, err
	}
	return &out.Stats, nil
}

// Summary returns the conversation summary; ok is false when none exists yet.
func (c *Client) Summary(ctx context.Context, userID, conversationID string) (summary string, ok bool, err error) {
	if err := validateKey(userID, conversationID); err != nil {
		return "", false, err
	}
	var out summaryResponse
	body := conversationRequest{UserID: userID, ConversationID: conversationID}
	if err := c.do(ctx, "summary", "/ai/memory/summary", body, &out, c.maxAttempts); err != nil {
		return "", false, err
	}
	if out.Summary == nil {
		return "", false, nil
	}
	return *out.Summary, true, nil
}

// KeyFacts returns the bullet facts extracted from the stored turns.
func (c *Client) KeyFacts(ctx context.Context, userID, conversationID string) ([]string, error) {
	if err := validateKey(userID, conversationID); err != nil {
		return nil, err
	}
	var out keyFactsResponse
	body := conversationRequest{UserID: userID, ConversationID: conversationID}
	if err := c.do(ctx, "key_facts", "/ai/memory/key-facts", body, &out, c.maxAttempts); err != nil {
		return nil, err
	}
	if out.KeyFacts == nil {
		return []string{}, nil
	}
	return out.KeyFacts, nil
}

// Clear deletes the conversation's turns and summary. Clearing twice is not an error.
func (c *Client) Clear(ctx context.Context, userID, conversationID string) error {
	if err := validateKey(userID, conversationID); err != nil {
		return err
	}
	body := conversationRequest{UserID: userID, ConversationID: conversationID}
	return c.do(ctx, "clear", "/ai/memory/clear", body, &clearResponse{}, c.maxAttempts)
}

// Health reports the service status. An unhealthy service answers 503 with a
// status body; that is returned without an error.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out).
		Get("/ai/memory/health")
	if err != nil {
		requestsTotal.WithLabelValues("health", "transport_error").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues("health", outcomeFor(resp.StatusCode())).Inc()
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusServiceUnavailable {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return &out, nil
}

// do POSTs body to path and decodes a 200 response into out. Transport errors,
// 429 and 5xx answers are retried up to attempts times with exponential backoff.
func (c *Client) do(ctx context.Context, op, path string, body, out interface{}, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.baseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = maxBackoff
	exp.Reset()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var apiErr errorBody
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(out).
			SetError(&apiErr).
			Post(path)

		var callErr error
		retryable := false
		switch {
		case err != nil:
			requestsTotal.WithLabelValues(op, "transport_error").Inc()
			callErr = fmt.Errorf("%s: %w", op, err)
			retryable = ctx.Err() == nil
		case resp.IsError():
			requestsTotal.WithLabelValues(op, outcomeFor(resp.StatusCode())).Inc()
			msg := apiErr.Message
			if msg == "" {
				msg = strings.TrimSpace(resp.String())
			}
			callErr = &APIError{StatusCode: resp.StatusCode(), Message: msg}
			retryable = resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		default:
			requestsTotal.WithLabelValues(op, "ok").Inc()
			return nil
		}

		if !retryable || attempt >= attempts-1 {
			return callErr
		}
		select {
		case <-time.After(exp.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func outcomeFor(status int) string {
	switch {
	case status < 400:
		return "ok"
	case status == http.StatusServiceUnavailable:
		return "busy"
	case status < 500:
		return "client_error"
	default:
		return "server_error"
	}
}

func validateKey(userID, conversationID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("userID is required")
	}
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("conversationID is required")
	}
	return nil
}
