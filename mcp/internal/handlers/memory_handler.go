package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/client"
)

// MemoryHandler exposes conversation memory tools backed by the service SDK.
type MemoryHandler struct {
	client *client.Client
}

func NewMemoryHandler(c *client.Client) *MemoryHandler {
	return &MemoryHandler{client: c}
}

func conversationArgs(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User identifier")),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
	}, opts...)
}

// RegisterTools registers the memory tools with the MCP server.
func (mh *MemoryHandler) RegisterTools(s *server.MCPServer) error {
	s.AddTool(mcp.NewTool("generate", conversationArgs(
		mcp.WithDescription("Send a user message through the memory pipeline and return the assistant reply with memory metadata"),
		mcp.WithString("message", mcp.Required(), mcp.Description("The new user message")),
		mcp.WithNumber("temperature", mcp.Description("Sampling temperature")),
		mcp.WithString("response_length", mcp.Description("short, medium or long")),
	)...), mh.handleGenerate)

	s.AddTool(mcp.NewTool("get_history", conversationArgs(
		mcp.WithDescription("List stored turns of a conversation, oldest first"),
		mcp.WithNumber("limit", mcp.Description("Only the last N turns; omit for all")),
	)...), mh.handleGetHistory)

	s.AddTool(mcp.NewTool("get_stats", conversationArgs(
		mcp.WithDescription("Turn count, summary presence and consolidation count for a conversation"),
	)...), mh.handleGetStats)

	s.AddTool(mcp.NewTool("get_summary", conversationArgs(
		mcp.WithDescription("Fetch the rolling summary of a conversation"),
	)...), mh.handleGetSummary)

	s.AddTool(mcp.NewTool("get_key_facts", conversationArgs(
		mcp.WithDescription("Extract a bullet list of key facts from the stored conversation"),
	)...), mh.handleGetKeyFacts)

	s.AddTool(mcp.NewTool("clear_memory", conversationArgs(
		mcp.WithDescription("Delete all turns and the summary of a conversation"),
	)...), mh.handleClear)

	return nil
}

func keyOf(req mcp.CallToolRequest) (string, string, error) {
	user, err := req.RequireString("user_id")
	if err != nil {
		return "", "", err
	}
	conv, err := req.RequireString("conversation_id")
	if err != nil {
		return "", "", err
	}
	return user, conv, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (mh *MemoryHandler) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, conv, err := keyOf(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := map[string]any{}
	if v, ok := req.GetArguments()["temperature"].(float64); ok {
		opts["temperature"] = v
	}
	if v, ok := req.GetArguments()["response_length"].(string); ok && v != "" {
		opts["response_length"] = v
	}

	start := time.Now()
	resp, err := mh.client.Generate(ctx, client.GenerateRequest{
		UserID:         user,
		ConversationID: conv,
		Message:        message,
		Options:        opts,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", user).Str("conversation_id", conv).Dur("elapsed", time.Since(start)).Msg("generate failed")
		if client.IsUpstreamBusy(err) {
			return mcp.NewToolResultError("model is busy, retry later"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("generate failed: %v", err)), nil
	}
	log.Debug().Str("user_id", user).Str("conversation_id", conv).Dur("elapsed", time.Since(start)).Msg("generate completed")
	return jsonResult(resp)
}

func (mh *MemoryHandler) handleGetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, conv, err := keyOf(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := 0
	if l, ok := req.GetArguments()["limit"].(float64); ok && l > 0 { // JSON numbers decoded as float64
		limit = int(l)
	}
	h, err := mh.client.History(ctx, user, conv, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get history failed: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"history": h, "count": len(h)})
}

func (mh *MemoryHandler) handleGetStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, conv, err := keyOf(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	st, err := mh.client.Stats(ctx, user, conv)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get stats failed: %v", err)), nil
	}
	return jsonResult(st)
}

func (mh *MemoryHandler) handleGetSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, conv, err := keyOf(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, ok, err := mh.client.Summary(ctx, user, conv)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get summary failed: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultText("no summary yet"), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (mh *MemoryHandler) handleGetKeyFacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, conv, err := keyOf(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	facts, err := mh.client.KeyFacts(ctx, user, conv)
	if err != nil {
		if client.IsUpstreamBusy(err) {
			return mcp.NewToolResultError("model is busy, retry later"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("get key facts failed: %v", err)), nil
	}
	if len(facts) == 0 {
		return mcp.NewToolResultText("no key facts yet"), nil
	}
	return mcp.NewToolResultText("- " + strings.Join(facts, "\n- ")), nil
}

func (mh *MemoryHandler) handleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, conv, err := keyOf(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := mh.client.Clear(ctx, user, conv); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("clear failed: %v", err)), nil
	}
	log.Info().Str("user_id", user).Str("conversation_id", conv).Msg("conversation memory cleared")
	return mcp.NewToolResultText("Memory cleared successfully"), nil
}
