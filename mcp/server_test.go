package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/client"
)

func stubMemoryService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/ai/generate":
			if body["conversation_id"] == "busy" {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": "Service Unavailable", "code": 503, "message": "Model is busy. Please retry."})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"assistant_message": "echo: " + body["message"].(string),
				"meta":              map[string]interface{}{"pipeline_version": "memory_v1"},
			})
		case "/ai/memory/stats":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true,
				"stats":   map[string]interface{}{"total_turns": 6, "has_summary": false, "consolidation_count": 0},
			})
		case "/ai/memory/key-facts":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "count": 2, "key_facts": []string{"uses Go", "learning recursion"}})
		case "/ai/memory/summary":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "summary": "talked about recursion"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func startInProcess(t *testing.T) *mcpclient.Client {
	t.Helper()
	sdk, err := client.New(stubMemoryService(t).URL, client.WithRetry(1, time.Millisecond))
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	s, err := NewServer(sdk, "test-mcp-server", "1.0.0")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	tr := transport.NewInProcessTransport(s)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("start in-process transport: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	c := mcpclient.NewClient(tr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: "2024-11-05",
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo:      mcp.Implementation{Name: "test-client", Version: "1.0.0"},
		},
	}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c
}

func call(t *testing.T, c *mcpclient.Client, tool string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := c.CallTool(ctx, req)
	if err != nil {
		t.Fatalf("CallTool(%s): %v", tool, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", tool)
	}
	switch tc := res.Content[0].(type) {
	case mcp.TextContent:
		return tc.Text, res.IsError
	case *mcp.TextContent:
		return tc.Text, res.IsError
	default:
		t.Fatalf("CallTool(%s): unexpected content %T", tool, res.Content[0])
		return "", false
	}
}

func TestToolsList(t *testing.T) {
	c := startInProcess(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("tools/list: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"generate", "get_history", "get_stats", "get_summary", "get_key_facts", "clear_memory"} {
		if !names[want] {
			t.Errorf("tool %q not registered", want)
		}
	}
}

func TestToolCalls(t *testing.T) {
	c := startInProcess(t)
	key := map[string]any{"user_id": "u1", "conversation_id": "c1"}

	text, isErr := call(t, c, "get_summary", key)
	if isErr || text != "talked about recursion" {
		t.Fatalf("get_summary = %q isErr=%v", text, isErr)
	}

	text, isErr = call(t, c, "get_key_facts", key)
	if isErr || text != "- uses Go\n- learning recursion" {
		t.Fatalf("get_key_facts = %q isErr=%v", text, isErr)
	}

	text, isErr = call(t, c, "get_stats", key)
	if isErr || !strings.Contains(text, `"total_turns": 6`) {
		t.Fatalf("get_stats = %q isErr=%v", text, isErr)
	}

	text, isErr = call(t, c, "generate", map[string]any{"user_id": "u1", "conversation_id": "c1", "message": "hi"})
	if isErr || !strings.Contains(text, "echo: hi") {
		t.Fatalf("generate = %q isErr=%v", text, isErr)
	}

	text, isErr = call(t, c, "generate", map[string]any{"user_id": "u1", "conversation_id": "busy", "message": "hi"})
	if !isErr || !strings.Contains(text, "busy") {
		t.Fatalf("busy generate = %q isErr=%v", text, isErr)
	}

	if _, isErr = call(t, c, "get_stats", map[string]any{"user_id": "u1"}); !isErr {
		t.Fatalf("missing conversation_id must be a tool error")
	}
}
