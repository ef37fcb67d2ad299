package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dhrumilbhut/codevoice/internal/agent"
	"github.com/dhrumilbhut/codevoice/internal/tools"
)

const testAPIKey = "sk-0123456789abcdef0123456789abcdef01234567"

type fakeRunner struct {
	mu     sync.Mutex
	result agent.RunResult
	err    error
	calls  int
	last   agent.RunRequest
}

func (f *fakeRunner) Run(_ context.Context, req agent.RunRequest) (agent.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.result, f.err
}

func newTestServer(t *testing.T, runner Runner) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	guard, err := tools.NewGuard(root)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return NewServer(tools.NewRegistry(guard, nil, 0), runner), root
}

func rpc(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp/rpc", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.HandleRPC(rec, req)
	return rec
}

func call(t *testing.T, s *Server, method string, params any) *JsonRpcResponse {
	t.Helper()
	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		payload["params"] = params
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := rpc(t, s, string(data))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp JsonRpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return &resp
}

func initialize(t *testing.T, s *Server) {
	t.Helper()
	resp := call(t, s, "initialize", map[string]any{"protocolVersion": protocolVersion})
	if resp.Error != nil {
		t.Fatalf("initialize failed: %+v", resp.Error)
	}
}

func resultMap(t *testing.T, resp *JsonRpcResponse) map[string]any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want object", resp.Result)
	}
	return m
}

func TestInitializeHandshake(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	resp := call(t, s, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo":      map[string]any{"name": "test-client"},
	})

	result := resultMap(t, resp)
	if result["protocolVersion"] != protocolVersion {
		t.Fatalf("protocolVersion = %v", result["protocolVersion"])
	}
	info, _ := result["serverInfo"].(map[string]any)
	if info["name"] != serverName {
		t.Fatalf("serverInfo = %v", result["serverInfo"])
	}

	// A second initialize is a protocol violation.
	again := call(t, s, "initialize", nil)
	if again.Error == nil || again.Error.Code != codeInternalError {
		t.Fatalf("second initialize = %+v, want error %d", again.Error, codeInternalError)
	}
}

func TestMethodsRequireInitialization(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	for _, method := range []string{"tools/list", "tools/call", "resources/list", "assistant/ask"} {
		resp := call(t, s, method, nil)
		if resp.Error == nil || resp.Error.Code != codeInternalError {
			t.Fatalf("%s before initialize = %+v, want error %d", method, resp.Error, codeInternalError)
		}
	}
}

func TestInitializedNotificationHasNoResponse(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	rec := rpc(t, s, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("notification got body %q", rec.Body.String())
	}

	// The notification also marks the handshake complete.
	resp := call(t, s, "tools/list", nil)
	if resp.Error != nil {
		t.Fatalf("tools/list after notification failed: %+v", resp.Error)
	}
}

func TestPingWorksWithoutInitialization(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	resp := call(t, s, "ping", nil)
	result := resultMap(t, resp)
	if len(result) != 0 {
		t.Fatalf("ping result = %v, want empty object", result)
	}
}

func TestToolsList(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	initialize(t, s)

	result := resultMap(t, call(t, s, "tools/list", nil))
	toolsAny, _ := result["tools"].([]any)
	if len(toolsAny) != 5 {
		t.Fatalf("listed %d tools, want 5", len(toolsAny))
	}
	first, _ := toolsAny[0].(map[string]any)
	if first["name"] != tools.ToolCreateFile {
		t.Fatalf("first tool = %v", first["name"])
	}
	if _, ok := first["inputSchema"]; !ok {
		t.Fatal("tool definition missing inputSchema")
	}
}

func TestToolCallCreatesFileAndStripsKey(t *testing.T) {
	t.Parallel()

	s, root := newTestServer(t, nil)
	initialize(t, s)

	resp := call(t, s, "tools/call", map[string]any{
		"name": tools.ToolCreateFile,
		"arguments": map[string]any{
			"api_key": testAPIKey,
			"path":    "site/index.html",
			"content": "<html></html>",
		},
	})

	result := resultMap(t, resp)
	if result["isError"] != false {
		t.Fatalf("isError = %v: %v", result["isError"], result["content"])
	}

	data, err := os.ReadFile(filepath.Join(root, "site", "index.html"))
	if err != nil {
		t.Fatalf("read created file: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Fatalf("file content = %q", data)
	}
	if bytes.Contains(data, []byte(testAPIKey)) {
		t.Fatal("api_key leaked into tool output")
	}
}

func TestToolCallRequiresAPIKey(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	initialize(t, s)

	cases := []struct {
		name string
		args map[string]any
	}{
		{"missing", map[string]any{"path": "a.txt", "content": "x"}},
		{"bad format", map[string]any{"api_key": "sk-short", "path": "a.txt", "content": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp := call(t, s, "tools/call", map[string]any{
				"name":      tools.ToolCreateFile,
				"arguments": tc.args,
			})
			if resp.Error == nil || resp.Error.Code != codeInvalidParams {
				t.Fatalf("error = %+v, want %d", resp.Error, codeInvalidParams)
			}
		})
	}
}

func TestToolCallFaultBecomesIsError(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	initialize(t, s)

	resp := call(t, s, "tools/call", map[string]any{
		"name": tools.ToolReadFile,
		"arguments": map[string]any{
			"api_key": testAPIKey,
			"path":    "missing.txt",
		},
	})

	result := resultMap(t, resp)
	if result["isError"] != true {
		t.Fatalf("isError = %v", result["isError"])
	}
	content, _ := result["content"].([]any)
	if len(content) != 1 {
		t.Fatalf("content = %v", result["content"])
	}
	block, _ := content[0].(map[string]any)
	if !strings.Contains(block["text"].(string), "not_found") {
		t.Fatalf("fault text = %v", block["text"])
	}
}

func TestToolCallUnknownTool(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	initialize(t, s)

	resp := call(t, s, "tools/call", map[string]any{
		"name":      "delete_everything",
		"arguments": map[string]any{"api_key": testAPIKey},
	})
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v, want %d", resp.Error, codeMethodNotFound)
	}
}

func TestResourcesList(t *testing.T) {
	t.Parallel()

	s, root := newTestServer(t, nil)
	initialize(t, s)

	if err := os.MkdirAll(filepath.Join(root, "todo_app"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "todo_app", "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result := resultMap(t, call(t, s, "resources/list", nil))
	resources, _ := result["resources"].([]any)
	if len(resources) != 1 {
		t.Fatalf("resources = %v", result["resources"])
	}
	entry, _ := resources[0].(map[string]any)
	if entry["uri"] != "file:///todo_app/app.js" {
		t.Fatalf("uri = %v", entry["uri"])
	}
}

func TestAssistantAsk(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: agent.RunResult{
		Answer:   "Your calculator is ready.",
		Category: "calculator",
		Steps:    4,
	}}
	s, _ := newTestServer(t, runner)
	initialize(t, s)

	resp := call(t, s, "assistant/ask", map[string]any{
		"user_input": "build a calculator",
		"api_key":    testAPIKey,
	})

	result := resultMap(t, resp)
	if result["response"] != "Your calculator is ready." {
		t.Fatalf("response = %v", result["response"])
	}
	if runner.last.APIKey != testAPIKey {
		t.Fatalf("runner got key %q", runner.last.APIKey)
	}

	missingKey := call(t, s, "assistant/ask", map[string]any{"user_input": "hi"})
	if missingKey.Error == nil || missingKey.Error.Code != codeInvalidParams {
		t.Fatalf("error = %+v, want %d", missingKey.Error, codeInvalidParams)
	}
	if runner.calls != 1 {
		t.Fatalf("runner called %d times, want 1", runner.calls)
	}
}

func TestUnknownMethod(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	resp := call(t, s, "prompts/list", nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v, want %d", resp.Error, codeMethodNotFound)
	}
}

func TestMalformedRequestBody(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, nil)
	rec := rpc(t, s, "{not json")
	var resp JsonRpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("error = %+v, want %d", resp.Error, codeParseError)
	}
}
