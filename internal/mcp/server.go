package mcp

import (
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dhrumilbhut/codevoice/internal/agent"
	"github.com/dhrumilbhut/codevoice/internal/domain"
	"github.com/dhrumilbhut/codevoice/internal/tools"
)

const maxRequestBodySize = 1 << 20

// Runner is the slice of the agent service the gateway needs.
type Runner interface {
	Run(ctx context.Context, req agent.RunRequest) (agent.RunResult, error)
}

// Server answers MCP JSON-RPC calls over HTTP. Tool calls run against the
// same registry the assistant loop uses, so the sandbox rules are identical
// on both paths.
type Server struct {
	registry *tools.Registry
	runner   Runner

	mu          sync.Mutex
	initialized bool
}

// NewServer creates the MCP server. runner may be nil, which disables the
// assistant/ask method while keeping direct tool access available.
func NewServer(registry *tools.Registry, runner Runner) *Server {
	return &Server{registry: registry, runner: runner}
}

// HandleRPC handles POST /mcp/rpc.
func (s *Server) HandleRPC(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req JsonRpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, errorResponse(nil, codeParseError, "parse error", err.Error()))
		return
	}

	// Notifications never get a response body.
	if req.Method == "notifications/initialized" {
		s.markInitialized()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeResponse(w, s.dispatch(r.Context(), &req))
}

// HandleInfo serves GET /mcp/info, a plain description for clients probing
// the endpoint outside the JSON-RPC flow.
func (s *Server) HandleInfo(w http.ResponseWriter, _ *http.Request) {
	defs := s.registry.Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"name":            serverName,
		"version":         serverVersion,
		"protocolVersion": protocolVersion,
		"rpc_endpoint":    "/mcp/rpc",
		"tools":           names,
	}); err != nil {
		slog.Warn("Failed to encode MCP info", "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req *JsonRpcRequest) *JsonRpcResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return successResponse(req.ID, map[string]any{})
	case "tools/list":
		if resp := s.requireInitialized(req); resp != nil {
			return resp
		}
		return successResponse(req.ID, map[string]any{"tools": s.registry.Definitions()})
	case "tools/call":
		if resp := s.requireInitialized(req); resp != nil {
			return resp
		}
		return s.handleToolCall(ctx, req)
	case "resources/list":
		if resp := s.requireInitialized(req); resp != nil {
			return resp
		}
		return s.handleResourcesList(req)
	case "assistant/ask":
		if resp := s.requireInitialized(req); resp != nil {
			return resp
		}
		return s.handleAsk(ctx, req)
	default:
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method, nil)
	}
}

func (s *Server) handleInitialize(req *JsonRpcRequest) *JsonRpcResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return errorResponse(req.ID, codeInternalError, "server already initialized", nil)
	}

	var params initializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, codeInvalidParams, "invalid initialize params", err.Error())
		}
	}
	s.initialized = true

	return successResponse(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    serverName,
			"version": serverVersion,
		},
	})
}

func (s *Server) handleToolCall(ctx context.Context, req *JsonRpcRequest) *JsonRpcResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid tools/call params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "tool name is required", nil)
	}
	if !s.knownTool(params.Name) {
		return errorResponse(req.ID, codeMethodNotFound, "tool not found: "+params.Name, nil)
	}

	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}

	// Every tool call carries the caller's model API key so clients cannot
	// distinguish direct tool access from assisted runs. The key never
	// reaches the tool itself.
	key, _ := args["api_key"].(string)
	key = strings.TrimSpace(key)
	if key == "" {
		return errorResponse(req.ID, codeInvalidParams, "api_key is required in tool arguments", nil)
	}
	if !validAPIKeyFormat(key) {
		return errorResponse(req.ID, codeInvalidParams, "invalid api_key format", nil)
	}
	delete(args, "api_key")

	res := s.registry.Execute(ctx, params.Name, args, domain.ProjectSpec{})

	text := res.Output
	isError := !res.OK()
	if isError {
		text = res.Fault.Error()
	}
	return successResponse(req.ID, map[string]any{
		"content": []textContent{{Type: "text", Text: text}},
		"isError": isError,
	})
}

func (s *Server) handleResourcesList(req *JsonRpcRequest) *JsonRpcResponse {
	root := s.registry.Guard().Root()
	resources := []resourceEntry{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		resources = append(resources, resourceEntry{
			URI:      "file:///" + filepath.ToSlash(rel),
			Name:     filepath.ToSlash(rel),
			MimeType: mime.TypeByExtension(filepath.Ext(path)),
		})
		return nil
	})
	if err != nil {
		return errorResponse(req.ID, codeInternalError, "failed to list project files", err.Error())
	}

	return successResponse(req.ID, map[string]any{"resources": resources})
}

func (s *Server) handleAsk(ctx context.Context, req *JsonRpcRequest) *JsonRpcResponse {
	if s.runner == nil {
		return errorResponse(req.ID, codeMethodNotFound, "assistant/ask is not available", nil)
	}

	var params askParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "invalid assistant/ask params", err.Error())
	}
	if strings.TrimSpace(params.UserInput) == "" {
		return errorResponse(req.ID, codeInvalidParams, "user_input is required", nil)
	}
	key := strings.TrimSpace(params.APIKey)
	if key == "" || !validAPIKeyFormat(key) {
		return errorResponse(req.ID, codeInvalidParams, "a valid api_key is required", nil)
	}

	result, err := s.runner.Run(ctx, agent.RunRequest{
		SessionID: uuid.NewString(),
		Utterance: params.UserInput,
		APIKey:    key,
		Model:     params.Model,
	})
	if err != nil {
		slog.Error("Assistant run failed over MCP", "error", err)
		return errorResponse(req.ID, codeInternalError, "assistant run failed", nil)
	}

	return successResponse(req.ID, map[string]any{
		"response": result.Answer,
		"data": map[string]any{
			"category":      result.Category,
			"target_dir":    result.TargetDirectory,
			"steps":         result.Steps,
			"files_written": result.FilesWritten,
			"degraded":      result.Degraded,
		},
	})
}

func (s *Server) markInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

func (s *Server) requireInitialized(req *JsonRpcRequest) *JsonRpcResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errorResponse(req.ID, codeInternalError, "server not initialized", nil)
	}
	return nil
}

func (s *Server) knownTool(name string) bool {
	for _, d := range s.registry.Definitions() {
		if d.Name == name {
			return true
		}
	}
	return false
}

func validAPIKeyFormat(key string) bool {
	return strings.HasPrefix(key, "sk-") && len(key) >= 40
}

func writeResponse(w http.ResponseWriter, resp *JsonRpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("Failed to encode JSON-RPC response", "error", err)
	}
}
