// Package mcp implements the JSON-RPC gateway speaking the Model Context
// Protocol over HTTP.
package mcp

import "encoding/json"

// Protocol metadata returned during initialization.
const (
	protocolVersion = "2024-11-05"
	serverName      = "voice-coding-assistant"
	serverVersion   = "1.0.0"
)

// JSON-RPC error codes used by this server.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// JsonRpcRequest is one incoming JSON-RPC 2.0 call. ID keeps its raw form
// because callers may send strings, numbers or null.
type JsonRpcRequest struct {
	JsonRpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JsonRpcResponse is the reply envelope.
type JsonRpcResponse struct {
	JsonRpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RpcError       `json:"error,omitempty"`
}

// RpcError is the JSON-RPC error object.
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func successResponse(id json.RawMessage, result any) *JsonRpcResponse {
	return &JsonRpcResponse{JsonRpc: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *JsonRpcResponse {
	return &JsonRpcResponse{
		JsonRpc: "2.0",
		ID:      id,
		Error:   &RpcError{Code: code, Message: message, Data: data},
	}
}

// initializeParams is the client's initialize payload.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      map[string]any `json:"clientInfo"`
}

// toolCallParams is the tools/call payload.
type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// askParams is the assistant/ask payload.
type askParams struct {
	UserInput string         `json:"user_input"`
	APIKey    string         `json:"api_key"`
	Model     string         `json:"model"`
	Context   map[string]any `json:"context"`
}

// resourceEntry describes one project file in resources/list.
type resourceEntry struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
}

// textContent is the MCP tool result content block.
type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
