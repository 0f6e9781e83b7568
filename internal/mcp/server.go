// Package mcp serves the tagging tools over the Model Context Protocol (JSON-RPC 2.0).
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tagging-mcp/internal/tools"
)

// ProtocolVersion is the newest protocol revision the server speaks.
const ProtocolVersion = "2025-06-18"

var supportedVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
}

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an incoming JSON-RPC message. A missing ID marks a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC message.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Content is one block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the result of tools/call. Tool failures are reported here with
// IsError set, never as JSON-RPC errors.
type CallToolResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError"`
}

// Runner executes a named tool.
type Runner interface {
	Call(ctx context.Context, name string, args json.RawMessage) (result any, isError bool)
}

// Server dispatches protocol messages to a Runner.
type Server struct {
	log    *slog.Logger
	runner Runner
	defs   []tools.Definition
}

// NewServer returns a Server exposing defs backed by runner.
func NewServer(log *slog.Logger, runner Runner, defs []tools.Definition) *Server {
	return &Server{log: log, runner: runner, defs: defs}
}

// Handle processes one raw message and returns the encoded response, or nil for
// notifications.
func (s *Server) Handle(ctx context.Context, raw []byte) []byte {
	resp := s.handle(ctx, raw)
	if resp == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to encode response", "err", err)
		data, _ = json.Marshal(errorResponse(resp.ID, CodeInternalError, "failed to encode response"))
	}
	return data
}

func (s *Server) handle(ctx context.Context, raw []byte) *Response {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		return errorResponse(nil, CodeInvalidRequest, "batch requests are not supported")
	}
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if len(req.ID) == 0 {
			return errorResponse(nil, CodeInvalidRequest, "invalid request")
		}
		return errorResponse(req.ID, CodeInvalidRequest, "invalid request")
	}
	if len(req.ID) == 0 {
		s.log.Debug("notification", "method", req.Method)
		return nil
	}

	start := time.Now()
	resp := s.dispatch(ctx, req)
	attrs := []any{"method", req.Method, "duration_ms", time.Since(start).Milliseconds()}
	if resp.Error != nil {
		attrs = append(attrs, "code", resp.Error.Code)
	}
	s.log.Info("rpc", attrs...)
	return resp
}

func (s *Server) dispatch(ctx context.Context, req Request) (resp *Response) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic recovered", "panic", rec, "method", req.Method)
			resp = errorResponse(req.ID, CodeInternalError, "internal error")
		}
	}()

	switch req.Method {
	case "initialize":
		return result(req.ID, s.initialize(req.Params))
	case "ping":
		return result(req.ID, struct{}{})
	case "tools/list":
		return result(req.ID, map[string]any{"tools": s.defs})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) initialize(params json.RawMessage) map[string]any {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	_ = json.Unmarshal(params, &p)
	version := ProtocolVersion
	if supportedVersions[p.ProtocolVersion] {
		version = p.ProtocolVersion
	}
	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    tools.ServerName,
			"version": tools.Version,
		},
		"instructions": tools.ServerDescription,
	}
}

func (s *Server) callTool(ctx context.Context, req Request) *Response {
	var p struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil || p.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "tools/call requires a tool name")
	}
	out, isError := s.runner.Call(ctx, p.Name, p.Arguments)
	return result(req.ID, NewCallToolResult(out, isError))
}

// NewCallToolResult wraps a tool's output as text plus structured content.
func NewCallToolResult(out any, isError bool) CallToolResult {
	text, err := json.Marshal(out)
	if err != nil {
		return CallToolResult{
			Content: []Content{{Type: "text", Text: "failed to encode tool result: " + err.Error()}},
			IsError: true,
		}
	}
	return CallToolResult{
		Content:           []Content{{Type: "text", Text: string(text)}},
		StructuredContent: out,
		IsError:           isError,
	}
}

func result(id json.RawMessage, v any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}
