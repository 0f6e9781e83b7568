package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/tools"
)

func newTestServer(runner Runner) *Server {
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), runner, tools.Definitions())
}

func decode(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func errorCode(t *testing.T, resp map[string]any) float64 {
	t.Helper()
	e, ok := resp["error"].(map[string]any)
	require.True(t, ok, "expected error in %v", resp)
	return e["code"].(float64)
}

func TestHandleProtocolMethods(t *testing.T) {
	s := newTestServer(&MockRunner{})
	ctx := context.Background()

	resp := decode(t, s.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)))
	assert.Equal(t, float64(1), resp["id"])
	res := resp["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", res["protocolVersion"])
	assert.Equal(t, tools.ServerName, res["serverInfo"].(map[string]any)["name"])
	assert.Contains(t, res["capabilities"], "tools")

	resp = decode(t, s.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":"a","method":"initialize","params":{"protocolVersion":"1999-01-01"}}`)))
	assert.Equal(t, ProtocolVersion, resp["result"].(map[string]any)["protocolVersion"])

	resp = decode(t, s.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)))
	assert.Equal(t, map[string]any{}, resp["result"])

	resp = decode(t, s.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)))
	list := resp["result"].(map[string]any)["tools"].([]any)
	require.Len(t, list, 4)
	names := make([]string, len(list))
	for i, tool := range list {
		names[i] = tool.(map[string]any)["name"].(string)
		assert.Contains(t, tool, "inputSchema")
	}
	assert.Equal(t, []string{"preview_csv", "tag_csv", "tag_csv_advanced", "get_tagging_info"}, names)

	assert.Nil(t, s.Handle(ctx, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
}

func TestHandleErrors(t *testing.T) {
	s := newTestServer(&MockRunner{})
	tests := []struct {
		name string
		raw  string
		code float64
	}{
		{"parse error", `{not json`, CodeParseError},
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, CodeInvalidRequest},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, CodeMethodNotFound},
		{"call without name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, CodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := decode(t, s.Handle(context.Background(), []byte(tt.raw)))
			assert.Equal(t, tt.code, errorCode(t, resp))
			assert.Contains(t, resp, "id")
		})
	}
}

func TestToolsCall(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Call", mock.Anything, "get_tagging_info", mock.Anything).
		Return(map[string]any{"name": "Tagging MCP"}, false).Once()
	runner.On("Call", mock.Anything, "tag_csv", mock.Anything).
		Return(tools.NewFailure(apperr.New(apperr.KindValidation, "taxonomy must contain at least one label")), true).Once()
	s := newTestServer(runner)

	resp := decode(t, s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"get_tagging_info","arguments":{}}}`)))
	res := resp["result"].(map[string]any)
	assert.Equal(t, false, res["isError"])
	assert.Equal(t, map[string]any{"name": "Tagging MCP"}, res["structuredContent"])
	content := res["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", content["type"])
	assert.JSONEq(t, `{"name":"Tagging MCP"}`, content["text"].(string))

	resp = decode(t, s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":8,"method":"tools/call","params":{"name":"tag_csv","arguments":{"csv_path":"x.csv"}}}`)))
	assert.NotContains(t, resp, "error", "tool failures are results, not protocol errors")
	res = resp["result"].(map[string]any)
	assert.Equal(t, true, res["isError"])
	structured := res["structuredContent"].(map[string]any)
	assert.Equal(t, "error", structured["status"])
	assert.Equal(t, "validation", structured["error"].(map[string]any)["kind"])
	runner.AssertExpectations(t)
}

func TestToolsCallRecoversPanic(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Call", mock.Anything, "preview_csv", mock.Anything).Run(func(mock.Arguments) { panic("boom") })
	s := newTestServer(runner)

	resp := decode(t, s.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"preview_csv"}}`)))
	assert.Equal(t, float64(CodeInternalError), errorCode(t, resp))
}

func TestServeStdio(t *testing.T) {
	s := newTestServer(&MockRunner{})
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, s.ServeStdio(context.Background(), strings.NewReader(in), &out))

	scanner := bufio.NewScanner(&out)
	var ids []float64
	for scanner.Scan() {
		ids = append(ids, decode(t, scanner.Bytes())["id"].(float64))
	}
	assert.Equal(t, []float64{1, 2}, ids)
}

func TestServeStdioStopsOnCancel(t *testing.T) {
	s := newTestServer(&MockRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pw.Close()
	assert.NoError(t, s.ServeStdio(ctx, pr, io.Discard))
}

func TestHTTPHandler(t *testing.T) {
	runner := &MockRunner{}
	runner.On("Call", mock.Anything, "preview_csv", mock.Anything).
		Return(tools.NewFailure(apperr.New(apperr.KindNotFound, "file not found: x.csv")), true)
	runner.On("Call", mock.Anything, "get_tagging_info", mock.Anything).
		Return(map[string]any{"version": "0.1.0"}, false)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewHTTPHandler(log, newTestServer(runner), 0))
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "rpc ping", method: http.MethodPost, path: "/mcp", body: `{"jsonrpc":"2.0","id":1,"method":"ping"}`, wantStatus: http.StatusOK, wantBody: `"result":{}`},
		{name: "rpc notification", method: http.MethodPost, path: "/mcp", body: `{"jsonrpc":"2.0","method":"notifications/initialized"}`, wantStatus: http.StatusAccepted},
		{name: "tool list", method: http.MethodGet, path: "/api/tools", wantStatus: http.StatusOK, wantBody: "tag_csv_advanced"},
		{name: "tool ok", method: http.MethodPost, path: "/api/tools/get_tagging_info", body: `{}`, wantStatus: http.StatusOK, wantBody: `"version": "0.1.0"`},
		{name: "tool failure maps kind", method: http.MethodPost, path: "/api/tools/preview_csv", body: `{"csv_path":"x.csv"}`, wantStatus: http.StatusNotFound, wantBody: "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(tools.NewFailure(apperr.New(apperr.KindParse, "x"))))
	assert.Equal(t, http.StatusUnauthorized, statusFor(tools.NewFailure(apperr.New(apperr.KindCredential, "x"))))
	assert.Equal(t, http.StatusInternalServerError, statusFor(tools.TagResult{Error: &tools.ErrorBody{Kind: apperr.KindWrite}}))
	assert.Equal(t, http.StatusInternalServerError, statusFor("not kinded"))
}
