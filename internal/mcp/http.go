package mcp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tagging-mcp/internal/apperr"
	"tagging-mcp/internal/httputil"
	"tagging-mcp/internal/tools"
)

type kinded interface {
	ErrorKind() apperr.Kind
}

// NewHTTPHandler exposes the server at POST /mcp, each tool at POST /api/tools/{name},
// the tool list at GET /api/tools and a health check at GET /healthz.
func NewHTTPHandler(log *slog.Logger, s *Server, timeout time.Duration) http.Handler {
	r := httputil.NewRouter(log, timeout)
	r.Get("/healthz", httputil.HealthHandler(log, tools.Version))
	r.Post("/mcp", s.rpcHandler(log))
	r.Get("/api/tools", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"tools": s.defs})
	})
	r.Post("/api/tools/{name}", s.toolHandler(log))
	return r
}

func (s *Server) rpcHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
		if err != nil {
			httputil.Fail(log, w, http.StatusRequestEntityTooLarge, string(apperr.KindValidation), "failed to read request body", err)
			return
		}
		resp := s.Handle(r.Context(), body)
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp); err != nil {
			log.Warn("failed to write rpc response", "err", err)
		}
	}
}

func (s *Server) toolHandler(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
		if err != nil {
			httputil.Fail(log, w, http.StatusRequestEntityTooLarge, string(apperr.KindValidation), "failed to read request body", err)
			return
		}
		out, isError := s.runner.Call(r.Context(), chi.URLParam(r, "name"), json.RawMessage(body))
		status := http.StatusOK
		if isError {
			status = statusFor(out)
		}
		httputil.WriteJSON(w, status, out)
	}
}

func statusFor(out any) int {
	k, ok := out.(kinded)
	if !ok {
		return http.StatusInternalServerError
	}
	switch k.ErrorKind() {
	case apperr.KindValidation, apperr.KindParse:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
