package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultTimeout bounds a request when NewRouter is given no timeout.
const DefaultTimeout = 60 * time.Second

// ErrorBody is the JSON error shape written by Fail and Recoverer. It matches the
// {kind, message} object tool failures carry.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewRouter returns a chi router with request ids, real client IPs, a per-request timeout,
// JSON panic recovery and request logging. A whole tagging run happens inside one request,
// so callers usually pass a timeout well above DefaultTimeout.
func NewRouter(log *slog.Logger, timeout time.Duration) *chi.Mux {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	r.Use(Recoverer(log))
	r.Use(RequestLogger(log))
	return r
}

// WriteJSON writes body as indented JSON with status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(body)
}

// HealthHandler reports liveness and the running server version.
func HealthHandler(log *slog.Logger, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version}); err != nil {
			log.Warn("healthz write failed", "err", err)
		}
	}
}

// RequestLogger logs one line per request. Server errors log at error level, client
// errors at warn. The matched route and the tool name, when present, are included.
func RequestLogger(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					attrs = append(attrs, "route", pattern)
				}
				if tool := rc.URLParam("name"); tool != "" {
					attrs = append(attrs, "tool", tool)
				}
			}
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				log.Error("request", attrs...)
			case ww.Status() >= http.StatusBadRequest:
				log.Warn("request", attrs...)
			default:
				log.Info("request", attrs...)
			}
		})
	}
}

// Recoverer turns a panic into a logged 500 with a JSON error body.
func Recoverer(log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered", "panic", rec, "path", r.URL.Path, "method", r.Method, "request_id", middleware.GetReqID(r.Context()))
				WriteJSON(w, http.StatusInternalServerError, map[string]ErrorBody{
					"error": {Kind: "internal", Message: http.StatusText(http.StatusInternalServerError)},
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Fail logs err and writes a JSON error of the given kind. A zero status means 500.
func Fail(log *slog.Logger, w http.ResponseWriter, status int, kind, message string, err error) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	log.Error(message, "status", status, "err", err)
	WriteJSON(w, status, map[string]ErrorBody{"error": {Kind: kind, Message: message}})
}
