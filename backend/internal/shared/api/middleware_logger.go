package apicommon

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// statusRecorder remembers the first status sent and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter

	status int
	size   int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status != 0 {
		return
	}

	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}

	n, err := sr.ResponseWriter.Write(b)
	sr.size += int64(n)

	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func (sr *statusRecorder) code() int {
	if sr.status == 0 {
		return http.StatusOK
	}

	return sr.status
}

// LoggerMiddleware puts a request scoped logger on the context, logs one line
// per request and reports it to the observer when one is set.
func (m *MiddlewareHandler) LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := m.l.With(
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		rec := &statusRecorder{ResponseWriter: w}
		started := time.Now()

		next.ServeHTTP(rec, r.WithContext(WithLogger(r.Context(), reqLogger)))

		elapsed := time.Since(started)
		status := rec.code()

		if m.observer != nil {
			m.observer(r.Method, routePattern(r), status, elapsed)
		}

		reqLogger.Log(r.Context(), logLevel(r.Method, status), "request completed",
			slog.Int("status", status),
			slog.Int64("bytes", rec.size),
			slog.Duration("elapsed", elapsed),
			slog.String("remote_addr", r.RemoteAddr),
		)
	})
}

// logLevel keeps polling reads of the dashboard out of the info log.
func logLevel(method string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case method == http.MethodGet && status < http.StatusBadRequest:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}

	return r.URL.Path
}
