package apicommon

import (
	"log/slog"
	"net/http"
	"time"

	"walk-sensor/backend/pkg/utils"
)

// RequestObserver receives one call per completed request. route is the
// matched chi pattern, or the raw path when no pattern was recorded.
type RequestObserver func(method, route string, status int, elapsed time.Duration)

// MiddlewareHandler carries what the API middlewares share.
type MiddlewareHandler struct {
	l        *slog.Logger
	observer RequestObserver
}

func NewMiddlewareHandler(l *slog.Logger) *MiddlewareHandler {
	return &MiddlewareHandler{l: l.With(slog.String("component", "http"))}
}

// WithObserver sets the hook LoggerMiddleware calls after each request.
func (m *MiddlewareHandler) WithObserver(fn RequestObserver) *MiddlewareHandler {
	m.observer = fn
	return m
}

// RequestIDMiddleware keeps an inbound X-Request-ID or mints one, echoes it
// back and stores it on the request context.
func (m *MiddlewareHandler) RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = utils.NewUUID()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}
