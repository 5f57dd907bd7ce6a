package apicommon

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"walk-sensor/backend/internal/shared/types"
)

// RecoveryMiddleware turns a handler panic into a 500 with a generic body.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func (m *MiddlewareHandler) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rv := recover()
			if rv == nil {
				return
			}

			if err, ok := rv.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rv)
			}

			m.reportPanic(r, rv)

			RespondJSON(w, r, http.StatusInternalServerError, &types.ErrorResponse{
				RequestID: GetRequestID(r.Context()),
				Message:   "Internal Server Error",
			})
		}()

		next.ServeHTTP(w, r)
	})
}

func (m *MiddlewareHandler) reportPanic(r *http.Request, rv any) {
	l := GetLoggerOrNil(r.Context())
	if l == nil {
		l = m.l.With(slog.String("method", r.Method), slog.String("path", r.URL.Path))
	}

	l.Error("handler panicked",
		slog.String("panic", fmt.Sprint(rv)),
		slog.String("stack", string(debug.Stack())),
	)
}
