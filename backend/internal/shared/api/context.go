package apicommon

import (
	"context"
	"log/slog"
)

// ctxKey is private so only this package can set or read these values.
type ctxKey[T any] struct{ name string }

var (
	loggerKey    = ctxKey[*slog.Logger]{"logger"}
	requestIDKey = ctxKey[string]{"request-id"}
)

func (k ctxKey[T]) with(ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, k, v)
}

func (k ctxKey[T]) from(ctx context.Context) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return loggerKey.with(ctx, l)
}

// GetLogger returns the request logger, or slog.Default outside LoggerMiddleware.
func GetLogger(ctx context.Context) *slog.Logger {
	if l := GetLoggerOrNil(ctx); l != nil {
		return l
	}

	return slog.Default()
}

func GetLoggerOrNil(ctx context.Context) *slog.Logger {
	l, _ := loggerKey.from(ctx)
	return l
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return requestIDKey.with(ctx, id)
}

// GetRequestID returns the all-zero UUID when RequestIDMiddleware did not run.
func GetRequestID(ctx context.Context) string {
	if id, ok := requestIDKey.from(ctx); ok {
		return id
	}

	return zeroUUID
}
