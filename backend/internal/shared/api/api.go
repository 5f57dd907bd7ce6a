package apicommon

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"walk-sensor/backend/internal/shared/types"
	"walk-sensor/backend/pkg/utils"
)

const RequestIDHeader = "X-Request-ID"

const zeroUUID = "00000000-0000-0000-0000-000000000000"

// HandlerFunc is an http handler whose error is rendered by ErrorHandler.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

func NewError(statusCode int, message string) *types.ErrorResponse {
	return &types.ErrorResponse{StatusCode: statusCode, Message: message}
}

// NewValidationError is a 400 carrying one message per offending field.
func NewValidationError(fieldErrors map[string]string) *types.ErrorResponse {
	return &types.ErrorResponse{
		StatusCode: http.StatusBadRequest,
		Message:    "Validation failed",
		Errors:     fieldErrors,
	}
}

// ErrorHandler adapts fn to http.HandlerFunc. A *types.ErrorResponse is sent
// as is; any other error is logged and answered with a bare 500.
func ErrorHandler(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		l := GetLogger(r.Context())
		resp := &types.ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal Server Error",
		}

		var httpErr *types.ErrorResponse
		if errors.As(err, &httpErr) {
			resp = httpErr
			l.Warn("request rejected", slog.Int("status", resp.StatusCode), slog.String("message", resp.Message))
		} else {
			l.Error("request failed", utils.ErrAttr(err))
		}

		resp.RequestID = GetRequestID(r.Context())
		RespondJSON(w, r, resp.StatusCode, resp)
	}
}

// RespondJSON writes status and, when data is non-nil, its JSON encoding.
// Encoding failures can only be logged since the header is already out.
func RespondJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data == nil {
		return
	}

	if err := utils.ToJSONStream(w, data); err != nil {
		GetLogger(r.Context()).Error("failed to encode JSON response", utils.ErrAttr(err))
	}
}

// PathParam returns the decoded value of a chi path parameter. chi matches
// on the escaped path when one exists, so "%3A" arrives undecoded.
func PathParam(r *http.Request, name string) (string, error) {
	v, err := url.PathUnescape(chi.URLParam(r, name))
	if err != nil {
		return "", NewValidationError(map[string]string{name: "invalid escape sequence"})
	}

	return v, nil
}

// QueryInt reads an integer query parameter, falling back to def when absent.
// Values outside [lo, hi] produce a validation error.
func QueryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError(map[string]string{name: "must be an integer"})
	}

	if v < lo || v > hi {
		return 0, NewValidationError(map[string]string{name: fmt.Sprintf("must be between %d and %d", lo, hi)})
	}

	return v, nil
}
