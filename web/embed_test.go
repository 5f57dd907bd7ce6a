package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newDashboardRouter(t *testing.T) http.Handler {
	t.Helper()

	app, err := DashboardApp()
	if err != nil {
		t.Fatalf("DashboardApp() unexpected error: %v", err)
	}

	r := chi.NewRouter()
	app.Register(r, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return r
}

func TestDashboardApp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{name: "index", target: "/ui/dashboard/", wantStatus: http.StatusOK, wantBody: "walk-sensor"},
		{name: "explicit index", target: "/ui/dashboard/index", wantStatus: http.StatusOK, wantBody: "/api/devices"},
		{name: "base without slash redirects", target: "/ui/dashboard", wantStatus: http.StatusMovedPermanently},
		{name: "missing file", target: "/ui/dashboard/nope.js", wantStatus: http.StatusNotFound},
	}

	srv := newDashboardRouter(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}

func TestNewWebAppNormalizesBase(t *testing.T) {
	t.Parallel()

	app, err := NewWebApp("dashboard", dashboardFS, "dashboard/dist", "ui/dashboard")
	if err != nil {
		t.Fatalf("NewWebApp() unexpected error: %v", err)
	}

	if got := app.URLBase(); got != "/ui/dashboard/" {
		t.Errorf("URLBase() = %q, want /ui/dashboard/", got)
	}
}
