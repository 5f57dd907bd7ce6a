package apicommon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"walk-sensor/backend/pkg/utils"
)

const (
	ReadHeaderTimeout = 5 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 120 * time.Second
	ShutdownTimeout   = 30 * time.Second
)

// HTTPServer owns the collector's listener lifecycle.
type HTTPServer struct {
	l      *slog.Logger
	server *http.Server
}

func NewHTTPServer(l *slog.Logger, addr string, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		l: l.With(slog.String("component", "http-server")),
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: ReadHeaderTimeout,
			ReadTimeout:       ReadTimeout,
			WriteTimeout:      WriteTimeout,
			IdleTimeout:       IdleTimeout,
		},
	}
}

// StartOnBackground serves until Shutdown. A listen failure calls cancel.
func (s *HTTPServer) StartOnBackground(cancel context.CancelFunc) {
	go func() {
		s.l.Info("http server listening", slog.String("address", s.server.Addr))

		err := s.server.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}

		s.l.Error("http server failed", utils.ErrAttr(err))
		cancel()
	}()
}

// ShutdownWithDefaultTimeout drains in-flight requests for up to ShutdownTimeout.
func (s *HTTPServer) ShutdownWithDefaultTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.l.Info("http server shutting down")

	return s.server.Shutdown(ctx)
}
