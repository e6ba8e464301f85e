package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/opspilot/opspilot/internal/application/usecase"
)

// Server wraps the HTTP listener lifecycle.
type Server struct {
	httpServer *http.Server
	logf       LogFunc
}

// NewServer builds a server listening on addr.
func NewServer(addr string, coordinator *usecase.Coordinator, logf LogFunc) *Server {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(coordinator, logf),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logf: logf,
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logf("http server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
