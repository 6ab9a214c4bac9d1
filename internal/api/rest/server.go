package rest

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/renewcycle/materials-exchange-backend/internal/infrastructure/config"
)

// Server wraps the HTTP server with the engine's middleware chain.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the server around an already-routed mux.
func NewServer(cfg config.ServerConfig, mux *http.ServeMux, logger *zap.Logger) *Server {
	var handler http.Handler = mux
	handler = withLogging(logger, handler)
	handler = withRequestID(handler)
	handler = withRecovery(logger, handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
