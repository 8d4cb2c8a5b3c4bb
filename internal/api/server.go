package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/minicrm/internal/auth"
	"github.com/ignite/minicrm/internal/config"
	"github.com/ignite/minicrm/internal/pkg/logger"
)

// Server wraps the HTTP server and its routing.
type Server struct {
	config config.ServerConfig
	server *http.Server
}

// NewServer builds the API server around a wired handler set.
func NewServer(cfg config.ServerConfig, h *Handlers, authManager *auth.Manager) *Server {
	router := SetupRoutes(h, authManager, cfg.AllowedOrigins)
	return &Server{
		config: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	logger.Info("api server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
