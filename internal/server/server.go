package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/kamalcharan/kewalinvest-sub002/internal/common"
	"github.com/kamalcharan/kewalinvest-sub002/internal/handlers"
)

// Server manages the HTTP server and routes
type Server struct {
	config *common.Config
	logger arbor.ILogger
	server *http.Server
}

// New creates a new HTTP server wiring the download, dashboard and
// websocket handlers.
func New(config *common.Config, logger arbor.ILogger, download *handlers.DownloadHandler, dash *handlers.DashboardHandler, ws *handlers.WebSocketHandler) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/download/daily", download.TriggerDaily)
	mux.HandleFunc("/api/download/historical", download.TriggerHistorical)
	mux.HandleFunc("/api/download/jobs/", download.CancelJob)
	mux.HandleFunc("/api/download/active", download.ListActive)
	mux.HandleFunc("/api/download/history", download.History)
	mux.HandleFunc("/api/dashboard", dash.GetDashboard)
	mux.HandleFunc("/api/dashboard/refresh", dash.RefreshDashboard)
	mux.HandleFunc("/ws", ws.HandleWebSocket)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	return &Server{
		config: config,
		logger: logger,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
