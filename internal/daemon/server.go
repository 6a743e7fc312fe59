// Package daemon runs the scoring API as a long-lived HTTP server.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felixgeelhaar/arise/internal/api"
	"github.com/felixgeelhaar/arise/internal/config"
)

// Server represents the Arise daemon HTTP server
type Server struct {
	cfg    *config.Config
	app    *api.App
	router *api.Router
	server *http.Server
}

// NewServer creates a new daemon server. It opens the store, seeds the
// catalog and connects the optional cache and event bus.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	app, err := api.NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		app:    app,
		router: api.NewRouter(app),
	}

	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Handler returns the HTTP handler (for testing)
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the background workers and serves HTTP until Shutdown.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.app.Start(ctx); err != nil {
		ln.Close()
		return err
	}

	slog.Info("starting arise daemon",
		"addr", ln.Addr().String(),
		"store", s.cfg.StoreDriver,
		"redis", s.cfg.RedisAddr != "",
		"rabbitmq", s.cfg.RabbitMQURL != "",
	)
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	err := s.server.Shutdown(ctx)
	if cerr := s.router.Close(); cerr != nil {
		slog.Warn("failed to close rate limiter", "error", cerr)
	}
	return errors.Join(err, s.app.Close())
}
