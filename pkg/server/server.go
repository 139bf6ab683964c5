// Package server is the demo dashboard server: it exposes the policy API the
// HTTP client consumes, streams dashboard-state snapshots over WebSocket and
// serves Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/secdash/secdash/pkg/dashboard"
)

// Server is the HTTP/WebSocket server for the policy dashboard.
type Server struct {
	config   *Config
	dash     *dashboard.Dashboard
	fixtures *FixtureStore
	hub      *Hub

	upgrader    websocket.Upgrader
	router      chi.Router
	httpServer  *http.Server
	unsubscribe func()

	logger *slog.Logger
}

// New creates a server around the given dashboard. Pass nil config for
// defaults. The server subscribes to the dashboard store and broadcasts a
// JSON snapshot to every state-stream client on each transition.
func New(config *Config, dash *dashboard.Dashboard) *Server {
	config = config.withDefaults()
	logger := slog.Default().With("component", "server")

	s := &Server{
		config:   config,
		dash:     dash,
		fixtures: NewFixtureStore(),
		hub:      NewHub(config.WriteWait, config.SendBuffer, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}
	s.router = s.buildRouter()

	s.unsubscribe = dash.Store().Subscribe(func(state dashboard.State) {
		buf, err := json.Marshal(state)
		if err != nil {
			logger.Error("snapshot encode failed", "error", err)
			return
		}
		s.hub.Broadcast(buf)
	})

	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/waf/policies", func(r chi.Router) {
			r.Get("/", s.handleListWAF)
			r.Post("/", s.handleCreateWAF)
			r.Put("/{id}", s.handleUpdateWAF)
			r.Delete("/{id}", s.handleDeleteWAF)
		})
		r.Get("/ips/summaries", s.handleListIPS)
		r.Get("/scm/repositories", s.handleListSCM)
	})

	r.Get("/ws/state", s.handleStateStream)

	if !s.config.DisableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// handleStateStream upgrades the connection and attaches it to the hub.
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.logger.Info("state stream client connected", "remote", r.RemoteAddr)
	s.hub.serve(conn)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the state-stream hub.
func (s *Server) Hub() *Hub { return s.hub }

// Fixtures returns the in-memory policy repository.
func (s *Server) Fixtures() *FixtureStore { return s.fixtures }

// Run starts the server and blocks until shutdown or a fatal error.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server: the state-stream clients are
// disconnected first, then the HTTP listener drains.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
