// Package server provides the HTTP server: health, layout, voice banks, live
// key state, overlay stream and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/metrics"
	"github.com/ayusman/airpiano/internal/overlay"
	"github.com/ayusman/airpiano/internal/server/api"
	"github.com/ayusman/airpiano/internal/store"
)

// Config holds the server configuration. Nil parts disable their routes.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Layout     *keyboard.Layout
	BaseOctave int
	Hub        *Hub
	Snapshot   *overlay.Snapshot
	Metrics    *metrics.Metrics
}

// Server represents the HTTP server for the airpiano application.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if s.config.Layout != nil {
		notes := s.config.Layout.Notes()
		r.Method(http.MethodGet, "/api/layout", api.NewLayoutHandler(s.config.Layout, s.config.BaseOctave))
		if s.config.Store != nil {
			r.Mount("/api/voices", api.NewVoiceHandler(s.config.Store, notes).Routes())
		}
	} else if s.config.Store != nil {
		r.Mount("/api/voices", api.NewVoiceHandler(s.config.Store, 0).Routes())
	}

	if s.config.Hub != nil {
		r.Method(http.MethodGet, "/api/state", s.config.Hub)
	}

	if s.config.Snapshot != nil {
		r.Method(http.MethodGet, "/api/stream", NewStreamHandler(s.config.Snapshot))
	}

	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down. Open streams
// end with ctx.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
