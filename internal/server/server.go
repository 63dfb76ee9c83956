// Package server provides the optional HTTP status server for fingervol.
// It never touches the camera; it serves what the frame loop publishes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/fingervol/internal/app"
	"github.com/ayusman/fingervol/internal/observe"
	"github.com/ayusman/fingervol/internal/store"
	"github.com/go-chi/chi/v5"
)

// Default and maximum number of readings returned by /api/readings.
const (
	DefaultReadingsLimit = 50
	MaxReadingsLimit     = 1000
)

// Controller is the part of the frame loop the server reports on and toggles.
type Controller interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	LastReading() *app.Reading
}

// Config holds the server configuration. Every field is optional; routes whose
// dependency is missing are not registered.
type Config struct {
	StaticDir  string
	Controller Controller
	Store      *store.Store
	// SessionID is the history session of the running loop.
	SessionID string
	Frames    *FrameHub
	Live      *LiveHub
	Metrics   *observe.Metrics
	Logger    *slog.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	router chi.Router
	start  time.Time
	log    *slog.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		start:  time.Now(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(observe.RequestLogger(s.log, s.config.Metrics))

	r.Get("/api/health", s.handleHealth)

	if s.config.Controller != nil {
		r.Get("/api/status", s.handleStatus)
		r.Put("/api/enabled", s.handleSetEnabled)
	}

	if s.config.Store != nil {
		r.Get("/api/readings", s.handleReadings)
		r.Get("/api/sessions/{id}/histogram", s.handleHistogram)
	}

	if s.config.Frames != nil {
		r.Get("/api/stream", s.config.Frames.ServeHTTP)
	}

	if s.config.Live != nil {
		r.Get("/api/live", s.config.Live.ServeHTTP)
	}

	if s.config.Metrics != nil {
		r.Get("/metrics", s.config.Metrics.Handler().ServeHTTP)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Enabled   bool         `json:"enabled"`
	SessionID string       `json:"session_id,omitempty"`
	Reading   *app.Reading `json:"reading"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Enabled:   s.config.Controller.IsEnabled(),
		SessionID: s.config.SessionID,
		Reading:   s.config.Controller.LastReading(),
	})
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}

	s.config.Controller.SetEnabled(*body.Enabled)
	if s.config.Store != nil {
		if err := s.config.Store.Settings().Set(store.SettingEnabled, strconv.FormatBool(*body.Enabled)); err != nil {
			s.log.Warn("failed to persist enabled flag", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *body.Enabled})
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit := DefaultReadingsLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxReadingsLimit)
	}

	readings, err := s.config.Store.Readings().Recent(limit)
	if err != nil {
		s.log.Error("list readings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (s *Server) handleHistogram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "current" {
		id = s.config.SessionID
	}

	if _, err := s.config.Store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.log.Error("get session failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	buckets, err := s.config.Store.Readings().Histogram(id)
	if err != nil {
		s.log.Error("histogram failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build histogram")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "buckets": buckets})
}

// Run listens on addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then ends the
// streaming clients and shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Shutdown waits for active requests; stream and websocket handlers only
	// return once their hub is closed.
	if s.config.Frames != nil {
		s.config.Frames.Close()
	}
	if s.config.Live != nil {
		s.config.Live.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
