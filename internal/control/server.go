// Package control exposes the local HTTP control surface: status,
// enable/disable, feed refresh, and title lookups. It binds to
// loopback; there is no auth.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/retitle/internal/titles"
)

// Engine is the slice of the rewrite engine the control surface reads.
type Engine interface {
	Enabled() bool
	ReplacedThisSession() int64
}

// Bridge is the slice of the titles bridge the control surface drives.
type Bridge interface {
	Current() titles.Mapping
	SetEnabled(ctx context.Context, enabled bool) error
	Refresh(ctx context.Context)
	TotalReplacements(ctx context.Context) (int64, error)
}

// Rescanner forces an immediate page scan.
type Rescanner interface {
	Rescan()
}

// Config for creating a Server.
type Config struct {
	Listen  string
	Engine  Engine
	Bridge  Bridge
	Rescan  Rescanner     // optional
	PageURL func() string // optional, current observed URL for status
	Logger  *slog.Logger
}

// Server is the control HTTP server.
type Server struct {
	cfg Config
	srv *http.Server
	mux *chi.Mux
	log *slog.Logger
}

// NewServer builds the router. Call Start to listen.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{cfg: cfg, log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Post("/settings", s.handleSettings)
	r.Post("/refresh", s.handleRefresh)
	r.Post("/rescan", s.handleRescan)
	r.Get("/titles/{id}", s.handleTitle)

	s.mux = r
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control: listening", "addr", s.cfg.Listen)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type statusResponse struct {
	Enabled             bool   `json:"enabled"`
	SessionReplacements int64  `json:"session_replacements"`
	TotalReplacements   int64  `json:"total_replacements"`
	Titles              int    `json:"titles"`
	PageURL             string `json:"page_url,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, err := s.cfg.Bridge.TotalReplacements(r.Context())
	if err != nil {
		s.log.Warn("control: read totals", "error", err)
	}

	resp := statusResponse{
		Enabled:             s.cfg.Engine.Enabled(),
		SessionReplacements: s.cfg.Engine.ReplacedThisSession(),
		TotalReplacements:   total,
		Titles:              len(s.cfg.Bridge.Current()),
	}
	if s.cfg.PageURL != nil {
		resp.PageURL = s.cfg.PageURL()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.cfg.Bridge.SetEnabled(r.Context(), req.Enabled); err != nil {
		s.log.Error("control: set enabled", "error", err)
		writeError(w, http.StatusInternalServerError, "persist failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.cfg.Bridge.Refresh(r.Context())
	if s.cfg.Rescan != nil {
		s.cfg.Rescan.Rescan()
	}
	writeJSON(w, http.StatusOK, map[string]int{"titles": len(s.cfg.Bridge.Current())})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Rescan == nil {
		writeError(w, http.StatusServiceUnavailable, "no active watcher")
		return
	}
	s.cfg.Rescan.Rescan()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.cfg.Bridge.Current().Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown video id")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
