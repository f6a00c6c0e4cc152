// Package webapi exposes the analysis pipeline and query layer over HTTP
// (chi) and as MCP tools. It owns no analysis logic: handlers validate
// input, call into pipeline/store, and shape responses.
package webapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tushrpal/instagram-follower-analyzer/archive"
	"github.com/tushrpal/instagram-follower-analyzer/pipeline"
	"github.com/tushrpal/instagram-follower-analyzer/store"
)

// Server holds the wired collaborators of the HTTP surface.
type Server struct {
	store  *store.Store
	pipe   *pipeline.Pipeline
	cfg    *Config
	logger *slog.Logger
}

// New creates a Server.
func New(st *store.Store, pipe *pipeline.Pipeline, cfg *Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: st, pipe: pipe, cfg: cfg, logger: logger}
}

// RegisterHTTP mounts all routes on r.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/latest", s.handleLatestSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Get("/contacts", s.handleContacts)
			r.Get("/unfollowed", s.handleUnfollowed)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/growth", s.handleGrowth)
			r.Get("/export.csv", s.handleExportCSV)
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 persistence/internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, archive.ErrUnreadable),
		errors.Is(err, pipeline.ErrEmptyDataset),
		errors.Is(err, store.ErrInvalidPage),
		errors.Is(err, store.ErrInvalidLimit),
		errors.Is(err, store.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
