package webapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tushrpal/instagram-follower-analyzer/analyze"
	"github.com/tushrpal/instagram-follower-analyzer/store"
)

// handleUpload receives a multipart export archive in the "archive" field,
// spools it to a temp file (bounded memory regardless of archive size), and
// runs the pipeline on it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	file, header, err := r.FormFile("archive")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing archive field: %w", err))
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp(s.cfg.UploadDir, "iga_upload_*.zip")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, file); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("receive archive: %w", err))
		return
	}

	s.logger.Info("archive received", "name", header.Filename, "size", header.Size)

	summary, err := s.pipe.ProcessFile(r.Context(), tmp.Name())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.LatestSessionID(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if id == "" {
		writeError(w, http.StatusNotFound, store.ErrSessionNotFound)
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cat, err := store.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.store.ListContacts(r.Context(), chi.URLParam(r, "sessionID"),
		cat, r.URL.Query().Get("search"), page, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnfollowed(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.store.ListUnfollowed(r.Context(), chi.URLParam(r, "sessionID"),
		r.URL.Query().Get("search"), page, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	events, err := s.store.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	events, err := s.store.Timeline(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, analyze.Growth(events, time.Now()))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	rows, err := s.store.ExportRows(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="contacts_`+id+`.csv"`)
	writeCSV(w, rows)
}

func pageParams(r *http.Request) (page, limit int, err error) {
	page, err = intParam(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intParam(r, "limit", 20)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
