// Package web is the companion UI backend: submit downloads, follow their
// progress over SSE, and browse/stream the resulting library.
package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tonearm/tonearm/internal/resolver"
)

type Server struct {
	jobs *JobManager
	lib  *Library
}

func NewServer(jobs *JobManager, lib *Library) *Server {
	return &Server{jobs: jobs, lib: lib}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Post("/api/downloads", s.handleSubmitDownload)
	r.Get("/api/downloads/{id}", s.handleJobStatus)
	r.Get("/api/downloads/{id}/events", s.handleJobEvents)

	r.Get("/api/songs", s.handleListSongs)
	r.Get("/songs/{name}", s.handleServeSong)
	r.Get("/cover/{name}", s.handleCover)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type downloadRequest struct {
	Query   string `json:"query"`
	Quality string `json:"quality"`
}

func (s *Server) handleSubmitDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	quality, ok := resolver.ParseQuality(req.Quality)
	if !ok {
		quality = resolver.QualityHigh
	}
	job := s.jobs.Submit(req.Query, quality)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Status())
}

// handleJobEvents streams progress as server-sent events until the job
// reaches a terminal state or the client goes away.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := job.Subscribe()
	defer cancel()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if err := enc.Encode(e); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
			if e.terminal() {
				return
			}
		}
	}
}

func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"songs": s.lib.Songs()})
}

func (s *Server) handleServeSong(w http.ResponseWriter, r *http.Request) {
	path, err := s.lib.FilePath(chi.URLParam(r, "name"))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeError(w, status, "song not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	data, mime, err := s.lib.Cover(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "no cover art")
		return
	}
	w.Header().Set("Content-Type", mime)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
