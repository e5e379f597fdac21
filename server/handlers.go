package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"epub2pdf/common"
	"epub2pdf/config"
	"epub2pdf/convert"
	"epub2pdf/jobs"
)

// maximum size of submission body
const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convert.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "EPUB URL is required")
		return
	}
	if err := req.Validate(&s.cfg.Layout); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.CheckRemote(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := jobs.NewID()
	if _, err := s.tracker.Create(id); err != nil {
		s.log.Error("Unable to register conversion", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Unable to start conversion")
		return
	}
	s.log.Info("Conversion submitted", zap.String("id", id), zap.String("source", req.Source))
	s.submit(r.Context(), id, req)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"conversion_id": id,
		"message":       "Conversion started successfully",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.tracker.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.tracker.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}
	if job.Status != common.JobStatusCompleted || job.Result == nil {
		writeError(w, http.StatusBadRequest, "Conversion not completed")
		return
	}

	f, err := os.Open(job.Result.OutputPath)
	if err != nil {
		s.log.Warn("Conversion output is gone", zap.String("id", job.ID), zap.Error(err))
		writeError(w, http.StatusNotFound, "PDF file not found")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "PDF file not found")
		return
	}

	name := config.SafeTitle(job.Result.BookTitle) + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	n := s.Sweep()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Cleanup completed", "removed": n})
}
