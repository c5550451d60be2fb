package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	drugName, err := url.PathUnescape(chi.URLParam(r, "drugName"))
	if err != nil || strings.TrimSpace(drugName) == "" {
		jsonError(w, "drug name is required", http.StatusBadRequest)
		return
	}
	drugName = strings.TrimSpace(drugName)

	n, err := s.core.IngestDrug(r.Context(), drugName)
	switch {
	case errors.Is(err, label.ErrUpstreamUnavailable):
		s.log.Error("ingest failed", "drug_name", drugName, "error", err)
		jsonError(w, "drug label source unavailable", http.StatusServiceUnavailable)
		return
	case err != nil && !errors.Is(err, label.ErrNotFound):
		s.log.Error("ingest failed", "drug_name", drugName, "error", err)
		jsonError(w, "failed to ingest drug label", http.StatusInternalServerError)
		return
	case err != nil || n == 0:
		jsonError(w, "Drug not found or failed to ingest", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Successfully ingested data for %s", drugName),
		"success": true,
		"chunks":  n,
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		jsonError(w, "batch ingestion disabled", http.StatusServiceUnavailable)
		return
	}
	jobID := chi.URLParam(r, "jobID")
	job := s.batch.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleBatchIngest accepts either a JSON list of drug names or a multipart
// upload of label files.
func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		jsonError(w, "batch ingestion disabled", http.StatusServiceUnavailable)
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		job *pipeline.Job
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		files, status, ferr := s.readUploads(w, r)
		if ferr != nil {
			jsonError(w, ferr.Error(), status)
			return
		}
		job, err = s.batch.SubmitFiles(files)
	default:
		var req batchRequest
		if derr := decodeJSON(w, r, &req); derr != nil {
			jsonError(w, derr.Error(), http.StatusBadRequest)
			return
		}
		job, err = s.batch.SubmitDrugs(req.DrugNames)
	}

	switch {
	case errors.Is(err, pipeline.ErrNoItems):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      snap.ID,
		"status":      snap.Status,
		"total_items": snap.Progress.TotalItems,
		"poll_url":    fmt.Sprintf("/api/v1/ingest/%s/status", snap.ID),
	})
}

// readUploads collects the "files" parts of a multipart request. On error
// it also returns the HTTP status to report.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]pipeline.File, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, http.StatusBadRequest, errors.New("at least one file is required")
	}

	files := make([]pipeline.File, 0, len(headers))
	for _, fh := range headers {
		filename := sanitizeFilename(fh.Filename)
		if !pipeline.SupportedFile(filename) {
			return nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
		}

		f, err := fh.Open()
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("failed to open %s", filename)
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil {
			return nil, http.StatusInternalServerError, fmt.Errorf("failed to read %s", filename)
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			return nil, http.StatusRequestEntityTooLarge,
				fmt.Errorf("%s exceeds max size (%d bytes)", filename, s.cfg.MaxUploadBytes)
		}
		files = append(files, pipeline.File{Name: filename, Data: data})
	}
	return files, 0, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
