package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/siwakornth/bilifetch/internal/adapter/ytdlp"
	"github.com/siwakornth/bilifetch/internal/domain"
)

// Server is the HTTP adapter for the download service.
type Server struct {
	svc      *domain.JobService
	dispatch func(id string)
	mux      *http.ServeMux
	server   *http.Server
}

// NewServer creates a new HTTP server. dispatch is called exactly once per
// submitted job to hand it to the worker pool.
func NewServer(svc *domain.JobService, dispatch func(id string), addr string) *Server {
	s := &Server{
		svc:      svc,
		dispatch: dispatch,
		mux:      http.NewServeMux(),
	}
	s.routes()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /download", s.handleSubmit)
	s.mux.HandleFunc("GET /status/{id}", s.handleStatus)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /download/{id}/file", s.handleDownloadFile)
	s.mux.HandleFunc("DELETE /cleanup/{id}", s.handleCleanup)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// downloadRequest is the request body for POST /download.
type downloadRequest struct {
	URL            string `json:"url"`
	OutputPath     string `json:"output_path"`
	Format         string `json:"format"`
	FFmpegLocation string `json:"ffmpeg_location"`
}

// jobResponse is the JSON shape for job snapshots.
type jobResponse struct {
	JobID          string  `json:"job_id"`
	URL            string  `json:"url"`
	OutputPath     string  `json:"output_path"`
	Format         string  `json:"format"`
	FFmpegLocation string  `json:"ffmpeg_location,omitempty"`
	Status         string  `json:"status"`
	OutputFile     string  `json:"output_file,omitempty"`
	DownloadURL    *string `json:"download_url"`
	RemoteFileID   string  `json:"remote_file_id,omitempty"`
	RemoteFileURL  string  `json:"remote_file_url,omitempty"`
	RemoteViewURL  string  `json:"remote_file_view_url,omitempty"`
	Error          string  `json:"error,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
	StatusURL      string  `json:"status_url"`
}

// submitResponse is the JSON response for POST /download.
type submitResponse struct {
	JobID          string  `json:"job_id"`
	Status         string  `json:"status"`
	Format         string  `json:"format"`
	FFmpegLocation string  `json:"ffmpeg_location"`
	DownloadURL    *string `json:"download_url"`
	StatusURL      string  `json:"status_url"`
}

// fileResponse is the inline base64 variant of file delivery.
type fileResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	format := req.Format
	if format == "" {
		format = "auto"
	}
	if !domain.IsFormatPreset(format) {
		keys := make([]string, 0)
		for _, p := range domain.FormatPresets() {
			keys = append(keys, p.Key)
		}
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid format (supported: %s)", strings.Join(keys, ", ")))
		return
	}

	ffmpegLocation := req.FFmpegLocation
	if ffmpegLocation != "" {
		resolved, err := ytdlp.ResolveFFmpegLocation(ffmpegLocation)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		ffmpegLocation = resolved
	}

	job, err := s.svc.Submit(req.URL, req.OutputPath, format, ffmpegLocation)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidURL) {
			s.writeError(w, http.StatusBadRequest, "invalid URL")
			return
		}
		log.Printf("submit error: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.dispatch(job.ID)

	s.writeJSON(w, http.StatusOK, submitResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		Format:         job.Format,
		FFmpegLocation: job.FFmpegLocation,
		DownloadURL:    nil,
		StatusURL:      s.absoluteURL(r, "/status/"+job.ID),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Store().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.jobToResponse(r, job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.svc.Store().List()
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, s.jobToResponse(r, job))
	}
	s.writeJSON(w, http.StatusOK, map[string][]jobResponse{"jobs": out})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	asBase64 := boolParam(r, "as_base64", false)
	autoDelete := boolParam(r, "auto_delete", true)

	job, err := s.svc.BeginDelivery(id, !autoDelete)
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	case errors.Is(err, domain.ErrArtifactGone):
		s.writeError(w, http.StatusGone, "file was already delivered and removed")
		return
	case errors.Is(err, domain.ErrDeliveryInProgress):
		s.writeError(w, http.StatusConflict, "file is being delivered to another request")
		return
	case errors.Is(err, domain.ErrJobNotReady):
		s.writeError(w, http.StatusConflict,
			fmt.Sprintf("job is not finished yet (status: %s)", job.Status))
		return
	case errors.Is(err, domain.ErrNoOutputFile):
		s.writeError(w, http.StatusNotFound, "no saved file for this job")
		return
	case err != nil:
		log.Printf("job %s: begin delivery: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	f, err := os.Open(job.OutputFile)
	if err != nil {
		// The artifact was removed out from under us; release the
		// advisory lock so manual cleanup can still run.
		s.releaseDelivery(id)
		s.writeError(w, http.StatusNotFound, "file was removed or moved")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.releaseDelivery(id)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	mimeType := domain.MimeType(job.OutputFile)
	filename := filepath.Base(job.OutputFile)

	if asBase64 {
		data, err := io.ReadAll(f)
		if err != nil {
			// The artifact survives a failed read so the client can retry.
			s.releaseDelivery(id)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		defer s.svc.FinishDelivery(context.Background(), id, autoDelete)
		s.writeJSON(w, http.StatusOK, fileResponse{
			Filename: filename,
			Size:     info.Size(),
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(data),
		})
		return
	}

	// Runs exactly once after the response body is done, whether the copy
	// succeeded or the client went away.
	defer s.svc.FinishDelivery(context.Background(), id, autoDelete)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("job %s: delivery interrupted: %v", id, err)
	}
}

// releaseDelivery hands the advisory delivery lock back after a delivery
// that never produced a response body, keeping the artifact retrievable.
func (s *Server) releaseDelivery(id string) {
	s.svc.Store().Update(id, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := s.svc.Cleanup(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("job %s: cleanup: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if removed != "" {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"message": "file removed",
			"file":    removed,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message": "file not found or already removed",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) jobToResponse(r *http.Request, job domain.Job) jobResponse {
	resp := jobResponse{
		JobID:          job.ID,
		URL:            job.URL,
		OutputPath:     job.OutputPath,
		Format:         job.Format,
		FFmpegLocation: job.FFmpegLocation,
		Status:         string(job.Status),
		OutputFile:     job.OutputFile,
		RemoteFileID:   job.RemoteFileID,
		RemoteFileURL:  job.RemoteFileURL,
		RemoteViewURL:  job.RemoteViewURL,
		Error:          job.Error,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.UTC().Format(time.RFC3339),
		StatusURL:      s.absoluteURL(r, "/status/"+job.ID),
	}
	if job.DownloadURL != "" {
		u := s.absoluteURL(r, job.DownloadURL)
		resp.DownloadURL = &u
	}
	return resp
}

// absoluteURL builds an externally visible URL, honoring reverse-proxy
// forwarding headers when present.
func (s *Server) absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstForwarded(r, "X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if fwdHost := firstForwarded(r, "X-Forwarded-Host"); fwdHost != "" {
		host = fwdHost
	} else if port := firstForwarded(r, "X-Forwarded-Port"); port != "" {
		hostname := host
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			hostname = host[:idx]
		}
		host = hostname + ":" + port
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path
}

func firstForwarded(r *http.Request, header string) string {
	value := r.Header.Get(header)
	if value == "" {
		return ""
	}
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}

// boolParam parses a query flag, keeping def when the flag is absent or
// unparseable.
func boolParam(r *http.Request, name string, def bool) bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
