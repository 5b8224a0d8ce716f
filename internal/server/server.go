package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pagepress/internal/compose"
	cfgpkg "github.com/local/pagepress/internal/config"
	"github.com/local/pagepress/internal/metrics"
	"github.com/local/pagepress/internal/queue"
	"github.com/local/pagepress/internal/store"
)

// Queue is the slice of the job queue the server needs.
type Queue interface {
	Enqueue(ctx context.Context, payload []byte) error
	CancelJob(ctx context.Context, jobID string) error
	Ping(ctx context.Context) error
}

// StatusStore persists per-job status.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// ReportStore reads finished job reports.
type ReportStore interface {
	Get(ctx context.Context, jobID string) (*compose.Report, bool, error)
}

type Dependencies struct {
	Queue   Queue
	Status  StatusStore
	Reports ReportStore
}

type Server struct {
	cfg  cfgpkg.Config
	deps Dependencies
}

func New(cfg cfgpkg.Config, deps Dependencies) *Server {
	return &Server{cfg: cfg, deps: deps}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/compose", s.handleCompose)
	mux.HandleFunc("/progress/", s.handleProgress)
	mux.HandleFunc("/report/", s.handleReport)
	mux.HandleFunc("/download/", s.handleDownload)
	mux.HandleFunc("/webhook/cancel_job", s.handleCancelJob)
	mux.Handle("/metrics", metrics.Handler())
}

type composeReq struct {
	InputDir   string   `json:"input_dir"`
	OutputName string   `json:"output_name,omitempty"`
	PageSize   string   `json:"page_size,omitempty"`
	Margin     *float64 `json:"margin,omitempty"`
	NoMargins  bool     `json:"no_margins,omitempty"`
	UploadTo   string   `json:"upload_to,omitempty"`
	Source     string   `json:"source,omitempty"`
}

type composeResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req composeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.InputDir == "" {
		http.Error(w, "missing input_dir", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(req.InputDir); err != nil || !info.IsDir() {
		http.Error(w, fmt.Sprintf("input_dir %q is not a directory", req.InputDir), http.StatusBadRequest)
		return
	}

	margin := s.cfg.Page.Margin
	if req.Margin != nil {
		margin = *req.Margin
	}
	if req.NoMargins {
		margin = 0
	}

	jobID := uuid.NewString()
	outName := req.OutputName
	if outName == "" {
		outName = jobID + ".pdf"
	}
	if err := os.MkdirAll(s.cfg.Server.OutputDir, 0o755); err != nil {
		http.Error(w, "cannot create output dir", http.StatusInternalServerError)
		return
	}
	outputPath := filepath.Join(s.cfg.Server.OutputDir, filepath.Base(outName))

	source := req.Source
	if source == "" {
		source = "api"
	}
	job := queue.Job{
		JobID:      jobID,
		InputDir:   req.InputDir,
		OutputPath: outputPath,
		PageSize:   req.PageSize,
		Margin:     margin,
		UploadTo:   req.UploadTo,
		Source:     source,
		Attempt:    1,
	}
	payload, _ := json.Marshal(job)

	start := time.Now()
	_ = s.deps.Status.Set(r.Context(), jobID, store.Status{Status: "queued", Progress: 0, Message: "queued", Start: &start,
		Metadata: map[string]any{"input_dir": req.InputDir, "output_path": outputPath, "source": source}})

	if err := s.deps.Queue.Enqueue(r.Context(), payload); err != nil {
		log.Error().Err(err).Msg("enqueue failed")
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}
	log.Info().Str("job_id", jobID).Str("input", req.InputDir).Str("output", outputPath).Msg("compose job created")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(composeResp{Status: "ok", JobID: jobID, Message: "compose job created"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	st, ok, err := s.deps.Status.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    st.Status == "success",
		"job_id":     id,
		"status":     st.Status,
		"progress":   st.Progress,
		"message":    st.Message,
		"start_time": st.Start,
		"end_time":   st.End,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/report/")
	rep, ok, err := s.deps.Reports.Get(r.Context(), id)
	if err != nil {
		http.Error(w, "error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rep)
}

// handleDownload serves the finished PDF for local-output jobs.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/download/")
	st, ok, err := s.deps.Status.Get(r.Context(), id)
	if err != nil || !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if st.Status != "success" {
		http.Error(w, "not ready", http.StatusAccepted)
		return
	}
	p, _ := st.Metadata["output_path"].(string)
	if p == "" {
		http.Error(w, "result not available", http.StatusNotFound)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.Error(w, "failed to read", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(p)))
	http.ServeContent(w, r, filepath.Base(p), time.Time{}, f)
}

type cancelReq struct {
	JobID  string `json:"job_id"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.JobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}
	if err := s.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
		http.Error(w, "cancel failed", http.StatusInternalServerError)
		return
	}
	st, ok, _ := s.deps.Status.Get(r.Context(), req.JobID)
	if !ok {
		st = store.Status{}
	}
	st.Status = "cancelled"
	st.Progress = 0
	if req.Reason != "" {
		st.Message = fmt.Sprintf("Cancelled: %s", req.Reason)
	} else {
		st.Message = "Cancelled"
	}
	now := time.Now()
	st.End = &now
	_ = s.deps.Status.Set(r.Context(), req.JobID, st)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": req.JobID, "status": "cancelled"})
}

// handleReady probes the dependencies the service cannot run without.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	ok := true

	if err := s.deps.Queue.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		ok = false
	} else {
		checks["redis"] = "ok"
	}

	if err := os.MkdirAll(s.cfg.Server.OutputDir, 0o755); err != nil {
		checks["output_dir"] = err.Error()
		ok = false
	} else {
		checks["output_dir"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"ready": ok, "checks": checks})
}
