// Package api exposes the polling HTTP interface for enrichment jobs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/lodgeleads/enrich/internal/facility"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/scheduler"
)

// logTail bounds how many log entries a status poll returns.
const logTail = 50

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router    chi.Router
	scheduler *scheduler.Scheduler
}

// NewServer constructs a Server with middleware and routes.
func NewServer(sched *scheduler.Scheduler) *Server {
	s := &Server{scheduler: sched}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.health)
	r.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.startJob)
		r.Get("/", s.listJobs)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Post("/cancel", s.cancelJob)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startJobRequest struct {
	Type     model.JobType         `json:"type"`
	Mode     facility.SelectorMode `json:"mode"`
	IDs      []string              `json:"ids,omitempty"`
	Settings scheduler.Settings    `json:"settings"`
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Mode == "" {
		req.Mode = facility.ModeAll
	}

	jobID, err := s.scheduler.Start(r.Context(), req.Type,
		facility.Selector{Mode: req.Mode, IDs: req.IDs}, req.Settings)
	if err != nil {
		// Everything Start rejects is a malformed request, not a server fault.
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// jobView is the poll response: the job plus its derived fields.
type jobView struct {
	model.Job
	SuccessRate float64 `json:"success_rate"`
	ETASeconds  float64 `json:"eta_seconds"`
}

func viewOf(job model.Job) jobView {
	if tail := len(job.Logs) - logTail; tail > 0 {
		job.Logs = job.Logs[tail:]
	}
	return jobView{
		Job:         job,
		SuccessRate: job.Counters.SuccessRate(),
		ETASeconds:  job.ETA(time.Now()).Seconds(),
	}
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.scheduler.Get(chi.URLParam(r, "job_id"))
	if err != nil {
		s.jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(job))
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := s.scheduler.List()
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, viewOf(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.scheduler.Cancel(chi.URLParam(r, "job_id"))
	if err != nil {
		s.jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":    job.ID,
		"status":    job.Status,
		"cancelled": !job.Status.Terminal(),
	})
}

func (s *Server) jobError(w http.ResponseWriter, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: response write failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
