package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"seqlab.portal/internal/core/domain"
	"seqlab.portal/internal/core/services"
	"seqlab.portal/internal/remote"
)

type Server struct {
	router    *chi.Mux
	analysis  *services.AnalysisService
	samples   *services.SampleService
	healthSvc *services.HealthService
	hub       *Hub
}

func NewServer(analysis *services.AnalysisService, samples *services.SampleService, healthSvc *services.HealthService, hub *Hub) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		analysis:  analysis,
		samples:   samples,
		healthSvc: healthSvc,
		hub:       hub,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		MetricsHandler().ServeHTTP(w, r)
	})

	// Kubernetes probes
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/health/detailed", s.handleDetailedHealth)
	s.router.Get("/api/ws", s.hub.ServeWS)

	s.router.Route("/api/jobs", func(r chi.Router) {
		r.Post("/", s.handleStartAnalysis)
		r.Get("/", s.handleListJobs)
		r.Get("/running", s.handleRunningJob)
		r.Post("/reset", s.handleForceReset)
		r.Get("/{id}", s.handleGetJob)
		r.Post("/{id}/cancel", s.handleCancelJob)
	})

	// Polled by the browser: log every 2s, status every 3s.
	s.router.Get("/api/progress/{id}", s.handleProgress)
	s.router.Get("/api/log/{id}", s.handleLog)

	s.router.Get("/api/test", s.handleTestConnectivity)

	s.router.Post("/api/samples", s.handleGetSamples)
	s.router.Get("/api/browse", s.handleBrowseFolder)

	// Static frontend
	fileServer := http.FileServer(http.Dir("./web"))
	s.router.Handle("/*", fileServer)
}

func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if report.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, report)
}

type startAnalysisRequest struct {
	AnalysisType string   `json:"analysis_type"`
	FolderPath   string   `json:"folder_path"`
	RunName      string   `json:"run_name"`
	Samples      []string `json:"samples"`
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req startAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	jobType, err := domain.ParseAnalysisType(req.AnalysisType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "Keine Proben ausgewählt")
		return
	}

	job, err := s.analysis.CreateAndStartJob(r.Context(), userID(r), jobType, req.FolderPath, req.RunName, req.Samples)
	if err != nil {
		status := statusForError(err)
		if job != nil {
			// Launch failure: the job row exists in status failed.
			RecordJobStatus(string(domain.JobStatusFailed))
			writeJSON(w, status, map[string]interface{}{"job": job, "error": err.Error()})
			return
		}
		writeError(w, status, err.Error())
		return
	}

	RecordJobStatus(string(job.Status))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"job": job})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := s.analysis.ListJobs(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRunningJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.analysis.GetRunningJob(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.analysis.GetJob(r.Context(), id, userID(r))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := s.analysis.CancelJob(r.Context(), id, userID(r)); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	RecordJobStatus(string(domain.JobStatusFailed))
	writeJSON(w, http.StatusOK, map[string]string{"result": "cancelled"})
}

func (s *Server) handleForceReset(w http.ResponseWriter, r *http.Request) {
	count, err := s.analysis.ForceResetUserJobs(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": count})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	status, err := s.analysis.GetJobProgress(r.Context(), id, userID(r))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.JobStatus{"status": status})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	logText, err := s.analysis.GetJobLog(r.Context(), id, userID(r))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"log": logText})
}

func (s *Server) handleTestConnectivity(w http.ResponseWriter, r *http.Request) {
	report, err := s.analysis.TestConnectivity(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"report": report, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"report": report})
}

type getSamplesRequest struct {
	FolderPath string `json:"folder_path"`
	Recursive  bool   `json:"recursive"`
}

func (s *Server) handleGetSamples(w http.ResponseWriter, r *http.Request) {
	var req getSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	samples, err := s.samples.GetSamples(req.FolderPath, req.Recursive)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"samples": samples})
}

func (s *Server) handleBrowseFolder(w http.ResponseWriter, r *http.Request) {
	folders, current, err := s.samples.BrowseFolder(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"folders":      folders,
		"current_path": current,
	})
}

// userID reads the caller identity set by the auth layer in front of the
// portal. Authentication itself is out of scope here.
func userID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id
}

func jobID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func statusForError(err error) int {
	var terr *remote.Error
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAnalysisAlreadyRunning),
		errors.Is(err, services.ErrJobNotRunning):
		return http.StatusConflict
	case errors.Is(err, services.ErrEmptyPath):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrPathOutsideBase):
		return http.StatusForbidden
	case errors.As(err, &terr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
