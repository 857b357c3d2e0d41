package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"seqlab.portal/internal/core/circuitbreaker"
	"seqlab.portal/internal/core/domain"
	"seqlab.portal/internal/core/ports"
)

// Completion and failure markers the pipelines print into their logs. The
// remote protocol only distinguishes running/finished/not_found; "failed"
// is derived here from log content (and, lacking markers, from a dead PID).
var (
	completionMarkers = regexp.MustCompile(`(?i)Analysis is ready|ANALYSIS COMPLETE`)
	failureMarkers    = regexp.MustCompile(`(?i)Exiting pipeline|ANALYSIS FAILED|ERROR.*FATAL`)
)

const (
	// stuckJobCutoff is how long a job may sit in running before the
	// periodic cleanup force-fails it.
	stuckJobCutoff = 12 * time.Hour
	// runningJobCutoff is the per-user variant applied when the running
	// job is looked up interactively.
	runningJobCutoff = 1 * time.Hour
)

var (
	ErrAnalysisAlreadyRunning = errors.New("Es läuft bereits eine Analyse")
	ErrNotAuthorized          = errors.New("Keine Berechtigung")
	ErrJobNotRunning          = errors.New("Job läuft nicht")
)

// AnalysisService is the bridge between the browser-facing API and the
// remote job control protocol.
type AnalysisService struct {
	jobs       ports.JobRepository
	controller ports.JobController
	pubsub     ports.StatusPubSub
	validator  *PathValidator
	breaker    *circuitbreaker.CircuitBreaker
	log        *slog.Logger
}

func NewAnalysisService(
	jobs ports.JobRepository,
	controller ports.JobController,
	pubsub ports.StatusPubSub,
	validator *PathValidator,
	log *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		jobs:       jobs,
		controller: controller,
		pubsub:     pubsub,
		validator:  validator,
		breaker:    circuitbreaker.New("remote-poll"),
		log:        log,
	}
}

// CreateAndStartJob persists a new job and launches it remotely. The
// returned job is in status running on success and failed when the launch
// command itself failed; the second return value carries the launch error.
func (s *AnalysisService) CreateAndStartJob(
	ctx context.Context,
	userID int64,
	jobType domain.AnalysisType,
	folderPath, runName string,
	samples []string,
) (*domain.AnalysisJob, error) {
	if running, err := s.jobs.GetRunningJobByUser(ctx, userID); err != nil {
		return nil, err
	} else if running != nil {
		return nil, ErrAnalysisAlreadyRunning
	}

	validated, err := s.validator.Validate(folderPath, jobType)
	if err != nil {
		return nil, err
	}

	if runName == "" {
		runName = filepath.Base(filepath.Clean(folderPath))
	}

	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	countToday, err := s.jobs.CountJobsOfTypeSince(ctx, jobType, startOfDay)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(domain.JobParameters{
		Samples:     samples,
		InputPath:   validated,
		SampleCount: len(samples),
	})
	if err != nil {
		return nil, err
	}

	job := &domain.AnalysisJob{
		UserID:     userID,
		JobType:    jobType,
		JobCode:    domain.GenerateJobCode(jobType, now, countToday+1),
		RunName:    runName,
		Parameters: string(params),
		Status:     domain.JobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.log.Info("creating job",
		"job_code", job.JobCode,
		"user_id", userID,
		"samples", len(samples),
	)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.controller.Run(ctx, jobType, validated, strings.Join(samples, ","), job.JobCode); err != nil {
		s.transition(ctx, job, domain.JobStatusFailed)
		s.log.Error("analysis launch failed", "job_code", job.JobCode, "error", err)
		return job, err
	}

	s.transition(ctx, job, domain.JobStatusRunning)
	s.log.Info("analysis started", "job_code", job.JobCode)
	return job, nil
}

// CancelJob kills the remote process of a running job and marks it failed.
func (s *AnalysisService) CancelJob(ctx context.Context, jobID, userID int64) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.UserID != userID {
		s.log.Warn("unauthorized cancel attempt", "job_id", jobID, "user_id", userID)
		return ErrNotAuthorized
	}
	if !job.IsRunning() {
		return ErrJobNotRunning
	}

	outcome, err := s.controller.Kill(ctx, job.JobCode, string(job.JobType))
	if err != nil {
		s.log.Error("cancel failed", "job_id", jobID, "error", err)
		return err
	}

	s.transition(ctx, job, domain.JobStatusFailed)
	s.log.Info("analysis cancelled", "job_code", job.JobCode, "outcome", outcome)
	return nil
}

// GetJobProgress reports the UI-visible status and advances it from remote
// signals while the job is running. Transient remote failures leave the
// stored status untouched.
func (s *AnalysisService) GetJobProgress(ctx context.Context, jobID, userID int64) (domain.JobStatus, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.UserID != userID {
		s.log.Warn("unauthorized progress access", "job_id", jobID, "user_id", userID)
		return "", ErrNotAuthorized
	}

	if !job.IsRunning() {
		return job.Status, nil
	}

	params, err := job.Params()
	if err != nil || params.InputPath == "" {
		return job.Status, nil
	}

	logText, fetchErr := s.fetchLog(ctx, job, params.InputPath)
	if fetchErr == nil && logText != "" {
		switch {
		case completionMarkers.MatchString(logText):
			s.transition(ctx, job, domain.JobStatusFinished)
			s.log.Info("job finished", "job_code", job.JobCode)
			return job.Status, nil
		case failureMarkers.MatchString(logText):
			s.transition(ctx, job, domain.JobStatusFailed)
			s.log.Info("job failed", "job_code", job.JobCode)
			return job.Status, nil
		}
	}

	// No marker yet: ask the PID file. A dead process without a
	// completion marker did not finish on its own terms.
	var st domain.RemoteStatus
	probeErr := s.breaker.Execute(func() error {
		var err error
		st, err = s.controller.Status(ctx, job.JobCode)
		return err
	})
	if probeErr == nil && st == domain.RemoteStatusFinished {
		s.transition(ctx, job, domain.JobStatusFailed)
		s.log.Info("job process exited without completion marker", "job_code", job.JobCode)
	}

	return job.Status, nil
}

// GetJobLog returns the job's log text, truncated for the browser. On a
// transient remote failure the last successfully fetched log is returned
// so displayed state never regresses.
func (s *AnalysisService) GetJobLog(ctx context.Context, jobID, userID int64) (string, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.UserID != userID {
		s.log.Warn("unauthorized log access", "job_id", jobID, "user_id", userID)
		return "", ErrNotAuthorized
	}

	params, err := job.Params()
	if err != nil || params.InputPath == "" {
		return "[ERROR] Kein Eingabepfad in Job-Parametern", nil
	}

	logText, fetchErr := s.fetchLog(ctx, job, params.InputPath)
	if fetchErr != nil {
		if job.Logs != "" {
			return job.Logs, nil
		}
		return fmt.Sprintf("[ERROR] Log nicht verfügbar: %v", fetchErr), nil
	}

	return TruncateLog(logText), nil
}

// fetchLog pulls the remote log through the circuit breaker and persists
// it as the last-known value.
func (s *AnalysisService) fetchLog(ctx context.Context, job *domain.AnalysisJob, inputPath string) (string, error) {
	var logText string
	err := s.breaker.Execute(func() error {
		var err error
		logText, err = s.controller.GetLog(ctx, inputPath, string(job.JobType))
		return err
	})
	if err != nil {
		s.log.Warn("log fetch failed", "job_code", job.JobCode, "error", err)
		return "", err
	}

	truncated := TruncateLog(logText)
	if truncated != job.Logs {
		job.Logs = truncated
		if err := s.jobs.Update(ctx, job); err != nil {
			s.log.Warn("persist last-known log failed", "job_code", job.JobCode, "error", err)
		}
	}

	return logText, nil
}

// GetRunningJob returns the user's running job, force-failing it when it
// has been running implausibly long.
func (s *AnalysisService) GetRunningJob(ctx context.Context, userID int64) (*domain.AnalysisJob, error) {
	job, err := s.jobs.GetRunningJobByUser(ctx, userID)
	if err != nil || job == nil {
		return nil, err
	}

	if time.Since(job.CreatedAt) > runningJobCutoff {
		s.log.Warn("force-failing old running job", "job_id", job.ID)
		s.transition(ctx, job, domain.JobStatusFailed)
		return nil, nil
	}

	return job, nil
}

// CleanupStuckJobs force-fails jobs stuck in running; called periodically
// by the server.
func (s *AnalysisService) CleanupStuckJobs(ctx context.Context) error {
	stuck, err := s.jobs.ListRunningOlderThan(ctx, time.Now().UTC().Add(-stuckJobCutoff))
	if err != nil {
		return err
	}

	for _, job := range stuck {
		s.transition(ctx, job, domain.JobStatusFailed)
		s.log.Info("marked stuck job as failed", "job_id", job.ID, "job_code", job.JobCode)
	}
	return nil
}

// ForceResetUserJobs fails every running job of the user. Emergency lever.
func (s *AnalysisService) ForceResetUserJobs(ctx context.Context, userID int64) (int, error) {
	running, err := s.jobs.ListRunningByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, job := range running {
		s.transition(ctx, job, domain.JobStatusFailed)
		s.log.Warn("force-reset job", "job_id", job.ID, "job_code", job.JobCode)
	}
	return len(running), nil
}

// GetJob returns a single job after an ownership check.
func (s *AnalysisService) GetJob(ctx context.Context, jobID, userID int64) (*domain.AnalysisJob, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrNotAuthorized
	}
	return job, nil
}

// PaginatedJobs is the job history page.
type PaginatedJobs struct {
	Jobs    []*domain.AnalysisJob `json:"jobs"`
	Total   int64                 `json:"total"`
	Offset  int                   `json:"offset"`
	Limit   int                   `json:"limit"`
	HasMore bool                  `json:"has_more"`
}

func (s *AnalysisService) ListJobs(ctx context.Context, offset, limit int) (*PaginatedJobs, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	jobs, err := s.jobs.ListJobs(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.jobs.CountJobs(ctx)
	if err != nil {
		return nil, err
	}

	return &PaginatedJobs{
		Jobs:    jobs,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+len(jobs) < int(total),
	}, nil
}

// TestConnectivity runs the remote test op against every host.
func (s *AnalysisService) TestConnectivity(ctx context.Context) (string, error) {
	return s.controller.Test(ctx)
}

// transition updates the job status, persists it and notifies push
// consumers. Publishing is best effort; polling remains authoritative.
func (s *AnalysisService) transition(ctx context.Context, job *domain.AnalysisJob, status domain.JobStatus) {
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	if err := s.jobs.Update(ctx, job); err != nil {
		s.log.Error("persist status transition failed", "job_id", job.ID, "status", status, "error", err)
		return
	}

	if s.pubsub == nil {
		return
	}
	update := domain.JobUpdate{JobID: job.ID, JobCode: job.JobCode, Status: status}
	if err := s.pubsub.PublishJobUpdate(ctx, update); err != nil {
		s.log.Warn("publish job update failed", "job_id", job.ID, "error", err)
	}
}
