package ports

import (
	"context"
	"time"

	"seqlab.portal/internal/core/domain"
)

type JobRepository interface {
	Create(ctx context.Context, job *domain.AnalysisJob) error
	GetJob(ctx context.Context, id int64) (*domain.AnalysisJob, error)
	Update(ctx context.Context, job *domain.AnalysisJob) error
	ListJobs(ctx context.Context, offset, limit int) ([]*domain.AnalysisJob, error)
	CountJobs(ctx context.Context) (int64, error)
	GetRunningJobByUser(ctx context.Context, userID int64) (*domain.AnalysisJob, error)
	ListRunningByUser(ctx context.Context, userID int64) ([]*domain.AnalysisJob, error)
	CountJobsOfTypeSince(ctx context.Context, jobType domain.AnalysisType, since time.Time) (int64, error)
	ListRunningOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.AnalysisJob, error)
}

// JobController is the remote job control protocol. PID-file liveness
// tracking lives entirely behind this interface so a registry-based
// tracker could replace it without touching callers.
type JobController interface {
	// Run launches the analysis as a detached remote process. It reports
	// success of the launch only, never of the analysis itself.
	Run(ctx context.Context, jobType domain.AnalysisType, inputPath, sampleList, jobID string) error
	// GetLog returns up to the last 1000 lines of the job's log, or a
	// fixed placeholder when no log exists yet. jobType is free text and
	// tolerated when unknown.
	GetLog(ctx context.Context, inputPath, jobType string) (string, error)
	// Kill terminates the remote process (graceful, then forceful) and
	// returns the remote outcome message. "Already dead" and "not found"
	// are successful outcomes, not errors.
	Kill(ctx context.Context, jobID, jobType string) (string, error)
	// Status probes PID-file liveness for the job.
	Status(ctx context.Context, jobID string) (domain.RemoteStatus, error)
	// Test performs a trivial connectivity round trip against all hosts.
	Test(ctx context.Context) (string, error)
}

// FolderCache caches directory listings for the browse endpoint.
type FolderCache interface {
	GetFolders(ctx context.Context, path string) ([]domain.Folder, bool)
	SetFolders(ctx context.Context, path string, folders []domain.Folder) error
}

// StatusPubSub fans job status transitions out to push consumers (the
// websocket hub). Polling stays authoritative; this is best effort.
type StatusPubSub interface {
	PublishJobUpdate(ctx context.Context, update domain.JobUpdate) error
	SubscribeJobUpdates(ctx context.Context) (<-chan domain.JobUpdate, error)
}
