package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// AnalysisJob tracks one remote analysis run from submission to completion.
// The remote side knows the job only by its JobCode; everything else lives
// in this row.
type AnalysisJob struct {
	ID         int64        `json:"id" gorm:"primaryKey"`
	UserID     int64        `json:"user_id" gorm:"index"`
	JobType    AnalysisType `json:"job_type" gorm:"index"`
	JobCode    string       `json:"job_code" gorm:"uniqueIndex"`
	RunName    string       `json:"run_name"`
	Parameters string       `json:"parameters"` // JSON-encoded JobParameters
	Status     JobStatus    `json:"status" gorm:"index;default:queued"`
	Progress   int          `json:"progress"`
	Logs       string       `json:"-"` // last successfully fetched log text
	CreatedAt  time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// JobParameters is the JSON payload stored in AnalysisJob.Parameters.
type JobParameters struct {
	Samples     []string `json:"samples"`
	InputPath   string   `json:"input_path"`
	SampleCount int      `json:"sample_count"`
}

func (j *AnalysisJob) Params() (*JobParameters, error) {
	if j.Parameters == "" {
		return &JobParameters{}, nil
	}
	var p JobParameters
	if err := json.Unmarshal([]byte(j.Parameters), &p); err != nil {
		return nil, fmt.Errorf("decode job %d parameters: %w", j.ID, err)
	}
	return &p, nil
}

func (j *AnalysisJob) IsRunning() bool {
	return j.Status == JobStatusRunning
}

// GenerateJobCode builds the human-readable identifier the remote side is
// keyed on, e.g. "wgs241009_01". count is the 1-based number of jobs of
// this type created today.
func GenerateJobCode(jobType AnalysisType, now time.Time, count int64) string {
	return fmt.Sprintf("%s%s_%02d", jobType, now.Format("060102"), count)
}

// JobUpdate is the message published when a job changes status.
type JobUpdate struct {
	JobID   int64     `json:"job_id"`
	JobCode string    `json:"job_code"`
	Status  JobStatus `json:"status"`
}
