package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes what a server job does
type JobKind string

const (
	JobKindDiscovery JobKind = "discovery"
	JobKindDownload  JobKind = "download"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a discovery or download run submitted to the server
type Job struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	Kind           JobKind    `json:"kind" gorm:"not null;index"`
	Status         JobStatus  `json:"status" gorm:"not null;index"`
	PageURL        string     `json:"page_url,omitempty"`
	Category       string     `json:"category,omitempty"`
	DestinationDir string     `json:"destination_dir,omitempty"`
	Workers        int        `json:"workers,omitempty"`
	Total          int        `json:"total"`
	Processed      int        `json:"processed"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	Result         string     `json:"-" gorm:"type:text"` // JSON encoded DiscoveryResult or SessionResult
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job
func NewJob(kind JobKind, pageURL string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    JobQueued,
		PageURL:   pageURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkRunning marks the job as running
func (j *Job) MarkRunning() {
	j.Status = JobRunning
	now := time.Now()
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted marks the job as completed
func (j *Job) MarkCompleted() {
	j.finish(JobCompleted)
}

// MarkFailed marks the job as failed
func (j *Job) MarkFailed(err error) {
	j.ErrorMessage = err.Error()
	j.finish(JobFailed)
}

// MarkCancelled marks the job as cancelled
func (j *Job) MarkCancelled() {
	j.finish(JobCancelled)
}

func (j *Job) finish(status JobStatus) {
	j.Status = status
	now := time.Now()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// IsTerminal checks if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed || j.Status == JobCancelled
}

// ApplyProgress copies the counters of a progress event onto the job
func (j *Job) ApplyProgress(ev ProgressEvent) {
	j.Total = ev.Total
	j.Processed = ev.Processed
	if ev.Outcome != nil {
		switch ev.Outcome.Status {
		case OutcomeSuccess:
			j.Succeeded++
		case OutcomeFailed:
			j.Failed++
		}
	}
	j.UpdatedAt = time.Now()
}

// SetResult stores a JSON encoded result
func (j *Job) SetResult(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode job result: %w", err)
	}
	j.Result = string(data)
	return nil
}

// DiscoveryResult decodes the stored discovery result, if any
func (j *Job) DiscoveryResult() (*DiscoveryResult, error) {
	if j.Kind != JobKindDiscovery || j.Result == "" {
		return nil, nil
	}
	var res DiscoveryResult
	if err := json.Unmarshal([]byte(j.Result), &res); err != nil {
		return nil, fmt.Errorf("failed to decode discovery result: %w", err)
	}
	return &res, nil
}

// SessionResult decodes the stored session result, if any
func (j *Job) SessionResult() (*SessionResult, error) {
	if j.Kind != JobKindDownload || j.Result == "" {
		return nil, nil
	}
	var res SessionResult
	if err := json.Unmarshal([]byte(j.Result), &res); err != nil {
		return nil, fmt.Errorf("failed to decode session result: %w", err)
	}
	return &res, nil
}

// ValidateJobStatus checks if a status is valid
func ValidateJobStatus(status JobStatus) bool {
	switch status {
	case JobQueued, JobRunning, JobCompleted, JobFailed, JobCancelled:
		return true
	}
	return false
}
