package domain

// JobRepository defines the interface for job persistence
type JobRepository interface {
	// Create creates a new job
	Create(job *Job) error

	// Update updates an existing job
	Update(job *Job) error

	// Delete deletes a job by ID
	Delete(id string) error

	// FindByID finds a job by ID
	FindByID(id string) (*Job, error)

	// FindAll finds all jobs with optional filters, newest first
	FindAll(filters map[string]interface{}) ([]*Job, error)

	// FindActive finds queued and running jobs
	FindActive() ([]*Job, error)

	// GetStats returns job statistics
	GetStats() (*JobStats, error)

	// Purge removes every job
	Purge() error
}

// JobStats represents job statistics
type JobStats struct {
	Total     int64 `json:"total"`
	Queued    int64 `json:"queued"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}
