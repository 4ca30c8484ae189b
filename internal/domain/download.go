package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus is the terminal state of one download item
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// Outcome records what happened to one item of a session
type Outcome struct {
	URL        string        `json:"url"`
	Status     OutcomeStatus `json:"status"`
	Path       string        `json:"path,omitempty"`
	Bytes      int64         `json:"bytes"`
	StatusCode int           `json:"status_code,omitempty"` // HTTP status of a failed item
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Session is an ordered queue of files to fetch into one destination directory
type Session struct {
	ID             string           `json:"id"`
	DestinationDir string           `json:"destination_dir"`
	Items          []DiscoveredFile `json:"items"`
	Workers        int              `json:"workers"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NewSession creates a session; workers below 1 mean sequential processing
func NewSession(destinationDir string, items []DiscoveredFile, workers int) *Session {
	if workers < 1 {
		workers = 1
	}
	return &Session{
		ID:             uuid.New().String(),
		DestinationDir: destinationDir,
		Items:          items,
		Workers:        workers,
		CreatedAt:      time.Now(),
	}
}

// SessionResult aggregates the outcomes of a session
type SessionResult struct {
	SessionID string     `json:"session_id"`
	Total     int        `json:"total"`
	Attempted int        `json:"attempted"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Cancelled bool       `json:"cancelled"`
	Bytes     int64      `json:"bytes"`
	Outcomes  []*Outcome `json:"outcomes"`
}

// Add records an outcome and updates the counters
func (r *SessionResult) Add(o *Outcome) {
	r.Attempted++
	r.Bytes += o.Bytes
	switch o.Status {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeCancelled:
		r.Cancelled = true
	}
	r.Outcomes = append(r.Outcomes, o)
}

// ProgressEvent is emitted once per processed item, in increasing Processed order
type ProgressEvent struct {
	SessionID string   `json:"session_id"`
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Total     int      `json:"total"`
	Outcome   *Outcome `json:"outcome,omitempty"`
}
