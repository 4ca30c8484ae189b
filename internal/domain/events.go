package domain

// DiscoveryEventKind classifies discovery notifications
type DiscoveryEventKind string

const (
	DiscoveryStatus    DiscoveryEventKind = "status"
	DiscoveryWarning   DiscoveryEventKind = "warning"
	DiscoveryFound     DiscoveryEventKind = "found"
	DiscoveryCompleted DiscoveryEventKind = "completed"
	DiscoveryFailed    DiscoveryEventKind = "failed"
)

// DiscoveryEvent is a status line emitted while a page is being discovered.
// Found events carry the file; the final Completed event carries the result.
type DiscoveryEvent struct {
	Kind    DiscoveryEventKind `json:"kind"`
	Message string             `json:"message"`
	File    *DiscoveredFile    `json:"file,omitempty"`
	Result  *DiscoveryResult   `json:"result,omitempty"`
}

// JobEventType classifies events published for server jobs
type JobEventType string

const (
	JobEventSnapshot  JobEventType = "snapshot"
	JobEventDiscovery JobEventType = "discovery"
	JobEventProgress  JobEventType = "progress"
	JobEventStatus    JobEventType = "status"
)

// JobEvent is the unit streamed to job subscribers
type JobEvent struct {
	JobID     string          `json:"job_id"`
	Type      JobEventType    `json:"type"`
	Status    JobStatus       `json:"status,omitempty"`
	Message   string          `json:"message,omitempty"`
	Processed int             `json:"processed,omitempty"`
	Total     int             `json:"total,omitempty"`
	File      *DiscoveredFile `json:"file,omitempty"`
	Outcome   *Outcome        `json:"outcome,omitempty"`
	Job       *Job            `json:"job,omitempty"`
}
