package model

import "time"

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions can leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Cancellable reports whether a job in this status may still be cancelled.
func (s JobStatus) Cancellable() bool {
	return s == JobStatusQueued || s == JobStatusInProgress
}

// JobError describes why a job failed.
type JobError struct {
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Job is one render request tracked through its status lifecycle.
// The request is immutable after creation; every state transition replaces
// the whole snapshot in the registry.
type Job struct {
	ID      string        `json:"id"`
	Status  JobStatus     `json:"status"`
	Request RenderRequest `json:"request"`

	// Progress is a fraction in [0,1], present only while in-progress.
	Progress *float64 `json:"progress,omitempty"`

	// VideoURL locates the produced artifact, present only when completed.
	VideoURL string `json:"videoUrl,omitempty"`

	// Error is present only when failed.
	Error *JobError `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
