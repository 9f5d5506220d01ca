package model

import "time"

// JobStatus represents the current status of a scheduled job. The lifecycle
// moves strictly forward: pending -> running -> completed. A job is never
// re-run once completed.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
)

// ScheduledJob is a durable record of deferred work. The command is kept in
// its original natural-language form and translated when the job runs.
type ScheduledJob struct {
	ID          string     `json:"id"`
	Command     string     `json:"command"`
	RunAt       time.Time  `json:"run_at"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
