package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"    // Job accepted, waiting for a worker session
	JobStatusRunning   JobStatus = "running"   // Job handed to the remote worker
	JobStatusCompleted JobStatus = "completed" // Job finished successfully
	JobStatusFailed    JobStatus = "failed"    // Job failed permanently
	JobStatusCancelled JobStatus = "cancelled" // Job cancelled before dispatch
)

// JobKind identifies the type of work a job carries
type JobKind string

const (
	JobKindGenerateImages    JobKind = "generate-images"
	JobKindUpscaleImage      JobKind = "upscale-image"
	JobKindSuperResolveVideo JobKind = "super-resolve-video"
)

// Job is one unit of work dispatched to the remote worker
type Job struct {
	ID          string      `json:"id"`
	Kind        JobKind     `json:"kind"`
	Status      JobStatus   `json:"status"`
	User        string      `json:"user,omitempty"`
	Parameters  *JobPayload `json:"parameters,omitempty"`
	Result      *JobResult  `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	// Duration is completed_at - started_at, in seconds, set when the job
	// reaches a terminal state from running.
	Duration float64 `json:"duration,omitempty"`
}

// JobRequest is the wire form of a job submission
type JobRequest struct {
	ID         string      `json:"id,omitempty"`
	Kind       JobKind     `json:"kind"`
	User       string      `json:"user,omitempty"`
	Parameters *JobPayload `json:"parameters,omitempty"`
}

// Statistics aggregates job outcomes over a time window
type Statistics struct {
	WindowHours int                       `json:"window_hours"`
	TotalJobs   int                       `json:"total_jobs"`
	Completed   int                       `json:"completed"`
	Failed      int                       `json:"failed"`
	Cancelled   int                       `json:"cancelled"`
	AvgDuration float64                   `json:"avg_duration"`
	SuccessRate float64                   `json:"success_rate"`
	ByKind      map[JobKind]KindStats     `json:"by_kind"`
}

// KindStats aggregates outcomes for a single job kind
type KindStats struct {
	Count       int     `json:"count"`
	Completed   int     `json:"completed"`
	AvgDuration float64 `json:"avg_duration"`
	SuccessRate float64 `json:"success_rate"`
}
