package store

import (
	"errors"
	"time"

	"github.com/videoforge/videoforge/pkg/models"
)

var (
	// ErrJobNotFound is returned when a job ID is unknown to the store
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when recording a job whose ID already exists.
	// The original record is never overwritten.
	ErrDuplicateJob = errors.New("job id already exists")

	// ErrAlertNotFound is returned when an alert ID is unknown to the store
	ErrAlertNotFound = errors.New("alert not found")
)

// Store is the durable record of jobs, metric samples and alerts.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateJob inserts a new job in queued state. Duplicate IDs are
	// rejected with ErrDuplicateJob.
	CreateJob(job *models.Job) error

	// TransitionJob moves a job to the given status, validating the edge
	// against the state machine. A same-state transition on a non-terminal
	// job is a no-op. Moving into a terminal state from running computes
	// the job duration. Exactly one of result/errMsg is persisted on a
	// terminal transition.
	TransitionJob(id string, to models.JobStatus, result *models.JobResult, errMsg string) error

	GetJob(id string) (*models.Job, error)
	ListRecentJobs(limit int) ([]*models.Job, error)

	// Statistics aggregates job counts, average duration and success rate
	// over the trailing window, overall and grouped by kind.
	Statistics(window time.Duration) (*models.Statistics, error)

	RecordMetricSample(sample *models.MetricSample) error
	MetricHistory(window time.Duration) ([]*models.MetricSample, error)

	CreateAlert(alert *models.Alert) error
	RecentAlerts(limit int) ([]*models.Alert, error)
	AcknowledgeAlert(id int64, user string) error

	// PruneJobs deletes terminal jobs created before the cutoff.
	PruneJobs(olderThan time.Time) (int64, error)
	// PruneMetricSamples deletes samples recorded before the cutoff.
	PruneMetricSamples(olderThan time.Time) (int64, error)
	// PruneAlerts deletes acknowledged alerts raised before the cutoff.
	// Unacknowledged alerts are never pruned regardless of age.
	PruneAlerts(olderThan time.Time) (int64, error)

	Close() error
}

// Ensure both implementations satisfy the interface
var _ Store = (*SQLiteStore)(nil)
var _ Store = (*MemoryStore)(nil)
