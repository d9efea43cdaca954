package store

import (
	"sort"
	"sync"
	"time"

	"github.com/videoforge/videoforge/pkg/models"
)

// MemoryStore is an in-memory implementation of the data store,
// used in tests and for ephemeral deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]*models.Job
	samples     []*models.MetricSample
	alerts      []*models.Alert
	nextAlertID int64
	nextSample  int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]*models.Job),
		nextAlertID: 1,
		nextSample:  1,
	}
}

// CreateJob adds a new job in queued state
func (m *MemoryStore) CreateJob(job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return ErrDuplicateJob
	}

	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

// TransitionJob moves a job through the state machine
func (m *MemoryStore) TransitionJob(id string, to models.JobStatus, result *models.JobResult, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[id]
	if !exists {
		return ErrJobNotFound
	}

	if job.Status == to && !models.IsTerminalState(job.Status) {
		return nil
	}

	if err := models.ValidateTransition(job.Status, to); err != nil {
		return err
	}

	now := time.Now()

	switch {
	case to == models.JobStatusRunning:
		job.Status = to
		job.StartedAt = &now

	case models.IsTerminalState(to):
		if job.Status == models.JobStatusRunning && job.StartedAt != nil {
			job.Duration = now.Sub(*job.StartedAt).Seconds()
		}
		job.Status = to
		job.CompletedAt = &now

		switch to {
		case models.JobStatusCompleted:
			job.Result = result
			job.Error = ""
		case models.JobStatusFailed:
			job.Result = nil
			job.Error = errMsg
		case models.JobStatusCancelled:
			job.Result = nil
			if errMsg == "" {
				errMsg = "job cancelled"
			}
			job.Error = errMsg
		}
	}

	return nil
}

// GetJob retrieves a copy of a job by ID
func (m *MemoryStore) GetJob(id string) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}

	copied := *job
	return &copied, nil
}

// ListRecentJobs returns the most recently created jobs
func (m *MemoryStore) ListRecentJobs(limit int) ([]*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// Statistics aggregates job outcomes over the trailing window
func (m *MemoryStore) Statistics(window time.Duration) (*models.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	stats := &models.Statistics{
		WindowHours: int(window.Hours()),
		ByKind:      make(map[models.JobKind]models.KindStats),
	}

	var totalDuration float64
	var durationCount int
	kindDurations := make(map[models.JobKind]float64)
	kindDurationCounts := make(map[models.JobKind]int)

	for _, job := range m.jobs {
		if job.CreatedAt.Before(cutoff) {
			continue
		}

		stats.TotalJobs++
		ks := stats.ByKind[job.Kind]
		ks.Count++

		switch job.Status {
		case models.JobStatusCompleted:
			stats.Completed++
			ks.Completed++
		case models.JobStatusFailed:
			stats.Failed++
		case models.JobStatusCancelled:
			stats.Cancelled++
		}

		if job.Duration > 0 {
			totalDuration += job.Duration
			durationCount++
			kindDurations[job.Kind] += job.Duration
			kindDurationCounts[job.Kind]++
		}

		stats.ByKind[job.Kind] = ks
	}

	if durationCount > 0 {
		stats.AvgDuration = totalDuration / float64(durationCount)
	}
	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalJobs) * 100
	}

	for kind, ks := range stats.ByKind {
		if n := kindDurationCounts[kind]; n > 0 {
			ks.AvgDuration = kindDurations[kind] / float64(n)
		}
		if ks.Count > 0 {
			ks.SuccessRate = float64(ks.Completed) / float64(ks.Count) * 100
		}
		stats.ByKind[kind] = ks
	}

	return stats, nil
}

// RecordMetricSample appends a system metric reading
func (m *MemoryStore) RecordMetricSample(sample *models.MetricSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	copied := *sample
	copied.ID = m.nextSample
	m.nextSample++
	m.samples = append(m.samples, &copied)
	sample.ID = copied.ID
	return nil
}

// MetricHistory returns samples recorded within the trailing window
func (m *MemoryStore) MetricHistory(window time.Duration) ([]*models.MetricSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var out []*models.MetricSample
	for _, s := range m.samples {
		if !s.Timestamp.Before(cutoff) {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

// CreateAlert appends a new alert row
func (m *MemoryStore) CreateAlert(alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	copied := *alert
	copied.ID = m.nextAlertID
	m.nextAlertID++
	m.alerts = append(m.alerts, &copied)
	alert.ID = copied.ID
	return nil
}

// RecentAlerts returns the most recent alerts
func (m *MemoryStore) RecentAlerts(limit int) ([]*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Alert, 0, len(m.alerts))
	for i := len(m.alerts) - 1; i >= 0; i-- {
		copied := *m.alerts[i]
		out = append(out, &copied)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AcknowledgeAlert marks an alert as acknowledged by an operator
func (m *MemoryStore) AcknowledgeAlert(id int64, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id {
			now := time.Now()
			a.Acknowledged = true
			a.AcknowledgedBy = user
			a.AcknowledgedAt = &now
			return nil
		}
	}
	return ErrAlertNotFound
}

// PruneJobs deletes terminal jobs created before the cutoff
func (m *MemoryStore) PruneJobs(olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, job := range m.jobs {
		if job.CreatedAt.Before(olderThan) && models.IsTerminalState(job.Status) {
			delete(m.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// PruneMetricSamples deletes samples recorded before the cutoff
func (m *MemoryStore) PruneMetricSamples(olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.samples[:0]
	var deleted int64
	for _, s := range m.samples {
		if s.Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return deleted, nil
}

// PruneAlerts deletes acknowledged alerts raised before the cutoff
func (m *MemoryStore) PruneAlerts(olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.alerts[:0]
	var deleted int64
	for _, a := range m.alerts {
		if a.Acknowledged && a.Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	m.alerts = kept
	return deleted, nil
}

// Close is a no-op for the in-memory store
func (m *MemoryStore) Close() error {
	return nil
}
