package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/videoforge/videoforge/pkg/models"
)

// SQLiteStore is a SQLite-based implementation of the data store
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite connection string with parameters for concurrent access
	// - _journal_mode=WAL: Enable Write-Ahead Logging for better concurrency
	// - _busy_timeout=10000: Wait up to 10 seconds when database is locked
	// - _synchronous=NORMAL: Balance between safety and performance
	// - _txlock=immediate: Acquire write lock at transaction start to reduce conflicts
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY under concurrent transitions
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		user TEXT,
		parameters TEXT,
		result TEXT,
		error TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		duration REAL
	);

	CREATE TABLE IF NOT EXISTS system_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		cpu_percent REAL,
		memory_percent REAL,
		disk_usage_percent REAL,
		network_sent_mb REAL,
		network_recv_mb REAL,
		active_jobs INTEGER,
		queue_size INTEGER
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		alert_type TEXT NOT NULL,
		alert_level TEXT NOT NULL,
		message TEXT NOT NULL,
		acknowledged BOOLEAN DEFAULT FALSE,
		acknowledged_by TEXT,
		acknowledged_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON system_metrics(timestamp);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateJob adds a new job to the store in queued state
func (s *SQLiteStore) CreateJob(job *models.Job) error {
	params, err := json.Marshal(job.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE id = ?`, job.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check for duplicate job: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateJob
	}

	_, err = s.db.Exec(`
		INSERT INTO jobs (id, kind, status, user, parameters, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.ID, job.Kind, job.Status, job.User, string(params), job.CreatedAt)

	return err
}

// TransitionJob moves a job through the state machine
func (s *SQLiteStore) TransitionJob(id string, to models.JobStatus, result *models.JobResult, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current models.JobStatus
	var startedAt sql.NullTime
	err = tx.QueryRow(`SELECT status, started_at FROM jobs WHERE id = ?`, id).Scan(&current, &startedAt)
	if err == sql.ErrNoRows {
		return ErrJobNotFound
	}
	if err != nil {
		return err
	}

	if current == to && !models.IsTerminalState(current) {
		return nil
	}

	if err := models.ValidateTransition(current, to); err != nil {
		return err
	}

	now := time.Now()

	switch {
	case to == models.JobStatusRunning:
		_, err = tx.Exec(`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`, to, now, id)

	case models.IsTerminalState(to):
		var duration float64
		var completedAt interface{} = now
		if current == models.JobStatusRunning && startedAt.Valid {
			duration = now.Sub(startedAt.Time).Seconds()
		}

		switch to {
		case models.JobStatusCompleted:
			resultJSON, merr := json.Marshal(result)
			if merr != nil {
				return fmt.Errorf("failed to marshal result: %w", merr)
			}
			_, err = tx.Exec(`
				UPDATE jobs SET status = ?, result = ?, error = '', completed_at = ?, duration = ?
				WHERE id = ?
			`, to, string(resultJSON), completedAt, duration, id)

		case models.JobStatusFailed:
			_, err = tx.Exec(`
				UPDATE jobs SET status = ?, result = NULL, error = ?, completed_at = ?, duration = ?
				WHERE id = ?
			`, to, errMsg, completedAt, duration, id)

		case models.JobStatusCancelled:
			if errMsg == "" {
				errMsg = "job cancelled"
			}
			_, err = tx.Exec(`
				UPDATE jobs SET status = ?, result = NULL, error = ?, completed_at = ?, duration = ?
				WHERE id = ?
			`, to, errMsg, completedAt, duration, id)
		}
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(id string) (*models.Job, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, status, user, parameters, result, error,
		       created_at, started_at, completed_at, duration
		FROM jobs WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	return job, err
}

// ListRecentJobs returns the most recently created jobs
func (s *SQLiteStore) ListRecentJobs(limit int) ([]*models.Job, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, status, user, parameters, result, error,
		       created_at, started_at, completed_at, duration
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var user, paramsJSON, resultJSON, errText sql.NullString
	var startedAt, completedAt sql.NullTime
	var duration sql.NullFloat64

	err := row.Scan(&job.ID, &job.Kind, &job.Status, &user, &paramsJSON, &resultJSON,
		&errText, &job.CreatedAt, &startedAt, &completedAt, &duration)
	if err != nil {
		return nil, err
	}

	job.User = user.String
	job.Error = errText.String
	if paramsJSON.Valid && paramsJSON.String != "" && paramsJSON.String != "null" {
		if err := json.Unmarshal([]byte(paramsJSON.String), &job.Parameters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" && resultJSON.String != "null" {
		if err := json.Unmarshal([]byte(resultJSON.String), &job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	job.Duration = duration.Float64

	return &job, nil
}

// Statistics aggregates job outcomes over the trailing window
func (s *SQLiteStore) Statistics(window time.Duration) (*models.Statistics, error) {
	cutoff := time.Now().Add(-window)

	stats := &models.Statistics{
		WindowHours: int(window.Hours()),
		ByKind:      make(map[models.JobKind]models.KindStats),
	}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END),
		       COALESCE(AVG(duration), 0)
		FROM jobs WHERE created_at >= ?
	`, cutoff).Scan(
		&stats.TotalJobs,
		&nullableInt{&stats.Completed},
		&nullableInt{&stats.Failed},
		&nullableInt{&stats.Cancelled},
		&stats.AvgDuration,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalJobs) * 100
	}

	rows, err := s.db.Query(`
		SELECT kind, COUNT(*),
		       SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
		       COALESCE(AVG(duration), 0)
		FROM jobs WHERE created_at >= ?
		GROUP BY kind
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var kind models.JobKind
		var ks models.KindStats
		if err := rows.Scan(&kind, &ks.Count, &ks.Completed, &ks.AvgDuration); err != nil {
			return nil, err
		}
		if ks.Count > 0 {
			ks.SuccessRate = float64(ks.Completed) / float64(ks.Count) * 100
		}
		stats.ByKind[kind] = ks
	}

	return stats, rows.Err()
}

// nullableInt scans a SUM() that may be NULL on an empty table
type nullableInt struct {
	dest *int
}

func (n *nullableInt) Scan(src interface{}) error {
	if src == nil {
		*n.dest = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dest = int(v)
	case float64:
		*n.dest = int(v)
	default:
		return fmt.Errorf("unsupported scan type %T", src)
	}
	return nil
}

// RecordMetricSample appends a system metric reading
func (s *SQLiteStore) RecordMetricSample(sample *models.MetricSample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO system_metrics
		(timestamp, cpu_percent, memory_percent, disk_usage_percent,
		 network_sent_mb, network_recv_mb, active_jobs, queue_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sample.Timestamp, sample.CPUPercent, sample.MemoryPercent, sample.DiskPercent,
		sample.NetSentMB, sample.NetRecvMB, sample.ActiveJobs, sample.QueueDepth)

	return err
}

// MetricHistory returns samples recorded within the trailing window
func (s *SQLiteStore) MetricHistory(window time.Duration) ([]*models.MetricSample, error) {
	cutoff := time.Now().Add(-window)

	rows, err := s.db.Query(`
		SELECT id, timestamp, cpu_percent, memory_percent, disk_usage_percent,
		       network_sent_mb, network_recv_mb, active_jobs, queue_size
		FROM system_metrics WHERE timestamp >= ?
		ORDER BY timestamp ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*models.MetricSample
	for rows.Next() {
		var m models.MetricSample
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.CPUPercent, &m.MemoryPercent,
			&m.DiskPercent, &m.NetSentMB, &m.NetRecvMB, &m.ActiveJobs, &m.QueueDepth); err != nil {
			return nil, err
		}
		samples = append(samples, &m)
	}
	return samples, rows.Err()
}

// CreateAlert appends a new alert row
func (s *SQLiteStore) CreateAlert(alert *models.Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	res, err := s.db.Exec(`
		INSERT INTO alerts (timestamp, alert_type, alert_level, message)
		VALUES (?, ?, ?, ?)
	`, alert.Timestamp, alert.Type, alert.Level, alert.Message)
	if err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		alert.ID = id
	}
	return nil
}

// RecentAlerts returns the most recent alerts
func (s *SQLiteStore) RecentAlerts(limit int) ([]*models.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, alert_type, alert_level, message,
		       acknowledged, acknowledged_by, acknowledged_at
		FROM alerts ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		var by sql.NullString
		var at sql.NullTime
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Type, &a.Level, &a.Message,
			&a.Acknowledged, &by, &at); err != nil {
			return nil, err
		}
		a.AcknowledgedBy = by.String
		if at.Valid {
			a.AcknowledgedAt = &at.Time
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert as acknowledged by an operator
func (s *SQLiteStore) AcknowledgeAlert(id int64, user string) error {
	result, err := s.db.Exec(`
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ?
	`, user, time.Now(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// PruneJobs deletes terminal jobs created before the cutoff
func (s *SQLiteStore) PruneJobs(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM jobs
		WHERE created_at < ? AND status IN ('completed', 'failed', 'cancelled')
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PruneMetricSamples deletes samples recorded before the cutoff
func (s *SQLiteStore) PruneMetricSamples(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM system_metrics WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PruneAlerts deletes acknowledged alerts raised before the cutoff.
// Unacknowledged alerts are kept regardless of age.
func (s *SQLiteStore) PruneAlerts(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM alerts WHERE timestamp < ? AND acknowledged = TRUE
	`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
