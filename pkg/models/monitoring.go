package models

import (
	"time"
)

// MetricSample is a point-in-time system reading. Immutable once written.
type MetricSample struct {
	ID            int64     `json:"id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	NetSentMB     float64   `json:"network_sent_mb"`
	NetRecvMB     float64   `json:"network_recv_mb"`
	ActiveJobs    int       `json:"active_jobs"`
	QueueDepth    int       `json:"queue_size"`
}

// AlertLevel is the severity of an alert
type AlertLevel string

const (
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert is an append-only record of a threshold breach.
// Acknowledgement is the only permitted mutation.
type Alert struct {
	ID             int64      `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Type           string     `json:"alert_type"`
	Level          AlertLevel `json:"alert_level"`
	Message        string     `json:"message"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}
