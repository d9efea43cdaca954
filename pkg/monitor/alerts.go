package monitor

import (
	"fmt"

	"github.com/videoforge/videoforge/pkg/models"
)

// Thresholds are the breach levels that raise alerts
type Thresholds struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
	QueueDepth    int
}

// DefaultThresholds returns the production alerting levels
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUPercent:    90,
		MemoryPercent: 85,
		DiskPercent:   90,
		QueueDepth:    50,
	}
}

// AlertEngine evaluates metric samples against thresholds.
// It is stateless: every breached sample raises a fresh alert, so a
// sustained breach produces one alert per sampling interval. Operators
// acknowledge alerts to clear them; there is no deduplication.
type AlertEngine struct {
	thresholds Thresholds
}

// NewAlertEngine creates an alert engine
func NewAlertEngine(thresholds Thresholds) *AlertEngine {
	return &AlertEngine{thresholds: thresholds}
}

// Check returns one alert per threshold the sample breaches
func (e *AlertEngine) Check(sample *models.MetricSample) []models.Alert {
	var alerts []models.Alert

	if sample.CPUPercent > e.thresholds.CPUPercent {
		alerts = append(alerts, models.Alert{
			Type:    "high_cpu_usage",
			Level:   models.AlertLevelWarning,
			Message: fmt.Sprintf("High CPU usage: %.1f%%", sample.CPUPercent),
		})
	}

	if sample.MemoryPercent > e.thresholds.MemoryPercent {
		alerts = append(alerts, models.Alert{
			Type:    "high_memory_usage",
			Level:   models.AlertLevelWarning,
			Message: fmt.Sprintf("High memory usage: %.1f%%", sample.MemoryPercent),
		})
	}

	if sample.DiskPercent > e.thresholds.DiskPercent {
		alerts = append(alerts, models.Alert{
			Type:    "high_disk_usage",
			Level:   models.AlertLevelCritical,
			Message: fmt.Sprintf("High disk usage: %.1f%%", sample.DiskPercent),
		})
	}

	if sample.QueueDepth > e.thresholds.QueueDepth {
		alerts = append(alerts, models.Alert{
			Type:    "large_queue",
			Level:   models.AlertLevelWarning,
			Message: fmt.Sprintf("Large job queue: %d tasks", sample.QueueDepth),
		})
	}

	return alerts
}
