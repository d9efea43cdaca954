package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/videoforge/videoforge/pkg/models"
)

// Metrics exposes the latest resource sample to Prometheus
type Metrics struct {
	cpuPercent    prometheus.Gauge
	memoryPercent prometheus.Gauge
	diskPercent   prometheus.Gauge
	netSentMB     prometheus.Gauge
	netRecvMB     prometheus.Gauge
	activeJobs    prometheus.Gauge
	queueDepth    prometheus.Gauge
	alertsTotal   *prometheus.CounterVec
}

// NewMetrics registers the gauge set with the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cpuPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_cpu_percent",
			Help: "Host CPU usage percentage (0-100)",
		}),
		memoryPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_memory_percent",
			Help: "Host memory usage percentage (0-100)",
		}),
		diskPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_disk_percent",
			Help: "Root filesystem usage percentage (0-100)",
		}),
		netSentMB: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_network_sent_megabytes",
			Help: "Cumulative network bytes sent, in megabytes",
		}),
		netRecvMB: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_network_recv_megabytes",
			Help: "Cumulative network bytes received, in megabytes",
		}),
		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_active_jobs",
			Help: "Jobs currently held by worker sessions",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "videoforge_queue_depth",
			Help: "Jobs waiting for a worker session",
		}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "videoforge_alerts_total",
			Help: "Alerts raised, by type and level",
		}, []string{"type", "level"}),
	}
}

// Observe publishes one sample to the gauge set
func (m *Metrics) Observe(sample *models.MetricSample) {
	m.cpuPercent.Set(sample.CPUPercent)
	m.memoryPercent.Set(sample.MemoryPercent)
	m.diskPercent.Set(sample.DiskPercent)
	m.netSentMB.Set(sample.NetSentMB)
	m.netRecvMB.Set(sample.NetRecvMB)
	m.activeJobs.Set(float64(sample.ActiveJobs))
	m.queueDepth.Set(float64(sample.QueueDepth))
}

// CountAlert increments the alert counter
func (m *Metrics) CountAlert(alert models.Alert) {
	m.alertsTotal.WithLabelValues(alert.Type, string(alert.Level)).Inc()
}
