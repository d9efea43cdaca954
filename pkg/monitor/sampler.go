package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"

	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/models"
	"github.com/videoforge/videoforge/pkg/store"
)

// JobCounter is the dispatcher surface the sampler reads. Only queue
// depth and the active-job count matter here.
type JobCounter interface {
	ActiveJobs() int
	QueueDepth() int
}

// SystemProbe reads host resource usage. The production probe wraps
// gopsutil; tests substitute canned readings.
type SystemProbe interface {
	Read() (*models.MetricSample, error)
}

// GopsutilProbe reads real host metrics
type GopsutilProbe struct {
	// DiskPath is the mount point sampled for disk usage.
	DiskPath string
}

// NewGopsutilProbe probes the root filesystem
func NewGopsutilProbe() *GopsutilProbe {
	return &GopsutilProbe{DiskPath: "/"}
}

// Read collects one sample. The CPU reading blocks for one second to
// measure utilization over an interval rather than an instant.
func (p *GopsutilProbe) Read() (*models.MetricSample, error) {
	cpuPercents, err := cpu.Percent(time.Second, false)
	if err != nil {
		return nil, err
	}
	var cpuPercent float64
	if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	du, err := disk.Usage(p.DiskPath)
	if err != nil {
		return nil, err
	}

	sample := &models.MetricSample{
		Timestamp:     time.Now(),
		CPUPercent:    cpuPercent,
		MemoryPercent: vm.UsedPercent,
		DiskPercent:   du.UsedPercent,
	}

	// Network counters are best effort; a host without the proc files
	// still produces a usable sample.
	if counters, err := gopsnet.IOCounters(false); err == nil && len(counters) > 0 {
		sample.NetSentMB = float64(counters[0].BytesSent) / (1024 * 1024)
		sample.NetRecvMB = float64(counters[0].BytesRecv) / (1024 * 1024)
	}

	return sample, nil
}

// Config holds sampler tuning knobs
type Config struct {
	// Interval between samples.
	Interval time.Duration
	// ErrorBackoff is the pause after a failed collection.
	ErrorBackoff time.Duration
	Thresholds   Thresholds
}

// DefaultConfig returns production sampling defaults
func DefaultConfig() Config {
	return Config{
		Interval:     60 * time.Second,
		ErrorBackoff: 5 * time.Minute,
		Thresholds:   DefaultThresholds(),
	}
}

// Sampler periodically collects host metrics, persists them, publishes
// them to Prometheus, and raises threshold alerts.
type Sampler struct {
	cfg     Config
	store   store.Store
	probe   SystemProbe
	counter JobCounter
	alerts  *AlertEngine
	metrics *Metrics
	log     *logging.Logger

	mu     sync.RWMutex
	latest *models.MetricSample

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSampler creates a sampler. Start must be called to begin sampling.
func NewSampler(cfg Config, st store.Store, probe SystemProbe, counter JobCounter, metrics *Metrics, log *logging.Logger) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Minute
	}
	if probe == nil {
		probe = NewGopsutilProbe()
	}
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sampler{
		cfg:     cfg,
		store:   st,
		probe:   probe,
		counter: counter,
		alerts:  NewAlertEngine(cfg.Thresholds),
		metrics: metrics,
		log:     log.WithField("component", "sampler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background sampling loop
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info("Resource sampler started", map[string]interface{}{
		"interval": s.cfg.Interval.String(),
	})
}

// Stop halts the sampling loop
func (s *Sampler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("Resource sampler stopped")
}

// Latest returns the most recent sample, or nil before the first
// collection completes.
func (s *Sampler) Latest() *models.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	copied := *s.latest
	return &copied
}

func (s *Sampler) run() {
	defer s.wg.Done()

	for {
		wait := s.cfg.Interval
		if err := s.Collect(); err != nil {
			// A failed collection never kills the loop; back off and retry.
			s.log.Error("Metric collection failed", map[string]interface{}{
				"error": err.Error(),
			})
			wait = s.cfg.ErrorBackoff
		}

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Collect performs one sampling pass: read, persist, export, alert.
func (s *Sampler) Collect() error {
	sample, err := s.probe.Read()
	if err != nil {
		return err
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	if s.counter != nil {
		sample.ActiveJobs = s.counter.ActiveJobs()
		sample.QueueDepth = s.counter.QueueDepth()
	}

	if err := s.store.RecordMetricSample(sample); err != nil {
		return err
	}

	s.mu.Lock()
	s.latest = sample
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Observe(sample)
	}

	for _, alert := range s.alerts.Check(sample) {
		if err := s.store.CreateAlert(&alert); err != nil {
			s.log.Error("Failed to record alert", map[string]interface{}{
				"type": alert.Type, "error": err.Error(),
			})
			continue
		}
		if s.metrics != nil {
			s.metrics.CountAlert(alert)
		}
		s.log.Warn("Alert raised", map[string]interface{}{
			"type": alert.Type, "level": string(alert.Level), "message": alert.Message,
		})
	}

	return nil
}
