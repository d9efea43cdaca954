package retention

import (
	"context"
	"sync"
	"time"

	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/store"
)

// Config defines retention horizons and the sweep interval
type Config struct {
	Enabled       bool
	SweepInterval time.Duration
	// JobRetention is how long terminal jobs are kept.
	JobRetention time.Duration
	// MetricRetention is how long metric samples are kept.
	MetricRetention time.Duration
	// AlertRetention is how long acknowledged alerts are kept.
	// Unacknowledged alerts are never swept.
	AlertRetention time.Duration
}

// DefaultConfig returns the production retention policy
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		SweepInterval:   time.Hour,
		JobRetention:    30 * 24 * time.Hour,
		MetricRetention: 7 * 24 * time.Hour,
		AlertRetention:  30 * 24 * time.Hour,
	}
}

// Stats tracks sweep outcomes
type Stats struct {
	LastSweepTime      time.Time
	LastSweepDuration  time.Duration
	TotalJobsPruned    int64
	TotalSamplesPruned int64
	TotalAlertsPruned  int64
}

// Sweeper prunes old jobs, metric samples, and acknowledged alerts on
// a fixed interval.
type Sweeper struct {
	cfg   Config
	store store.Store
	log   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// NewSweeper creates a sweeper. Start must be called to begin sweeping.
func NewSweeper(cfg Config, st store.Store, log *logging.Logger) *Sweeper {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		cfg:    cfg,
		store:  st,
		log:    log.WithField("component", "retention"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the background sweep loop
func (s *Sweeper) Start() {
	if !s.cfg.Enabled {
		s.log.Info("Retention sweeper disabled")
		return
	}

	s.log.Info("Retention sweeper started", map[string]interface{}{
		"interval":         s.cfg.SweepInterval.String(),
		"job_retention":    s.cfg.JobRetention.String(),
		"metric_retention": s.cfg.MetricRetention.String(),
		"alert_retention":  s.cfg.AlertRetention.String(),
	})

	s.wg.Add(1)
	go s.run()
}

// Stop halts the sweep loop
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
	s.log.Info("Retention sweeper stopped")
}

// Stats returns a snapshot of sweep counters
func (s *Sweeper) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs one pruning pass. Each category is independent; a
// failure in one does not block the others.
func (s *Sweeper) Sweep() Stats {
	start := time.Now()
	var jobs, samples, alerts int64

	if n, err := s.store.PruneJobs(start.Add(-s.cfg.JobRetention)); err != nil {
		s.log.Error("Failed to prune jobs", map[string]interface{}{"error": err.Error()})
	} else {
		jobs = n
	}

	if n, err := s.store.PruneMetricSamples(start.Add(-s.cfg.MetricRetention)); err != nil {
		s.log.Error("Failed to prune metric samples", map[string]interface{}{"error": err.Error()})
	} else {
		samples = n
	}

	if n, err := s.store.PruneAlerts(start.Add(-s.cfg.AlertRetention)); err != nil {
		s.log.Error("Failed to prune alerts", map[string]interface{}{"error": err.Error()})
	} else {
		alerts = n
	}

	duration := time.Since(start)

	s.mu.Lock()
	s.stats.LastSweepTime = time.Now()
	s.stats.LastSweepDuration = duration
	s.stats.TotalJobsPruned += jobs
	s.stats.TotalSamplesPruned += samples
	s.stats.TotalAlertsPruned += alerts
	snapshot := s.stats
	s.mu.Unlock()

	s.log.Info("Sweep complete", map[string]interface{}{
		"jobs": jobs, "samples": samples, "alerts": alerts,
		"duration": duration.String(),
	})
	return snapshot
}
