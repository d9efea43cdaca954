package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/videoforge/videoforge/pkg/api"
	"github.com/videoforge/videoforge/pkg/config"
	"github.com/videoforge/videoforge/pkg/dispatch"
	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/monitor"
	"github.com/videoforge/videoforge/pkg/pipeline"
	"github.com/videoforge/videoforge/pkg/retention"
	"github.com/videoforge/videoforge/pkg/shutdown"
	"github.com/videoforge/videoforge/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the videoforge server",
	Long: `Starts the job dispatcher, resource sampler, retention sweeper and
the HTTP API, then blocks until SIGTERM or SIGINT.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.NewFileLogger(cfg.Paths.Logs, "videoforge",
		logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	worker := dispatch.NewStubWorker()
	if err := worker.Connect(); err != nil {
		return fmt.Errorf("failed to connect worker session: %w", err)
	}

	dispatcher := dispatch.New(st, worker, dispatch.Config{
		Sessions:     cfg.Dispatcher.Sessions,
		PollInterval: cfg.Dispatcher.PollInterval,
		QueueSize:    cfg.Dispatcher.QueueSize,
	}, logger)
	dispatcher.Start()

	// Pipeline is constructed here so the output tree exists before the
	// first produce call hits this server's database.
	if _, err := pipeline.New(pipelineConfig(cfg), dispatcher, nil, logger); err != nil {
		return fmt.Errorf("failed to prepare pipeline directories: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := monitor.NewMetrics(registry)

	sampler := monitor.NewSampler(monitor.Config{
		Interval: cfg.Monitoring.SampleInterval,
		Thresholds: monitor.Thresholds{
			CPUPercent:    cfg.Monitoring.CPUThreshold,
			MemoryPercent: cfg.Monitoring.MemThreshold,
			DiskPercent:   cfg.Monitoring.DiskThreshold,
			QueueDepth:    cfg.Monitoring.QueueThreshold,
		},
	}, st, nil, dispatcher, metrics, logger)
	sampler.Start()

	sweeper := retention.NewSweeper(retention.Config{
		Enabled:         cfg.Retention.Enabled,
		SweepInterval:   cfg.Retention.SweepInterval,
		JobRetention:    time.Duration(cfg.Retention.JobDays) * 24 * time.Hour,
		MetricRetention: time.Duration(cfg.Retention.MetricDays) * 24 * time.Hour,
		AlertRetention:  time.Duration(cfg.Retention.AlertDays) * 24 * time.Hour,
	}, st, logger)
	sweeper.Start()

	router := mux.NewRouter()
	handler := api.NewHandler(st, dispatcher, sampler, logger)
	handler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	mgr := shutdown.New(30 * time.Second)
	mgr.Register(shutdown.CloseResource(logger, "log file"))
	mgr.Register(shutdown.CloseResource(st, "database"))
	mgr.Register(shutdown.StopComponent(dispatcher.Stop, "dispatcher"))
	mgr.Register(shutdown.StopComponent(sampler.Stop, "resource sampler"))
	mgr.Register(shutdown.StopComponent(sweeper.Stop, "retention sweeper"))
	mgr.Register(shutdown.StopHTTPServer(server, "api"))

	go func() {
		logger.Info("HTTP API listening", map[string]interface{}{"addr": cfg.Server.ListenAddr})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	mgr.Wait()
	return nil
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.OutputDir = cfg.Paths.Outputs
	pc.PublishDir = cfg.Paths.Publish
	pc.TemplatesDir = cfg.Paths.Templates
	pc.Width = cfg.Video.Width
	pc.Height = cfg.Video.Height
	pc.FPS = cfg.Video.FPS
	pc.ShortDuration = cfg.Video.ShortDuration
	pc.LongDuration = cfg.Video.LongDuration
	pc.FourKWidth = cfg.Video.FourKWidth
	pc.FourKHeight = cfg.Video.FourKHeight
	pc.NumVariants = cfg.Video.NumVariants
	return pc
}
