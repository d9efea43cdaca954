package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Dispatcher DispatcherConfig `yaml:"dispatcher" mapstructure:"dispatcher"`
	Video      VideoConfig      `yaml:"video" mapstructure:"video"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Retention  RetentionConfig  `yaml:"retention" mapstructure:"retention"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" mapstructure:"listen_addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

type DispatcherConfig struct {
	Sessions     int           `yaml:"sessions" mapstructure:"sessions"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	QueueSize    int           `yaml:"queue_size" mapstructure:"queue_size"`
}

type VideoConfig struct {
	Width         int `yaml:"width" mapstructure:"width"`
	Height        int `yaml:"height" mapstructure:"height"`
	FPS           int `yaml:"fps" mapstructure:"fps"`
	ShortDuration int `yaml:"short_duration" mapstructure:"short_duration"`
	LongDuration  int `yaml:"long_duration" mapstructure:"long_duration"`
	FourKWidth    int `yaml:"4k_width" mapstructure:"4k_width"`
	FourKHeight   int `yaml:"4k_height" mapstructure:"4k_height"`
	NumVariants   int `yaml:"num_variants" mapstructure:"num_variants"`
}

type PathsConfig struct {
	Outputs   string `yaml:"outputs" mapstructure:"outputs"`
	Publish   string `yaml:"publish" mapstructure:"publish"`
	Templates string `yaml:"templates" mapstructure:"templates"`
	Logs      string `yaml:"logs" mapstructure:"logs"`
}

type MonitoringConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval" mapstructure:"sample_interval"`
	CPUThreshold   float64       `yaml:"cpu_threshold" mapstructure:"cpu_threshold"`
	MemThreshold   float64       `yaml:"memory_threshold" mapstructure:"memory_threshold"`
	DiskThreshold  float64       `yaml:"disk_threshold" mapstructure:"disk_threshold"`
	QueueThreshold int           `yaml:"queue_threshold" mapstructure:"queue_threshold"`
}

type RetentionConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	JobDays       int           `yaml:"job_days" mapstructure:"job_days"`
	MetricDays    int           `yaml:"metric_days" mapstructure:"metric_days"`
	AlertDays     int           `yaml:"alert_days" mapstructure:"alert_days"`
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns the production defaults
func Default() *Config {
	return &Config{
		Server:   ServerConfig{ListenAddr: ":8080"},
		Database: DatabaseConfig{Path: "videoforge.db"},
		Dispatcher: DispatcherConfig{
			Sessions:     1,
			PollInterval: time.Second,
			QueueSize:    100,
		},
		Video: VideoConfig{
			Width:         1920,
			Height:        1080,
			FPS:           60,
			ShortDuration: 10,
			LongDuration:  40,
			FourKWidth:    3840,
			FourKHeight:   2160,
			NumVariants:   4,
		},
		Paths: PathsConfig{
			Outputs:   "./outputs",
			Publish:   "./publish",
			Templates: "./templates",
			Logs:      "./logs",
		},
		Monitoring: MonitoringConfig{
			SampleInterval: 60 * time.Second,
			CPUThreshold:   90,
			MemThreshold:   85,
			DiskThreshold:  90,
			QueueThreshold: 50,
		},
		Retention: RetentionConfig{
			Enabled:       true,
			SweepInterval: time.Hour,
			JobDays:       30,
			MetricDays:    7,
			AlertDays:     30,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// Load reads configuration from the given file, falling back to the
// defaults for anything unset. Environment variables prefixed with
// VIDEOFORGE_ override file values. An empty path searches the working
// directory and $HOME/.videoforge for videoforge.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("videoforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".videoforge"))
		}
	}

	v.SetEnvPrefix("VIDEOFORGE")
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			// No config file is fine; run on defaults.
			return cfg, nil
		}
		if path != "" {
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.listen_addr", cfg.Server.ListenAddr)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("dispatcher.sessions", cfg.Dispatcher.Sessions)
	v.SetDefault("dispatcher.poll_interval", cfg.Dispatcher.PollInterval)
	v.SetDefault("dispatcher.queue_size", cfg.Dispatcher.QueueSize)
	v.SetDefault("video.width", cfg.Video.Width)
	v.SetDefault("video.height", cfg.Video.Height)
	v.SetDefault("video.fps", cfg.Video.FPS)
	v.SetDefault("video.short_duration", cfg.Video.ShortDuration)
	v.SetDefault("video.long_duration", cfg.Video.LongDuration)
	v.SetDefault("video.4k_width", cfg.Video.FourKWidth)
	v.SetDefault("video.4k_height", cfg.Video.FourKHeight)
	v.SetDefault("video.num_variants", cfg.Video.NumVariants)
	v.SetDefault("paths.outputs", cfg.Paths.Outputs)
	v.SetDefault("paths.publish", cfg.Paths.Publish)
	v.SetDefault("paths.templates", cfg.Paths.Templates)
	v.SetDefault("paths.logs", cfg.Paths.Logs)
	v.SetDefault("monitoring.sample_interval", cfg.Monitoring.SampleInterval)
	v.SetDefault("monitoring.cpu_threshold", cfg.Monitoring.CPUThreshold)
	v.SetDefault("monitoring.memory_threshold", cfg.Monitoring.MemThreshold)
	v.SetDefault("monitoring.disk_threshold", cfg.Monitoring.DiskThreshold)
	v.SetDefault("monitoring.queue_threshold", cfg.Monitoring.QueueThreshold)
	v.SetDefault("retention.enabled", cfg.Retention.Enabled)
	v.SetDefault("retention.sweep_interval", cfg.Retention.SweepInterval)
	v.SetDefault("retention.job_days", cfg.Retention.JobDays)
	v.SetDefault("retention.metric_days", cfg.Retention.MetricDays)
	v.SetDefault("retention.alert_days", cfg.Retention.AlertDays)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.json", cfg.Logging.JSON)
}

// WriteDefault writes the default configuration to path.
// Existing files are never overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return err
	}
	return enc.Close()
}
