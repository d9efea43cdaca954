package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	defer os.Chdir(cwd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load without file failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Wrong default listen addr: %s", cfg.Server.ListenAddr)
	}
	if cfg.Video.FPS != 60 || cfg.Video.Width != 1920 {
		t.Errorf("Wrong video defaults: %+v", cfg.Video)
	}
	if cfg.Retention.MetricDays != 7 {
		t.Errorf("Wrong metric retention: %d", cfg.Retention.MetricDays)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videoforge.yaml")
	content := `
server:
  listen_addr: ":9090"
dispatcher:
  sessions: 3
  poll_interval: 250ms
video:
  fps: 30
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("Override lost: %s", cfg.Server.ListenAddr)
	}
	if cfg.Dispatcher.Sessions != 3 {
		t.Errorf("Sessions override lost: %d", cfg.Dispatcher.Sessions)
	}
	if cfg.Dispatcher.PollInterval != 250*time.Millisecond {
		t.Errorf("Poll interval not parsed: %v", cfg.Dispatcher.PollInterval)
	}
	if cfg.Video.FPS != 30 {
		t.Errorf("FPS override lost: %d", cfg.Video.FPS)
	}
	// Untouched values keep their defaults.
	if cfg.Video.Width != 1920 {
		t.Errorf("Default width lost: %d", cfg.Video.Width)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/videoforge.yaml"); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videoforge.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of written defaults failed: %v", err)
	}
	if cfg.Monitoring.CPUThreshold != 90 {
		t.Errorf("Round-tripped threshold wrong: %v", cfg.Monitoring.CPUThreshold)
	}
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "videoforge.yaml")
	if err := os.WriteFile(path, []byte("server: {}"), 0644); err != nil {
		t.Fatalf("Failed to seed file: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("Expected refusal to overwrite existing config")
	}
}
