package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// Runner abstracts the media encoder so stages can be tested without
// the ffmpeg binary installed.
type Runner interface {
	// Run executes one encode with the given arguments.
	Run(ctx context.Context, stage string, args []string) error
	// Duration probes a media file and returns its duration in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}

// FFmpegRunner shells out to ffmpeg/ffprobe. Encoder processes get
// their own process group so a crashed caller does not orphan-kill a
// long transcode mid-write.
type FFmpegRunner struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegRunner creates a runner using binaries found on PATH
func NewFFmpegRunner() *FFmpegRunner {
	return &FFmpegRunner{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Run executes ffmpeg with -y prepended. Stderr is captured and
// attached to the returned EncodingError on failure.
func (r *FFmpegRunner) Run(ctx context.Context, stage string, args []string) error {
	full := append([]string{"-y"}, args...)
	cmd := exec.CommandContext(ctx, r.FFmpegPath, full...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &EncodingError{
			Stage:  stage,
			Output: tail(stderr.String(), 2048),
			Err:    err,
		}
	}
	return nil
}

// Duration probes the container duration via ffprobe
func (r *FFmpegRunner) Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, r.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable duration for %s: %w", path, err)
	}
	return seconds, nil
}

func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
