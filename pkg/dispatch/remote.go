package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/videoforge/videoforge/pkg/models"
)

// RemoteWorker is the capability the dispatcher depends on but does not
// implement: an opaque execute(job) -> result | error surface backed by a
// GPU service with large, variable latency.
type RemoteWorker interface {
	// Connected reports whether a worker session is established.
	Connected() bool
	// Connect establishes (or re-establishes) a worker session.
	Connect() error
	// Invoke runs one action synchronously and returns its result.
	Invoke(kind models.JobKind, payload *models.JobPayload) (*models.JobResult, error)
}

// StubWorker is a local stand-in for the GPU-backed worker service.
// It answers every action with canned results after an optional delay.
type StubWorker struct {
	mu        sync.Mutex
	connected bool
	sessionID string

	// Latency is added to every Invoke call to mimic remote compute time.
	Latency time.Duration
}

// NewStubWorker creates a stub remote worker
func NewStubWorker() *StubWorker {
	return &StubWorker{}
}

// Connected reports whether a session is established
func (w *StubWorker) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

// Connect establishes a fake session
func (w *StubWorker) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessionID = fmt.Sprintf("session_%d", time.Now().Unix())
	w.connected = true
	return nil
}

// SessionID returns the current session identifier
func (w *StubWorker) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Disconnect drops the session
func (w *StubWorker) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
	w.sessionID = ""
}

// Invoke returns canned results per action kind
func (w *StubWorker) Invoke(kind models.JobKind, payload *models.JobPayload) (*models.JobResult, error) {
	if w.Latency > 0 {
		time.Sleep(w.Latency)
	}

	switch kind {
	case models.JobKindGenerateImages:
		n := 4
		if payload != nil && payload.Generate != nil && payload.Generate.NumVariants > 0 {
			n = payload.Generate.NumVariants
		}
		return &models.JobResult{
			Generate: &models.GenerateResult{
				Images:    make([]string, n),
				ModelUsed: "stable-diffusion-2.1",
			},
		}, nil

	case models.JobKindUpscaleImage:
		var img string
		if payload != nil && payload.Upscale != nil {
			img = payload.Upscale.ImageData
		}
		return &models.JobResult{
			Upscale: &models.UpscaleResult{Image: img},
		}, nil

	case models.JobKindSuperResolveVideo:
		var src string
		if payload != nil && payload.SuperResolve != nil {
			src = payload.SuperResolve.VideoPath
		}
		return &models.JobResult{
			SuperResolve: &models.SuperResolveResult{VideoPath: src},
		}, nil

	default:
		return nil, fmt.Errorf("unknown action: %s", kind)
	}
}
