package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/videoforge/videoforge/pkg/models"
	"github.com/videoforge/videoforge/pkg/store"
)

// fakeWorker is a controllable RemoteWorker for dispatcher tests
type fakeWorker struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	invokeErr   error
	latency     time.Duration
	invocations []string
}

func (f *fakeWorker) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeWorker) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeWorker) Invoke(kind models.JobKind, payload *models.JobPayload) (*models.JobResult, error) {
	f.mu.Lock()
	latency := f.latency
	invokeErr := f.invokeErr
	f.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	if invokeErr != nil {
		return nil, invokeErr
	}

	f.mu.Lock()
	f.invocations = append(f.invocations, string(kind))
	f.mu.Unlock()

	return &models.JobResult{ResultPath: "/tmp/out"}, nil
}

func newTestDispatcher(t *testing.T, worker RemoteWorker, cfg Config) (*Dispatcher, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	d := New(st, worker, cfg, nil)
	d.Start()
	t.Cleanup(d.Stop)
	return d, st
}

func waitForStatus(t *testing.T, st store.Store, id string, want models.JobStatus, timeout time.Duration) *models.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, err := st.GetJob(id)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := st.GetJob(id)
	t.Fatalf("Job %s never reached %s (last seen: %+v)", id, want, job)
	return nil
}

func TestSubmitReturnsImmediately(t *testing.T) {
	worker := &fakeWorker{connected: true, latency: 200 * time.Millisecond}
	d, st := newTestDispatcher(t, worker, DefaultConfig())

	start := time.Now()
	id, err := d.Submit(&models.Job{Kind: models.JobKindGenerateImages})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("Submit blocked for %v", elapsed)
	}
	if id == "" {
		t.Fatal("Expected a job ID to be assigned")
	}

	job, err := st.GetJob(id)
	if err != nil {
		t.Fatalf("Job was not recorded: %v", err)
	}
	if job.Status != models.JobStatusQueued && job.Status != models.JobStatusRunning && job.Status != models.JobStatusCompleted {
		t.Errorf("Unexpected status right after submit: %s", job.Status)
	}

	waitForStatus(t, st, id, models.JobStatusCompleted, 2*time.Second)
}

func TestSubmitDuplicateIDRejected(t *testing.T) {
	worker := &fakeWorker{connected: true}
	d, _ := newTestDispatcher(t, worker, DefaultConfig())

	if _, err := d.Submit(&models.Job{ID: "dup", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("First submit failed: %v", err)
	}
	if _, err := d.Submit(&models.Job{ID: "dup", Kind: models.JobKindGenerateImages}); !errors.Is(err, store.ErrDuplicateJob) {
		t.Errorf("Expected ErrDuplicateJob, got %v", err)
	}
}

func TestFIFOCompletionOrder(t *testing.T) {
	worker := &fakeWorker{connected: true, latency: 20 * time.Millisecond}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := d.Submit(&models.Job{
			ID:   fmt.Sprintf("fifo-%d", i),
			Kind: models.JobKindGenerateImages,
		})
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		waitForStatus(t, st, id, models.JobStatusCompleted, 3*time.Second)
	}

	// With a single session, completion times must follow submission order.
	var prev time.Time
	for i, id := range ids {
		job, _ := st.GetJob(id)
		if job.CompletedAt == nil {
			t.Fatalf("Job %s has no completion time", id)
		}
		if i > 0 && job.CompletedAt.Before(prev) {
			t.Errorf("Job %s completed before its predecessor", id)
		}
		prev = *job.CompletedAt
	}
}

func TestSubmitAndWaitTimeoutLeavesJobRunning(t *testing.T) {
	worker := &fakeWorker{connected: true, latency: 500 * time.Millisecond}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 20 * time.Millisecond})

	job := &models.Job{ID: "slow", Kind: models.JobKindSuperResolveVideo}
	_, err := d.SubmitAndWait(context.Background(), job, 100*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("Expected ErrWaitTimeout, got %v", err)
	}

	// The worker keeps going; the job must eventually complete and its
	// result must be durably recorded even though the caller is gone.
	final := waitForStatus(t, st, "slow", models.JobStatusCompleted, 3*time.Second)
	if final.Result == nil {
		t.Error("Expected result to be recorded after caller timeout")
	}
}

func TestSubmitAndWaitSuccess(t *testing.T) {
	worker := &fakeWorker{connected: true, latency: 30 * time.Millisecond}
	d, _ := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	result, err := d.SubmitAndWait(context.Background(), &models.Job{Kind: models.JobKindUpscaleImage}, 2*time.Second)
	if err != nil {
		t.Fatalf("SubmitAndWait failed: %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result")
	}
}

func TestRemoteFailureMarksJobFailed(t *testing.T) {
	worker := &fakeWorker{connected: true, invokeErr: errors.New("CUDA out of memory")}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	_, err := d.SubmitAndWait(context.Background(), &models.Job{ID: "oom", Kind: models.JobKindGenerateImages}, 2*time.Second)
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("Expected ErrRemoteFailure, got %v", err)
	}

	job, _ := st.GetJob("oom")
	if job.Status != models.JobStatusFailed {
		t.Errorf("Expected failed status, got %s", job.Status)
	}
	if job.Error != "CUDA out of memory" {
		t.Errorf("Expected worker error text, got %q", job.Error)
	}
}

func TestWorkerLoopSurvivesFailure(t *testing.T) {
	worker := &fakeWorker{connected: true, invokeErr: errors.New("transient")}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	if _, err := d.Submit(&models.Job{ID: "bad", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForStatus(t, st, "bad", models.JobStatusFailed, 2*time.Second)

	// Clear the fault; the loop must still be alive and process this job.
	worker.mu.Lock()
	worker.invokeErr = nil
	worker.mu.Unlock()

	if _, err := d.Submit(&models.Job{ID: "good", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForStatus(t, st, "good", models.JobStatusCompleted, 2*time.Second)
}

func TestReconnectOnceThenFail(t *testing.T) {
	worker := &fakeWorker{connected: false, connectErr: errors.New("session expired")}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	_, err := d.SubmitAndWait(context.Background(), &models.Job{ID: "discon", Kind: models.JobKindGenerateImages}, 2*time.Second)
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("Expected job failure surfaced, got %v", err)
	}

	job, _ := st.GetJob("discon")
	if job.Status != models.JobStatusFailed {
		t.Fatalf("Expected failed status, got %s", job.Status)
	}
	if job.Error == "" {
		t.Error("Expected the reconnect failure to be recorded on the job")
	}
}

func TestReconnectSucceeds(t *testing.T) {
	worker := &fakeWorker{connected: false}
	d, _ := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	result, err := d.SubmitAndWait(context.Background(), &models.Job{Kind: models.JobKindGenerateImages}, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected reconnect to recover the job, got %v", err)
	}
	if result == nil {
		t.Fatal("Expected a result after reconnect")
	}
	if !worker.Connected() {
		t.Error("Expected worker to be connected after reconnect")
	}
}

func TestCancelQueuedJob(t *testing.T) {
	// Block the single session with a slow job so the second stays queued.
	worker := &fakeWorker{connected: true, latency: 300 * time.Millisecond}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	if _, err := d.Submit(&models.Job{ID: "blocker", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := d.Submit(&models.Job{ID: "victim", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitForStatus(t, st, "blocker", models.JobStatusRunning, 2*time.Second)

	if err := d.Cancel("victim"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	job := waitForStatus(t, st, "victim", models.JobStatusCancelled, 2*time.Second)
	if job.Result != nil {
		t.Error("Cancelled job must not carry a result")
	}

	// The session must skip the cancelled job and stay healthy.
	waitForStatus(t, st, "blocker", models.JobStatusCompleted, 2*time.Second)
	if _, err := d.Submit(&models.Job{ID: "after", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("Submit after cancel failed: %v", err)
	}
	waitForStatus(t, st, "after", models.JobStatusCompleted, 2*time.Second)
}

func TestCancelRunningJobRejected(t *testing.T) {
	worker := &fakeWorker{connected: true, latency: 300 * time.Millisecond}
	d, st := newTestDispatcher(t, worker, Config{Sessions: 1, PollInterval: 10 * time.Millisecond})

	if _, err := d.Submit(&models.Job{ID: "running", Kind: models.JobKindGenerateImages}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitForStatus(t, st, "running", models.JobStatusRunning, 2*time.Second)

	if err := d.Cancel("running"); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("Expected ErrNotCancellable for running job, got %v", err)
	}
}

func TestStubWorkerActions(t *testing.T) {
	w := NewStubWorker()
	if w.Connected() {
		t.Fatal("Stub should start disconnected")
	}
	if err := w.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if w.SessionID() == "" {
		t.Error("Expected a session ID after connect")
	}

	res, err := w.Invoke(models.JobKindGenerateImages, &models.JobPayload{
		Generate: &models.GenerateParams{Prompt: "x", NumVariants: 2},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.Generate == nil || len(res.Generate.Images) != 2 {
		t.Errorf("Expected 2 image slots, got %+v", res.Generate)
	}

	if _, err := w.Invoke(models.JobKind("bogus"), nil); err == nil {
		t.Error("Expected error for unknown action")
	}
}
