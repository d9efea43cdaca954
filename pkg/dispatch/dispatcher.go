package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/videoforge/videoforge/pkg/logging"
	"github.com/videoforge/videoforge/pkg/models"
	"github.com/videoforge/videoforge/pkg/store"
)

// Config holds dispatcher tuning knobs
type Config struct {
	// Sessions is the number of worker sessions. Each session processes
	// jobs strictly sequentially; FIFO order holds per session.
	Sessions int
	// PollInterval is the sleep between status checks in SubmitAndWait.
	PollInterval time.Duration
	// QueueSize caps the number of queued-but-not-started jobs.
	QueueSize int
}

// DefaultConfig returns sensible dispatcher defaults
func DefaultConfig() Config {
	return Config{
		Sessions:     1,
		PollInterval: time.Second,
		QueueSize:    100,
	}
}

// Dispatcher is the producer/consumer core: it records submitted jobs,
// feeds them to worker sessions in FIFO order, and tracks every status
// transition in the store.
type Dispatcher struct {
	cfg    Config
	store  store.Store
	worker RemoteWorker
	log    *logging.Logger

	queue  chan *models.Job
	active int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher. Start must be called before jobs are processed.
func New(st store.Store, worker RemoteWorker, cfg Config, log *logging.Logger) *Dispatcher {
	if cfg.Sessions <= 0 {
		cfg.Sessions = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:    cfg,
		store:  st,
		worker: worker,
		log:    log.WithField("component", "dispatcher"),
		queue:  make(chan *models.Job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker session loops
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Sessions; i++ {
		d.wg.Add(1)
		go d.runSession(i)
	}
	d.log.Info(fmt.Sprintf("Dispatcher started with %d worker session(s)", d.cfg.Sessions))
}

// Stop halts the worker loops. In-flight remote calls run to completion;
// queued jobs stay queued in the store.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
	d.log.Info("Dispatcher stopped")
}

// Submit records a job as queued and enqueues it for dispatch.
// It returns the job ID immediately; the work happens on a session loop.
func (d *Dispatcher) Submit(job *models.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.JobStatusQueued

	if err := d.store.CreateJob(job); err != nil {
		if errors.Is(err, store.ErrDuplicateJob) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	select {
	case d.queue <- job:
	default:
		// Leave the row queued; an operator can resubmit once the
		// backlog drains.
		return "", fmt.Errorf("%w: %d jobs pending", ErrQueueFull, len(d.queue))
	}

	d.log.Info("Job submitted", map[string]interface{}{"job_id": job.ID, "kind": string(job.Kind)})
	return job.ID, nil
}

// SubmitAndWait submits a job and blocks until it reaches a terminal state
// or the timeout elapses. On timeout the job is left queued/running and may
// still complete later; its result is then discarded by this caller but
// remains in the store.
func (d *Dispatcher) SubmitAndWait(ctx context.Context, job *models.Job, timeout time.Duration) (*models.JobResult, error) {
	id, err := d.Submit(job)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		got, err := d.store.GetJob(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}

		switch got.Status {
		case models.JobStatusCompleted:
			return got.Result, nil
		case models.JobStatusFailed:
			return nil, fmt.Errorf("%w: %s", ErrRemoteFailure, got.Error)
		case models.JobStatusCancelled:
			return nil, fmt.Errorf("job %s was cancelled", id)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: job %s after %s", ErrWaitTimeout, id, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel transitions a queued job to cancelled. It has no effect on a job
// that has entered running: in-flight remote work cannot be interrupted.
func (d *Dispatcher) Cancel(id string) error {
	job, err := d.store.GetJob(id)
	if err != nil {
		return err
	}

	if job.Status != models.JobStatusQueued {
		return fmt.Errorf("%w: job %s is %s", ErrNotCancellable, id, job.Status)
	}

	if err := d.store.TransitionJob(id, models.JobStatusCancelled, nil, "cancelled by user"); err != nil {
		return err
	}
	d.log.Info("Job cancelled", map[string]interface{}{"job_id": id})
	return nil
}

// QueueDepth returns the number of jobs waiting for a worker session
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// ActiveJobs returns the number of jobs currently held by worker sessions
func (d *Dispatcher) ActiveJobs() int {
	return int(atomic.LoadInt64(&d.active))
}

// runSession is one worker session loop: it pulls jobs in FIFO order and
// processes them strictly sequentially.
func (d *Dispatcher) runSession(session int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.queue:
			d.process(session, job)
		}
	}
}

// process runs one job end to end. Remote failures are converted to a
// failed status; they never terminate the session loop.
func (d *Dispatcher) process(session int, job *models.Job) {
	// Cancelled-while-queued jobs are skipped, not dispatched.
	current, err := d.store.GetJob(job.ID)
	if err != nil {
		d.log.Error("Failed to load job before dispatch", map[string]interface{}{
			"job_id": job.ID, "error": err.Error(),
		})
		return
	}
	if current.Status != models.JobStatusQueued {
		return
	}

	if err := d.store.TransitionJob(job.ID, models.JobStatusRunning, nil, ""); err != nil {
		d.log.Error("Failed to mark job running", map[string]interface{}{
			"job_id": job.ID, "error": err.Error(),
		})
		return
	}

	atomic.AddInt64(&d.active, 1)
	defer atomic.AddInt64(&d.active, -1)

	d.log.Info("Job running", map[string]interface{}{
		"job_id": job.ID, "kind": string(job.Kind), "session": session,
	})

	result, err := d.invokeRemote(job)
	if err != nil {
		if serr := d.store.TransitionJob(job.ID, models.JobStatusFailed, nil, err.Error()); serr != nil {
			d.log.Error("Failed to record job failure", map[string]interface{}{
				"job_id": job.ID, "error": serr.Error(),
			})
		}
		d.log.Warn("Job failed", map[string]interface{}{"job_id": job.ID, "error": err.Error()})
		return
	}

	if serr := d.store.TransitionJob(job.ID, models.JobStatusCompleted, result, ""); serr != nil {
		d.log.Error("Failed to record job completion", map[string]interface{}{
			"job_id": job.ID, "error": serr.Error(),
		})
		return
	}
	d.log.Info("Job completed", map[string]interface{}{"job_id": job.ID})
}

// invokeRemote calls the remote worker, reconnecting once if the session
// is down. Panics from the worker implementation are converted to errors
// so a misbehaving worker cannot kill the session loop.
func (d *Dispatcher) invokeRemote(job *models.Job) (result *models.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("remote invocation panic: %v", r)
		}
	}()

	if !d.worker.Connected() {
		d.log.Warn("Remote worker not connected, attempting reconnect",
			map[string]interface{}{"job_id": job.ID})
		if cerr := d.worker.Connect(); cerr != nil {
			return nil, fmt.Errorf("%w: reconnect failed: %v", ErrRemoteUnavailable, cerr)
		}
	}

	return d.worker.Invoke(job.Kind, job.Parameters)
}
