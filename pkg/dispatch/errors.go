package dispatch

import (
	"errors"
)

var (
	// ErrWaitTimeout is returned by SubmitAndWait when the job does not
	// reach a terminal state within the deadline. The job itself is left
	// queued or running; the dispatcher never cancels it retroactively.
	ErrWaitTimeout = errors.New("timed out waiting for job")

	// ErrRemoteUnavailable means the remote worker connection was lost and
	// a single reconnection attempt failed.
	ErrRemoteUnavailable = errors.New("remote worker unavailable")

	// ErrRemoteFailure means the remote worker returned an error payload.
	ErrRemoteFailure = errors.New("remote worker failure")

	// ErrStorage wraps durable read/write failures so callers can tell
	// them apart from job-level failures.
	ErrStorage = errors.New("storage failure")

	// ErrQueueFull is returned by Submit when the dispatch queue is at
	// capacity.
	ErrQueueFull = errors.New("dispatch queue full")

	// ErrNotCancellable is returned by Cancel for jobs that already left
	// the queued state. In-flight remote work cannot be interrupted.
	ErrNotCancellable = errors.New("job is not cancellable")
)
