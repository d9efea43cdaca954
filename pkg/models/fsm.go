package models

import (
	"fmt"
)

// validTransitions maps from-state to allowed to-states
var validTransitions = map[JobStatus]map[JobStatus]bool{
	JobStatusQueued: {
		JobStatusRunning:   true, // Queued → Running (worker session picks up job)
		JobStatusCancelled: true, // Queued → Cancelled (cancel before dispatch)
	},
	JobStatusRunning: {
		JobStatusCompleted: true, // Running → Completed (remote work succeeded)
		JobStatusFailed:    true, // Running → Failed (remote work failed)
		JobStatusCancelled: true, // Running → Cancelled (best-effort, state only)
	},
	// Terminal states (no transitions allowed)
	JobStatusCompleted: {},
	JobStatusFailed:    {},
	JobStatusCancelled: {},
}

// ValidateTransition checks if a state transition is valid.
// A same-state transition on a non-terminal state is treated as a no-op
// by the store, not an error, so it is accepted here.
func ValidateTransition(from, to JobStatus) error {
	allowedStates, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}

	if from == to && !IsTerminalState(from) {
		return nil
	}

	if !allowedStates[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}

	return nil
}

// IsTerminalState returns true if the state permits no further transitions
func IsTerminalState(state JobStatus) bool {
	return state == JobStatusCompleted || state == JobStatusFailed || state == JobStatusCancelled
}
