package models

import (
	"testing"
)

func TestValidTransitions(t *testing.T) {
	valid := []struct {
		from, to JobStatus
	}{
		{JobStatusQueued, JobStatusRunning},
		{JobStatusQueued, JobStatusCancelled},
		{JobStatusRunning, JobStatusCompleted},
		{JobStatusRunning, JobStatusFailed},
		{JobStatusRunning, JobStatusCancelled},
	}

	for _, tc := range valid {
		if err := ValidateTransition(tc.from, tc.to); err != nil {
			t.Errorf("Expected %s -> %s to be valid, got: %v", tc.from, tc.to, err)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	invalid := []struct {
		from, to JobStatus
	}{
		{JobStatusQueued, JobStatusCompleted},
		{JobStatusQueued, JobStatusFailed},
		{JobStatusCompleted, JobStatusQueued},
		{JobStatusCompleted, JobStatusRunning},
		{JobStatusFailed, JobStatusRunning},
		{JobStatusCancelled, JobStatusQueued},
		{JobStatusFailed, JobStatusCompleted},
	}

	for _, tc := range invalid {
		if err := ValidateTransition(tc.from, tc.to); err == nil {
			t.Errorf("Expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestSameStateTransitionIsNoOp(t *testing.T) {
	// running -> running must not be an error; worker sessions may
	// re-assert state on reconnect.
	if err := ValidateTransition(JobStatusRunning, JobStatusRunning); err != nil {
		t.Errorf("Expected running -> running to be accepted, got: %v", err)
	}

	// Terminal states stay frozen even against themselves.
	if err := ValidateTransition(JobStatusCompleted, JobStatusCompleted); err == nil {
		t.Error("Expected completed -> completed to be rejected")
	}
}

func TestIsTerminalState(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !IsTerminalState(s) {
			t.Errorf("Expected %s to be terminal", s)
		}
	}

	for _, s := range []JobStatus{JobStatusQueued, JobStatusRunning} {
		if IsTerminalState(s) {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}
