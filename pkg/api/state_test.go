package api

import (
	"strings"
	"testing"
)

func TestValidateRunTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    RunState
		to      RunState
		wantErr bool
	}{
		// Valid transitions
		{name: "initial to planning", from: "", to: StatePlanning, wantErr: false},
		{name: "planning to test_acquisition", from: StatePlanning, to: StateTestAcquisition, wantErr: false},
		{name: "test_acquisition to generating", from: StateTestAcquisition, to: StateGenerating, wantErr: false},
		{name: "generating to executing", from: StateGenerating, to: StateExecuting, wantErr: false},
		{name: "generating to repairing (execution skipped)", from: StateGenerating, to: StateRepairing, wantErr: false},
		{name: "executing to validating", from: StateExecuting, to: StateValidating, wantErr: false},
		{name: "validating to complete", from: StateValidating, to: StateComplete, wantErr: false},
		{name: "validating to repairing", from: StateValidating, to: StateRepairing, wantErr: false},
		{name: "repairing to generating", from: StateRepairing, to: StateGenerating, wantErr: false},
		{name: "planning to failed", from: StatePlanning, to: StateFailed, wantErr: false},
		{name: "validating to failed", from: StateValidating, to: StateFailed, wantErr: false},

		// Cancellation is legal from any non-terminal state
		{name: "planning to cancelled", from: StatePlanning, to: StateCancelled, wantErr: false},
		{name: "generating to cancelled", from: StateGenerating, to: StateCancelled, wantErr: false},
		{name: "executing to cancelled", from: StateExecuting, to: StateCancelled, wantErr: false},
		{name: "repairing to cancelled", from: StateRepairing, to: StateCancelled, wantErr: false},

		// Invalid transitions from terminal states
		{name: "complete to generating", from: StateComplete, to: StateGenerating, wantErr: true},
		{name: "failed to planning", from: StateFailed, to: StatePlanning, wantErr: true},
		{name: "cancelled to generating", from: StateCancelled, to: StateGenerating, wantErr: true},
		{name: "complete to cancelled", from: StateComplete, to: StateCancelled, wantErr: true},
		{name: "failed to cancelled", from: StateFailed, to: StateCancelled, wantErr: true},

		// Invalid transitions skipping required states or going backward
		{name: "planning to generating (skip test_acquisition)", from: StatePlanning, to: StateGenerating, wantErr: true},
		{name: "generating to validating (skip executing)", from: StateGenerating, to: StateValidating, wantErr: true},
		{name: "executing to complete (skip validating)", from: StateExecuting, to: StateComplete, wantErr: true},
		{name: "repairing to executing", from: StateRepairing, to: StateExecuting, wantErr: true},
		{name: "validating to planning (backward)", from: StateValidating, to: StatePlanning, wantErr: true},
		{name: "initial to complete", from: "", to: StateComplete, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunTransition(tt.from, tt.to)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ValidateRunTransition(%q, %q) = nil, want error", tt.from, tt.to)
				} else if !strings.Contains(err.Error(), "invalid run transition") {
					t.Errorf("error message %q does not contain \"invalid run transition\"", err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("ValidateRunTransition(%q, %q) = %v, want nil", tt.from, tt.to, err)
				}
			}
		})
	}
}

func TestRunStateTerminal(t *testing.T) {
	terminal := []RunState{StateComplete, StateFailed, StateCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q.Terminal() = false, want true", s)
		}
	}

	active := []RunState{"", StatePlanning, StateTestAcquisition, StateGenerating, StateExecuting, StateValidating, StateRepairing}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%q.Terminal() = true, want false", s)
		}
	}
}
