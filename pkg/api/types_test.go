package api

import (
	"testing"
	"time"
)

func TestExecutionResultRan(t *testing.T) {
	tests := []struct {
		name string
		res  *ExecutionResult
		want bool
	}{
		{"nil result", nil, false},
		{"clean success", &ExecutionResult{Success: true}, true},
		{"failed", &ExecutionResult{Success: false, ExitCode: 1}, false},
		{"timed out", &ExecutionResult{Success: false, TimedOut: true}, false},
		{"success flag with timeout", &ExecutionResult{Success: true, TimedOut: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Ran(); got != tt.want {
				t.Errorf("Ran() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidationResultAllPassed(t *testing.T) {
	tests := []struct {
		name string
		res  *ValidationResult
		want bool
	}{
		{"nil result", nil, false},
		{"empty set", &ValidationResult{}, false},
		{"all passed", &ValidationResult{Passed: 3, Failed: 0, Total: 3}, true},
		{"partial", &ValidationResult{Passed: 2, Failed: 1, Total: 3}, false},
		{"all failed", &ValidationResult{Passed: 0, Failed: 3, Total: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.AllPassed(); got != tt.want {
				t.Errorf("AllPassed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunTerminal(t *testing.T) {
	r := Run{ID: NewRunID(), Task: "t", CreatedAt: time.Now()}
	if r.Terminal() {
		t.Error("fresh run should not be terminal")
	}
	r.Outcome = OutcomeSuccess
	if !r.Terminal() {
		t.Error("run with outcome should be terminal")
	}
}
