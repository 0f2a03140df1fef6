package gateway

import (
	"context"

	"github.com/codewright-io/codewright/pkg/api"
)

// Plan is the gateway's reading of a task before any code is written.
type Plan struct {
	Understanding string `json:"understanding"`
	Approach      string `json:"approach"`
}

// Analysis is the gateway's diagnosis of a failed iteration, fed back
// into the next generation call.
type Analysis struct {
	Diagnosis string `json:"diagnosis"`
}

// FailureContext carries everything the repair call needs to reason about
// a failed iteration.
type FailureContext struct {
	Task       string
	Code       string
	Iteration  int
	Execution  *api.ExecutionResult
	Validation *api.ValidationResult
	Flagged    []string
}

// Gateway abstracts an LLM generation backend. Every call returns the
// token usage it consumed alongside its payload; usage is reported even
// when the payload is unusable, so accounting stays complete.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Gateway interface {
	// Name returns the backend identifier (e.g., "openai").
	Name() string

	// Plan produces an understanding of the task and an approach.
	Plan(ctx context.Context, task string) (*Plan, api.Usage, error)

	// InferTests synthesizes test cases for a task. Called only when the
	// caller supplied none.
	InferTests(ctx context.Context, task string) ([]api.TestCase, api.Usage, error)

	// GenerateCode produces a candidate program. On the first iteration
	// analysis is empty; repair iterations pass the previous diagnosis.
	GenerateCode(ctx context.Context, task string, plan *Plan, tests []api.TestCase, analysis string) (string, api.Usage, error)

	// AnalyzeFailure diagnoses a failed iteration for the next attempt.
	AnalyzeFailure(ctx context.Context, fc *FailureContext) (*Analysis, api.Usage, error)

	// Close releases backend resources.
	Close() error
}

// HardcodePolicy inspects a candidate program for answers baked in as
// literals instead of computed. A flagged candidate skips execution and
// goes straight to repair.
type HardcodePolicy interface {
	// Inspect returns the reasons the code looks hardcoded, or an empty
	// slice when it is acceptable.
	Inspect(code string, tests []api.TestCase) []string
}
