// Package validation checks candidate programs against their test cases.
// Each test runs the candidate in the sandbox wrapped in a small driver
// that feeds it the test inputs and prints the result as JSON; outputs
// are compared structurally, so 3, 3.0, and "3" are three different
// answers but key order and whitespace never matter.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/codewright-io/codewright/pkg/api"
)

// Executor runs a guest program and reports what happened. Satisfied by
// *sandbox.Runner.
type Executor interface {
	Execute(ctx context.Context, runID, code, stdin string) (*api.ExecutionResult, error)
}

// Validator validates candidate programs. Safe for concurrent use.
type Validator struct {
	exec Executor
	log  *slog.Logger
}

// New creates a Validator backed by the given executor.
func New(exec Executor, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{exec: exec, log: log}
}

// Validate runs every test case against the code and aggregates the
// verdicts. When the preceding plain execution already failed, validation
// short-circuits: every test counts as failed without re-running anything.
// A non-nil error means the sandbox itself broke, not that tests failed.
func (v *Validator) Validate(ctx context.Context, runID, code string, tests []api.TestCase, execution *api.ExecutionResult) (*api.ValidationResult, error) {
	result := &api.ValidationResult{
		Total:   len(tests),
		Results: make([]api.TestResult, 0, len(tests)),
	}

	if execution != nil && !execution.Success {
		for _, tc := range tests {
			result.Results = append(result.Results, api.TestResult{
				Description:    tc.Description,
				Passed:         false,
				ExpectedOutput: tc.ExpectedOutput,
				Error:          executionFailureMessage(execution),
			})
		}
		result.Failed = len(tests)
		return result, nil
	}

	for i, tc := range tests {
		tr, err := v.runTest(ctx, runID, code, tc)
		if err != nil {
			return nil, fmt.Errorf("test %d: %w", i+1, err)
		}
		result.Results = append(result.Results, *tr)
		if tr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	v.log.Debug("validation finished",
		"run_id", runID,
		"passed", result.Passed,
		"failed", result.Failed,
		"total", result.Total)

	return result, nil
}

func (v *Validator) runTest(ctx context.Context, runID, code string, tc api.TestCase) (*api.TestResult, error) {
	tr := &api.TestResult{
		Description:    tc.Description,
		ExpectedOutput: tc.ExpectedOutput,
	}

	harness, err := BuildHarness(code, tc.Inputs)
	if err != nil {
		tr.Error = err.Error()
		return tr, nil
	}

	exec, err := v.exec.Execute(ctx, runID, harness, "")
	if err != nil {
		return nil, err
	}

	if !exec.Success {
		tr.Error = executionFailureMessage(exec)
		return tr, nil
	}

	out, ok := parseHarnessOutput(exec.Output)
	if !ok {
		tr.ActualOutput = truncate(exec.Output, 100)
		tr.Error = "could not parse test output"
		return tr, nil
	}

	if !out.Success {
		tr.Error = out.Error
		return tr, nil
	}

	var actual any
	if len(out.Result) > 0 {
		if err := json.Unmarshal(out.Result, &actual); err != nil {
			tr.Error = "could not parse test output"
			return tr, nil
		}
	}
	tr.ActualOutput = actual

	if Equal(actual, tc.ExpectedOutput) {
		tr.Passed = true
		return tr, nil
	}

	tr.Error = fmt.Sprintf("expected %s, got %s", compact(tc.ExpectedOutput), compact(actual))
	return tr, nil
}

// parseHarnessOutput extracts the driver's JSON verdict. Candidates are
// free to print to stdout themselves, so only the last non-empty line is
// the verdict.
func parseHarnessOutput(output string) (*harnessOutput, bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		var out harnessOutput
		if err := json.Unmarshal([]byte(line), &out); err != nil {
			return nil, false
		}
		return &out, true
	}
	return nil, false
}

// Equal compares two values structurally. Both sides are normalized
// through JSON, so map key order is irrelevant and all numbers compare
// as float64. Types are never coerced: a string never equals a number.
func Equal(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func executionFailureMessage(exec *api.ExecutionResult) string {
	if exec.TimedOut {
		return fmt.Sprintf("execution timed out after %.1fs", exec.Seconds)
	}
	if exec.Error != "" {
		return truncate(exec.Error, 200)
	}
	return fmt.Sprintf("execution failed with exit code %d", exec.ExitCode)
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
