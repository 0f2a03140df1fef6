package validation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/codewright-io/codewright/pkg/api"
)

// scriptedExecutor replays canned harness outputs in order.
type scriptedExecutor struct {
	results []*api.ExecutionResult
	calls   int
	codes   []string
}

func (s *scriptedExecutor) Execute(ctx context.Context, runID, code, stdin string) (*api.ExecutionResult, error) {
	s.codes = append(s.codes, code)
	if s.calls >= len(s.results) {
		return &api.ExecutionResult{Success: true}, nil
	}
	res := s.results[s.calls]
	s.calls++
	return res, nil
}

func harnessResult(t *testing.T, verdict map[string]any) *api.ExecutionResult {
	t.Helper()
	data, err := json.Marshal(verdict)
	if err != nil {
		t.Fatalf("marshal verdict: %v", err)
	}
	return &api.ExecutionResult{Success: true, Output: string(data) + "\n"}
}

func TestValidateAllPassing(t *testing.T) {
	exec := &scriptedExecutor{results: []*api.ExecutionResult{
		harnessResult(t, map[string]any{"success": true, "result": 3}),
		harnessResult(t, map[string]any{"success": true, "result": -3}),
	}}
	v := New(exec, nil)

	tests := []api.TestCase{
		{Description: "sum", Inputs: map[string]any{"a": 1, "b": 2}, ExpectedOutput: 3},
		{Description: "negatives", Inputs: map[string]any{"a": -1, "b": -2}, ExpectedOutput: -3},
	}

	res, err := v.Validate(context.Background(), "run_test", "def main(a, b):\n    return a + b", tests, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !res.AllPassed() {
		t.Errorf("AllPassed() = false: %+v", res)
	}
	if res.Passed != 2 || res.Failed != 0 || res.Total != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/0/2", res.Passed, res.Failed, res.Total)
	}
	if exec.calls != 2 {
		t.Errorf("executor calls = %d, want 2", exec.calls)
	}
}

func TestValidateWrongAnswer(t *testing.T) {
	exec := &scriptedExecutor{results: []*api.ExecutionResult{
		harnessResult(t, map[string]any{"success": true, "result": 1}),
	}}
	v := New(exec, nil)

	res, err := v.Validate(context.Background(), "run_test", "code",
		[]api.TestCase{{Description: "sum", Inputs: map[string]any{"a": 1, "b": 2}, ExpectedOutput: 3}}, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Passed != 0 || res.Failed != 1 {
		t.Errorf("counts = %d/%d, want 0/1", res.Passed, res.Failed)
	}
	tr := res.Results[0]
	if tr.Passed {
		t.Error("wrong answer marked passed")
	}
	if !strings.Contains(tr.Error, "expected 3, got 1") {
		t.Errorf("Error = %q", tr.Error)
	}
}

func TestValidateGuestException(t *testing.T) {
	exec := &scriptedExecutor{results: []*api.ExecutionResult{
		harnessResult(t, map[string]any{"success": false, "error": "ZeroDivisionError: division by zero"}),
	}}
	v := New(exec, nil)

	res, err := v.Validate(context.Background(), "run_test", "code",
		[]api.TestCase{{Description: "div", Inputs: map[string]any{"a": 1, "b": 0}, ExpectedOutput: nil}}, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Results[0].Passed {
		t.Error("raising test marked passed")
	}
	if !strings.Contains(res.Results[0].Error, "ZeroDivisionError") {
		t.Errorf("Error = %q", res.Results[0].Error)
	}
}

func TestValidateShortCircuitOnFailedExecution(t *testing.T) {
	exec := &scriptedExecutor{}
	v := New(exec, nil)

	failed := &api.ExecutionResult{Success: false, Error: "SyntaxError: invalid syntax", ExitCode: 1}
	tests := []api.TestCase{
		{Description: "a", Inputs: map[string]any{}, ExpectedOutput: 1},
		{Description: "b", Inputs: map[string]any{}, ExpectedOutput: 2},
		{Description: "c", Inputs: map[string]any{}, ExpectedOutput: 3},
	}

	res, err := v.Validate(context.Background(), "run_test", "bad code", tests, failed)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if exec.calls != 0 {
		t.Errorf("short-circuit must not execute tests, got %d calls", exec.calls)
	}
	if res.Passed != 0 || res.Failed != 3 || res.Total != 3 {
		t.Errorf("counts = %d/%d/%d, want 0/3/3", res.Passed, res.Failed, res.Total)
	}
	for _, tr := range res.Results {
		if !strings.Contains(tr.Error, "SyntaxError") {
			t.Errorf("Error = %q, want execution failure propagated", tr.Error)
		}
	}
}

func TestValidateUnparseableOutput(t *testing.T) {
	exec := &scriptedExecutor{results: []*api.ExecutionResult{
		{Success: true, Output: "I printed something weird"},
	}}
	v := New(exec, nil)

	res, err := v.Validate(context.Background(), "run_test", "code",
		[]api.TestCase{{Description: "t", Inputs: map[string]any{}, ExpectedOutput: 1}}, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Results[0].Passed {
		t.Error("unparseable output marked passed")
	}
	if !strings.Contains(res.Results[0].Error, "could not parse") {
		t.Errorf("Error = %q", res.Results[0].Error)
	}
}

func TestValidateVerdictOnLastLine(t *testing.T) {
	exec := &scriptedExecutor{results: []*api.ExecutionResult{
		{Success: true, Output: "debug print from candidate\n{\"success\": true, \"result\": 5}\n"},
	}}
	v := New(exec, nil)

	res, err := v.Validate(context.Background(), "run_test", "code",
		[]api.TestCase{{Description: "t", Inputs: map[string]any{}, ExpectedOutput: 5}}, nil)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !res.AllPassed() {
		t.Errorf("candidate prints before the verdict must not break parsing: %+v", res.Results[0])
	}
}

func TestBuildHarness(t *testing.T) {
	code := "def main(a, b):\n    return a + b"
	harness, err := BuildHarness(code, map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("BuildHarness() error = %v", err)
	}
	for _, want := range []string{
		code,
		"main(**inputs)",
		`json.loads('{"a":1,"b":2}')`,
		`"success": True`,
	} {
		if !strings.Contains(harness, want) {
			t.Errorf("harness missing %q", want)
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"equal ints", 3, 3, true},
		{"int and float same value", 3, 3.0, true},
		{"number vs string", 3, "3", false},
		{"equal strings", "abc", "abc", true},
		{"equal slices", []any{1.0, 2.0}, []int{1, 2}, true},
		{"different slices", []any{1.0, 2.0}, []int{2, 1}, false},
		{"maps ignore key order", map[string]any{"a": 1, "b": 2}, map[string]any{"b": 2, "a": 1}, true},
		{"nested structures", map[string]any{"xs": []any{1.0, map[string]any{"y": "z"}}}, map[string]any{"xs": []any{1, map[string]any{"y": "z"}}}, true},
		{"nil vs zero", nil, 0, false},
		{"both nil", nil, nil, true},
		{"bool vs int", true, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.actual, tt.expected); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.actual, tt.expected, got, tt.want)
			}
		})
	}
}
