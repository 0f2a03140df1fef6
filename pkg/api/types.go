package api

import (
	"time"
)

// ---------------------------------------------------------------------------
// Test cases
// ---------------------------------------------------------------------------

// TestCase describes one input/expected-output pair a candidate program
// must satisfy. Inputs are named keyword arguments passed to the candidate's
// entry point; ExpectedOutput is an arbitrary JSON value compared
// structurally against the produced result.
//
// Test cases are fixed for the lifetime of a run: either supplied by the
// caller or inferred once during test acquisition, never modified after.
type TestCase struct {
	Description    string         `json:"description"`
	Inputs         map[string]any `json:"inputs"`
	ExpectedOutput any            `json:"expected_output"`
}

// ---------------------------------------------------------------------------
// Code versions
// ---------------------------------------------------------------------------

// CodeVersion is one generated candidate program. Versions count up across
// the whole run, including attempts that never reached execution.
type CodeVersion struct {
	Version   int    `json:"version"`
	Code      string `json:"code"`
	Iteration int    `json:"iteration"`
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// ExecutionResult is the outcome of running one candidate program in the
// sandbox. A guest-process failure (non-zero exit, crash, timeout) is a
// normal result with Success=false, never an error; partial output captured
// before a forced termination is retained.
type ExecutionResult struct {
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Error    string        `json:"error"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"-"`
	TimedOut bool          `json:"timed_out"`

	// Seconds mirrors Duration for the wire format, matching the
	// execution_time field consumers already parse.
	Seconds float64 `json:"execution_time"`
}

// Ran reports whether the guest program ran to a usable completion.
// Timeouts, crashes, and non-zero exits all mean validation can
// short-circuit instead of comparing outputs.
func (r *ExecutionResult) Ran() bool {
	return r != nil && r.Success && !r.TimedOut
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// TestResult is the verdict for a single test case.
type TestResult struct {
	Description    string `json:"description"`
	Passed         bool   `json:"passed"`
	ActualOutput   any    `json:"actual_output,omitempty"`
	ExpectedOutput any    `json:"expected_output"`
	Error          string `json:"error,omitempty"`
}

// ValidationResult aggregates per-test verdicts for one iteration.
// Passed + Failed == Total always holds.
type ValidationResult struct {
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Total   int          `json:"total"`
	Results []TestResult `json:"results"`
}

// AllPassed reports whether every test in the set passed. An empty set
// never counts as passing; a run without tests is a fatal condition long
// before validation.
func (v *ValidationResult) AllPassed() bool {
	return v != nil && v.Total > 0 && v.Passed == v.Total
}

// ---------------------------------------------------------------------------
// Iterations and runs
// ---------------------------------------------------------------------------

// Iteration is one generate → execute → validate pass. Execution and
// Validation stay nil until the corresponding phase ran; Analysis is only
// populated when the iteration failed and a repair analysis was produced.
// Iterations are appended to a run and never mutated once validated.
type Iteration struct {
	Index      int               `json:"index"`
	Code       *CodeVersion      `json:"code,omitempty"`
	Execution  *ExecutionResult  `json:"execution,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Analysis   string            `json:"analysis,omitempty"`
}

// RunOutcome is the terminal disposition of a run. It is set exactly once,
// by the orchestrator, when the run reaches a terminal state.
type RunOutcome string

const (
	OutcomeSuccess   RunOutcome = "success"
	OutcomeExhausted RunOutcome = "exhausted"
	OutcomeFatal     RunOutcome = "fatal"
	OutcomeCancelled RunOutcome = "cancelled"
)

// Run is one end-to-end attempt at a task. The orchestrator owns the run
// exclusively for its lifetime; once Outcome is set the record is immutable.
type Run struct {
	ID            string        `json:"id"`
	Task          string        `json:"task"`
	Iterations    []Iteration   `json:"iterations"`
	Events        []StoredEvent `json:"events"`
	MaxIterations int           `json:"max_iterations"`
	Outcome       RunOutcome    `json:"outcome,omitempty"`
	FinalCode     string        `json:"final_code,omitempty"`
	TotalTokens   int           `json:"total_tokens"`
	TotalCost     float64       `json:"total_cost"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// Terminal reports whether the run has reached a terminal outcome.
func (r *Run) Terminal() bool {
	return r.Outcome != ""
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// DefaultMaxIterations bounds the repair loop when the caller does not set
// an explicit limit.
const DefaultMaxIterations = 5

// CreateRunRequest is the inbound request to start (or resume) a run.
// Tests, when present, are used verbatim and test inference is skipped.
// RunID resumes event appending on an existing stored run.
type CreateRunRequest struct {
	Task          string     `json:"task"`
	Tests         []TestCase `json:"tests,omitempty"`
	MaxIterations int        `json:"max_iterations,omitempty"`
	RunID         string     `json:"run_id,omitempty"`
}

// EffectiveMaxIterations returns the iteration bound with the default
// applied.
func (r *CreateRunRequest) EffectiveMaxIterations() int {
	if r.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return r.MaxIterations
}

// ---------------------------------------------------------------------------
// Token accounting
// ---------------------------------------------------------------------------

// Usage records tokens consumed by a single gateway call and the estimated
// cost of that call in USD.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// LedgerEntry is one recorded accounting line: the step that consumed the
// tokens and what it consumed. Entries are append-only.
type LedgerEntry struct {
	Step         string  `json:"step"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// CostLedger is the full accounting for one run: the ordered entries plus
// running totals. The invariant sum(entries) == totals holds at every
// snapshot, including cancelled and failed runs.
type CostLedger struct {
	Entries     []LedgerEntry `json:"entries"`
	TotalTokens int           `json:"total_tokens"`
	TotalCost   float64       `json:"total_cost_usd"`
}
