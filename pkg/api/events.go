package api

import "time"

// EventType identifies the type of a run stream event.
type EventType string

// One event is emitted per orchestrator transition, in strict order.
const (
	EventRunCreated           EventType = "run_created"
	EventPlanning             EventType = "planning"
	EventTestInference        EventType = "test_inference"
	EventTestInferenceSkipped EventType = "test_inference_skipped"
	EventCodeGenerated        EventType = "code_generated"
	EventExecution            EventType = "execution"
	EventValidation           EventType = "validation"
	EventErrorFixing          EventType = "error_fixing"
	EventCostUpdate           EventType = "cost_update"
	EventComplete             EventType = "complete"
	EventError                EventType = "error"
)

// TerminalEventTypes marks the event types after which a run stream must
// not carry further events.
var TerminalEventTypes = map[EventType]bool{
	EventComplete: true,
	EventError:    true,
}

// Event is one record in a run's event stream. Exactly one payload pointer
// is non-nil, matching Type; consumers switch on Type and must treat the
// stream as append-only and terminal after complete or error.
type Event struct {
	Type     EventType `json:"type"`
	Sequence int       `json:"sequence"`
	RunID    string    `json:"run_id,omitempty"`
	Time     time.Time `json:"timestamp"`

	RunCreated           *RunCreatedEvent           `json:"run_created,omitempty"`
	Planning             *PlanningEvent             `json:"planning,omitempty"`
	TestInference        *TestInferenceEvent        `json:"test_inference,omitempty"`
	TestInferenceSkipped *TestInferenceSkippedEvent `json:"test_inference_skipped,omitempty"`
	CodeGenerated        *CodeGeneratedEvent        `json:"code_generated,omitempty"`
	Execution            *ExecutionEvent            `json:"execution,omitempty"`
	Validation           *ValidationEvent           `json:"validation,omitempty"`
	ErrorFixing          *ErrorFixingEvent          `json:"error_fixing,omitempty"`
	CostUpdate           *CostUpdateEvent           `json:"cost_update,omitempty"`
	Complete             *CompleteEvent             `json:"complete,omitempty"`
	Error                *ErrorEvent                `json:"error,omitempty"`
}

// Payload returns the populated payload for the event's type, or nil if
// the event is malformed. Useful for persistence, where only the payload
// body is stored as the event content.
func (e *Event) Payload() any {
	switch e.Type {
	case EventRunCreated:
		if e.RunCreated != nil {
			return e.RunCreated
		}
	case EventPlanning:
		if e.Planning != nil {
			return e.Planning
		}
	case EventTestInference:
		if e.TestInference != nil {
			return e.TestInference
		}
	case EventTestInferenceSkipped:
		if e.TestInferenceSkipped != nil {
			return e.TestInferenceSkipped
		}
	case EventCodeGenerated:
		if e.CodeGenerated != nil {
			return e.CodeGenerated
		}
	case EventExecution:
		if e.Execution != nil {
			return e.Execution
		}
	case EventValidation:
		if e.Validation != nil {
			return e.Validation
		}
	case EventErrorFixing:
		if e.ErrorFixing != nil {
			return e.ErrorFixing
		}
	case EventCostUpdate:
		if e.CostUpdate != nil {
			return e.CostUpdate
		}
	case EventComplete:
		if e.Complete != nil {
			return e.Complete
		}
	case EventError:
		if e.Error != nil {
			return e.Error
		}
	}
	return nil
}

// StoredEvent is the persisted form of one stream event: the payload
// body plus ordering metadata. Runs carry their events in this shape so
// a consumer can replay the stream from the stored record.
type StoredEvent struct {
	EventType  EventType `json:"event_type"`
	Content    any       `json:"content,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	OrderIndex int       `json:"order_index"`
}

// Stored converts the event to its persisted form.
func (e *Event) Stored() StoredEvent {
	return StoredEvent{
		EventType:  e.Type,
		Content:    e.Payload(),
		Timestamp:  e.Time,
		OrderIndex: e.Sequence,
	}
}

// RunCreatedEvent announces a freshly persisted run.
type RunCreatedEvent struct {
	RunID     string    `json:"run_id"`
	Task      string    `json:"task"`
	CreatedAt time.Time `json:"created_at"`
}

// PlanningEvent carries the gateway's reading of the task.
type PlanningEvent struct {
	Understanding string `json:"understanding"`
	Approach      string `json:"approach"`
}

// TestInferenceEvent carries synthesized test cases.
type TestInferenceEvent struct {
	TestCases []TestCase `json:"test_cases"`
	Count     int        `json:"count"`
}

// TestInferenceSkippedEvent records that caller-supplied tests were used
// verbatim and how many there were.
type TestInferenceSkippedEvent struct {
	Message   string `json:"message"`
	TestCount int    `json:"test_count"`
}

// CodeGeneratedEvent carries one candidate program.
type CodeGeneratedEvent struct {
	Code      string `json:"code"`
	Version   int    `json:"version"`
	Iteration int    `json:"iteration"`
}

// ExecutionEvent carries the sandbox outcome for the current candidate.
type ExecutionEvent struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output,omitempty"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"execution_time"`
	TimedOut      bool    `json:"timed_out"`
}

// ValidationEvent carries per-test verdicts and aggregate counts.
type ValidationEvent struct {
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Total   int          `json:"total"`
	Results []TestResult `json:"results"`
}

// ErrorFixingEvent carries the repair analysis feeding the next iteration.
type ErrorFixingEvent struct {
	Analysis  string `json:"analysis"`
	Iteration int    `json:"iteration"`
}

// CostUpdateEvent carries the accounting snapshot after a gateway-backed
// step.
type CostUpdateEvent struct {
	TotalTokens      int           `json:"total_tokens"`
	EstimatedCost    float64       `json:"estimated_cost"`
	PerStepBreakdown []LedgerEntry `json:"per_step_breakdown"`
}

// CompleteEvent terminates a stream with the run's final disposition.
type CompleteEvent struct {
	Success     bool        `json:"success"`
	Reason      string      `json:"reason"`
	FinalCode   string      `json:"final_code,omitempty"`
	Iterations  int         `json:"iterations"`
	PassedTests int         `json:"passed_tests"`
	TotalTests  int         `json:"total_tests"`
	TokenUsage  *CostLedger `json:"token_usage,omitempty"`
}

// ErrorEvent terminates a stream on a fatal condition.
type ErrorEvent struct {
	Error string `json:"error"`
}
