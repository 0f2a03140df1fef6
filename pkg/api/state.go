package api

import "fmt"

// RunState is the orchestrator's position in the generate-execute-validate
// cycle.
type RunState string

const (
	StatePlanning        RunState = "planning"
	StateTestAcquisition RunState = "test_acquisition"
	StateGenerating      RunState = "generating"
	StateExecuting       RunState = "executing"
	StateValidating      RunState = "validating"
	StateRepairing       RunState = "repairing"
	StateComplete        RunState = "complete"
	StateFailed          RunState = "failed"
	StateCancelled       RunState = "cancelled"
)

// runTransitions is the allowed transition table. Cancelled is reachable
// from every non-terminal state and is handled separately. Terminal states
// (complete, failed, cancelled) have no outgoing transitions.
var runTransitions = map[RunState][]RunState{
	"":                   {StatePlanning},
	StatePlanning:        {StateTestAcquisition, StateFailed},
	StateTestAcquisition: {StateGenerating, StateFailed},
	StateGenerating:      {StateExecuting, StateRepairing, StateFailed},
	StateExecuting:       {StateValidating, StateFailed},
	StateValidating:      {StateComplete, StateRepairing, StateFailed},
	StateRepairing:       {StateGenerating, StateFailed},
	StateComplete:        {},
	StateFailed:          {},
	StateCancelled:       {},
}

// Terminal reports whether s allows no further transitions.
func (s RunState) Terminal() bool {
	switch s {
	case StateComplete, StateFailed, StateCancelled:
		return true
	}
	return false
}

// ValidateRunTransition checks whether moving from one run state to another
// is legal. The empty "from" state is the initial state before planning.
// Cancellation is legal from any non-terminal state.
func ValidateRunTransition(from, to RunState) error {
	if to == StateCancelled {
		if from.Terminal() {
			return fmt.Errorf("invalid run transition from %s to %s", from, to)
		}
		return nil
	}

	allowed, ok := runTransitions[from]
	if !ok {
		return fmt.Errorf("invalid run transition from %s to %s", from, to)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("invalid run transition from %s to %s", from, to)
}
