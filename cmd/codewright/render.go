package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/codewright-io/codewright/pkg/api"
)

// renderer implements transport.EventWriter against a terminal. In JSON
// mode every event is printed as one JSON line; otherwise events are
// rendered as human-readable progress.
type renderer struct {
	out       io.Writer
	json      bool
	succeeded bool
}

func newRenderer(out io.Writer, jsonMode bool) *renderer {
	return &renderer{out: out, json: jsonMode}
}

func (r *renderer) WriteEvent(_ context.Context, event api.Event) error {
	if event.Type == api.EventComplete && event.Complete != nil {
		r.succeeded = event.Complete.Success
	}

	if r.json {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, string(data))
		return nil
	}

	r.render(event)
	return nil
}

func (r *renderer) Flush() error {
	return nil
}

func (r *renderer) render(event api.Event) {
	switch event.Type {
	case api.EventRunCreated:
		fmt.Fprintf(r.out, "run %s\n", event.RunCreated.RunID)

	case api.EventPlanning:
		fmt.Fprintf(r.out, "\n== Plan ==\n%s\n\n%s\n", event.Planning.Understanding, event.Planning.Approach)

	case api.EventTestInference:
		fmt.Fprintf(r.out, "\n== Tests (%d inferred) ==\n", event.TestInference.Count)
		for i, tc := range event.TestInference.TestCases {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, tc.Description)
		}

	case api.EventTestInferenceSkipped:
		fmt.Fprintf(r.out, "\n== Tests ==\n%s (%d)\n", event.TestInferenceSkipped.Message, event.TestInferenceSkipped.TestCount)

	case api.EventCodeGenerated:
		fmt.Fprintf(r.out, "\n== Code (iteration %d, version %d) ==\n%s\n",
			event.CodeGenerated.Iteration, event.CodeGenerated.Version, event.CodeGenerated.Code)

	case api.EventExecution:
		e := event.Execution
		if e.TimedOut {
			fmt.Fprintf(r.out, "execution: timed out after %.1fs\n", e.ExecutionTime)
		} else if e.Success {
			fmt.Fprintf(r.out, "execution: ok (%.2fs)\n", e.ExecutionTime)
		} else {
			fmt.Fprintf(r.out, "execution: failed\n%s\n", e.Error)
		}

	case api.EventValidation:
		v := event.Validation
		fmt.Fprintf(r.out, "validation: %d/%d passed\n", v.Passed, v.Total)
		for _, res := range v.Results {
			if res.Passed {
				continue
			}
			fmt.Fprintf(r.out, "  FAIL %s\n", res.Description)
			if res.Error != "" {
				fmt.Fprintf(r.out, "       %s\n", res.Error)
			}
		}

	case api.EventErrorFixing:
		fmt.Fprintf(r.out, "\n== Repair (iteration %d) ==\n%s\n", event.ErrorFixing.Iteration, event.ErrorFixing.Analysis)

	case api.EventCostUpdate:
		c := event.CostUpdate
		fmt.Fprintf(r.out, "tokens: %d ($%.4f)\n", c.TotalTokens, c.EstimatedCost)

	case api.EventComplete:
		c := event.Complete
		fmt.Fprintf(r.out, "\n== Result ==\n")
		if c.Success {
			fmt.Fprintf(r.out, "success after %d iteration(s), %d/%d tests passed\n\n%s\n",
				c.Iterations, c.PassedTests, c.TotalTests, c.FinalCode)
		} else {
			fmt.Fprintf(r.out, "failed: %s (%d iteration(s), %d/%d tests passed)\n",
				c.Reason, c.Iterations, c.PassedTests, c.TotalTests)
		}
		if c.TokenUsage != nil {
			fmt.Fprintf(r.out, "\ntotal: %d tokens, $%.4f\n", c.TokenUsage.TotalTokens, c.TokenUsage.TotalCost)
		}

	case api.EventError:
		fmt.Fprintf(r.out, "\nerror: %s\n", event.Error.Error)
	}
}
