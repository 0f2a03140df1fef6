package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codewright-io/codewright/pkg/api"
	"github.com/codewright-io/codewright/pkg/debug"
	"github.com/codewright-io/codewright/pkg/gateway"
	"github.com/codewright-io/codewright/pkg/ledger"
	"github.com/codewright-io/codewright/pkg/observability"
	"github.com/codewright-io/codewright/pkg/sandbox"
	"github.com/codewright-io/codewright/pkg/transport"
)

// Completion reasons reported in the terminal complete event.
const (
	ReasonAllTestsPassed       = "all_tests_passed"
	ReasonMaxIterationsReached = "max_iterations_reached"
	ReasonCancelled            = "cancelled"
)

// execution tracks one run in flight: the record being built, the event
// sequence, the cost ledger, and the orchestrator's position in the state
// machine.
type execution struct {
	engine *Engine
	writer transport.EventWriter

	run    *api.Run
	plan   *gateway.Plan
	tests  []api.TestCase
	ledger *ledger.Ledger
	state  api.RunState
	seq    int

	// lastValidation feeds the passed/total counts of the terminal event
	// when the run exhausts its iterations.
	lastValidation *api.ValidationResult
}

// StartRun validates the request, then owns the run until it reaches a
// terminal event. All orchestration errors surface as error events on the
// stream; only request validation failures return before any event is
// written.
func (e *Engine) StartRun(ctx context.Context, req *api.CreateRunRequest, w transport.EventWriter) error {
	if apiErr := api.ValidateCreateRunRequest(req, e.cfg.validationConfig()); apiErr != nil {
		return apiErr
	}

	id := req.RunID
	if id == "" {
		id = api.NewRunID()
	}

	x := &execution{
		engine: e,
		writer: w,
		run: &api.Run{
			ID:            id,
			Task:          req.Task,
			MaxIterations: req.EffectiveMaxIterations(),
			CreatedAt:     time.Now().UTC(),
		},
		ledger: ledger.New(),
	}

	e.log.Info("run started", "run_id", id, "max_iterations", x.run.MaxIterations)

	if err := x.emit(ctx, api.Event{
		Type: api.EventRunCreated,
		RunCreated: &api.RunCreatedEvent{
			RunID:     x.run.ID,
			Task:      x.run.Task,
			CreatedAt: x.run.CreatedAt,
		},
	}); err != nil {
		return err
	}
	x.persistNew(ctx)

	return x.orchestrate(ctx, req)
}

// orchestrate walks the run through planning, test acquisition, and the
// iteration loop. Every exit path emits a terminal event.
func (x *execution) orchestrate(ctx context.Context, req *api.CreateRunRequest) error {
	// Planning.
	if err := x.advance(api.StatePlanning); err != nil {
		return x.finishFatal(ctx, err.Error())
	}
	plan, usage, err := x.callPlan(ctx)
	x.ledger.Record("planning", usage)
	if ctx.Err() != nil {
		return x.finishCancelled(ctx)
	}
	if err != nil {
		return x.finishFatal(ctx, fmt.Sprintf("planning failed: %v", err))
	}
	x.plan = plan
	if err := x.emit(ctx, api.Event{
		Type:     api.EventPlanning,
		Planning: &api.PlanningEvent{Understanding: plan.Understanding, Approach: plan.Approach},
	}); err != nil {
		return err
	}
	if err := x.emitCostUpdate(ctx); err != nil {
		return err
	}

	// Test acquisition.
	if err := x.advance(api.StateTestAcquisition); err != nil {
		return x.finishFatal(ctx, err.Error())
	}
	if len(req.Tests) > 0 {
		x.tests = req.Tests
		if err := x.emit(ctx, api.Event{
			Type: api.EventTestInferenceSkipped,
			TestInferenceSkipped: &api.TestInferenceSkippedEvent{
				Message:   "using caller-supplied test cases",
				TestCount: len(req.Tests),
			},
		}); err != nil {
			return err
		}
	} else {
		tests, usage, err := x.callInferTests(ctx)
		x.ledger.Record("test_inference", usage)
		if ctx.Err() != nil {
			return x.finishCancelled(ctx)
		}
		if err != nil {
			return x.finishFatal(ctx, fmt.Sprintf("test inference failed: %v", err))
		}
		x.tests = tests
		if err := x.emit(ctx, api.Event{
			Type:          api.EventTestInference,
			TestInference: &api.TestInferenceEvent{TestCases: tests, Count: len(tests)},
		}); err != nil {
			return err
		}
		if err := x.emitCostUpdate(ctx); err != nil {
			return err
		}
	}
	if len(x.tests) == 0 {
		return x.finishFatal(ctx, "no test cases available: inference produced none")
	}

	return x.iterate(ctx)
}

// iterate runs the generate-execute-validate-repair loop until the tests
// pass, the iteration bound is hit, or something fatal happens.
func (x *execution) iterate(ctx context.Context) error {
	analysis := ""

	for i := 1; i <= x.run.MaxIterations; i++ {
		if ctx.Err() != nil {
			return x.finishCancelled(ctx)
		}
		if err := x.advance(api.StateGenerating); err != nil {
			return x.finishFatal(ctx, err.Error())
		}

		iter := api.Iteration{Index: i}

		code, usage, genErr := x.callGenerate(ctx, analysis)
		x.ledger.Record(ledger.GenerateStep(i), usage)
		if ctx.Err() != nil {
			x.run.Iterations = append(x.run.Iterations, iter)
			return x.finishCancelled(ctx)
		}

		var flagged []string
		if genErr == nil {
			iter.Code = &api.CodeVersion{Version: i, Code: code, Iteration: i}
			if err := x.emit(ctx, api.Event{
				Type:          api.EventCodeGenerated,
				CodeGenerated: &api.CodeGeneratedEvent{Code: code, Version: i, Iteration: i},
			}); err != nil {
				return err
			}
			if err := x.emitCostUpdate(ctx); err != nil {
				return err
			}
			flagged = x.engine.policy.Inspect(code, x.tests)
			if len(flagged) > 0 {
				x.engine.log.Warn("generation flagged as suspected hardcoding",
					"run_id", x.run.ID, "iteration", i, "reasons", flagged)
			}
		}

		switch {
		case genErr != nil:
			// Nothing to execute. The failure text seeds the next attempt.
			x.engine.log.Warn("generation failed", "run_id", x.run.ID, "iteration", i, "error", genErr)
			x.run.Iterations = append(x.run.Iterations, iter)
			if err := x.emitCostUpdate(ctx); err != nil {
				return err
			}
			if i >= x.run.MaxIterations {
				return x.finishExhausted(ctx)
			}
			if err := x.advance(api.StateRepairing); err != nil {
				return x.finishFatal(ctx, err.Error())
			}
			analysis = fmt.Sprintf("The previous generation attempt failed before producing usable code: %v", genErr)
			x.persistProgress(ctx)

		case len(flagged) > 0:
			// Flagged code never runs, even if it would pass.
			x.run.Iterations = append(x.run.Iterations, iter)
			done, a, err := x.repair(ctx, i, &gateway.FailureContext{
				Task:      x.run.Task,
				Code:      code,
				Iteration: i,
				Flagged:   flagged,
			})
			if err != nil || done {
				return err
			}
			analysis = a
			x.run.Iterations[len(x.run.Iterations)-1].Analysis = a
			x.persistProgress(ctx)

		default:
			done, a, err := x.runCandidate(ctx, i, &iter, code)
			if err != nil || done {
				return err
			}
			analysis = a
		}
	}

	return x.finishExhausted(ctx)
}

// runCandidate executes and validates one generated program. It returns
// done=true when the run reached a terminal event (the error, if any, is
// the writer's).
func (x *execution) runCandidate(ctx context.Context, i int, iter *api.Iteration, code string) (done bool, analysis string, err error) {
	if err := x.advance(api.StateExecuting); err != nil {
		return true, "", x.finishFatal(ctx, err.Error())
	}

	debug.Log("engine", "executing candidate", "run_id", x.run.ID, "iteration", i)
	start := time.Now()
	execResult, execErr := x.engine.runner.Execute(ctx, x.run.ID, code, x.engine.cfg.StdinInput)
	observability.SandboxDuration.Observe(time.Since(start).Seconds())

	if execErr != nil {
		observability.SandboxExecutionsTotal.WithLabelValues("spawn_error").Inc()
		if errors.Is(execErr, sandbox.ErrSpawn) {
			x.run.Iterations = append(x.run.Iterations, *iter)
			return true, "", x.finishFatal(ctx, fmt.Sprintf("sandbox failure: %v", execErr))
		}
		x.run.Iterations = append(x.run.Iterations, *iter)
		return true, "", x.finishFatal(ctx, fmt.Sprintf("execution failed: %v", execErr))
	}
	if ctx.Err() != nil {
		x.run.Iterations = append(x.run.Iterations, *iter)
		return true, "", x.finishCancelled(ctx)
	}

	observability.SandboxExecutionsTotal.WithLabelValues(sandboxResultLabel(execResult)).Inc()
	iter.Execution = execResult
	if err := x.emit(ctx, api.Event{
		Type: api.EventExecution,
		Execution: &api.ExecutionEvent{
			Success:       execResult.Success,
			Output:        execResult.Output,
			Error:         execResult.Error,
			ExecutionTime: execResult.Seconds,
			TimedOut:      execResult.TimedOut,
		},
	}); err != nil {
		return true, "", err
	}

	if err := x.advance(api.StateValidating); err != nil {
		return true, "", x.finishFatal(ctx, err.Error())
	}
	valResult, valErr := x.engine.validator.Validate(ctx, x.run.ID, code, x.tests, execResult)
	if ctx.Err() != nil {
		x.run.Iterations = append(x.run.Iterations, *iter)
		return true, "", x.finishCancelled(ctx)
	}
	if valErr != nil {
		x.run.Iterations = append(x.run.Iterations, *iter)
		return true, "", x.finishFatal(ctx, fmt.Sprintf("validation failed: %v", valErr))
	}

	iter.Validation = valResult
	x.lastValidation = valResult
	if err := x.emit(ctx, api.Event{
		Type: api.EventValidation,
		Validation: &api.ValidationEvent{
			Passed:  valResult.Passed,
			Failed:  valResult.Failed,
			Total:   valResult.Total,
			Results: valResult.Results,
		},
	}); err != nil {
		return true, "", err
	}

	if valResult.AllPassed() {
		x.run.Iterations = append(x.run.Iterations, *iter)
		x.run.FinalCode = code
		return true, "", x.finishSuccess(ctx)
	}

	fc := &gateway.FailureContext{
		Task:       x.run.Task,
		Code:       code,
		Iteration:  i,
		Execution:  execResult,
		Validation: valResult,
	}
	x.run.Iterations = append(x.run.Iterations, *iter)
	done, analysis, err = x.repair(ctx, i, fc)
	if done || err != nil {
		return done, "", err
	}

	// Record the analysis on the iteration that failed.
	x.run.Iterations[len(x.run.Iterations)-1].Analysis = analysis
	x.persistProgress(ctx)
	return false, analysis, nil
}

// repair produces the analysis for the next generation attempt. After the
// final iteration there is nothing left to repair, so the run terminates
// exhausted without an analysis call.
func (x *execution) repair(ctx context.Context, i int, fc *gateway.FailureContext) (done bool, analysis string, err error) {
	if i >= x.run.MaxIterations {
		return true, "", x.finishExhausted(ctx)
	}

	if err := x.advance(api.StateRepairing); err != nil {
		return true, "", x.finishFatal(ctx, err.Error())
	}

	result, usage, repairErr := x.callAnalyze(ctx, fc)
	x.ledger.Record(ledger.RepairStep(i), usage)
	if ctx.Err() != nil {
		return true, "", x.finishCancelled(ctx)
	}
	if repairErr != nil {
		// Tokens may have been spent; the attempt continues without an
		// analysis rather than aborting the run.
		x.engine.log.Warn("repair analysis failed", "run_id", x.run.ID, "iteration", i, "error", repairErr)
		return false, "", x.emitCostUpdate(ctx)
	}

	if err := x.emit(ctx, api.Event{
		Type:        api.EventErrorFixing,
		ErrorFixing: &api.ErrorFixingEvent{Analysis: result.Diagnosis, Iteration: i},
	}); err != nil {
		return true, "", err
	}
	if err := x.emitCostUpdate(ctx); err != nil {
		return true, "", err
	}
	return false, result.Diagnosis, nil
}

// ---------------------------------------------------------------------------
// Gateway calls with metrics
// ---------------------------------------------------------------------------

func (x *execution) callPlan(ctx context.Context) (*gateway.Plan, api.Usage, error) {
	start := time.Now()
	plan, usage, err := x.engine.gateway.Plan(ctx, x.run.Task)
	x.observeGateway("plan", start, usage, err)
	return plan, usage, err
}

func (x *execution) callInferTests(ctx context.Context) ([]api.TestCase, api.Usage, error) {
	start := time.Now()
	tests, usage, err := x.engine.gateway.InferTests(ctx, x.run.Task)
	x.observeGateway("infer_tests", start, usage, err)
	return tests, usage, err
}

func (x *execution) callGenerate(ctx context.Context, analysis string) (string, api.Usage, error) {
	start := time.Now()
	code, usage, err := x.engine.gateway.GenerateCode(ctx, x.run.Task, x.plan, x.tests, analysis)
	x.observeGateway("generate", start, usage, err)
	return code, usage, err
}

func (x *execution) callAnalyze(ctx context.Context, fc *gateway.FailureContext) (*gateway.Analysis, api.Usage, error) {
	start := time.Now()
	result, usage, err := x.engine.gateway.AnalyzeFailure(ctx, fc)
	x.observeGateway("analyze", start, usage, err)
	return result, usage, err
}

func (x *execution) observeGateway(step string, start time.Time, usage api.Usage, err error) {
	name := x.engine.gateway.Name()
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.GatewayRequestsTotal.WithLabelValues(name, step, status).Inc()
	observability.GatewayLatency.WithLabelValues(name, step).Observe(time.Since(start).Seconds())
	observability.GatewayTokensTotal.WithLabelValues(name, "input").Add(float64(usage.InputTokens))
	observability.GatewayTokensTotal.WithLabelValues(name, "output").Add(float64(usage.OutputTokens))
}

// ---------------------------------------------------------------------------
// Terminal paths
// ---------------------------------------------------------------------------

func (x *execution) finishSuccess(ctx context.Context) error {
	x.setOutcome(api.OutcomeSuccess, api.StateComplete)
	ev := api.Event{
		Type: api.EventComplete,
		Complete: &api.CompleteEvent{
			Success:     true,
			Reason:      ReasonAllTestsPassed,
			FinalCode:   x.run.FinalCode,
			Iterations:  len(x.run.Iterations),
			PassedTests: x.lastValidation.Passed,
			TotalTests:  x.lastValidation.Total,
			TokenUsage:  x.ledger.Snapshot(),
		},
	}
	x.engine.log.Info("run complete", "run_id", x.run.ID,
		"iterations", len(x.run.Iterations), "total_tokens", x.ledger.TotalTokens())
	err := x.emit(ctx, ev)
	x.persistProgress(context.Background())
	return err
}

func (x *execution) finishExhausted(ctx context.Context) error {
	x.setOutcome(api.OutcomeExhausted, api.StateFailed)
	var passed, total int
	if x.lastValidation != nil {
		passed, total = x.lastValidation.Passed, x.lastValidation.Total
	}
	ev := api.Event{
		Type: api.EventComplete,
		Complete: &api.CompleteEvent{
			Success:     false,
			Reason:      ReasonMaxIterationsReached,
			Iterations:  len(x.run.Iterations),
			PassedTests: passed,
			TotalTests:  total,
			TokenUsage:  x.ledger.Snapshot(),
		},
	}
	x.engine.log.Info("run exhausted", "run_id", x.run.ID, "iterations", len(x.run.Iterations))
	err := x.emit(ctx, ev)
	x.persistProgress(context.Background())
	return err
}

func (x *execution) finishCancelled(ctx context.Context) error {
	x.setOutcome(api.OutcomeCancelled, api.StateCancelled)
	ev := api.Event{
		Type: api.EventComplete,
		Complete: &api.CompleteEvent{
			Success:    false,
			Reason:     ReasonCancelled,
			Iterations: len(x.run.Iterations),
			TokenUsage: x.ledger.Snapshot(),
		},
	}
	x.engine.log.Info("run cancelled", "run_id", x.run.ID, "iterations", len(x.run.Iterations))
	// The request context is gone; write the terminal event with a fresh one.
	err := x.emit(context.WithoutCancel(ctx), ev)
	x.persistProgress(context.Background())
	return err
}

func (x *execution) finishFatal(ctx context.Context, msg string) error {
	x.setOutcome(api.OutcomeFatal, api.StateFailed)
	x.engine.log.Error("run failed", "run_id", x.run.ID, "error", msg)
	err := x.emit(ctx, api.Event{
		Type:  api.EventError,
		Error: &api.ErrorEvent{Error: msg},
	})
	x.persistProgress(context.Background())
	return err
}

// setOutcome stamps the terminal outcome, totals, and completion time on
// the run record and records run metrics. The caller persists after the
// terminal event has been emitted so the stored event list is complete.
func (x *execution) setOutcome(outcome api.RunOutcome, state api.RunState) {
	x.state = state
	now := time.Now().UTC()
	x.run.Outcome = outcome
	x.run.CompletedAt = &now
	x.run.TotalTokens = x.ledger.TotalTokens()
	x.run.TotalCost = x.ledger.TotalCost()

	observability.RunsTotal.WithLabelValues(string(outcome)).Inc()
	observability.RunIterations.Observe(float64(len(x.run.Iterations)))
}

// ---------------------------------------------------------------------------
// Event and persistence plumbing
// ---------------------------------------------------------------------------

// emit stamps sequence, run ID, and timestamp on the event, appends its
// persisted form to the run record, and writes it to the stream. The
// record keeps the event even when the stream write fails; a consumer
// that lost the stream can replay from storage.
func (x *execution) emit(ctx context.Context, ev api.Event) error {
	ev.Sequence = x.nextSeq()
	ev.RunID = x.run.ID
	ev.Time = time.Now().UTC()
	x.run.Events = append(x.run.Events, ev.Stored())
	return x.writer.WriteEvent(ctx, ev)
}

func (x *execution) nextSeq() int {
	n := x.seq
	x.seq++
	return n
}

func (x *execution) emitCostUpdate(ctx context.Context) error {
	snap := x.ledger.Snapshot()
	return x.emit(ctx, api.Event{
		Type: api.EventCostUpdate,
		CostUpdate: &api.CostUpdateEvent{
			TotalTokens:      snap.TotalTokens,
			EstimatedCost:    snap.TotalCost,
			PerStepBreakdown: snap.Entries,
		},
	})
}

// advance moves the state machine, guarding against illegal transitions.
func (x *execution) advance(to api.RunState) error {
	if err := api.ValidateRunTransition(x.state, to); err != nil {
		return err
	}
	x.state = to
	return nil
}

// persistNew saves the initial run record. Without a store the run exists
// only as its event stream.
func (x *execution) persistNew(ctx context.Context) {
	if x.engine.store == nil {
		return
	}
	if err := x.engine.store.SaveRun(ctx, x.run); err != nil {
		x.engine.log.Warn("failed to persist run", "run_id", x.run.ID, "error", err)
	}
}

// persistProgress best-effort updates the stored run record.
func (x *execution) persistProgress(ctx context.Context) {
	if x.engine.store == nil {
		return
	}
	if err := x.engine.store.UpdateRun(context.WithoutCancel(ctx), x.run); err != nil {
		x.engine.log.Warn("failed to update run", "run_id", x.run.ID, "error", err)
	}
}

func sandboxResultLabel(result *api.ExecutionResult) string {
	switch {
	case result.TimedOut:
		return "timeout"
	case result.Success:
		return "ok"
	default:
		return "failed"
	}
}
