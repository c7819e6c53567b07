package workflow

import (
	"context"
	"fmt"
	"time"

	"spockctl/internal/dispatch"
	"spockctl/internal/runlog"
)

// AbortError is returned when a non-ignorable step fails. It names the
// failing step; steps after it were never dispatched. No rollback is
// attempted; teardown is a separate, explicit reverse workflow.
type AbortError struct {
	Seq         int
	Description string
	Stderr      string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("step %d failed: %s", e.Seq, e.Description)
}

// Executor runs a workflow's steps in strict sequence, substituting prior
// captured values into each command before dispatch.
//
// Execution is single-threaded: a step's dispatch returns before the next
// step's command is even resolved, because resolution may depend on the
// previous result. The results map has a single writer (the executor) and
// each entry is written exactly once, immediately after its step completes.
type Executor struct {
	dispatcher dispatch.Dispatcher
	sink       runlog.Sink

	// now is stubbed in tests.
	now func() time.Time
}

// NewExecutor returns an executor dispatching through d and reporting each
// step to sink.
func NewExecutor(d dispatch.Dispatcher, sink runlog.Sink) *Executor {
	return &Executor{dispatcher: d, sink: sink, now: time.Now}
}

// Run validates w and executes its steps in order, returning the per-step
// results keyed by sequence position.
//
// Outcome handling per step: success records the captured value and
// continues; an ignorable failure records an empty value, logs IGNORED and
// continues; a fatal failure logs FAILED and returns an [*AbortError]
// without dispatching any further step. Context cancellation is checked
// between steps.
func (e *Executor) Run(ctx context.Context, w *Workflow) (map[int]StepResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	results := make(map[int]StepResult, len(w.Steps))

	for _, step := range w.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		command := resolve(step.Command, results)

		res, err := e.dispatcher.Dispatch(ctx, command, step.Endpoint)
		if err != nil {
			return results, err
		}

		rec := runlog.Record{
			Time:        e.now(),
			Seq:         step.Seq,
			Endpoint:    step.Endpoint.Name,
			Description: step.Description,
			Command:     command,
			Stdout:      res.Stdout,
			Stderr:      res.Stderr,
		}

		switch {
		case res.OK():
			results[step.Seq] = StepResult{
				OK:     true,
				Stdout: res.Stdout,
				Stderr: res.Stderr,
				Value:  capture(command, res.Stdout),
			}
			rec.Outcome = runlog.OutcomeOK

		case step.Ignorable:
			results[step.Seq] = StepResult{Stdout: res.Stdout, Stderr: res.Stderr}
			rec.Outcome = runlog.OutcomeIgnored

		default:
			results[step.Seq] = StepResult{Stdout: res.Stdout, Stderr: res.Stderr}
			rec.Outcome = runlog.OutcomeFailed
			e.sink.Step(rec)
			return results, &AbortError{
				Seq:         step.Seq,
				Description: step.Description,
				Stderr:      res.Stderr,
			}
		}

		e.sink.Step(rec)
	}

	return results, nil
}
