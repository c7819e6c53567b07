// Package workflow builds and executes ordered multi-node workflows.
//
// A [Workflow] is an ordered list of [Step] values produced by one of the
// builder functions ([CrossWireAll], [UncrossWireAll], [AddNode],
// [RemoveNode]). Construction is pure: no connection is opened and no
// command runs until [Executor.Run].
//
// A step's command may reference the captured output of an earlier step
// with a $N placeholder, where N is the earlier step's sequence position.
// References may only point backwards; [Workflow.Validate] enforces this
// before execution.
package workflow

import (
	"fmt"
	"regexp"
	"strconv"

	"spockctl/internal/endpoint"
)

// Step is one atomic unit of work: a command dispatched to one endpoint.
type Step struct {
	// Seq is the 1-based sequence position, assigned at build time. It is
	// used both for logging and as the target of $N placeholders.
	Seq int

	// Description is the human-readable step summary shown in the run log.
	Description string

	// Endpoint is the connection the command runs against.
	Endpoint endpoint.Endpoint

	// Command is the command body. It may contain $N placeholders
	// referencing the captured value of steps with Seq < this step's Seq.
	Command string

	// Ignorable marks the step best-effort: a failure is recorded and
	// logged as IGNORED instead of aborting the run.
	Ignorable bool
}

// StepResult captures the outcome of one executed step.
type StepResult struct {
	OK     bool
	Stdout string
	Stderr string

	// Value is the captured value available to later steps through $N
	// placeholders. Empty for failed-but-ignored steps.
	Value string
}

// Workflow is an ordered step sequence realizing one cluster operation.
type Workflow struct {
	// Operation names the workflow kind, e.g. "add-node".
	Operation string
	Steps     []Step
}

// placeholderRe matches a $ followed by a maximal run of digits. Matching
// whole digit runs means a reference to step 12 can never be partially
// consumed by a substitution for step 1.
var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// References returns the sequence positions the step's command refers to.
func (s Step) References() []int {
	var refs []int
	for _, m := range placeholderRe.FindAllStringSubmatch(s.Command, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		refs = append(refs, n)
	}
	return refs
}

// Validate checks the structural invariants of a built workflow: sequence
// positions form a contiguous 1-based range, and every placeholder refers
// to a strictly smaller position.
func (w *Workflow) Validate() error {
	for i, s := range w.Steps {
		if s.Seq != i+1 {
			return fmt.Errorf("workflow %s: step %d has sequence %d", w.Operation, i+1, s.Seq)
		}
		for _, ref := range s.References() {
			if ref < 1 || ref >= s.Seq {
				return fmt.Errorf("workflow %s: step %d (%s) references step %d",
					w.Operation, s.Seq, s.Description, ref)
			}
		}
	}
	return nil
}

// resolve substitutes every $N placeholder in command with the captured
// value from results. Placeholders are matched as whole digit runs, so
// substitution order cannot corrupt multi-digit references.
func resolve(command string, results map[int]StepResult) string {
	return placeholderRe.ReplaceAllStringFunc(command, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil {
			return m
		}
		res, ok := results[n]
		if !ok {
			return m
		}
		return res.Value
	})
}
