package workflow

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spockctl/internal/dispatch"
	"spockctl/internal/endpoint"
	"spockctl/internal/runlog"
)

func testWorkflow(steps ...Step) *Workflow {
	for i := range steps {
		steps[i].Seq = i + 1
	}
	return &Workflow{Operation: "test", Steps: steps}
}

func setupExecutor(rec *dispatch.Recorder) (*Executor, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	e := NewExecutor(rec, runlog.NewConsoleSink(buf, runlog.VerbositySteps))
	e.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e, buf
}

func TestExecutor_SubstitutesCapturedValues(t *testing.T) {
	ep := endpoint.Endpoint{Name: "n1", DSN: "host=h dbname=d"}
	rec := &dispatch.Recorder{
		Results: []dispatch.Result{
			{Stdout: " sync_event \n-------------\n 0/1A2B3C4D\n(1 row)\n"},
		},
	}
	e, _ := setupExecutor(rec)

	w := testWorkflow(
		Step{Description: "trigger", Endpoint: ep, Command: "SELECT spock.sync_event();"},
		Step{Description: "wait", Endpoint: ep, Command: "CALL spock.wait_for_sync_event(true, 'n1', $1::pg_lsn, 1200000);"},
	)

	results, err := e.Run(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, "'0/1A2B3C4D'", results[1].Value)
	require.Len(t, rec.Calls, 2)
	assert.Equal(t, "CALL spock.wait_for_sync_event(true, 'n1', '0/1A2B3C4D'::pg_lsn, 1200000);", rec.Calls[1].Command)
}

func TestExecutor_MultiDigitReferences(t *testing.T) {
	// $12 must never be corrupted by the substitution for $1.
	results := map[int]StepResult{
		1:  {Value: "abc"},
		12: {Value: "xyz"},
	}
	got := resolve("SELECT $1, $12;", results)
	assert.Equal(t, "SELECT abc, xyz;", got)
}

func TestExecutor_FatalFailureAborts(t *testing.T) {
	ep := endpoint.Endpoint{Name: "n1"}
	rec := &dispatch.Recorder{
		Results: []dispatch.Result{
			{ExitCode: 0, Stdout: "ok"},
			{ExitCode: 1, Stderr: "ERROR: relation does not exist"},
		},
	}
	e, buf := setupExecutor(rec)

	w := testWorkflow(
		Step{Description: "first", Endpoint: ep, Command: "SELECT 1;"},
		Step{Description: "second", Endpoint: ep, Command: "SELECT 2;"},
		Step{Description: "never runs", Endpoint: ep, Command: "SELECT 3;"},
	)

	_, err := e.Run(context.Background(), w)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, 2, abort.Seq)
	assert.Equal(t, "second", abort.Description)

	// Step 3 must never be dispatched.
	assert.Len(t, rec.Calls, 2)
	assert.Contains(t, buf.String(), "[FAILED]")
}

func TestExecutor_IgnorableFailureContinues(t *testing.T) {
	ep := endpoint.Endpoint{Name: "n1"}
	rec := &dispatch.Recorder{
		Results: []dispatch.Result{
			{ExitCode: 1, Stderr: "ERROR: subscription not found"},
			{ExitCode: 0, Stdout: "done"},
		},
	}
	e, buf := setupExecutor(rec)

	w := testWorkflow(
		Step{Description: "best effort", Endpoint: ep, Command: "SELECT spock.sub_drop('x');", Ignorable: true},
		Step{Description: "continues", Endpoint: ep, Command: "SELECT $1 1;"},
	)

	results, err := e.Run(context.Background(), w)
	require.NoError(t, err)

	assert.False(t, results[1].OK)
	assert.Equal(t, "", results[1].Value)
	assert.Len(t, rec.Calls, 2)
	// The ignored step's empty value substitutes as an empty string.
	assert.Equal(t, "SELECT  1;", rec.Calls[1].Command)
	assert.Contains(t, buf.String(), "[IGNORED]")
	assert.Contains(t, buf.String(), "[OK]")
}

func TestExecutor_ValidatesBeforeDispatch(t *testing.T) {
	rec := &dispatch.Recorder{}
	e, _ := setupExecutor(rec)

	w := testWorkflow(Step{Description: "bad", Command: "SELECT $5;"})
	_, err := e.Run(context.Background(), w)

	require.Error(t, err)
	assert.Empty(t, rec.Calls, "invalid workflow must not dispatch anything")
}

func TestExecutor_ContextCancellation(t *testing.T) {
	rec := &dispatch.Recorder{}
	e, _ := setupExecutor(rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := testWorkflow(Step{Description: "never runs", Command: "SELECT 1;"})
	_, err := e.Run(ctx, w)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Calls)
}

func TestExecutor_LogLinePerStep(t *testing.T) {
	ep := endpoint.Endpoint{Name: "n2"}
	rec := &dispatch.Recorder{}
	e, buf := setupExecutor(rec)

	w := testWorkflow(Step{Description: "Create spock node n2", Endpoint: ep, Command: "SELECT 1;"})
	_, err := e.Run(context.Background(), w)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[2025-06-01 12:00:00]")
	assert.Contains(t, out, "[Step - 01]")
	assert.Contains(t, out, "[n2]")
	assert.Contains(t, out, "Create spock node n2")
}
