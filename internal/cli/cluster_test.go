package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spockctl/internal/config"
	"spockctl/internal/dispatch"
	"spockctl/internal/endpoint"
	"spockctl/internal/output"
	"spockctl/internal/pgnode"
)

// newTestApp wires an App around recorded dependencies. The cleanup field
// is pre-set so initialize skips touching the process-wide logger.
func newTestApp(t *testing.T) (*App, *dispatch.Recorder, *bytes.Buffer) {
	t.Helper()
	rec := &dispatch.Recorder{}
	buf := &bytes.Buffer{}
	app := &App{
		Config:     config.DefaultConfig(),
		Printer:    output.NewPrinterWithWriter(buf),
		Runner:     &pgnode.RunnerRecorder{},
		Dispatcher: rec,
		Discover: func(context.Context, string) ([]endpoint.Endpoint, error) {
			t.Fatal("unexpected catalog discovery")
			return nil, nil
		},
		cleanup: func() {},
	}
	return app, rec, buf
}

func runCommand(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(app)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCrossWireDispatchesFullMesh(t *testing.T) {
	app, rec, buf := newTestApp(t)

	_, err := runCommand(t, app, "cluster", "cross-wire")
	require.NoError(t, err)

	// Two nodes: 2 node creates, 2 subscriptions, 2 replication sets.
	require.Len(t, rec.Calls, 6)
	assert.Contains(t, rec.Calls[0].Command, "spock.node_create")
	assert.Contains(t, rec.Calls[0].Command, "'n1'")
	assert.Equal(t, "n1", rec.Calls[0].Endpoint.Name)
	assert.Contains(t, rec.Calls[2].Command, "spock.sub_create")
	assert.Contains(t, rec.Calls[4].Command, "spock.repset_create")

	assert.Contains(t, buf.String(), "cross-wire finished (6 steps)")
}

func TestCrossWireDryRunPrintsPlan(t *testing.T) {
	app, rec, _ := newTestApp(t)

	out, err := runCommand(t, app, "cluster", "cross-wire", "--dry-run")
	require.NoError(t, err)

	assert.Empty(t, rec.Calls, "dry run must not dispatch")
	assert.Contains(t, out, "operation: cross-wire")
	assert.Contains(t, out, "step: 1")
	assert.Contains(t, out, "endpoint: n1")
	assert.Contains(t, out, "spock.node_create")
}

func TestUncrossWireTearsDownMesh(t *testing.T) {
	app, rec, _ := newTestApp(t)

	_, err := runCommand(t, app, "cluster", "uncross-wire")
	require.NoError(t, err)

	require.Len(t, rec.Calls, 4)
	assert.Contains(t, rec.Calls[0].Command, "spock.sub_drop")
	assert.Contains(t, rec.Calls[3].Command, "spock.node_drop")
}

func TestUncrossWireContinuesPastFailures(t *testing.T) {
	app, rec, _ := newTestApp(t)
	rec.Results = []dispatch.Result{{ExitCode: 1, Stderr: "subscription does not exist"}}

	_, err := runCommand(t, app, "cluster", "uncross-wire")
	require.NoError(t, err)
	assert.Len(t, rec.Calls, 4)
}

func TestAddNodeRunsJoinWorkflow(t *testing.T) {
	app, rec, _ := newTestApp(t)
	app.Config.Nodes = append(app.Config.Nodes, config.NodeConfig{
		Name: "n3",
		DSN:  "host=127.0.0.1 dbname=pgedge port=5433 user=pgedge password=pgedge",
		Port: 5433,
	})

	_, err := runCommand(t, app, "cluster", "add-node", "n3")
	require.NoError(t, err)

	// 1 node create, 2 subscriptions, 1 apply-worker wait, 2 disabled
	// subscriptions, 2 slots, sync trigger+wait for the one source node,
	// 1 lag check.
	require.Len(t, rec.Calls, 11)
	assert.Contains(t, rec.Calls[0].Command, "spock.node_create")
	assert.Equal(t, "n3", rec.Calls[0].Endpoint.Name)
	assert.Contains(t, rec.Calls[10].Command, "lag_tracker")
}

func TestAddNodeUnknownName(t *testing.T) {
	app, rec, _ := newTestApp(t)

	_, err := runCommand(t, app, "cluster", "add-node", "n9")
	assert.ErrorContains(t, err, `"n9" not found`)
	assert.Empty(t, rec.Calls)
}

func TestRemoveNodeDropsBothDirections(t *testing.T) {
	app, rec, _ := newTestApp(t)

	_, err := runCommand(t, app, "cluster", "remove-node", "n2")
	require.NoError(t, err)

	require.Len(t, rec.Calls, 3)
	assert.Contains(t, rec.Calls[0].Command, "sub_n1_n2")
	assert.Contains(t, rec.Calls[1].Command, "sub_n2_n1")
	assert.Contains(t, rec.Calls[2].Command, "spock.node_drop")
	assert.Equal(t, "n2", rec.Calls[2].Endpoint.Name)
}

func TestFatalStepFailureExitsNonZero(t *testing.T) {
	app, rec, buf := newTestApp(t)
	rec.Results = []dispatch.Result{{ExitCode: 1, Stderr: "node already exists"}}

	_, err := runCommand(t, app, "cluster", "cross-wire")
	require.Error(t, err)
	code, ok := IsExitError(err)
	require.True(t, ok, "error should be an ExitError")
	assert.Equal(t, 1, code)

	// Nothing after the failing step is dispatched.
	assert.Len(t, rec.Calls, 1)
	assert.Contains(t, buf.String(), "aborted")
}

func TestIgnoreErrorsFlagContinues(t *testing.T) {
	app, rec, _ := newTestApp(t)
	rec.Results = []dispatch.Result{{ExitCode: 1, Stderr: "node already exists"}}

	_, err := runCommand(t, app, "cluster", "cross-wire", "--ignore-errors")
	require.NoError(t, err)
	assert.Len(t, rec.Calls, 6)
}

func TestDiscoverReadsCatalog(t *testing.T) {
	app, rec, _ := newTestApp(t)
	var gotDSN string
	app.Discover = func(_ context.Context, dsn string) ([]endpoint.Endpoint, error) {
		gotDSN = dsn
		return []endpoint.Endpoint{
			{Name: "b1", DSN: "host=10.0.0.1 dbname=pgedge"},
			{Name: "b2", DSN: "host=10.0.0.2 dbname=pgedge"},
		}, nil
	}

	_, err := runCommand(t, app, "cluster", "cross-wire", "--discover", "host=10.0.0.1 dbname=pgedge")
	require.NoError(t, err)

	assert.Equal(t, "host=10.0.0.1 dbname=pgedge", gotDSN)
	require.Len(t, rec.Calls, 6)
	assert.Contains(t, rec.Calls[0].Command, "'b1'")
}

func TestVerbosityOutOfRange(t *testing.T) {
	app, _, _ := newTestApp(t)

	_, err := runCommand(t, app, "cluster", "cross-wire", "-v", "3")
	assert.ErrorContains(t, err, "verbosity must be 0, 1 or 2")
}

func TestNodeStartReportsEachNode(t *testing.T) {
	app, _, buf := newTestApp(t)
	runner := app.Runner.(*pgnode.RunnerRecorder)

	_, err := runCommand(t, app, "node", "start", "n1", "n2")
	require.NoError(t, err)

	require.Len(t, runner.Calls, 2)
	assert.Contains(t, runner.Calls[0].Name, "pg_ctl")
	assert.Contains(t, buf.String(), "started n1")
	assert.Contains(t, buf.String(), "started n2")
}

func TestNodeStopRunsPgCtl(t *testing.T) {
	app, _, buf := newTestApp(t)
	runner := app.Runner.(*pgnode.RunnerRecorder)

	_, err := runCommand(t, app, "node", "stop", "n1")
	require.NoError(t, err)

	require.Len(t, runner.Calls, 1)
	assert.Contains(t, runner.Calls[0].Name, "pg_ctl")
	assert.Contains(t, runner.Calls[0].Args, "fast")
	assert.Contains(t, buf.String(), "stopped n1")
}
