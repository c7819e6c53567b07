// Package pgnode manages the lifecycle of individual PostgreSQL nodes:
// initialization, start/stop, cleanup, destruction, compiling the server
// from source, and seeding streaming replicas.
//
// All interesting behavior lives in PostgreSQL's own binaries (initdb,
// pg_ctl, psql, pg_basebackup); this package only sequences them. External
// processes run through the [Runner] interface so tests can script
// outcomes with [RunnerRecorder] instead of spawning anything.
package pgnode

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// RunResult is the normalized outcome of one external command.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the command succeeded.
func (r RunResult) OK() bool { return r.ExitCode == 0 }

// RunOptions adjusts how a command is spawned.
type RunOptions struct {
	// Dir is the working directory; empty means inherit.
	Dir string
	// Stdin is fed to the process when non-empty.
	Stdin string
}

// Runner spawns one external command and waits for it.
//
// Like the workflow dispatcher, a non-zero exit is a normal [RunResult];
// the error return is reserved for context cancellation.
type Runner interface {
	Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	if opts.Stdin != "" {
		cmd.Stdin = strings.NewReader(opts.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.String(), Stderr: stderr.String()}

	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
		return res, nil
	}
}

// RunnerCall records one Run invocation.
type RunnerCall struct {
	Name string
	Args []string
	Opts RunOptions
}

// RunnerRecorder is a [Runner] for tests: it records calls and replies from
// a script of results, falling back to Default once the script runs out.
type RunnerRecorder struct {
	Calls   []RunnerCall
	Results []RunResult
	Default RunResult
}

func (r *RunnerRecorder) Run(ctx context.Context, name string, args []string, opts RunOptions) (RunResult, error) {
	r.Calls = append(r.Calls, RunnerCall{Name: name, Args: args, Opts: opts})
	if n := len(r.Calls) - 1; n < len(r.Results) {
		return r.Results[n], nil
	}
	return r.Default, nil
}
