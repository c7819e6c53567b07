package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"spockctl/internal/endpoint"
)

// PsqlDispatcher shells out to psql, feeding the command on stdin with
// ON_ERROR_STOP so the first SQL error surfaces as a non-zero exit.
type PsqlDispatcher struct {
	// Binary is the psql executable, resolved through PATH when not
	// absolute. Defaults to "psql".
	Binary string
}

// NewPsqlDispatcher returns a dispatcher invoking binary, or "psql" when
// binary is empty.
func NewPsqlDispatcher(binary string) *PsqlDispatcher {
	if binary == "" {
		binary = "psql"
	}
	return &PsqlDispatcher{Binary: binary}
}

// Dispatch runs the command against ep's DSN. Exec-level failures (binary
// missing, fork failure) are normalized to ExitCode -1 with the error text
// in Stderr; only context cancellation is returned as a Go error.
func (d *PsqlDispatcher) Dispatch(ctx context.Context, command string, ep endpoint.Endpoint) (Result, error) {
	cmd := exec.CommandContext(ctx, d.Binary, ep.DSN, "-v", "ON_ERROR_STOP=1")
	cmd.Stdin = strings.NewReader(command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

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
			// psql itself could not be started.
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
		return res, nil
	}
}
