// Package dispatch runs workflow commands against PostgreSQL endpoints.
//
// The [Dispatcher] interface is the executor's only channel to the outside
// world. A non-zero exit code is a normal [Result], never a Go error: every
// failure mode (SQL errors, connection refusals, a missing psql binary)
// is normalized into the Result before it reaches workflow orchestration.
//
// For testing, use [Recorder] which implements [Dispatcher] without
// spawning real processes.
package dispatch

import (
	"context"

	"spockctl/internal/endpoint"
)

// Result is the normalized outcome of one dispatched command.
type Result struct {
	// ExitCode follows process conventions: 0 is success. A dispatcher
	// that could not even be invoked reports -1 with the reason in Stderr.
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the dispatch succeeded.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Dispatcher sends one command to one endpoint and waits for it to finish.
//
// Implementations must not return an error for command-level failures;
// those are conveyed through [Result.ExitCode]. The returned error is
// reserved for context cancellation.
type Dispatcher interface {
	Dispatch(ctx context.Context, command string, ep endpoint.Endpoint) (Result, error)
}
