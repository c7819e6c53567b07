package dispatch

import (
	"context"

	"spockctl/internal/endpoint"
)

// Call records one Dispatch invocation for later assertions.
type Call struct {
	Command  string
	Endpoint endpoint.Endpoint
}

// Recorder is a [Dispatcher] for tests. It records every dispatched
// command and replies from a script of results; once the script is
// exhausted it keeps returning the Default result.
type Recorder struct {
	// Calls holds every dispatch in order.
	Calls []Call

	// Results are consumed one per call.
	Results []Result

	// Default is returned once Results runs out. The zero value reports
	// success with empty output.
	Default Result

	// Err, when set, is returned from every call (simulates cancellation).
	Err error
}

func (r *Recorder) Dispatch(ctx context.Context, command string, ep endpoint.Endpoint) (Result, error) {
	r.Calls = append(r.Calls, Call{Command: command, Endpoint: ep})
	if r.Err != nil {
		return Result{}, r.Err
	}
	if n := len(r.Calls) - 1; n < len(r.Results) {
		return r.Results[n], nil
	}
	return r.Default, nil
}
