// Package runlog reports per-step workflow progress.
//
// The executor emits exactly one [Record] per step, regardless of outcome.
// A [Sink] consumes records; [ConsoleSink] writes the aligned human-readable
// run log, [SlogSink] forwards records to structured logging, and [Tee]
// fans a record out to both.
package runlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Outcome is the terminal state of one step.
type Outcome string

const (
	// OutcomeOK means the dispatch succeeded.
	OutcomeOK Outcome = "OK"
	// OutcomeIgnored means the dispatch failed but the step was marked
	// best-effort; the run continues.
	OutcomeIgnored Outcome = "IGNORED"
	// OutcomeFailed means the dispatch failed fatally; the run aborts.
	OutcomeFailed Outcome = "FAILED"
)

// Record describes one completed step.
type Record struct {
	Time        time.Time
	Seq         int
	Endpoint    string
	Description string
	Outcome     Outcome

	// Command is the fully resolved command that was dispatched.
	// Shown only at verbosity 2.
	Command string

	// Stdout and Stderr are the raw dispatch output.
	// Shown only at verbosity 1 and above.
	Stdout string
	Stderr string
}

// Sink consumes step records.
type Sink interface {
	Step(rec Record)
}

// Verbosity levels for the console sink.
const (
	// VerbositySteps prints one line per step.
	VerbositySteps = 0
	// VerbosityOutput additionally prints the dispatch output.
	VerbosityOutput = 1
	// VerbosityCommands additionally prints the resolved command.
	VerbosityCommands = 2
)

// descriptionWidth is the fixed alignment width for step descriptions.
const descriptionWidth = 50

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	ignoredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// ConsoleSink renders the run log for terminals: one timestamped, aligned
// line per step, plus command/output detail according to Verbosity.
type ConsoleSink struct {
	W         io.Writer
	Verbosity int
}

// NewConsoleSink returns a sink writing to w at the given verbosity.
func NewConsoleSink(w io.Writer, verbosity int) *ConsoleSink {
	return &ConsoleSink{W: w, Verbosity: verbosity}
}

func (s *ConsoleSink) Step(rec Record) {
	if s.Verbosity >= VerbosityCommands && rec.Command != "" {
		fmt.Fprintf(s.W, "%s\n", dimStyle.Render(rec.Command))
	}

	tag := "[" + string(rec.Outcome) + "]"
	switch rec.Outcome {
	case OutcomeOK:
		tag = okStyle.Render(tag)
	case OutcomeIgnored:
		tag = ignoredStyle.Render(tag)
	case OutcomeFailed:
		tag = failedStyle.Render(tag)
	}

	fmt.Fprintf(s.W, "[%s] [Step - %02d]: [%s] - %-*s %s\n",
		rec.Time.Format("2006-01-02 15:04:05"), rec.Seq, rec.Endpoint,
		descriptionWidth, rec.Description, tag)

	if s.Verbosity >= VerbosityOutput {
		if out := strings.TrimSpace(rec.Stdout); out != "" && rec.Outcome == OutcomeOK {
			fmt.Fprintln(s.W, out)
		}
		if errOut := strings.TrimSpace(rec.Stderr); errOut != "" && rec.Outcome != OutcomeOK {
			switch rec.Outcome {
			case OutcomeIgnored:
				fmt.Fprintln(s.W, ignoredStyle.Render(errOut))
			default:
				fmt.Fprintln(s.W, failedStyle.Render(errOut))
			}
		}
	}
}

// SlogSink forwards records to a slog.Logger, one entry per step.
type SlogSink struct {
	Logger *slog.Logger
}

func (s *SlogSink) Step(rec Record) {
	level := slog.LevelInfo
	if rec.Outcome == OutcomeFailed {
		level = slog.LevelError
	}
	s.Logger.Log(context.Background(), level, "workflow step",
		slog.Int("step", rec.Seq),
		slog.String("endpoint", rec.Endpoint),
		slog.String("description", rec.Description),
		slog.String("outcome", string(rec.Outcome)),
	)
}

// Tee fans each record out to all sinks in order.
type Tee []Sink

func (t Tee) Step(rec Record) {
	for _, s := range t {
		s.Step(rec)
	}
}
