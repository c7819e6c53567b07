// Package output formats terminal messages for the node lifecycle commands.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// stepWidth aligns lifecycle action messages so outcome tags line up.
const stepWidth = 50

// Printer writes styled status messages.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to stdout.
func NewPrinter() *Printer {
	return &Printer{w: os.Stdout}
}

// NewPrinterWithWriter returns a Printer writing to w. Used in tests.
func NewPrinterWithWriter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Success prints a green tick message.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints a red cross message.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Info prints a plain message.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Action prints a fixed-width lifecycle action with an outcome tag, e.g.
// "Initializing node n1 ...                          [OK]".
func (p *Printer) Action(action string, ok bool) {
	tag := successStyle.Render("[OK]")
	if !ok {
		tag = errorStyle.Render("[FAILED]")
	}
	fmt.Fprintf(p.w, "%-*s %s\n", stepWidth, action+" ...", tag)
}
