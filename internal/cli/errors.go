package cli

import "fmt"

// ExitError carries a shell exit code out of a cobra RunE function.
//
// Commands return it instead of calling os.Exit directly so the whole
// command tree stays runnable inside tests; [Execute] unwraps the code at
// the very top of the program.
type ExitError struct {
	Code int
}

// Error matches the os/exec exit message format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError returns an [ExitError] with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError extracts the exit code when err is an [ExitError].
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
