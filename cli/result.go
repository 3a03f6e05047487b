package cli

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/robinvdvleuten/contribute/errors"
)

// CommandError signals a command failure with a specific exit code.
// Commands return this after handling all output (printing errors/warnings to stderr).
// Main centralizes exit handling instead of commands calling os.Exit directly.
type CommandError struct {
	exitCode int
}

// NewCommandError creates a new CommandError with the given exit code.
func NewCommandError(exitCode int) *CommandError {
	return &CommandError{exitCode: exitCode}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return "command failed"
}

// ExitCode returns the exit code associated with this error.
func (e *CommandError) ExitCode() int {
	return e.exitCode
}

// Exit codes by error code. Input problems exit with 2 so scripts can tell
// them apart from failures of the engine itself.
var exitCodes = map[string]int{
	errors.CodeValidation:    2,
	errors.CodeDuplicate:     2,
	errors.CodeNotFound:      3,
	errors.CodeConfiguration: 4,
}

// ExitCode reports err on w and returns the process exit code for it.
func ExitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var cmdErr *CommandError
	if stderrors.As(err, &cmdErr) {
		return cmdErr.ExitCode()
	}

	_, _ = fmt.Fprintln(w, NewErrorRenderer(false).RenderAll([]error{err}))
	_, _ = fmt.Fprintln(w)

	code := errors.Code(err)
	printError(w, code)

	if exit, ok := exitCodes[code]; ok {
		return exit
	}
	return 1
}
