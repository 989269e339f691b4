package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNoFiles     = 2
	ExitNoIdentity  = 3
	ExitInterrupted = 130
)

// ExitError pins the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}

	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError

	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, blame.ErrNoFilesMatched):
		return ExitNoFiles
	case errors.Is(err, identity.ErrNoIdentityResolved):
		return ExitNoIdentity
	default:
		return ExitFailure
	}
}
