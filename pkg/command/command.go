// Package command runs external tools and reports their failures with stderr attached.
package command

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Error carries the stderr of a failed command.
type Error struct {
	Name   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}

	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Output runs cmd and returns its stdout. A failure is returned as *Error
// named after name.
func Output(cmd *exec.Cmd, name string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, &Error{Name: name, Stderr: stderr.String(), Err: err}
	}

	return stdout.Bytes(), nil
}
