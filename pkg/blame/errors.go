package blame

import (
	"errors"
	"fmt"
)

// Per-file failure causes reported by a Source.
var (
	// ErrFileNotFound means the path does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUntracked means the path exists but is not tracked by git.
	ErrUntracked = errors.New("file is not tracked")
	// ErrEmptyFile means the file is tracked but has no lines to attribute.
	ErrEmptyFile = errors.New("file has no blameable lines")
	// ErrToolFailure means the blame tool exited abnormally or its output
	// could not be parsed.
	ErrToolFailure = errors.New("blame tool failed")
	// ErrTimeout means blaming the file exceeded its time budget.
	ErrTimeout = errors.New("blame timed out")
)

// ErrNoFilesMatched is returned when the input patterns resolve to no file.
var ErrNoFilesMatched = errors.New("no files matched")

// FailureKind classifies a FileFailure for reporting and metrics.
type FailureKind string

// Failure kinds.
const (
	KindNotFound    FailureKind = "not_found"
	KindUntracked   FailureKind = "untracked"
	KindToolFailure FailureKind = "tool_failure"
	KindTimeout     FailureKind = "timeout"
	KindOther       FailureKind = "other"
)

// FileFailure records a file excluded from aggregation.
type FileFailure struct {
	Path string
	Err  error
}

func (f *FileFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

func (f *FileFailure) Unwrap() error { return f.Err }

// Kind classifies the failure.
func (f *FileFailure) Kind() FailureKind {
	switch {
	case errors.Is(f.Err, ErrFileNotFound):
		return KindNotFound
	case errors.Is(f.Err, ErrUntracked):
		return KindUntracked
	case errors.Is(f.Err, ErrTimeout):
		return KindTimeout
	case errors.Is(f.Err, ErrToolFailure):
		return KindToolFailure
	default:
		return KindOther
	}
}
