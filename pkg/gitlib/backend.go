package gitlib

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
)

// Backend selects how blame data is produced.
type Backend string

const (
	// BackendGit runs the git CLI.
	BackendGit Backend = "git"
	// BackendLibgit2 runs blame in-process through libgit2.
	BackendLibgit2 Backend = "libgit2"
)

// ErrUnknownBackend is returned by ParseBackend for unsupported values.
var ErrUnknownBackend = errors.New("unknown blame backend")

// ParseBackend converts a configuration value into a Backend.
func ParseBackend(value string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(value))) {
	case BackendGit, "":
		return BackendGit, nil
	case BackendLibgit2:
		return BackendLibgit2, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, value)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSource creates the blame source of backend for the working tree git
// runs in. The returned closer releases backend resources.
func OpenSource(backend Backend, git *Git) (blame.Source, io.Closer, error) {
	switch backend {
	case BackendGit, "":
		return NewCLISource(git), nopCloser{}, nil
	case BackendLibgit2:
		repo, err := OpenRepository(git.Dir())
		if err != nil {
			return nil, nil, err
		}

		return NewLibgitSource(repo), repo, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
