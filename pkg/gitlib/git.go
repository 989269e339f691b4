package gitlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/blame/pkg/command"
)

// ErrNotRepository is returned when a path is outside any git working tree.
var ErrNotRepository = errors.New("not a git repository")

const (
	defaultGitBinary = "git"
	waitDelay        = 2 * time.Second
)

// Git runs the git CLI against one working tree.
type Git struct {
	binary string
	dir    string
}

// NewGit creates a Git for the working tree at dir. An empty binary uses
// "git" from PATH.
func NewGit(binary, dir string) *Git {
	if binary == "" {
		binary = defaultGitBinary
	}

	return &Git{binary: binary, dir: dir}
}

// Dir returns the directory git runs in.
func (g *Git) Dir() string {
	return g.dir
}

func (g *Git) command(ctx context.Context, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, g.binary, append([]string{"-C", g.dir}, args...)...)
	cmd.Env = append(os.Environ(), "LC_ALL=C", "GIT_TERMINAL_PROMPT=0")
	cmd.WaitDelay = waitDelay

	return cmd
}

func (g *Git) output(ctx context.Context, args ...string) ([]byte, error) {
	return command.Output(g.command(ctx, args...), "git "+args[0])
}

// Root returns the top-level directory of the working tree containing dir.
func Root(ctx context.Context, binary, dir string) (string, error) {
	out, err := NewGit(binary, dir).output(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if isExitError(err) {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, dir)
		}

		return "", fmt.Errorf("find repository root: %w", err)
	}

	return filepath.Clean(strings.TrimSpace(string(out))), nil
}

// LsFiles lists the tracked files under the given pathspecs, relative to
// the working directory. No pathspec lists the whole tree.
func (g *Git) LsFiles(ctx context.Context, pathspecs ...string) ([]string, error) {
	args := append([]string{"ls-files", "-z", "--"}, pathspecs...)

	out, err := g.output(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}

	var files []string

	for entry := range strings.SplitSeq(string(out), "\x00") {
		if entry != "" {
			files = append(files, entry)
		}
	}

	return files, nil
}

// RemoteURL returns the fetch URL of the named remote.
func (g *Git) RemoteURL(ctx context.Context, name string) (string, error) {
	out, err := g.output(ctx, "remote", "get-url", name)
	if err != nil {
		return "", fmt.Errorf("remote %s: %w", name, err)
	}

	return strings.TrimSpace(string(out)), nil
}

// Version returns the output of git --version.
func (g *Git) Version(ctx context.Context) (string, error) {
	out, err := g.output(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("git version: %w", err)
	}

	return strings.TrimSpace(string(out)), nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError

	return errors.As(err, &exitErr)
}
