package gitlib

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
)

// CLISource blames files by running `git blame --line-porcelain` and
// parsing its output while it streams.
type CLISource struct {
	git *Git
}

// NewCLISource creates a CLISource running blame through git.
func NewCLISource(git *Git) *CLISource {
	return &CLISource{git: git}
}

// Blame implements blame.Source.
func (s *CLISource) Blame(ctx context.Context, path string) iter.Seq2[blame.Record, error] {
	return func(yield func(blame.Record, error) bool) {
		err := checkPath(s.git.Dir(), path)
		if err != nil {
			yield(blame.Record{}, err)

			return
		}

		cmdCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var stderr bytes.Buffer

		cmd := s.git.command(cmdCtx, "blame", "--line-porcelain", "--", path)
		cmd.Stderr = &stderr

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(blame.Record{}, fmt.Errorf("%w: %w", blame.ErrToolFailure, err))

			return
		}

		err = cmd.Start()
		if err != nil {
			yield(blame.Record{}, fmt.Errorf("%w: start git blame: %w", blame.ErrToolFailure, err))

			return
		}

		var (
			parseErr error
			count    int
		)

		for rec, err := range ParsePorcelain(stdout, path) {
			if err != nil {
				parseErr = err

				break
			}

			count++

			if !yield(rec, nil) {
				cancel()
				_ = cmd.Wait()

				return
			}
		}

		if parseErr != nil {
			cancel()
		}

		waitErr := cmd.Wait()

		switch {
		case ctx.Err() != nil:
			yield(blame.Record{}, fmt.Errorf("%w: %w", blame.ErrToolFailure, ctx.Err()))
		case parseErr != nil:
			yield(blame.Record{}, parseErr)
		case waitErr != nil:
			yield(blame.Record{}, classifyBlameError(stderr.String(), waitErr))
		case count == 0:
			yield(blame.Record{}, blame.ErrEmptyFile)
		}
	}
}

// checkPath reports a missing path before git is asked about it.
func checkPath(root, path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	info, err := os.Stat(path)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return blame.ErrFileNotFound
	case err != nil:
		return fmt.Errorf("%w: %w", blame.ErrToolFailure, err)
	case info.IsDir():
		return fmt.Errorf("%w: is a directory", blame.ErrToolFailure)
	}

	return nil
}

func classifyBlameError(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)

	if strings.Contains(msg, "no such path") || strings.Contains(msg, "no such ref") {
		return fmt.Errorf("%w: %s", blame.ErrUntracked, msg)
	}

	if msg == "" {
		return fmt.Errorf("%w: %w", blame.ErrToolFailure, err)
	}

	return fmt.Errorf("%w: %w: %s", blame.ErrToolFailure, err, msg)
}
