// Package targets resolves command-line patterns to the tracked files to blame.
package targets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
	"github.com/Sumatoshi-tech/blame/pkg/gitlib"
)

// sniffLength is how much of a file is read to detect binary content.
const sniffLength = 8000

// Options configures expansion.
type Options struct {
	// Dir is the base of relative patterns. Empty uses the working directory.
	Dir string
	// GitBinary is the git executable. Empty uses "git" from PATH.
	GitBinary string
	// SkipVendored drops paths enry classifies as vendored.
	SkipVendored bool
	// SkipBinary drops files with binary content.
	SkipBinary bool
	// Logger receives warnings for patterns that match nothing. Nil uses slog.Default().
	Logger *slog.Logger
}

// Targets is the outcome of an expansion.
type Targets struct {
	// Root is the top-level directory of the working tree.
	Root string
	// Files are absolute, deduplicated and sorted.
	Files []string
}

// Rel returns path relative to the repository root, or path itself when it
// is outside the root.
func (t Targets) Rel(path string) string {
	rel, err := filepath.Rel(t.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}

	return filepath.ToSlash(rel)
}

type expander struct {
	opts    Options
	root    string
	git     *gitlib.Git
	logger  *slog.Logger
	tracked map[string]struct{}
}

// Expand resolves patterns to tracked files. Each pattern is tried as a
// literal path first and as a doublestar glob second. It fails with
// gitlib.ErrNotRepository outside a working tree and with
// blame.ErrNoFilesMatched when nothing is left.
func Expand(ctx context.Context, patterns []string, opts Options) (Targets, error) {
	if opts.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Targets{}, fmt.Errorf("working directory: %w", err)
		}

		opts.Dir = wd
	}

	if resolved, err := filepath.EvalSymlinks(opts.Dir); err == nil {
		opts.Dir = resolved
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	root, err := gitlib.Root(ctx, opts.GitBinary, opts.Dir)
	if err != nil {
		return Targets{}, err
	}

	exp := &expander{
		opts:   opts,
		root:   root,
		git:    gitlib.NewGit(opts.GitBinary, root),
		logger: opts.Logger,
	}

	seen := make(map[string]struct{})

	for _, pattern := range patterns {
		files, err := exp.expand(ctx, pattern)
		if err != nil {
			return Targets{}, err
		}

		kept := 0

		for _, file := range files {
			if !exp.keep(file) {
				continue
			}

			kept++
			seen[file] = struct{}{}
		}

		if kept == 0 {
			exp.logger.WarnContext(ctx, "pattern matched no files", "pattern", pattern)
		}
	}

	if len(seen) == 0 {
		return Targets{Root: root}, blame.ErrNoFilesMatched
	}

	return Targets{Root: root, Files: slices.Sorted(maps.Keys(seen))}, nil
}

func (e *expander) expand(ctx context.Context, pattern string) ([]string, error) {
	path := e.absolute(pattern)

	info, err := os.Stat(path)
	if err == nil {
		if info.IsDir() {
			return e.trackedUnder(ctx, path)
		}

		return []string{path}, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", pattern, err)
	}

	matches, err := doublestar.Glob(path)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	tracked, err := e.trackedSet(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(matches))

	for _, match := range matches {
		match = filepath.Clean(match)
		if _, ok := tracked[match]; ok {
			files = append(files, match)

			continue
		}

		info, err := os.Stat(match)
		if err != nil || !info.IsDir() {
			continue
		}

		nested, err := e.trackedUnder(ctx, match)
		if err != nil {
			return nil, err
		}

		files = append(files, nested...)
	}

	return files, nil
}

func (e *expander) absolute(pattern string) string {
	if filepath.IsAbs(pattern) {
		return resolveExisting(filepath.Clean(pattern))
	}

	return filepath.Join(e.opts.Dir, pattern)
}

// resolveExisting evaluates symlinks in the longest existing prefix of path,
// so it compares equal to the resolved repository root. Glob segments past
// that prefix are kept as written.
func resolveExisting(path string) string {
	var rest []string

	for dir := path; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}

		rest = append([]string{filepath.Base(dir)}, rest...)
	}
}

func (e *expander) trackedUnder(ctx context.Context, dir string) ([]string, error) {
	tracked, err := e.trackedSet(ctx)
	if err != nil {
		return nil, err
	}

	prefix := dir + string(filepath.Separator)

	var files []string

	for file := range tracked {
		if dir == e.root || strings.HasPrefix(file, prefix) {
			files = append(files, file)
		}
	}

	return files, nil
}

// trackedSet lists the whole index once per run.
func (e *expander) trackedSet(ctx context.Context) (map[string]struct{}, error) {
	if e.tracked != nil {
		return e.tracked, nil
	}

	files, err := e.git.LsFiles(ctx)
	if err != nil {
		return nil, err
	}

	e.tracked = make(map[string]struct{}, len(files))
	for _, file := range files {
		e.tracked[filepath.Join(e.root, filepath.FromSlash(file))] = struct{}{}
	}

	return e.tracked, nil
}

func (e *expander) keep(path string) bool {
	rel, err := filepath.Rel(e.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		e.logger.Warn("skipping path outside repository", "path", path, "root", e.root)

		return false
	}

	if e.opts.SkipVendored && enry.IsVendor(filepath.ToSlash(rel)) {
		e.logger.Debug("skipping vendored file", "path", rel)

		return false
	}

	if e.opts.SkipBinary && isBinary(path) {
		e.logger.Debug("skipping binary file", "path", rel)

		return false
	}

	return true
}

func isBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, sniffLength)

	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false
	}

	return enry.IsBinary(head[:n])
}
