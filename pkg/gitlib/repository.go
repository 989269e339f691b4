package gitlib

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
	"golang.org/x/sync/semaphore"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
)

// Repository wraps a libgit2 repository. libgit2 handles are not safe for
// concurrent use, so every call into libgit2 holds the single-slot lock.
// Waiting for the lock honours the caller's context; a blame that already
// holds it runs to completion.
type Repository struct {
	lock    *semaphore.Weighted
	repo    *git2go.Repository
	workdir string
}

// OpenRepository opens the repository containing path, searching parent
// directories.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepositoryExtended(path, 0, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotRepository, path, err)
	}

	return &Repository{
		lock:    semaphore.NewWeighted(1),
		repo:    repo,
		workdir: filepath.Clean(repo.Workdir()),
	}, nil
}

// Workdir returns the working tree root.
func (r *Repository) Workdir() string {
	return r.workdir
}

// Free releases the repository resources.
func (r *Repository) Free() {
	_ = r.lock.Acquire(context.Background(), 1)
	defer r.lock.Release(1)

	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Close implements io.Closer.
func (r *Repository) Close() error {
	r.Free()

	return nil
}

// RemoteURL returns the URL of the named remote.
func (r *Repository) RemoteURL(name string) (string, error) {
	_ = r.lock.Acquire(context.Background(), 1)
	defer r.lock.Release(1)

	remote, err := r.repo.Remotes.Lookup(name)
	if err != nil {
		return "", fmt.Errorf("remote %s: %w", name, err)
	}
	defer remote.Free()

	return remote.Url(), nil
}

// relative converts path to the slash-separated form libgit2 expects.
func (r *Repository) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}

	rel, err := filepath.Rel(r.workdir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s is outside %s", ErrNotRepository, path, r.workdir)
	}

	return filepath.ToSlash(rel), nil
}

// tracked reports whether rel exists in the HEAD tree.
func (r *Repository) tracked(rel string) (bool, error) {
	head, err := r.repo.Head()
	if err != nil {
		return false, nil //nolint:nilerr // An unborn HEAD tracks nothing.
	}
	defer head.Free()

	commit, err := r.repo.LookupCommit(head.Target())
	if err != nil {
		return false, fmt.Errorf("lookup HEAD commit: %w", err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return false, fmt.Errorf("HEAD tree: %w", err)
	}
	defer tree.Free()

	_, err = tree.EntryByPath(rel)

	return err == nil, nil
}

// hunk is a blame hunk copied out of libgit2 memory.
type hunk struct {
	author Signature
	commit string
	start  int
	lines  int
}

// blameHunks runs libgit2 blame on rel at HEAD. It gives up with ctx's error
// while another file holds the repository.
func (r *Repository) blameHunks(ctx context.Context, rel string) ([]hunk, error) {
	err := r.lock.Acquire(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", blame.ErrToolFailure, err)
	}
	defer r.lock.Release(1)

	ok, err := r.tracked(rel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", blame.ErrToolFailure, err)
	}

	if !ok {
		return nil, blame.ErrUntracked
	}

	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return nil, fmt.Errorf("%w: blame options: %w", blame.ErrToolFailure, err)
	}

	result, err := r.repo.BlameFile(rel, &opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", blame.ErrToolFailure, err)
	}
	defer result.Free()

	hunks := make([]hunk, 0, result.HunkCount())

	for i := range result.HunkCount() {
		h, err := result.HunkByIndex(i)
		if err != nil {
			return nil, fmt.Errorf("%w: hunk %d: %w", blame.ErrToolFailure, i, err)
		}

		entry := hunk{start: int(h.FinalStartLineNumber), lines: int(h.LinesInHunk)}
		if h.FinalCommitId != nil {
			entry.commit = h.FinalCommitId.String()
		}

		if sig := h.FinalSignature; sig != nil {
			entry.author = Signature{Name: sig.Name, Email: sig.Email, When: sig.When.UTC()}
		}

		hunks = append(hunks, entry)
	}

	return hunks, nil
}

// LibgitSource blames files in-process through libgit2.
type LibgitSource struct {
	repo *Repository
}

// NewLibgitSource creates a LibgitSource over repo.
func NewLibgitSource(repo *Repository) *LibgitSource {
	return &LibgitSource{repo: repo}
}

// Blame implements blame.Source. libgit2 cannot be interrupted mid-blame, so
// ctx is only checked while waiting for the repository and while expanding
// hunks.
func (s *LibgitSource) Blame(ctx context.Context, path string) iter.Seq2[blame.Record, error] {
	return func(yield func(blame.Record, error) bool) {
		err := checkPath(s.repo.Workdir(), path)
		if err != nil {
			yield(blame.Record{}, err)

			return
		}

		rel, err := s.repo.relative(path)
		if err != nil {
			yield(blame.Record{}, fmt.Errorf("%w: %w", blame.ErrUntracked, err))

			return
		}

		if ctx.Err() != nil {
			yield(blame.Record{}, fmt.Errorf("%w: %w", blame.ErrToolFailure, ctx.Err()))

			return
		}

		hunks, err := s.repo.blameHunks(ctx, rel)
		if err != nil {
			yield(blame.Record{}, err)

			return
		}

		if len(hunks) == 0 {
			yield(blame.Record{}, blame.ErrEmptyFile)

			return
		}

		for _, h := range hunks {
			if ctx.Err() != nil {
				yield(blame.Record{}, fmt.Errorf("%w: %w", blame.ErrToolFailure, ctx.Err()))

				return
			}

			for offset := range h.lines {
				rec := blame.Record{
					Author:     h.author.String(),
					File:       path,
					Line:       h.start + offset,
					Commit:     h.commit,
					AuthorTime: h.author.When,
				}

				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}
