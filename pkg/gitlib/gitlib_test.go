package gitlib_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
	"github.com/Sumatoshi-tech/blame/pkg/gitlib"
)

// testRepo wraps a throwaway repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo}
}

func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(tr.t, err)

	err = os.WriteFile(path, []byte(content), 0o644)
	require.NoError(tr.t, err)
}

// commit stages the named files and commits them as author.
func (tr *testRepo) commit(name, email string, when time.Time, files ...string) {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	for _, file := range files {
		require.NoError(tr.t, index.AddByPath(file))
	}

	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: name, Email: email, When: when}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	_, err = tr.native.CreateCommit("HEAD", sig, sig, "change", tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}
}

var (
	t0 = time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 7, 9, 8, 30, 0, 0, time.UTC)
)

// seed builds a repository where Ann wrote two lines of a.txt and Bob
// appended one, plus an untracked and an empty tracked file.
func seed(t *testing.T) *testRepo {
	t.Helper()

	tr := newTestRepo(t)
	tr.createFile("a.txt", "one\ntwo\n")
	tr.createFile("empty.txt", "")
	tr.commit("Ann", "ann@x.io", t0, "a.txt", "empty.txt")

	tr.createFile("a.txt", "one\ntwo\nthree\n")
	tr.commit("Bob", "bob@x.io", t1, "a.txt")

	tr.createFile("untracked.txt", "loose\n")

	return tr
}

func collectRecords(t *testing.T, src blame.Source, path string) ([]blame.Record, error) {
	t.Helper()

	var records []blame.Record

	for rec, err := range src.Blame(context.Background(), path) {
		if err != nil {
			return records, err
		}

		records = append(records, rec)
	}

	return records, nil
}

func requireGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func sources(t *testing.T, tr *testRepo) map[gitlib.Backend]blame.Source {
	t.Helper()

	out := make(map[gitlib.Backend]blame.Source)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	out[gitlib.BackendLibgit2] = gitlib.NewLibgitSource(repo)

	if _, err := exec.LookPath("git"); err == nil {
		out[gitlib.BackendGit] = gitlib.NewCLISource(gitlib.NewGit("", tr.path))
	}

	return out
}

func TestSources_BlameAttributesLines(t *testing.T) {
	t.Parallel()

	tr := seed(t)

	for backend, src := range sources(t, tr) {
		t.Run(string(backend), func(t *testing.T) {
			records, err := collectRecords(t, src, "a.txt")
			require.NoError(t, err)
			require.Len(t, records, 3)

			assert.Equal(t, "Ann <ann@x.io>", records[0].Author)
			assert.Equal(t, 1, records[0].Line)
			assert.True(t, records[0].AuthorTime.Equal(t0))
			assert.Equal(t, "Ann <ann@x.io>", records[1].Author)
			assert.Equal(t, "Bob <bob@x.io>", records[2].Author)
			assert.Equal(t, 3, records[2].Line)
			assert.True(t, records[2].AuthorTime.Equal(t1))
			assert.Len(t, records[2].Commit, 40)
			assert.NotEqual(t, records[0].Commit, records[2].Commit)
			assert.Equal(t, "a.txt", records[2].File)
		})
	}
}

func TestSources_ClassifyFailures(t *testing.T) {
	t.Parallel()

	tr := seed(t)

	for backend, src := range sources(t, tr) {
		t.Run(string(backend), func(t *testing.T) {
			_, err := collectRecords(t, src, "missing.txt")
			require.ErrorIs(t, err, blame.ErrFileNotFound)

			_, err = collectRecords(t, src, "untracked.txt")
			require.ErrorIs(t, err, blame.ErrUntracked)

			_, err = collectRecords(t, src, "empty.txt")
			require.ErrorIs(t, err, blame.ErrEmptyFile)
		})
	}
}

func TestSources_AbsolutePath(t *testing.T) {
	t.Parallel()

	tr := seed(t)
	abs := filepath.Join(tr.path, "a.txt")

	for backend, src := range sources(t, tr) {
		t.Run(string(backend), func(t *testing.T) {
			records, err := collectRecords(t, src, abs)
			require.NoError(t, err)
			assert.Len(t, records, 3)
		})
	}
}

func TestSources_StopEarly(t *testing.T) {
	t.Parallel()

	tr := seed(t)

	for backend, src := range sources(t, tr) {
		t.Run(string(backend), func(t *testing.T) {
			seen := 0

			for _, err := range src.Blame(context.Background(), "a.txt") {
				require.NoError(t, err)

				seen++

				break
			}

			assert.Equal(t, 1, seen)
		})
	}
}

func TestOpenRepository_NotRepository(t *testing.T) {
	t.Parallel()

	_, err := gitlib.OpenRepository(t.TempDir())
	require.ErrorIs(t, err, gitlib.ErrNotRepository)
}

func TestRepository_RemoteURL(t *testing.T) {
	t.Parallel()

	tr := seed(t)

	_, err := tr.native.Remotes.Create("origin", "git@github.com:acme/widgets.git")
	require.NoError(t, err)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	url, err := repo.RemoteURL("origin")
	require.NoError(t, err)
	assert.Equal(t, "git@github.com:acme/widgets.git", url)
	assert.Equal(t, tr.path, repo.Workdir())
}

func TestGit_TrackedFiles(t *testing.T) {
	t.Parallel()
	requireGit(t)

	tr := seed(t)
	git := gitlib.NewGit("", tr.path)
	ctx := context.Background()

	root, err := gitlib.Root(ctx, "", filepath.Join(tr.path))
	require.NoError(t, err)
	assert.Equal(t, tr.path, root)

	files, err := git.LsFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "empty.txt"}, files)

	_, err = git.RemoteURL(ctx, "origin")
	require.Error(t, err)
}

func TestRoot_NotRepository(t *testing.T) {
	t.Parallel()
	requireGit(t)

	_, err := gitlib.Root(context.Background(), "", t.TempDir())
	require.ErrorIs(t, err, gitlib.ErrNotRepository)
}

func TestParseBackend(t *testing.T) {
	t.Parallel()

	for input, want := range map[string]gitlib.Backend{
		"":        gitlib.BackendGit,
		"git":     gitlib.BackendGit,
		"LIBGIT2": gitlib.BackendLibgit2,
	} {
		got, err := gitlib.ParseBackend(input)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := gitlib.ParseBackend("svn")
	require.ErrorIs(t, err, gitlib.ErrUnknownBackend)
}

func TestSignature_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Ann <a@x.io>", gitlib.Signature{Name: "Ann", Email: "a@x.io"}.String())
	assert.Equal(t, "Ann", gitlib.Signature{Name: "Ann"}.String())
	assert.Equal(t, "<a@x.io>", gitlib.Signature{Email: "a@x.io"}.String())
}

func TestLibgitSource_WaitForRepositoryHonoursDeadline(t *testing.T) {
	t.Parallel()

	tr := seed(t)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)
	t.Cleanup(repo.Free)

	release := repo.Hold()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var blameErr error

	for _, err := range gitlib.NewLibgitSource(repo).Blame(ctx, filepath.Join(tr.path, "a.txt")) {
		if err != nil {
			blameErr = err

			break
		}
	}

	release()

	require.ErrorIs(t, blameErr, blame.ErrToolFailure)
	require.ErrorIs(t, blameErr, context.DeadlineExceeded)

	records, err := collectRecords(t, gitlib.NewLibgitSource(repo), filepath.Join(tr.path, "a.txt"))
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
