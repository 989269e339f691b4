package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
	"github.com/Sumatoshi-tech/blame/pkg/config"
	"github.com/Sumatoshi-tech/blame/pkg/gitlib"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/observability"
	"github.com/Sumatoshi-tech/blame/pkg/ownership"
	"github.com/Sumatoshi-tech/blame/pkg/report"
)

func noopObservabilityInit(observability.Config) (observability.Providers, error) {
	return observability.Providers{
		Tracer:   nooptrace.NewTracerProvider().Tracer("test"),
		Meter:    noopmetric.NewMeterProvider().Meter("test"),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Shutdown: func(context.Context) error { return nil },
	}, nil
}

func notTerminal(io.Writer) bool { return false }

func sampleDocument(username string) report.Document {
	now := time.Now()

	return report.Document{
		Files:      2,
		TotalLines: 4,
		Contributors: []report.Contributor{
			{Rank: 1, Name: "Ann", Key: "ann@example.com", Username: username, Lines: 3, Share: 75, LastTouched: now.Add(-73 * time.Hour)},
			{Rank: 2, Name: "Bob", Key: "bob@example.com", Lines: 1, Share: 25, LastTouched: now.Add(-2 * time.Hour)},
		},
	}
}

type capture struct {
	cfg   *config.Config
	query ownership.Query
	calls int
}

func stubRunner(c *capture, doc report.Document, err error) ownershipRunner {
	return func(ctx context.Context, cfg *config.Config, query ownership.Query, _ ownership.Deps) (ownership.Report, error) {
		c.calls++
		c.cfg = cfg
		c.query = query

		if err != nil {
			return ownership.Report{}, err
		}

		if ctx.Err() != nil {
			return ownership.Report{}, ctx.Err()
		}

		return ownership.Report{Document: doc}, nil
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blame.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func executeContext(ctx context.Context, t *testing.T, run ownershipRunner, configContent string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommandWithDeps(run, noopObservabilityInit, notTerminal)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", writeConfig(t, configContent)}, args...))

	err := cmd.ExecuteContext(ctx)

	return out.String(), err
}

func execute(t *testing.T, run ownershipRunner, args ...string) (string, error) {
	t.Helper()

	return executeContext(context.Background(), t, run, "", args...)
}

func TestRoot_PrintsTopContributor(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, sampleDocument(""), nil), "main.go", "pkg/**")
	require.NoError(t, err)

	assert.Equal(t, "Ann   75.0%  (last touched 3 days ago)\n", out)
	assert.Equal(t, []string{"main.go", "pkg/**"}, c.query.Patterns)
	assert.False(t, c.query.ResolveUsernames)
}

func TestRoot_RequiresPattern(t *testing.T) {
	t.Parallel()

	var c capture

	_, err := execute(t, stubRunner(&c, sampleDocument(""), nil))
	require.Error(t, err)
	assert.Zero(t, c.calls)
}

func TestRoot_VerboseListsEveryone(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, sampleDocument(""), nil), "-v", ".")
	require.NoError(t, err)

	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "Bob")
	assert.Contains(t, out, "2 contributors")
}

func TestRoot_OnlyName(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, sampleDocument(""), nil), "--only-name", ".")
	require.NoError(t, err)
	assert.Equal(t, "Ann\n", out)

	out, err = execute(t, stubRunner(&c, sampleDocument(""), nil), "--only-name", "-v", ".")
	require.NoError(t, err)
	assert.Equal(t, "Ann\nBob\n", out)
}

func TestRoot_OnlyNameGitHubResolved(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, sampleDocument("ann-gh"), nil), "--only-name", "--gh", ".")
	require.NoError(t, err)

	assert.Equal(t, "ann-gh\n", out)
	assert.True(t, c.query.ResolveUsernames)
}

func TestRoot_OnlyNameGitHubUnresolved(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, sampleDocument(""), nil), "--only-name", "--gh", ".")
	require.ErrorIs(t, err, identity.ErrNoIdentityResolved)

	assert.Empty(t, out)
	assert.Equal(t, ExitNoIdentity, ExitCode(err))
}

func TestRoot_OnlyNameGitHubEmptyRanking(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, report.Document{}, nil), "--only-name", "--gh", ".")
	require.ErrorIs(t, err, identity.ErrNoIdentityResolved)

	assert.Empty(t, out)
	assert.Equal(t, ExitNoIdentity, ExitCode(err))
}

func TestRoot_NoFilesMatched(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, report.Document{}, fmt.Errorf("expand targets: %w", blame.ErrNoFilesMatched)), "nothing/*")
	require.ErrorIs(t, err, blame.ErrNoFilesMatched)

	assert.Empty(t, out)
	assert.Equal(t, ExitNoFiles, ExitCode(err))
}

func TestRoot_EmptyRankingSucceeds(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, report.Document{}, nil), ".")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRoot_Interrupted(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var c capture

	out, err := executeContext(ctx, t, stubRunner(&c, sampleDocument(""), nil), "", ".")
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, out)
	assert.Equal(t, ExitInterrupted, ExitCode(err))
}

func TestRoot_FlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	var c capture

	_, err := executeContext(context.Background(), t, stubRunner(&c, sampleDocument(""), nil),
		"blame:\n  workers: 8\n  backend: libgit2\nidentity:\n  group_by: name\n",
		"--workers", "3", "--timeout", "5s", "--identities", "ids.yaml", "--skip-vendored", ".")
	require.NoError(t, err)

	require.NotNil(t, c.cfg)
	assert.Equal(t, 3, c.cfg.Blame.Workers)
	assert.Equal(t, string(gitlib.BackendLibgit2), c.cfg.Blame.Backend)
	assert.Equal(t, 5*time.Second, c.cfg.Blame.Timeout)
	assert.True(t, c.cfg.Blame.SkipVendored)
	assert.Equal(t, "name", c.cfg.Identity.GroupBy)
	assert.Equal(t, "ids.yaml", c.cfg.Identity.File)
}

func TestRoot_InvalidFlagValue(t *testing.T) {
	t.Parallel()

	tests := [][]string{
		{"--format", "xml", "."},
		{"--backend", "svn", "."},
		{"--group-by", "team", "."},
		{"--workers", "-1", "."},
	}

	for _, args := range tests {
		var c capture

		_, err := execute(t, stubRunner(&c, sampleDocument(""), nil), args...)
		require.Error(t, err, args)
		assert.Equal(t, ExitFailure, ExitCode(err), args)
		assert.Zero(t, c.calls, args)
	}
}

func TestRoot_JSONFormat(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := execute(t, stubRunner(&c, sampleDocument(""), nil), "--format", "json", ".")
	require.NoError(t, err)

	assert.Contains(t, out, `"total_lines": 4`)
	assert.Contains(t, out, `"name": "Bob"`)
}

func TestRoot_ColorFromConfig(t *testing.T) {
	t.Parallel()

	var c capture

	out, err := executeContext(context.Background(), t, stubRunner(&c, sampleDocument(""), nil),
		"output:\n  color: always\n", ".")
	require.NoError(t, err)
	assert.Contains(t, out, "\x1b[")

	out, err = executeContext(context.Background(), t, stubRunner(&c, sampleDocument(""), nil),
		"output:\n  color: always\n", "--no-color", ".")
	require.NoError(t, err)
	assert.NotContains(t, out, "\x1b[")
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{assert.AnError, ExitFailure},
		{fmt.Errorf("run: %w", blame.ErrNoFilesMatched), ExitNoFiles},
		{identity.ErrNoIdentityResolved, ExitNoIdentity},
		{context.Canceled, ExitInterrupted},
		{&ExitError{Code: 42, Err: assert.AnError}, 42},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd := newVersionCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "blame ")
	assert.Contains(t, out.String(), "commit:")
}

func TestMCPCommand_Exists(t *testing.T) {
	t.Parallel()

	root := newRootCommandWithDeps(stubRunner(&capture{}, report.Document{}, nil), noopObservabilityInit, notTerminal)

	cmd, _, err := root.Find([]string{"mcp"})
	require.NoError(t, err)
	assert.Equal(t, "mcp", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	flag := cmd.Flags().Lookup("debug")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
