package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blame/pkg/config"
	"github.com/Sumatoshi-tech/blame/pkg/gitlib"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/report"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blame.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBackend, cfg.Blame.Backend)
	assert.Equal(t, config.DefaultWorkers, cfg.Blame.Workers)
	assert.Equal(t, config.DefaultTimeout, cfg.Blame.Timeout)
	assert.Equal(t, config.DefaultSkipBinary, cfg.Blame.SkipBinary)
	assert.Equal(t, config.DefaultGroupBy, cfg.Identity.GroupBy)
	assert.Equal(t, config.DefaultLookup, cfg.Identity.Lookup)
	assert.Equal(t, config.DefaultRemote, cfg.Identity.Remote)
	assert.Equal(t, config.DefaultGitHubMaxCommits, cfg.Identity.GitHub.MaxCommits)
	assert.Equal(t, config.DefaultGitHubTimeout, cfg.Identity.GitHub.Timeout)
	assert.Equal(t, config.DefaultFormat, cfg.Output.Format)
	assert.Equal(t, config.ColorAuto, cfg.Output.Color)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
blame:
  backend: libgit2
  workers: 4
  timeout: 5s
  skip_vendored: true
identity:
  group_by: name
  file: people.yaml
  lookup: static
  github:
    max_commits: 1
    rate_per_sec: 2.5
output:
  format: json
  color: never
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_headers:
    x-team: infra
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "libgit2", cfg.Blame.Backend)
	assert.Equal(t, 4, cfg.Blame.Workers)
	assert.Equal(t, 5*time.Second, cfg.Blame.Timeout)
	assert.True(t, cfg.Blame.SkipVendored)
	assert.Equal(t, "name", cfg.Identity.GroupBy)
	assert.Equal(t, "people.yaml", cfg.Identity.File)
	assert.Equal(t, 1, cfg.Identity.GitHub.MaxCommits)
	assert.InDelta(t, 2.5, cfg.Identity.GitHub.RatePerSec, 0.0001)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, map[string]string{"x-team": "infra"}, cfg.Telemetry.OTLPHeaders)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("BLAME_BLAME_WORKERS", "3")
	t.Setenv("BLAME_IDENTITY_LOOKUP", "none")
	t.Setenv("BLAME_OUTPUT_FORMAT", "yaml")

	cfg, err := config.LoadConfig(writeConfig(t, "blame:\n  workers: 9\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Blame.Workers)
	assert.Equal(t, "none", cfg.Identity.Lookup)
	assert.Equal(t, "yaml", cfg.Output.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "backend", content: "blame:\n  backend: svn\n", wantErr: gitlib.ErrUnknownBackend},
		{name: "workers", content: "blame:\n  workers: -1\n", wantErr: config.ErrInvalidWorkers},
		{name: "timeout", content: "blame:\n  timeout: 0s\n", wantErr: config.ErrInvalidTimeout},
		{name: "group by", content: "identity:\n  group_by: login\n", wantErr: identity.ErrUnknownPolicy},
		{name: "lookup", content: "identity:\n  lookup: ldap\n", wantErr: identity.ErrUnknownLookup},
		{name: "github", content: "identity:\n  github:\n    cache_size: 0\n", wantErr: config.ErrInvalidGitHub},
		{name: "format", content: "output:\n  format: xml\n", wantErr: report.ErrUnknownFormat},
		{name: "color", content: "output:\n  color: sometimes\n", wantErr: config.ErrInvalidColor},
		{name: "log level", content: "logging:\n  level: loud\n", wantErr: config.ErrInvalidLogLevel},
		{name: "log format", content: "logging:\n  format: xml\n", wantErr: config.ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "blame: [unclosed\n"))
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	level, err := config.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = config.ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = config.ParseLevel("chatty")
	require.ErrorIs(t, err, config.ErrInvalidLogLevel)
}

func TestDefault_MatchesLoadedDefaults(t *testing.T) {
	t.Parallel()

	def := config.Default()
	require.NoError(t, def.Validate())

	loaded, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, loaded.Blame, def.Blame)
	assert.Equal(t, loaded.Identity, def.Identity)
	assert.Equal(t, loaded.Output, def.Output)
	assert.Equal(t, loaded.Logging, def.Logging)
}
