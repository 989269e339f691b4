package identity

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sumatoshi-tech/blame/pkg/command"
)

// DefaultGitHubHost is the public GitHub hostname.
const DefaultGitHubHost = "github.com"

const (
	defaultGitHubMaxCommits = 3
	defaultGitHubTimeout    = 15 * time.Second
	loginQuery              = ".author.login"
)

// ErrNotGitHubRemote is returned by ParseRemote callers when the origin is not hosted on GitHub.
var ErrNotGitHubRemote = errors.New("remote is not a GitHub repository")

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return command.Output(exec.CommandContext(ctx, name, args...), name)
}

// GitHubRepo identifies a repository on a GitHub host.
type GitHubRepo struct {
	Host  string
	Owner string
	Name  string
}

// ParseRemote extracts the GitHub repository from a remote URL. It accepts
// https://host/owner/repo(.git), git@host:owner/repo(.git) and
// ssh://git@host/owner/repo(.git).
func ParseRemote(url, host string) (GitHubRepo, bool) {
	if host == "" {
		host = DefaultGitHubHost
	}

	url = strings.TrimSpace(url)

	prefixes := []string{
		"https://" + host + "/",
		"http://" + host + "/",
		"ssh://git@" + host + "/",
		"git@" + host + ":",
	}

	for _, prefix := range prefixes {
		rest, ok := strings.CutPrefix(url, prefix)
		if !ok {
			continue
		}

		rest = strings.TrimSuffix(strings.TrimSuffix(rest, "/"), ".git")

		owner, name, ok := strings.Cut(rest, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return GitHubRepo{}, false
		}

		return GitHubRepo{Host: host, Owner: owner, Name: name}, true
	}

	return GitHubRepo{}, false
}

// GitHubConfig configures a GitHubLookup.
type GitHubConfig struct {
	Repo GitHubRepo
	// MaxCommits bounds how many of a subject's commits are tried.
	MaxCommits int
	// RatePerSecond throttles API calls. Zero disables throttling.
	RatePerSecond float64
	// Timeout bounds each API call.
	Timeout time.Duration
	// Runner executes the gh CLI. Nil uses ExecRunner.
	Runner CommandRunner
}

// GitHubLookup resolves the GitHub login that authored a subject's commits
// through the gh CLI, which handles authentication.
type GitHubLookup struct {
	repo       GitHubRepo
	maxCommits int
	timeout    time.Duration
	limiter    *rate.Limiter
	runner     CommandRunner
}

// NewGitHubLookup creates a GitHubLookup.
func NewGitHubLookup(cfg GitHubConfig) *GitHubLookup {
	lookup := &GitHubLookup{
		repo:       cfg.Repo,
		maxCommits: cfg.MaxCommits,
		timeout:    cfg.Timeout,
		runner:     cfg.Runner,
		limiter:    rate.NewLimiter(rate.Inf, 1),
	}

	if lookup.repo.Host == "" {
		lookup.repo.Host = DefaultGitHubHost
	}

	if lookup.maxCommits <= 0 {
		lookup.maxCommits = defaultGitHubMaxCommits
	}

	if lookup.timeout <= 0 {
		lookup.timeout = defaultGitHubTimeout
	}

	if lookup.runner == nil {
		lookup.runner = ExecRunner{}
	}

	if cfg.RatePerSecond > 0 {
		lookup.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	return lookup
}

// Lookup implements Lookup.
func (g *GitHubLookup) Lookup(ctx context.Context, subject Subject) (string, bool, error) {
	commits := subject.Commits
	if len(commits) > g.maxCommits {
		commits = commits[:g.maxCommits]
	}

	for _, sha := range commits {
		login, found, err := g.loginForCommit(ctx, sha)
		if err != nil {
			return "", false, err
		}

		if found {
			return login, true, nil
		}
	}

	return "", false, nil
}

func (g *GitHubLookup) loginForCommit(ctx context.Context, sha string) (string, bool, error) {
	err := g.limiter.Wait(ctx)
	if err != nil {
		return "", false, fmt.Errorf("github rate limiter: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := []string{
		"api",
		fmt.Sprintf("repos/%s/%s/commits/%s", g.repo.Owner, g.repo.Name, sha),
		"--jq", loginQuery,
	}

	if g.repo.Host != DefaultGitHubHost {
		args = append(args, "--hostname", g.repo.Host)
	}

	out, err := g.runner.Run(callCtx, "gh", args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}

		if isMissingCommit(err) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("%w: %w", ErrLookupUnavailable, err)
	}

	login := strings.TrimSpace(string(out))
	if login == "" || login == "null" {
		return "", false, nil
	}

	return login, true, nil
}

// isMissingCommit reports whether gh failed because GitHub does not know the
// commit (never pushed, or rewritten), which is a miss rather than an outage.
func isMissingCommit(err error) bool {
	var cmdErr *command.Error
	if !errors.As(err, &cmdErr) {
		return false
	}

	return strings.Contains(cmdErr.Stderr, "HTTP 404") || strings.Contains(cmdErr.Stderr, "HTTP 422")
}
