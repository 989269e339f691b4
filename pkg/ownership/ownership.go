// Package ownership answers "who owns this code?" for a set of path patterns:
// it expands the patterns, blames every file, optionally resolves external
// usernames and builds the report document.
package ownership

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/blame/pkg/blame"
	"github.com/Sumatoshi-tech/blame/pkg/config"
	"github.com/Sumatoshi-tech/blame/pkg/gitlib"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/observability"
	"github.com/Sumatoshi-tech/blame/pkg/report"
	"github.com/Sumatoshi-tech/blame/pkg/targets"
)

// Query selects what to rank.
type Query struct {
	// Dir is the base of relative patterns. Empty uses the working directory.
	Dir string
	// Patterns are literal paths, directories or doublestar globs.
	Patterns []string
	// ResolveUsernames maps contributors to external usernames.
	ResolveUsernames bool
}

// Deps holds injectable collaborators. Zero-value fields use defaults.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.BlameMetrics
	// Runner executes the gh CLI. Nil uses identity.ExecRunner.
	Runner identity.CommandRunner
}

// Report is the outcome of a query.
type Report struct {
	Document report.Document
	Targets  targets.Targets
	// Resolved counts contributors that received an external username.
	Resolved int
}

// Run executes query under cfg. It fails with blame.ErrNoFilesMatched when
// the patterns leave no file and with the context error when cancelled.
// Per-file failures and unreachable lookups are logged and reported in the
// document instead.
func Run(ctx context.Context, cfg *config.Config, query Query, deps Deps) (Report, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	if deps.Tracer == nil {
		deps.Tracer = nooptrace.NewTracerProvider().Tracer("blame")
	}

	ctx, span := deps.Tracer.Start(ctx, "ownership.run",
		trace.WithAttributes(attribute.StringSlice("blame.patterns", query.Patterns)))
	defer span.End()

	rep, err := run(ctx, cfg, query, deps)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	return rep, err
}

func run(ctx context.Context, cfg *config.Config, query Query, deps Deps) (Report, error) {
	backend, err := gitlib.ParseBackend(cfg.Blame.Backend)
	if err != nil {
		return Report{}, err
	}

	normalizer, entries, err := loadIdentities(cfg.Identity)
	if err != nil {
		return Report{}, err
	}

	tg, err := targets.Expand(ctx, query.Patterns, targets.Options{
		Dir:          query.Dir,
		GitBinary:    cfg.Blame.Git,
		SkipVendored: cfg.Blame.SkipVendored,
		SkipBinary:   cfg.Blame.SkipBinary,
		Logger:       deps.Logger,
	})
	if err != nil {
		return Report{Targets: tg}, fmt.Errorf("expand targets: %w", err)
	}

	git := gitlib.NewGit(cfg.Blame.Git, tg.Root)

	source, closer, err := gitlib.OpenSource(backend, git)
	if err != nil {
		return Report{Targets: tg}, fmt.Errorf("open %s backend: %w", backend, err)
	}
	defer closer.Close()

	agg := blame.NewAggregator(source, blame.Config{
		Workers: cfg.Blame.Workers,
		Timeout: cfg.Blame.Timeout,
		Key:     normalizer.Key,
		Logger:  deps.Logger,
		Tracer:  deps.Tracer,
		Metrics: deps.Metrics,
	})

	result, err := agg.Run(ctx, tg.Files)
	if err != nil {
		return Report{Targets: tg}, err
	}

	ranking := result.Ranking
	resolved := 0

	if query.ResolveUsernames && len(ranking) > 0 {
		lookup := buildLookup(ctx, cfg.Identity, git, normalizer, entries, deps)
		resolver := identity.NewResolver(normalizer, identity.NewMeteredLookup(lookup, deps.Metrics))

		resolution, err := blame.ResolveRanking(ctx, ranking, resolver)
		if err != nil {
			return Report{Targets: tg}, fmt.Errorf("resolve usernames: %w", err)
		}

		if resolution.Unavailable != nil {
			deps.Logger.WarnContext(ctx, "username lookup unavailable, keeping raw identities",
				"error", resolution.Unavailable)
		}

		ranking = resolution.Ranking
		resolved = resolution.Resolved
	}

	return Report{
		Document: report.Build(tg.Root, result, ranking, tg.Rel),
		Targets:  tg,
		Resolved: resolved,
	}, nil
}

func loadIdentities(cfg config.IdentityConfig) (*identity.Normalizer, []identity.Entry, error) {
	policy, err := identity.ParsePolicy(cfg.GroupBy)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", err, cfg.GroupBy)
	}

	if cfg.File == "" {
		return identity.NewNormalizer(policy, nil), nil, nil
	}

	file, err := identity.LoadFile(cfg.File)
	if err != nil {
		return nil, nil, err
	}

	return identity.NewNormalizer(policy, file.Identities), file.Identities, nil
}

// unavailableLookup reports a lookup whose source could not be set up.
type unavailableLookup struct{ err error }

func (u unavailableLookup) Lookup(context.Context, identity.Subject) (string, bool, error) {
	return "", false, u.err
}

func buildLookup(
	ctx context.Context,
	cfg config.IdentityConfig,
	git *gitlib.Git,
	normalizer *identity.Normalizer,
	entries []identity.Entry,
	deps Deps,
) identity.Lookup {
	kind, err := identity.ParseLookupKind(cfg.Lookup)
	if err != nil {
		return unavailableLookup{err: fmt.Errorf("%w: %w", identity.ErrLookupUnavailable, err)}
	}

	switch kind {
	case identity.LookupNone:
		return identity.NoopLookup{}
	case identity.LookupStatic:
		return identity.NewStaticLookup(normalizer, entries)
	case identity.LookupGitHub:
		return gitHubLookup(ctx, cfg, git, deps)
	default:
		return identity.ChainLookup{
			identity.NewStaticLookup(normalizer, entries),
			gitHubLookup(ctx, cfg, git, deps),
		}
	}
}

func gitHubLookup(ctx context.Context, cfg config.IdentityConfig, git *gitlib.Git, deps Deps) identity.Lookup {
	url, err := git.RemoteURL(ctx, cfg.Remote)
	if err != nil {
		return unavailableLookup{err: fmt.Errorf("%w: remote %q: %w", identity.ErrLookupUnavailable, cfg.Remote, err)}
	}

	repo, ok := identity.ParseRemote(url, cfg.GitHub.Host)
	if !ok {
		return unavailableLookup{err: fmt.Errorf("%w: %w: %s", identity.ErrLookupUnavailable, identity.ErrNotGitHubRemote, url)}
	}

	deps.Logger.DebugContext(ctx, "resolving usernames on github", "owner", repo.Owner, "repo", repo.Name)

	return identity.NewCachingLookup(identity.NewGitHubLookup(identity.GitHubConfig{
		Repo:          repo,
		MaxCommits:    cfg.GitHub.MaxCommits,
		RatePerSecond: cfg.GitHub.RatePerSec,
		Timeout:       cfg.GitHub.Timeout,
		Runner:        deps.Runner,
	}), cfg.GitHub.CacheSize)
}

