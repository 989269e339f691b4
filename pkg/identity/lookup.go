package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/blame/pkg/alg/lru"
)

// Sentinel errors.
var (
	// ErrLookupUnavailable means the lookup source could not be reached. It is
	// distinct from a miss: the source was never asked, so an empty result
	// carries no information.
	ErrLookupUnavailable = errors.New("identity lookup unavailable")
	// ErrNoIdentityResolved means the top contributor has no external username.
	ErrNoIdentityResolved = errors.New("no external identity resolved")
	// ErrUnknownLookup is returned by ParseLookupKind for unsupported values.
	ErrUnknownLookup = errors.New("unknown identity lookup")
)

// Subject describes a contributor to resolve.
type Subject struct {
	// Raw is a raw identity string as reported by git.
	Raw string
	// Key is the grouping key of the contributor.
	Key string
	// Commits are SHAs authored by the contributor, most useful first.
	Commits []string
}

// Lookup resolves a contributor to a username on an external platform.
// A miss returns found == false with a nil error.
type Lookup interface {
	Lookup(ctx context.Context, subject Subject) (username string, found bool, err error)
}

// LookupKind selects a Lookup implementation.
type LookupKind string

const (
	// LookupAuto uses the identities file when it names a username for the
	// subject and falls back to GitHub otherwise.
	LookupAuto LookupKind = "auto"
	// LookupStatic only consults the identities file.
	LookupStatic LookupKind = "static"
	// LookupGitHub only consults the GitHub API.
	LookupGitHub LookupKind = "github"
	// LookupNone never resolves anything.
	LookupNone LookupKind = "none"
)

// ParseLookupKind converts a configuration value into a LookupKind.
func ParseLookupKind(value string) (LookupKind, error) {
	switch kind := LookupKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case "":
		return LookupAuto, nil
	case LookupAuto, LookupStatic, LookupGitHub, LookupNone:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownLookup, value)
	}
}

// NoopLookup never finds anything.
type NoopLookup struct{}

// Lookup implements Lookup.
func (NoopLookup) Lookup(context.Context, Subject) (string, bool, error) {
	return "", false, nil
}

// StaticLookup resolves usernames from the identities file.
type StaticLookup struct {
	normalizer *Normalizer
	usernames  map[string]string
}

// NewStaticLookup indexes every entry carrying a username by the grouping
// key of each of its aliases.
func NewStaticLookup(normalizer *Normalizer, entries []Entry) *StaticLookup {
	usernames := make(map[string]string)

	for _, entry := range entries {
		if entry.Username == "" {
			continue
		}

		for _, alias := range entry.Aliases {
			key := normalizer.Key(alias)
			if _, taken := usernames[key]; !taken {
				usernames[key] = entry.Username
			}
		}
	}

	return &StaticLookup{normalizer: normalizer, usernames: usernames}
}

// Lookup implements Lookup.
func (s *StaticLookup) Lookup(_ context.Context, subject Subject) (string, bool, error) {
	key := subject.Key
	if key == "" {
		key = s.normalizer.Key(subject.Raw)
	}

	username, ok := s.usernames[key]

	return username, ok, nil
}

// ChainLookup asks each lookup in order and returns the first hit. An
// unavailable lookup does not stop the chain, but is reported when nothing
// later in the chain finds the subject.
type ChainLookup []Lookup

// Lookup implements Lookup.
func (c ChainLookup) Lookup(ctx context.Context, subject Subject) (string, bool, error) {
	var unavailable error

	for _, lookup := range c {
		username, found, err := lookup.Lookup(ctx, subject)

		switch {
		case err != nil && errors.Is(err, ErrLookupUnavailable):
			unavailable = errors.Join(unavailable, err)
		case err != nil:
			return "", false, err
		case found:
			return username, true, nil
		}
	}

	return "", false, unavailable
}

type cachedAnswer struct {
	username string
	found    bool
}

// CachingLookup memoizes answers of an inner Lookup for the lifetime of one
// run. Hits and confirmed misses are cached; failures are not.
type CachingLookup struct {
	inner Lookup
	cache *lru.Cache[string, cachedAnswer]
}

// NewCachingLookup wraps inner with a read-through cache of the given size.
func NewCachingLookup(inner Lookup, size int) *CachingLookup {
	return &CachingLookup{inner: inner, cache: lru.New[string, cachedAnswer](max(size, 1))}
}

// Lookup implements Lookup.
func (c *CachingLookup) Lookup(ctx context.Context, subject Subject) (string, bool, error) {
	key := subject.Key
	if key == "" {
		key = subject.Raw
	}

	if answer, ok := c.cache.Get(key); ok {
		return answer.username, answer.found, nil
	}

	username, found, err := c.inner.Lookup(ctx, subject)
	if err != nil {
		return "", false, err
	}

	c.cache.Put(key, cachedAnswer{username: username, found: found})

	return username, found, nil
}

// Stats exposes the cache statistics.
func (c *CachingLookup) Stats() lru.Stats {
	return c.cache.Stats()
}
