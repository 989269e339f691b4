package blame

import (
	"context"
	"errors"
	"strings"

	"github.com/Sumatoshi-tech/blame/pkg/identity"
)

// ExternalResolver maps a contributor to an external username.
type ExternalResolver interface {
	ResolveExternal(ctx context.Context, subject identity.Subject) (username string, found bool, err error)
}

// Resolution is a ranking re-bucketed by external username.
type Resolution struct {
	Ranking Ranking
	// Resolved counts the input tallies that received a username.
	Resolved int
	// Unavailable joins the lookup failures; the affected tallies keep their
	// raw identity.
	Unavailable error
}

// usernamePrefix keeps username keys apart from grouping keys.
const usernamePrefix = "@"

// ResolveRanking resolves the username of every contributor and merges the
// contributors sharing a username into a single tally. Lookups that cannot
// reach their source leave the contributor unresolved and are reported in
// Resolution.Unavailable. Only cancellation and unexpected errors fail.
func ResolveRanking(ctx context.Context, ranking Ranking, resolver ExternalResolver) (Resolution, error) {
	table := NewTable()
	resolved := 0

	var unavailable []error

	for _, tally := range ranking {
		subject := identity.Subject{Raw: tally.DisplayName, Key: tally.Key, Commits: tally.Commits()}

		username, found, err := resolver.ResolveExternal(ctx, subject)
		if err != nil {
			if ctx.Err() != nil {
				return Resolution{}, ctx.Err()
			}

			if !errors.Is(err, identity.ErrLookupUnavailable) {
				return Resolution{}, err
			}

			unavailable = append(unavailable, err)
			found = false
		}

		entry := tally.clone()

		if found {
			resolved++

			entry.Key = usernamePrefix + strings.ToLower(username)
			entry.Username = username
			entry.names = map[string]int{username: entry.Lines}
		}

		table.insert(entry)
	}

	return Resolution{
		Ranking:     table.Rank(),
		Resolved:    resolved,
		Unavailable: errors.Join(unavailable...),
	}, nil
}

// insert adds a whole tally, merging it with an existing one under the same key.
func (t *Table) insert(tally *Tally) {
	if ours, ok := t.tallies[tally.Key]; ok {
		ours.merge(tally)
	} else {
		t.tallies[tally.Key] = tally
	}

	t.records += tally.Lines
}
