package identity

import (
	"context"
	"fmt"
)

// Resolver combines grouping-key normalization with external username lookup.
type Resolver struct {
	normalizer *Normalizer
	lookup     Lookup
}

// NewResolver creates a Resolver. A nil lookup never resolves anything.
func NewResolver(normalizer *Normalizer, lookup Lookup) *Resolver {
	if normalizer == nil {
		normalizer = NewNormalizer(PolicyEmail, nil)
	}

	if lookup == nil {
		lookup = NoopLookup{}
	}

	return &Resolver{normalizer: normalizer, lookup: lookup}
}

// Normalize returns the grouping key of a raw identity.
func (r *Resolver) Normalize(raw string) string {
	return r.normalizer.Key(raw)
}

// ResolveExternal looks up the external username of a contributor. A miss
// returns found == false and a nil error; an unreachable source returns an
// error wrapping ErrLookupUnavailable.
func (r *Resolver) ResolveExternal(ctx context.Context, subject Subject) (string, bool, error) {
	if subject.Key == "" {
		subject.Key = r.normalizer.Key(subject.Raw)
	}

	username, found, err := r.lookup.Lookup(ctx, subject)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", subject.Key, err)
	}

	return username, found, nil
}
