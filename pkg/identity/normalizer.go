package identity

// Normalizer maps raw identities to grouping keys, folding known aliases of
// one person into a single canonical key before any counting happens.
type Normalizer struct {
	policy  Policy
	aliases map[string]string
}

// NewNormalizer creates a Normalizer. Every alias of an entry maps to the key
// of the entry's first alias. A nil or empty entry list disables aliasing.
func NewNormalizer(policy Policy, entries []Entry) *Normalizer {
	if policy == "" {
		policy = PolicyEmail
	}

	n := &Normalizer{policy: policy, aliases: make(map[string]string)}

	for _, entry := range entries {
		if len(entry.Aliases) == 0 {
			continue
		}

		canonical := normalize(entry.Aliases[0], policy)
		if existing, ok := n.aliases[canonical]; ok {
			canonical = existing
		} else {
			n.aliases[canonical] = canonical
		}

		for _, alias := range entry.Aliases {
			key := normalize(alias, policy)
			if _, taken := n.aliases[key]; taken {
				continue
			}

			n.aliases[key] = canonical
		}
	}

	return n
}

// Policy returns the grouping policy.
func (n *Normalizer) Policy() Policy {
	return n.policy
}

// Key returns the grouping key for a raw identity. Key is idempotent.
func (n *Normalizer) Key(raw string) string {
	key := normalize(raw, n.policy)

	// Under PolicyEmail an identity carrying both a name and an email is keyed
	// by the email, but an alias list may only know the person by name.
	if canonical, ok := n.aliases[key]; ok {
		return canonical
	}

	if n.policy == PolicyEmail {
		name, email := SplitIdentity(raw)
		if name != "" && email != "" {
			if canonical, ok := n.aliases[keyOf(name)]; ok {
				return canonical
			}
		}
	}

	return key
}
