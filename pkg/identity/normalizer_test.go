package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/blame/pkg/identity"
)

func TestNormalizer_PolicyName(t *testing.T) {
	t.Parallel()

	normalizer := identity.NewNormalizer(identity.PolicyName, nil)

	assert.Equal(t, "jane doe", normalizer.Key("Jane Doe <jane@work.example>"))
	assert.Equal(t, "jane doe", normalizer.Key("jane  doe <jane@home.example>"))
	assert.Equal(t, identity.PolicyName, normalizer.Policy())
}

func TestNormalizer_AliasesFoldBeforeCounting(t *testing.T) {
	t.Parallel()

	entries := []identity.Entry{{
		Username: "jdoe",
		Aliases:  []string{"jane@example.com", "jane@old.example", "Janie"},
	}}

	normalizer := identity.NewNormalizer(identity.PolicyEmail, entries)

	assert.Equal(t, "jane@example.com", normalizer.Key("Jane Doe <JANE@old.example>"))
	assert.Equal(t, "jane@example.com", normalizer.Key("Janie <janie@laptop.local>"))
	assert.Equal(t, "jane@example.com", normalizer.Key("Janie"))
	assert.Equal(t, "bob@example.com", normalizer.Key("Bob <bob@example.com>"))
}

func TestNormalizer_OverlappingEntriesStayIdempotent(t *testing.T) {
	t.Parallel()

	entries := []identity.Entry{
		{Aliases: []string{"a@example.com", "b@example.com"}},
		{Aliases: []string{"b@example.com", "c@example.com"}},
	}

	normalizer := identity.NewNormalizer(identity.PolicyEmail, entries)

	for _, raw := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		key := normalizer.Key(raw)
		assert.Equal(t, "a@example.com", key)
		assert.Equal(t, key, normalizer.Key(key))
	}
}

func TestNormalizer_DefaultsToEmailPolicy(t *testing.T) {
	t.Parallel()

	normalizer := identity.NewNormalizer("", nil)

	assert.Equal(t, identity.PolicyEmail, normalizer.Policy())
	assert.Equal(t, "jane@example.com", normalizer.Key("Jane <jane@example.com>"))
}
