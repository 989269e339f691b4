package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/blame/pkg/identity"
)

func TestSplitIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw   string
		name  string
		email string
	}{
		{raw: "Jane Doe <jane@example.com>", name: "Jane Doe", email: "jane@example.com"},
		{raw: "  Jane Doe   <jane@example.com>  ", name: "Jane Doe", email: "jane@example.com"},
		{raw: "Jane Doe", name: "Jane Doe"},
		{raw: "jane@example.com", email: "jane@example.com"},
		{raw: "<jane@example.com>", email: "jane@example.com"},
		{raw: "Jane <>", name: "Jane"},
		{raw: "Jane <jane", name: "Jane <jane"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			name, email := identity.SplitIdentity(tt.raw)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.email, email)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "Jane Doe <Jane@Example.COM>", want: "jane@example.com"},
		{raw: "JANE DOE <jane@example.com>", want: "jane@example.com"},
		{raw: "Jane\t  Doe", want: "jane doe"},
		{raw: "Jane <>", want: "jane"},
		{raw: "  jane@example.com ", want: "jane@example.com"},
		{raw: "x <a> y <b@c.d>", want: "b@c.d"},
		{raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, identity.Normalize(tt.raw))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Jane Doe <Jane@Example.com>",
		"Jane  Doe",
		"jane@example.com",
		"<jane @example.com>",
		"x <a> y",
		"Jane <jane",
		"Not Committed Yet <not.committed.yet>",
		"",
	}

	for _, policy := range []identity.Policy{identity.PolicyEmail, identity.PolicyName} {
		normalizer := identity.NewNormalizer(policy, nil)

		for _, raw := range inputs {
			once := normalizer.Key(raw)
			assert.Equal(t, once, normalizer.Key(once), "policy=%s raw=%q", policy, raw)
		}
	}

	for _, raw := range inputs {
		once := identity.Normalize(raw)
		assert.Equal(t, once, identity.Normalize(once), "raw=%q", raw)
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Jane Doe", identity.DisplayName("Jane   Doe <jane@example.com>"))
	assert.Equal(t, "jane@example.com", identity.DisplayName("<jane@example.com>"))
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	policy, err := identity.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, identity.PolicyEmail, policy)

	policy, err = identity.ParsePolicy(" Name ")
	require.NoError(t, err)
	assert.Equal(t, identity.PolicyName, policy)

	_, err = identity.ParsePolicy("login")
	require.ErrorIs(t, err, identity.ErrUnknownPolicy)
}
