// Package identity normalizes raw git author identities into grouping keys
// and resolves them to external usernames through pluggable lookups.
package identity

import (
	"errors"
	"strings"
)

// Policy selects which half of a "Name <email>" identity becomes the grouping key.
type Policy string

const (
	// PolicyEmail groups by email when one is present, falling back to the name.
	PolicyEmail Policy = "email"
	// PolicyName groups by display name, ignoring emails.
	PolicyName Policy = "name"
)

// ErrUnknownPolicy is returned by ParsePolicy for unsupported values.
var ErrUnknownPolicy = errors.New("unknown grouping policy")

// ParsePolicy converts a configuration value into a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyEmail, "":
		return PolicyEmail, nil
	case PolicyName:
		return PolicyName, nil
	default:
		return "", ErrUnknownPolicy
	}
}

// SplitIdentity splits "Name <email>" into its name and email parts.
// A bare "user@host" is returned as an email with an empty name.
func SplitIdentity(raw string) (name, email string) {
	raw = strings.TrimSpace(raw)

	open := strings.LastIndexByte(raw, '<')
	if open >= 0 {
		closing := strings.IndexByte(raw[open:], '>')
		if closing > 0 {
			return strings.TrimSpace(raw[:open]), strings.TrimSpace(raw[open+1 : open+closing])
		}
	}

	if !strings.ContainsAny(raw, " \t") && strings.Contains(raw, "@") {
		return "", raw
	}

	return raw, ""
}

// DisplayName returns the human-facing part of a raw identity: the name when
// present, otherwise the email.
func DisplayName(raw string) string {
	name, email := SplitIdentity(raw)
	if name != "" {
		return collapse(name)
	}

	return email
}

// Normalize reduces a raw identity to its grouping key under PolicyEmail.
// It is pure and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	return normalize(raw, PolicyEmail)
}

func normalize(raw string, policy Policy) string {
	name, email := SplitIdentity(raw)

	if policy == PolicyEmail && email != "" {
		return keyOf(email)
	}

	if name == "" {
		name = email
	}

	return keyOf(name)
}

// angleStripper drops brackets so that a key never parses as "Name <email>" again.
var angleStripper = strings.NewReplacer("<", "", ">", "")

func keyOf(s string) string {
	return strings.ToLower(collapse(angleStripper.Replace(s)))
}

// collapse trims and folds every run of whitespace into a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
