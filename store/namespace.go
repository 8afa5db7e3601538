package store

import "strings"

// Separator terminates every non-empty namespace.
const Separator = ":"

// Namespace is an immutable key prefix fixed at adapter construction.
// All keys are prefixed internally and de-prefixed before being returned,
// so callers never observe the full (stored) form.
type Namespace string

// Validate enforces the construction rule: empty, or ends with Separator.
func (n Namespace) Validate() error {
	if n == "" || strings.HasSuffix(string(n), Separator) {
		return nil
	}
	return &InvalidNamespaceError{
		Namespace: string(n),
		Reason:    `must be empty or end with "` + Separator + `"`,
	}
}

// Apply turns a local key into its stored full form.
func (n Namespace) Apply(local string) string { return string(n) + local }

// Strip turns a full key back into the caller-visible local key.
func (n Namespace) Strip(full string) string { return strings.TrimPrefix(full, string(n)) }

// Owns reports whether full lives inside this namespace.
func (n Namespace) Owns(full string) bool { return strings.HasPrefix(full, string(n)) }
