package auth

import "strings"

// Well-known scopes with protocol side effects.
const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeEmail         = "email"
	ScopeOfflineAccess = "offline_access"
)

// SplitScopes parses a space-separated scope string into a slice.
func SplitScopes(s string) []string {
	return strings.Fields(s)
}

// JoinScopes renders a scope slice as a space-separated string.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// HasScope reports whether scope is present in scopes.
func HasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IntersectScopes returns the requested scopes that are also allowed,
// preserving request order and dropping duplicates.
func IntersectScopes(requested, allowed []string) []string {
	allowedSet := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = true
	}
	var out []string
	seen := make(map[string]bool, len(requested))
	for _, s := range requested {
		if allowedSet[s] && !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

// UnionScopes merges two scope slices, preserving first-seen order.
func UnionScopes(a, b []string) []string {
	var out []string
	seen := make(map[string]bool, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}
