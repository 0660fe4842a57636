package oauth

import "strings"

// ParseScope splits a space-delimited scope string into scope names,
// dropping empty entries.
func ParseScope(scope string) []string {
	return strings.Fields(scope)
}

// JoinScope joins scope names into the space-delimited wire form
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}

// scopeSubset reports whether every name in requested is present in
// granted. Comparison is exact and case-sensitive.
func scopeSubset(requested, granted []string) bool {
	if len(requested) == 0 {
		return true
	}
	set := make(map[string]bool, len(granted))
	for _, s := range granted {
		set[s] = true
	}
	for _, s := range requested {
		if !set[s] {
			return false
		}
	}
	return true
}
