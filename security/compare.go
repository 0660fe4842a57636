package security

import "crypto/subtle"

// SecureCompare reports whether two strings are equal using a constant-time
// comparison. It is used for all token string comparisons so that lookup
// timing does not leak how many leading characters of a guess were correct,
// and so that a case-insensitive storage collation can never silently accept
// a token that differs from the stored one.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
