package storage

import "time"

// TokenKind identifies the namespace a token string is unique within.
type TokenKind string

const (
	// KindAccessToken is a bearer token presented to protected resources
	KindAccessToken TokenKind = "access_token"

	// KindRefreshToken is exchanged for a new access token
	KindRefreshToken TokenKind = "refresh_token"

	// KindAuthorizationCode is the short-lived code of the redirect flow
	KindAuthorizationCode TokenKind = "authorization_code"
)

// Token is an issued opaque token of any kind. Tokens are created once by
// a token service and immutable afterwards except for deletion.
type Token struct {
	// Kind is the token's namespace
	Kind TokenKind

	// Token is the opaque random token string. Lookup is by exact,
	// case-sensitive match only.
	Token string

	// OwnerID is the opaque external identity the token acts for.
	// Empty for client-only tokens (client_credentials).
	OwnerID string

	// ClientID references the client the token was issued to, if any
	ClientID string

	// Scopes is the scope set copied onto the token at issuance. Copying
	// rather than referencing means historical scope survives later
	// registry changes.
	Scopes []string

	// RedirectURI is the redirect URI an authorization code was bound to
	// at issuance. Empty for other kinds.
	RedirectURI string

	CreatedAt time.Time

	// ExpiresAt is the absolute expiry; the zero value means the token
	// never expires
	ExpiresAt time.Time
}

// Expired reports whether the token's expiry has passed.
// Tokens without an expiry never expire.
func (t *Token) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime in whole seconds, or 0 for a
// non-expiring token.
func (t *Token) ExpiresIn() int64 {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	remaining := int64(time.Until(t.ExpiresAt).Round(time.Second) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasScope reports whether name is in the token's stored scope set.
func (t *Token) HasScope(name string) bool {
	for _, s := range t.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// IsValid reports whether the token is usable for the requested scopes:
// false if expired, false if requestedScopes is non-empty and not a subset
// of the token's stored scopes, true otherwise. Subset comparison is exact
// set containment, never prefix or case-insensitive matching.
func (t *Token) IsValid(requestedScopes []string) bool {
	if t.Expired() {
		return false
	}
	for _, requested := range requestedScopes {
		if !t.HasScope(requested) {
			return false
		}
	}
	return true
}
