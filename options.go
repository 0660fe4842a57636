package oauth

import "time"

// Default token lifetimes
const (
	// DefaultAccessTokenTTL is the default access token lifetime
	DefaultAccessTokenTTL = time.Hour

	// DefaultAuthorizationCodeTTL is the default authorization code lifetime
	DefaultAuthorizationCodeTTL = 10 * time.Minute
)

// Options holds the server-wide token issuance policy. It is constructed
// once and threaded through the token services and grants; it is never
// mutated after construction.
type Options struct {
	// AccessTokenTTL is the access token lifetime.
	// Zero means use the default (1 hour); a negative value disables
	// expiry entirely.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the refresh token lifetime.
	// Zero or negative means refresh tokens never expire.
	RefreshTokenTTL time.Duration

	// AuthorizationCodeTTL is the authorization code lifetime.
	// Zero means use the default (10 minutes); a negative value disables
	// expiry entirely.
	AuthorizationCodeTTL time.Duration

	// RotateRefreshTokens issues a new refresh token on every refresh
	// when enabled.
	RotateRefreshTokens bool

	// RevokeRotatedRefreshTokens deletes the old refresh token when
	// rotation replaces it. Only meaningful with RotateRefreshTokens.
	RevokeRotatedRefreshTokens bool
}

// WithDefaults returns a copy of the options with zero lifetimes replaced
// by their defaults. Negative lifetimes pass through and mean non-expiring.
func (o Options) WithDefaults() Options {
	if o.AccessTokenTTL == 0 {
		o.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if o.AuthorizationCodeTTL == 0 {
		o.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	return o
}
