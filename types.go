package oauth

// TokenResponse is the JSON body returned by the token endpoint.
// Empty fields are omitted.
type TokenResponse struct {
	// AccessToken is the issued bearer token string
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds; omitted for
	// non-expiring tokens
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// Scope is the space-joined set of granted scope names
	Scope string `json:"scope,omitempty"`

	// OwnerID identifies the resource owner the token was issued for
	OwnerID string `json:"owner_id,omitempty"`

	// RefreshToken is issued only when the refresh-token grant is registered
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ErrorResponse is the JSON body returned for OAuth errors
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ClientRegistrationResponse is returned once at registration time.
// The raw secret is never recoverable afterwards.
type ClientRegistrationResponse struct {
	// ClientID is the generated client identifier
	ClientID string `json:"client_id"`

	// ClientSecret is the raw secret, returned exactly once.
	// Empty for public clients.
	ClientSecret string `json:"client_secret,omitempty"`

	// ClientName echoes the registered display name
	ClientName string `json:"client_name,omitempty"`

	// RedirectURIs echoes the registered redirect URIs
	RedirectURIs []string `json:"redirect_uris,omitempty"`

	// Scope is the space-joined set of allowed scope names
	Scope string `json:"scope,omitempty"`
}

// TokenType is the only token type this server issues
const TokenType = "Bearer"
