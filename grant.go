package oauth

import (
	"context"

	"github.com/giantswarm/oauth2-server/storage"
)

// Grant type identifiers used at the token endpoint
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypePassword          = "password"
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Response type identifiers used at the authorize endpoint
const (
	ResponseTypeCode = "code"
)

// Grant is the contract every grant strategy implements. Grants that do
// not support one of the two response-producing operations fail it with
// invalid_request rather than silently doing nothing.
type Grant interface {
	// Type is the stable grant identifier used at the token endpoint
	Type() string

	// ResponseType is the identifier used at the authorize endpoint,
	// empty if the grant has none
	ResponseType() string

	// AllowsPublicClients reports whether the grant accepts clients
	// without a verifiable secret
	AllowsPublicClients() bool

	// AuthorizationResponse handles the authorize endpoint for this grant
	AuthorizationResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error)

	// TokenResponse handles the token endpoint for this grant
	TokenResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error)
}

// GrantRegistry is the read-only view of the server a grant may query to
// learn whether a sibling grant is registered. It is deliberately narrow:
// grants never get a general-purpose handle back into the server.
type GrantRegistry interface {
	HasGrant(grantType string) bool
}

// ServerAware is implemented by grants that need the registry view; the
// server injects it once at construction.
type ServerAware interface {
	BindRegistry(registry GrantRegistry)
}

// newTokenResponse builds the shared token endpoint response body
func newTokenResponse(accessToken, refreshToken *storage.Token) *Response {
	body := TokenResponse{
		AccessToken: accessToken.Token,
		TokenType:   TokenType,
		ExpiresIn:   accessToken.ExpiresIn(),
		Scope:       JoinScope(accessToken.Scopes),
		OwnerID:     accessToken.OwnerID,
	}
	if refreshToken != nil {
		body.RefreshToken = refreshToken.Token
	}

	resp := NewResponse()
	resp.SetJSON(body)
	return resp
}
