package oauth

import (
	"context"

	"github.com/giantswarm/oauth2-server/storage"
)

// ClientCredentialsGrant issues access tokens directly to confidential
// clients acting on their own behalf. Public clients are never accepted,
// and no refresh token is issued.
type ClientCredentialsGrant struct {
	accessTokens *TokenService
}

var _ Grant = (*ClientCredentialsGrant)(nil)

// NewClientCredentialsGrant creates the client_credentials grant strategy
func NewClientCredentialsGrant(accessTokens *TokenService) *ClientCredentialsGrant {
	return &ClientCredentialsGrant{accessTokens: accessTokens}
}

// Type returns "client_credentials"
func (g *ClientCredentialsGrant) Type() string {
	return GrantTypeClientCredentials
}

// ResponseType returns empty: this grant has no authorize endpoint role
func (g *ClientCredentialsGrant) ResponseType() string {
	return ""
}

// AllowsPublicClients returns false: a verifiable secret is required
func (g *ClientCredentialsGrant) AllowsPublicClients() bool {
	return false
}

// AuthorizationResponse always fails: the grant does not participate in
// the authorize endpoint
func (g *ClientCredentialsGrant) AuthorizationResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	return nil, ErrInvalidRequest("client_credentials grant does not support the authorize endpoint")
}

// TokenResponse issues an access token scoped by the optional body scope
// parameter
func (g *ClientCredentialsGrant) TokenResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	scopes := ParseScope(req.BodyParam("scope"))

	accessToken, err := g.accessTokens.CreateToken(ctx, ownerID, client, scopes)
	if err != nil {
		return nil, err
	}

	return newTokenResponse(accessToken, nil), nil
}
