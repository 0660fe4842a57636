package oauth

import (
	"context"

	"github.com/giantswarm/oauth2-server/storage"
)

// OwnerVerifier checks resource-owner credentials and returns the owner's
// opaque identity. The embedding application supplies it; the grant never
// sees how passwords are stored or hashed.
type OwnerVerifier func(ctx context.Context, username, password string) (ownerID string, ok bool)

// PasswordGrant exchanges resource-owner credentials for tokens. A refresh
// token is issued alongside the access token only when the owning server
// also has the refresh_token grant registered.
type PasswordGrant struct {
	accessTokens  *TokenService
	refreshTokens *TokenService
	verify        OwnerVerifier

	registry GrantRegistry
}

var (
	_ Grant       = (*PasswordGrant)(nil)
	_ ServerAware = (*PasswordGrant)(nil)
)

// NewPasswordGrant creates the password grant strategy
func NewPasswordGrant(accessTokens, refreshTokens *TokenService, verify OwnerVerifier) *PasswordGrant {
	return &PasswordGrant{
		accessTokens:  accessTokens,
		refreshTokens: refreshTokens,
		verify:        verify,
	}
}

// Type returns "password"
func (g *PasswordGrant) Type() string {
	return GrantTypePassword
}

// ResponseType returns empty: this grant has no authorize endpoint role
func (g *PasswordGrant) ResponseType() string {
	return ""
}

// AllowsPublicClients returns true
func (g *PasswordGrant) AllowsPublicClients() bool {
	return true
}

// BindRegistry receives the server's grant registry view at construction
func (g *PasswordGrant) BindRegistry(registry GrantRegistry) {
	g.registry = registry
}

// AuthorizationResponse always fails: the grant does not participate in
// the authorize endpoint
func (g *PasswordGrant) AuthorizationResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	return nil, ErrInvalidRequest("password grant does not support the authorize endpoint")
}

// TokenResponse verifies the owner credentials from the request body and
// issues tokens for the verified owner
func (g *PasswordGrant) TokenResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	username := req.BodyParam("username")
	password := req.BodyParam("password")
	if username == "" || password == "" {
		return nil, ErrInvalidRequest("username and password are required")
	}

	verifiedOwner, ok := g.verify(ctx, username, password)
	if !ok {
		return nil, ErrAccessDenied("resource owner credentials are invalid")
	}

	scopes := ParseScope(req.BodyParam("scope"))

	accessToken, err := g.accessTokens.CreateToken(ctx, verifiedOwner, client, scopes)
	if err != nil {
		return nil, err
	}

	var refreshToken *storage.Token
	if g.registry != nil && g.registry.HasGrant(GrantTypeRefreshToken) {
		// Same scope set as the access token, after default substitution
		refreshToken, err = g.refreshTokens.CreateToken(ctx, verifiedOwner, client, accessToken.Scopes)
		if err != nil {
			return nil, err
		}
	}

	return newTokenResponse(accessToken, refreshToken), nil
}
