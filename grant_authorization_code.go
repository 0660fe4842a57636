package oauth

import (
	"context"
	"net/url"

	"github.com/giantswarm/oauth2-server/storage"
)

// AuthorizationCodeGrant implements the authorization-code flow: the
// authorize endpoint issues a short-lived code bound to a redirect URI,
// and the token endpoint exchanges that code for tokens.
type AuthorizationCodeGrant struct {
	accessTokens  *TokenService
	refreshTokens *TokenService
	authCodes     *TokenService

	registry GrantRegistry
}

var (
	_ Grant       = (*AuthorizationCodeGrant)(nil)
	_ ServerAware = (*AuthorizationCodeGrant)(nil)
)

// NewAuthorizationCodeGrant creates the authorization_code grant strategy
func NewAuthorizationCodeGrant(accessTokens, refreshTokens, authCodes *TokenService) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{
		accessTokens:  accessTokens,
		refreshTokens: refreshTokens,
		authCodes:     authCodes,
	}
}

// Type returns "authorization_code"
func (g *AuthorizationCodeGrant) Type() string {
	return GrantTypeAuthorizationCode
}

// ResponseType returns "code"
func (g *AuthorizationCodeGrant) ResponseType() string {
	return ResponseTypeCode
}

// AllowsPublicClients returns true
func (g *AuthorizationCodeGrant) AllowsPublicClients() bool {
	return true
}

// BindRegistry receives the server's grant registry view at construction
func (g *AuthorizationCodeGrant) BindRegistry(registry GrantRegistry) {
	g.registry = registry
}

// AuthorizationResponse issues an authorization code and redirects back to
// the client. The redirect URI must be exactly one of the client's
// registered URIs; this is the open-redirect guard.
func (g *AuthorizationCodeGrant) AuthorizationResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	if req.QueryParam("response_type") != ResponseTypeCode {
		return nil, ErrInvalidRequest("response_type must be \"code\"")
	}
	if client == nil {
		return nil, ErrInvalidRequest("a client is required for the authorization-code flow")
	}

	redirectURI := req.QueryParam("redirect_uri")
	if redirectURI == "" {
		if len(client.RedirectURIs) == 0 {
			return nil, ErrInvalidRequest("client has no registered redirect URI")
		}
		redirectURI = client.RedirectURIs[0]
	}
	if !client.HasRedirectURI(redirectURI) {
		return nil, ErrInvalidRequest("redirect_uri is not registered for this client")
	}

	scopes := ParseScope(req.QueryParam("scope"))

	code, err := g.authCodes.CreateAuthorizationCode(ctx, ownerID, client, scopes, redirectURI)
	if err != nil {
		return nil, err
	}

	location, err := buildRedirect(redirectURI, code.Token, req.QueryParam("state"))
	if err != nil {
		return nil, ErrInvalidRequest("redirect_uri is not a valid URI")
	}

	resp := NewResponse()
	resp.SetRedirect(location)
	return resp, nil
}

// TokenResponse exchanges an authorization code for tokens. The code is
// single-use: it is consumed on successful exchange.
func (g *AuthorizationCodeGrant) TokenResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	codeString := req.BodyParam("code")
	if codeString == "" {
		return nil, ErrInvalidRequest("code is required")
	}

	code, err := g.authCodes.GetToken(ctx, codeString)
	if err != nil {
		return nil, err
	}
	if code == nil || code.Expired() {
		return nil, ErrInvalidGrant("authorization code is invalid or expired")
	}

	var requestingClientID string
	if client != nil {
		requestingClientID = client.ID
	}
	if code.ClientID != requestingClientID {
		return nil, ErrInvalidRequest("authorization code was issued to another client")
	}

	accessToken, err := g.accessTokens.CreateToken(ctx, code.OwnerID, client, code.Scopes)
	if err != nil {
		return nil, err
	}

	var refreshToken *storage.Token
	if g.registry != nil && g.registry.HasGrant(GrantTypeRefreshToken) {
		refreshToken, err = g.refreshTokens.CreateToken(ctx, code.OwnerID, client, code.Scopes)
		if err != nil {
			return nil, err
		}
	}

	if err := g.authCodes.DeleteToken(ctx, code); err != nil {
		return nil, err
	}

	return newTokenResponse(accessToken, refreshToken), nil
}

// buildRedirect appends the code and optional state to the redirect URI
func buildRedirect(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
