package oauth

import (
	"context"

	"github.com/giantswarm/oauth2-server/storage"
)

// RefreshTokenGrant exchanges a refresh token for a fresh access token.
// The requested scope set may narrow but never widen what the refresh
// token carries. Rotation behavior is governed by the server options.
type RefreshTokenGrant struct {
	accessTokens  *TokenService
	refreshTokens *TokenService
	options       Options
}

var _ Grant = (*RefreshTokenGrant)(nil)

// NewRefreshTokenGrant creates the refresh_token grant strategy
func NewRefreshTokenGrant(accessTokens, refreshTokens *TokenService, options Options) *RefreshTokenGrant {
	return &RefreshTokenGrant{
		accessTokens:  accessTokens,
		refreshTokens: refreshTokens,
		options:       options,
	}
}

// Type returns "refresh_token"
func (g *RefreshTokenGrant) Type() string {
	return GrantTypeRefreshToken
}

// ResponseType returns empty: this grant has no authorize endpoint role
func (g *RefreshTokenGrant) ResponseType() string {
	return ""
}

// AllowsPublicClients returns true for the refresh step itself; the
// original token's client binding was checked at issuance.
func (g *RefreshTokenGrant) AllowsPublicClients() bool {
	return true
}

// AuthorizationResponse always fails: the grant does not participate in
// the authorize endpoint
func (g *RefreshTokenGrant) AuthorizationResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	return nil, ErrInvalidRequest("refresh_token grant does not support the authorize endpoint")
}

// TokenResponse validates the presented refresh token, enforces scope
// narrowing, and mints a new access token carrying over the owner. When
// rotation is enabled a replacement refresh token is issued, optionally
// revoking the old one.
func (g *RefreshTokenGrant) TokenResponse(ctx context.Context, req *Request, client *storage.Client, ownerID string) (*Response, error) {
	refreshString := req.BodyParam("refresh_token")
	if refreshString == "" {
		return nil, ErrInvalidRequest("refresh_token is required")
	}

	refreshToken, err := g.refreshTokens.GetToken(ctx, refreshString)
	if err != nil {
		return nil, err
	}
	if refreshToken == nil || refreshToken.Expired() {
		return nil, ErrInvalidGrant("refresh token is invalid or expired")
	}

	requestedScopes := ParseScope(req.BodyParam("scope"))
	if len(requestedScopes) == 0 {
		requestedScopes = refreshToken.Scopes
	}
	if !scopeSubset(requestedScopes, refreshToken.Scopes) {
		return nil, ErrInvalidScope("requested scope exceeds the refresh token's scope")
	}

	accessToken, err := g.accessTokens.CreateToken(ctx, refreshToken.OwnerID, client, requestedScopes)
	if err != nil {
		return nil, err
	}

	responseToken := refreshToken
	if g.options.RotateRefreshTokens {
		if g.options.RevokeRotatedRefreshTokens {
			if err := g.refreshTokens.DeleteToken(ctx, refreshToken); err != nil {
				return nil, err
			}
		}
		responseToken, err = g.refreshTokens.CreateToken(ctx, refreshToken.OwnerID, client, requestedScopes)
		if err != nil {
			return nil, err
		}
	}

	return newTokenResponse(accessToken, responseToken), nil
}
