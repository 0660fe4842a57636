package oauth

import (
	"context"
	"strings"

	"github.com/giantswarm/oauth2-server/storage"
)

// ResourceServer is the security gate for protected-resource requests: it
// resolves and validates the bearer token a request presents.
type ResourceServer struct {
	accessTokens *TokenService
}

// NewResourceServer creates a resource server backed by the access-token
// service
func NewResourceServer(accessTokens *TokenService) *ResourceServer {
	return &ResourceServer{accessTokens: accessTokens}
}

// GetAccessToken extracts the bearer token from the Authorization header
// (preferred) or the access_token query parameter. A request carrying no
// token at all returns (nil, nil): the caller decides whether the route
// requires authentication. A token that is unknown, expired, or missing a
// required scope yields invalid_token.
func (rs *ResourceServer) GetAccessToken(ctx context.Context, req *Request, requiredScopes ...string) (*storage.Token, error) {
	tokenString := extractBearerToken(req)
	if tokenString == "" {
		return nil, nil
	}

	token, err := rs.accessTokens.GetToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if token == nil || !token.IsValid(requiredScopes) {
		return nil, ErrInvalidToken("access token is invalid, expired, or lacks the required scope")
	}
	return token, nil
}

// extractBearerToken prefers the Authorization header over the query
// parameter fallback
func extractBearerToken(req *Request) string {
	if req.HasHeader("Authorization") {
		auth := req.HeaderLine("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return req.QueryParam("access_token")
}
