package oauth

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/giantswarm/oauth2-server/internal/testutil"
	"github.com/giantswarm/oauth2-server/storage"
	"github.com/giantswarm/oauth2-server/storage/memory"
)

const (
	testClientID     = "confidential-client"
	testClientSecret = "s3cret-value"
	testPublicID     = "public-client"
	testRedirectURI  = "http://example.com"
	testOwnerID      = "owner-1"
)

// testEnv wires a full authorization server against an in-memory store:
// scopes read (default) and write, one confidential and one public client,
// and all four grants.
type testEnv struct {
	store  *memory.Store
	server *AuthorizationServer

	accessTokens  *TokenService
	refreshTokens *TokenService
	authCodes     *TokenService

	confidential *storage.Client
	public       *storage.Client
}

func newTestEnv(t *testing.T, options Options, grantTypes ...string) *testEnv {
	t.Helper()

	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read", "write"}, "read")

	env := &testEnv{store: store}
	env.confidential = testutil.SeedConfidentialClient(t, store, testClientID, testClientSecret,
		[]string{testRedirectURI, "http://example.com/alt"}, []string{"read", "write"})
	env.public = testutil.SeedPublicClient(t, store, testPublicID,
		[]string{testRedirectURI}, []string{"read"})

	options = options.WithDefaults()
	env.accessTokens = NewTokenService(storage.KindAccessToken, store, store, options.AccessTokenTTL)
	env.refreshTokens = NewTokenService(storage.KindRefreshToken, store, store, options.RefreshTokenTTL)
	env.authCodes = NewTokenService(storage.KindAuthorizationCode, store, store, options.AuthorizationCodeTTL)

	verify := func(ctx context.Context, username, password string) (string, bool) {
		if username == "demo" && password == "demo-pass" {
			return testOwnerID, true
		}
		return "", false
	}

	available := map[string]Grant{
		GrantTypeClientCredentials: NewClientCredentialsGrant(env.accessTokens),
		GrantTypePassword:          NewPasswordGrant(env.accessTokens, env.refreshTokens, verify),
		GrantTypeAuthorizationCode: NewAuthorizationCodeGrant(env.accessTokens, env.refreshTokens, env.authCodes),
		GrantTypeRefreshToken:      NewRefreshTokenGrant(env.accessTokens, env.refreshTokens, options),
	}

	if len(grantTypes) == 0 {
		grantTypes = []string{GrantTypeClientCredentials, GrantTypePassword, GrantTypeAuthorizationCode, GrantTypeRefreshToken}
	}
	grants := make([]Grant, 0, len(grantTypes))
	for _, gt := range grantTypes {
		grant, ok := available[gt]
		if !ok {
			t.Fatalf("unknown grant type %q in fixture", gt)
		}
		grants = append(grants, grant)
	}

	server, err := NewAuthorizationServer(store, env.accessTokens, env.refreshTokens, options, grants...)
	if err != nil {
		t.Fatalf("NewAuthorizationServer failed: %v", err)
	}
	env.server = server
	return env
}

// tokenRequest builds a token endpoint request with Basic auth for the
// confidential client
func (e *testEnv) tokenRequest(params map[string]string) *Request {
	body := url.Values{}
	for k, v := range params {
		body.Set(k, v)
	}
	header := make(map[string][]string)
	header["Authorization"] = []string{testutil.BasicAuth(testClientID, testClientSecret)}
	return NewRequest(nil, body, header)
}

// publicTokenRequest builds a token endpoint request identifying the
// public client through the body only
func (e *testEnv) publicTokenRequest(params map[string]string) *Request {
	body := url.Values{}
	for k, v := range params {
		body.Set(k, v)
	}
	body.Set("client_id", testPublicID)
	return NewRequest(nil, body, nil)
}

// issueRefreshToken mints a refresh token directly for refresh-grant tests
func (e *testEnv) issueRefreshToken(t *testing.T, scopes []string) *storage.Token {
	t.Helper()
	token, err := e.refreshTokens.CreateToken(context.Background(), testOwnerID, e.confidential, scopes)
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}
	return token
}

// issueAuthCode mints an authorization code directly for exchange tests
func (e *testEnv) issueAuthCode(t *testing.T, client *storage.Client, scopes []string, redirectURI string) *storage.Token {
	t.Helper()
	code, err := e.authCodes.CreateAuthorizationCode(context.Background(), testOwnerID, client, scopes, redirectURI)
	if err != nil {
		t.Fatalf("failed to issue authorization code: %v", err)
	}
	return code
}

// wantOAuthError asserts err is an OAuthError with the given code
func wantOAuthError(t *testing.T, err error, code string) *OAuthError {
	t.Helper()
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected OAuth error %q, got %v", code, err)
	}
	if oauthErr.Code != code {
		t.Fatalf("error code = %q, want %q (description: %s)", oauthErr.Code, code, oauthErr.Description)
	}
	return oauthErr
}

// tokenBody extracts the TokenResponse body from a response
func tokenBody(t *testing.T, resp *Response) TokenResponse {
	t.Helper()
	body, ok := resp.Body().(TokenResponse)
	if !ok {
		t.Fatalf("response body is %T, want TokenResponse", resp.Body())
	}
	return body
}
