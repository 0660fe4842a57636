package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/giantswarm/oauth2-server/internal/testutil"
)

type handlerEnv struct {
	*testEnv
	handler *Handler
	ts      *httptest.Server
}

func newHandlerEnv(t *testing.T, cfg Config) *handlerEnv {
	t.Helper()

	env := newTestEnv(t, Options{})
	handler := NewHandler(env.server, NewResourceServer(env.accessTokens), cfg)
	t.Cleanup(handler.Stop)

	registry := NewClientRegistry(env.store, env.store)
	handler.SetClientRegistry(registry)

	ts := httptest.NewServer(handler.Routes())
	t.Cleanup(ts.Close)

	return &handlerEnv{testEnv: env, handler: handler, ts: ts}
}

// postForm sends a form-encoded POST with optional Basic auth
func (e *handlerEnv) postForm(t *testing.T, path string, form url.Values, basicAuth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicAuth {
		req.Header.Set("Authorization", testutil.BasicAuth(testClientID, testClientSecret))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return out
}

func TestHandlerTokenEndpoint(t *testing.T) {
	env := newHandlerEnv(t, Config{})

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	resp := env.postForm(t, "/token", form, true)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	body := decodeJSON[TokenResponse](t, resp)
	if !hexTokenPattern.MatchString(body.AccessToken) {
		t.Errorf("access_token %q is not 40 hex characters", body.AccessToken)
	}
	if body.TokenType != "Bearer" {
		t.Errorf("token_type = %q", body.TokenType)
	}
	if body.ExpiresIn != 3600 {
		t.Errorf("expires_in = %d, want 3600", body.ExpiresIn)
	}
}

func TestHandlerTokenMethodNotAllowed(t *testing.T) {
	env := newHandlerEnv(t, Config{})

	resp, err := http.Get(env.ts.URL + "/token")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	body := decodeJSON[ErrorResponse](t, resp)
	if body.Error != ErrorCodeInvalidRequest {
		t.Errorf("error = %q", body.Error)
	}
}

// TestHandlerAuthorizationCodeFlow drives the full authorization-code
// dance with the golang.org/x/oauth2 client library.
func TestHandlerAuthorizationCodeFlow(t *testing.T) {
	env := newHandlerEnv(t, Config{})

	cfg := oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURI,
		Scopes:       []string{"read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  env.ts.URL + "/authorize",
			TokenURL: env.ts.URL + "/token",
		},
	}

	// Step 1: the authorize request. The embedding application has
	// authenticated the owner and forwards the identity.
	authReq, err := http.NewRequest(http.MethodGet, cfg.AuthCodeURL("opaque-state"), nil)
	if err != nil {
		t.Fatal(err)
	}
	authReq.Header.Set("X-Owner-ID", testOwnerID)

	noRedirect := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	authResp, err := noRedirect.Do(authReq)
	if err != nil {
		t.Fatal(err)
	}
	defer authResp.Body.Close()
	if authResp.StatusCode != http.StatusFound {
		t.Fatalf("authorize status = %d, want 302", authResp.StatusCode)
	}

	location, err := url.Parse(authResp.Header.Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if got := location.Query().Get("state"); got != "opaque-state" {
		t.Fatalf("state = %q", got)
	}
	code := location.Query().Get("code")
	if code == "" {
		t.Fatal("no code in redirect")
	}

	// Step 2: the code exchange through the client library.
	token, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if !token.Valid() {
		t.Error("exchanged token reports invalid")
	}
	if !hexTokenPattern.MatchString(token.AccessToken) {
		t.Errorf("access_token %q is not 40 hex characters", token.AccessToken)
	}
	if token.RefreshToken == "" {
		t.Error("expected a refresh token")
	}

	// Step 3: the refresh flow, also through the client library.
	refreshed, err := cfg.TokenSource(context.Background(), &oauth2.Token{
		RefreshToken: token.RefreshToken,
	}).Token()
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.AccessToken == token.AccessToken {
		t.Errorf("refreshed access token %q, want a fresh one", refreshed.AccessToken)
	}
}

func TestHandlerRevocation(t *testing.T) {
	env := newHandlerEnv(t, Config{})
	rt := env.issueRefreshToken(t, []string{"read"})

	form := url.Values{}
	form.Set("token", rt.Token)
	form.Set("token_type_hint", "refresh_token")
	resp := env.postForm(t, "/revoke", form, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	gone, err := env.refreshTokens.GetToken(context.Background(), rt.Token)
	if err != nil {
		t.Fatal(err)
	}
	if gone != nil {
		t.Error("token still resolvable after revocation")
	}
}

func TestHandlerRevocationUnknownToken(t *testing.T) {
	env := newHandlerEnv(t, Config{})

	form := url.Values{}
	form.Set("token", "doesnotexist")
	form.Set("token_type_hint", "access_token")
	resp := env.postForm(t, "/revoke", form, false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for an unknown token", resp.StatusCode)
	}
}

func TestHandlerRevocationBadHint(t *testing.T) {
	env := newHandlerEnv(t, Config{})

	form := url.Values{}
	form.Set("token", "whatever")
	form.Set("token_type_hint", "id_token")
	resp := env.postForm(t, "/revoke", form, false)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := decodeJSON[ErrorResponse](t, resp)
	if body.Error != ErrorCodeUnsupportedTokenType {
		t.Errorf("error = %q, want unsupported_token_type", body.Error)
	}
}

func TestHandlerRequireToken(t *testing.T) {
	env := newHandlerEnv(t, Config{})
	issued := env.issueAccessToken(t, []string{"read"})

	protected := env.handler.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := AccessTokenFromContext(r.Context())
		if token == nil {
			t.Error("no token in request context")
			return
		}
		fmt.Fprint(w, token.OwnerID)
	}), "read")

	ps := httptest.NewServer(protected)
	defer ps.Close()

	get := func(authorization string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ps.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	anon := get("")
	if anon.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", anon.StatusCode)
	}
	if anon.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}

	bad := get("Bearer doesnotexist")
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", bad.StatusCode)
	}

	good := get("Bearer " + issued.Token)
	if good.StatusCode != http.StatusOK {
		t.Fatalf("valid token status = %d", good.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(good.Body); err != nil {
		t.Fatal(err)
	}
	if buf.String() != testOwnerID {
		t.Errorf("handler saw owner %q, want %q", buf.String(), testOwnerID)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	env := newHandlerEnv(t, Config{RateLimit: RateLimitConfig{Rate: 1, Burst: 1}})

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	first := env.postForm(t, "/token", form, true)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", first.StatusCode)
	}
	second := env.postForm(t, "/token", form, true)
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.StatusCode)
	}
}

func TestHandlerRegistration(t *testing.T) {
	env := newHandlerEnv(t, Config{})

	payload, err := json.Marshal(map[string]any{
		"client_name":   "reporting-service",
		"redirect_uris": []string{"https://reporting.example.com/callback"},
		"scopes":        []string{"read"},
		"confidential":  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(env.ts.URL+"/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	body := decodeJSON[ClientRegistrationResponse](t, resp)
	if body.ClientID == "" || body.ClientSecret == "" {
		t.Fatalf("incomplete registration response: %+v", body)
	}

	// The fresh credentials work against the token endpoint immediately.
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", body.ClientID)
	form.Set("client_secret", body.ClientSecret)
	tokenResp := env.postForm(t, "/token", form, false)
	if tokenResp.StatusCode != http.StatusOK {
		t.Fatalf("token request with registered client: status = %d", tokenResp.StatusCode)
	}
}
