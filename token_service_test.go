package oauth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/giantswarm/oauth2-server/internal/testutil"
	"github.com/giantswarm/oauth2-server/storage"
)

var hexTokenPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

func TestCreateTokenShape(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read", "write"}, "read")
	svc := NewTokenService(storage.KindAccessToken, store, store, time.Hour)

	token, err := svc.CreateToken(context.Background(), "owner-1", nil, []string{"read", "write"})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if !hexTokenPattern.MatchString(token.Token) {
		t.Errorf("token string %q is not 40 lowercase hex characters", token.Token)
	}
	if token.Kind != storage.KindAccessToken {
		t.Errorf("Kind = %q", token.Kind)
	}
	if token.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q", token.OwnerID)
	}
	if token.ExpiresAt.IsZero() {
		t.Error("expected an expiry")
	}
	remaining := time.Until(token.ExpiresAt)
	if remaining < 59*time.Minute || remaining > time.Hour {
		t.Errorf("expiry %v not near now+1h", remaining)
	}
}

func TestCreateTokenDefaultScopes(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read", "write", "admin"}, "read", "write")
	svc := NewTokenService(storage.KindAccessToken, store, store, time.Hour)

	token, err := svc.CreateToken(context.Background(), "", nil, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if len(token.Scopes) != 2 {
		t.Fatalf("Scopes = %v, want the two defaults", token.Scopes)
	}
	for _, want := range []string{"read", "write"} {
		if !token.HasScope(want) {
			t.Errorf("default scope %q missing from %v", want, token.Scopes)
		}
	}
}

func TestCreateTokenScopeValidation(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read", "write"})
	client := testutil.SeedPublicClient(t, store, "client-1", nil, []string{"read"})
	svc := NewTokenService(storage.KindAccessToken, store, store, time.Hour)

	tests := []struct {
		name   string
		client *storage.Client
		scopes []string
	}{
		{"unregistered scope", nil, []string{"admin"}},
		{"scope outside client allow-list", client, []string{"write"}},
		{"case mismatch is not registered", nil, []string{"READ"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateToken(context.Background(), "", tt.client, tt.scopes)
			var oauthErr *OAuthError
			if !errors.As(err, &oauthErr) || oauthErr.Code != ErrorCodeInvalidScope {
				t.Fatalf("expected invalid_scope, got %v", err)
			}
		})
	}
}

func TestCreateTokenNonExpiring(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read"})
	svc := NewTokenService(storage.KindRefreshToken, store, store, 0)

	token, err := svc.CreateToken(context.Background(), "owner-1", nil, []string{"read"})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if !token.ExpiresAt.IsZero() {
		t.Errorf("expected non-expiring token, got expiry %v", token.ExpiresAt)
	}
	if token.Expired() {
		t.Error("non-expiring token reports expired")
	}
}

func TestGetTokenRoundTrip(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read"})
	svc := NewTokenService(storage.KindAccessToken, store, store, time.Hour)
	ctx := context.Background()

	created, err := svc.CreateToken(ctx, "owner-1", nil, []string{"read"})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	found, err := svc.GetToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if found == nil || found.Token != created.Token || found.OwnerID != "owner-1" {
		t.Errorf("round trip mismatch: %+v", found)
	}

	if err := svc.DeleteToken(ctx, created); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	found, err = svc.GetToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("GetToken after delete failed: %v", err)
	}
	if found != nil {
		t.Error("token still resolvable after delete")
	}
}

func TestGetTokenCaseSensitive(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read"})
	svc := NewTokenService(storage.KindAccessToken, store, store, time.Hour)
	ctx := context.Background()

	created, err := svc.CreateToken(ctx, "owner-1", nil, []string{"read"})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	upper := strings.ToUpper(created.Token)
	if upper == created.Token {
		t.Skip("generated token has no letters to flip")
	}

	found, err := svc.GetToken(ctx, upper)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if found != nil {
		t.Error("lookup differing only in case must not resolve")
	}
}

func TestGetTokenAbsent(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewTokenService(storage.KindAccessToken, store, store, time.Hour)

	found, err := svc.GetToken(context.Background(), "doesnotexist")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if found != nil {
		t.Error("expected nil for absent token")
	}

	found, err = svc.GetToken(context.Background(), "")
	if err != nil || found != nil {
		t.Errorf("empty string lookup = (%v, %v), want (nil, nil)", found, err)
	}
}

// collidingStore forces SaveToken collisions to exercise the bounded
// retry loop.
type collidingStore struct {
	storage.TokenStore
	saves   int
	failAll bool
}

func (c *collidingStore) SaveToken(ctx context.Context, token *storage.Token) error {
	c.saves++
	if c.failAll {
		return storage.ErrTokenExists
	}
	if c.saves == 1 {
		return storage.ErrTokenExists
	}
	return c.TokenStore.SaveToken(ctx, token)
}

func TestCreateTokenCollisionRetry(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read"})
	colliding := &collidingStore{TokenStore: store}
	svc := NewTokenService(storage.KindAccessToken, colliding, store, time.Hour)

	token, err := svc.CreateToken(context.Background(), "", nil, []string{"read"})
	if err != nil {
		t.Fatalf("CreateToken failed despite retry: %v", err)
	}
	if token == nil || colliding.saves != 2 {
		t.Errorf("expected exactly one retry, saves = %d", colliding.saves)
	}
}

func TestCreateTokenCollisionExhaustion(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read"})
	colliding := &collidingStore{TokenStore: store, failAll: true}
	svc := NewTokenService(storage.KindAccessToken, colliding, store, time.Hour)

	_, err := svc.CreateToken(context.Background(), "", nil, []string{"read"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if colliding.saves != maxTokenGenerationAttempts {
		t.Errorf("saves = %d, want %d", colliding.saves, maxTokenGenerationAttempts)
	}
}

func TestCreateAuthorizationCodeBindsRedirectURI(t *testing.T) {
	store := testutil.NewStore(t)
	testutil.SeedScopes(t, store, []string{"read"})
	svc := NewTokenService(storage.KindAuthorizationCode, store, store, 10*time.Minute)

	code, err := svc.CreateAuthorizationCode(context.Background(), "owner-1", nil, []string{"read"}, "http://example.com/cb")
	if err != nil {
		t.Fatalf("CreateAuthorizationCode failed: %v", err)
	}
	if code.RedirectURI != "http://example.com/cb" {
		t.Errorf("RedirectURI = %q", code.RedirectURI)
	}
}
