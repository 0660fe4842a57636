// Package testutil provides shared fixtures for the oauth2-server tests.
package testutil

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/giantswarm/oauth2-server/storage"
	"github.com/giantswarm/oauth2-server/storage/memory"
)

// NewStore creates an in-memory store wired for cleanup
func NewStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	t.Cleanup(s.Stop)
	return s
}

// SeedScopes registers the named scopes; names listed in defaults are
// marked as default scopes.
func SeedScopes(t *testing.T, store storage.ScopeStore, names []string, defaults ...string) {
	t.Helper()
	ctx := context.Background()

	isDefault := make(map[string]bool, len(defaults))
	for _, name := range defaults {
		isDefault[name] = true
	}

	for _, name := range names {
		scope := &storage.Scope{
			ID:        name,
			Name:      name,
			IsDefault: isDefault[name],
		}
		if err := store.SaveScope(ctx, scope); err != nil {
			t.Fatalf("failed to seed scope %s: %v", name, err)
		}
	}
}

// SeedConfidentialClient registers a confidential client whose secret is
// the given raw value
func SeedConfidentialClient(t *testing.T, store storage.ClientStore, id, secret string, redirectURIs, scopes []string) *storage.Client {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash test secret: %v", err)
	}

	client := &storage.Client{
		ID:           id,
		Name:         "Test Client " + id,
		SecretHash:   string(hash),
		RedirectURIs: redirectURIs,
		Scopes:       scopes,
		CreatedAt:    time.Now(),
	}
	if err := store.SaveClient(context.Background(), client); err != nil {
		t.Fatalf("failed to seed client %s: %v", id, err)
	}
	return client
}

// SeedPublicClient registers a client without a secret
func SeedPublicClient(t *testing.T, store storage.ClientStore, id string, redirectURIs, scopes []string) *storage.Client {
	t.Helper()

	client := &storage.Client{
		ID:           id,
		Name:         "Test Client " + id,
		RedirectURIs: redirectURIs,
		Scopes:       scopes,
		CreatedAt:    time.Now(),
	}
	if err := store.SaveClient(context.Background(), client); err != nil {
		t.Fatalf("failed to seed client %s: %v", id, err)
	}
	return client
}

// BasicAuth builds the Authorization header value for client credentials
func BasicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}
