package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by stores. Callers match with errors.Is.
var (
	// ErrTokenNotFound indicates no token with the given string exists
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExists indicates a token string collision within a kind
	ErrTokenExists = errors.New("token already exists")

	// ErrClientNotFound indicates no client with the given ID exists
	ErrClientNotFound = errors.New("client not found")

	// ErrClientExists indicates the client ID is already registered
	ErrClientExists = errors.New("client already exists")

	// ErrScopeExists indicates the scope name is already registered
	ErrScopeExists = errors.New("scope already exists")
)

// TokenStore defines the interface for persisting opaque tokens.
// Every operation is scoped to a token kind; a token string is unique
// within its kind's namespace, never across kinds.
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// FindByToken retrieves a token by its exact string.
	// Returns ErrTokenNotFound if no such token exists.
	FindByToken(ctx context.Context, kind TokenKind, token string) (*Token, error)

	// SaveToken persists a new token. Returns ErrTokenExists if the token
	// string is already taken within the kind's namespace; this constraint
	// is the real backstop behind the engine's collision-retry loop.
	SaveToken(ctx context.Context, token *Token) error

	// DeleteToken removes a token. Returns ErrTokenNotFound if absent.
	DeleteToken(ctx context.Context, kind TokenKind, token string) error

	// TokenExists reports whether a token string is already taken.
	TokenExists(ctx context.Context, kind TokenKind, token string) (bool, error)

	// PurgeExpiredTokens removes all expired tokens of the given kind and
	// returns the number removed.
	PurgeExpiredTokens(ctx context.Context, kind TokenKind) (int, error)
}

// ClientStore defines the interface for managing registered OAuth clients.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// GetClient retrieves a client by ID.
	// Returns ErrClientNotFound if no such client exists.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// SaveClient persists a newly registered client.
	// Returns ErrClientExists if the ID is already taken.
	SaveClient(ctx context.Context, client *Client) error

	// ClientIDExists reports whether a client ID is already registered.
	ClientIDExists(ctx context.Context, clientID string) (bool, error)
}

// ScopeStore defines the interface for the global scope registry.
// All methods accept context.Context for tracing and cancellation.
type ScopeStore interface {
	// SaveScope registers a scope. Returns ErrScopeExists on a name clash.
	SaveScope(ctx context.Context, scope *Scope) error

	// FindAllScopes returns every registered scope.
	FindAllScopes(ctx context.Context) ([]*Scope, error)

	// FindDefaultScopes returns the scopes applied when a grant request
	// omits a scope parameter.
	FindDefaultScopes(ctx context.Context) ([]*Scope, error)
}

// Client represents a registered OAuth client.
// Clients are created once at registration and immutable afterwards.
type Client struct {
	// ID is the opaque, globally unique client identifier (UUIDv4)
	ID string

	// Name is the human-readable client name
	Name string

	// SecretHash is the bcrypt hash of the client secret.
	// Empty for public clients; the raw secret is never stored.
	SecretHash string

	// RedirectURIs is the ordered list of registered redirect URIs.
	// The first entry is the default when an authorization request omits
	// redirect_uri.
	RedirectURIs []string

	// Scopes is the client's allowed-scope list
	Scopes []string

	CreatedAt time.Time
}

// Confidential reports whether the client has a verifiable secret.
// A public client must never be accepted where confidential
// authentication is required.
func (c *Client) Confidential() bool {
	return c.SecretHash != ""
}

// HasRedirectURI reports whether uri is exactly one of the client's
// registered redirect URIs. Comparison is byte-exact: a single-character
// deviation is a different URI.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// HasScope reports whether name is in the client's allowed-scope list.
func (c *Client) HasScope(name string) bool {
	for _, s := range c.Scopes {
		if s == name {
			return true
		}
	}
	return false
}

// Scope represents an entry in the global scope registry
type Scope struct {
	ID          string
	Name        string
	Description string

	// IsDefault marks the scope as part of the default set applied when a
	// grant request omits scopes
	IsDefault bool
}
