package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/oauth2-server/instrumentation"
	"github.com/giantswarm/oauth2-server/security"
	"github.com/giantswarm/oauth2-server/storage"
)

// maxTokenGenerationAttempts bounds the collision-retry loop. The random
// token space makes collisions astronomically unlikely; repeated hits
// indicate a broken storage layer or a broken entropy source, so the loop
// fails instead of spinning.
const maxTokenGenerationAttempts = 5

// TokenService creates, looks up, and deletes tokens of one kind.
// One instance exists per token kind; all instances share the storage
// boundary and the scope registry.
type TokenService struct {
	kind   storage.TokenKind
	tokens storage.TokenStore
	scopes storage.ScopeStore
	ttl    time.Duration

	logger  *slog.Logger
	inst    *instrumentation.Instrumentation
	auditor *security.Auditor
}

// NewTokenService creates a token service bound to one token kind.
// A zero ttl produces non-expiring tokens.
func NewTokenService(kind storage.TokenKind, tokens storage.TokenStore, scopes storage.ScopeStore, ttl time.Duration) *TokenService {
	return &TokenService{
		kind:   kind,
		tokens: tokens,
		scopes: scopes,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

// SetLogger sets a custom logger
func (s *TokenService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation
func (s *TokenService) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.inst = inst
}

// SetAuditor sets the security audit logger
func (s *TokenService) SetAuditor(auditor *security.Auditor) {
	s.auditor = auditor
}

// Kind returns the token kind this service is bound to
func (s *TokenService) Kind() storage.TokenKind {
	return s.kind
}

// CreateToken issues a new token for the given owner, client, and scopes.
// An empty scope list is substituted with the registry's default scopes.
// Requested scopes must exist in the registry and, when a client is known,
// in that client's allowed-scope list; a violation yields invalid_scope.
func (s *TokenService) CreateToken(ctx context.Context, ownerID string, client *storage.Client, requestedScopes []string) (*storage.Token, error) {
	return s.create(ctx, ownerID, client, requestedScopes, "")
}

// CreateAuthorizationCode issues an authorization code bound to the
// redirect URI it was requested with. The binding is checked again at
// code exchange.
func (s *TokenService) CreateAuthorizationCode(ctx context.Context, ownerID string, client *storage.Client, requestedScopes []string, redirectURI string) (*storage.Token, error) {
	return s.create(ctx, ownerID, client, requestedScopes, redirectURI)
}

func (s *TokenService) create(ctx context.Context, ownerID string, client *storage.Client, requestedScopes []string, redirectURI string) (*storage.Token, error) {
	scopes, err := s.resolveScopes(ctx, client, requestedScopes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	token := &storage.Token{
		Kind:        s.kind,
		OwnerID:     ownerID,
		Scopes:      scopes,
		RedirectURI: redirectURI,
		CreatedAt:   now,
	}
	if client != nil {
		token.ClientID = client.ID
	}
	if s.ttl > 0 {
		token.ExpiresAt = now.Add(s.ttl)
	}

	// Collision handling is probabilistic: regenerate on hit, bounded.
	// The storage layer's uniqueness constraint is the real backstop.
	for attempt := 0; attempt < maxTokenGenerationAttempts; attempt++ {
		str, err := security.GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}

		exists, err := s.tokens.TokenExists(ctx, s.kind, str)
		if err != nil {
			return nil, fmt.Errorf("failed to probe token uniqueness: %w", err)
		}
		if exists {
			s.logger.Warn("Token collision on generation, retrying", "kind", s.kind, "attempt", attempt+1)
			continue
		}

		token.Token = str
		if err := s.tokens.SaveToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrTokenExists) {
				s.logger.Warn("Token collision on save, retrying", "kind", s.kind, "attempt", attempt+1)
				continue
			}
			return nil, fmt.Errorf("failed to save token: %w", err)
		}

		if s.inst != nil {
			s.inst.Metrics().RecordTokenIssued(ctx, string(s.kind), "")
		}
		return token, nil
	}

	// Reaching this means the storage layer or entropy source is broken.
	return nil, fmt.Errorf("token generation exhausted %d attempts for kind %s", maxTokenGenerationAttempts, s.kind)
}

// resolveScopes applies default-scope substitution and validates the
// requested scopes against the registry and the client allow-list.
func (s *TokenService) resolveScopes(ctx context.Context, client *storage.Client, requestedScopes []string) ([]string, error) {
	if len(requestedScopes) == 0 {
		defaults, err := s.scopes.FindDefaultScopes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load default scopes: %w", err)
		}
		names := make([]string, 0, len(defaults))
		for _, scope := range defaults {
			names = append(names, scope.Name)
		}
		return names, nil
	}

	registered, err := s.scopes.FindAllScopes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scope registry: %w", err)
	}
	registry := make(map[string]bool, len(registered))
	for _, scope := range registered {
		registry[scope.Name] = true
	}

	for _, name := range requestedScopes {
		if !registry[name] {
			return nil, ErrInvalidScope(fmt.Sprintf("scope %q is not registered", name))
		}
		if client != nil && !client.HasScope(name) {
			return nil, ErrInvalidScope(fmt.Sprintf("scope %q is not allowed for this client", name))
		}
	}
	return requestedScopes, nil
}

// GetToken looks a token string up in storage. Absent tokens return
// (nil, nil); only storage failures produce an error. The stored string
// is re-compared in constant time so a case-insensitive storage collation
// can never resolve a different token.
func (s *TokenService) GetToken(ctx context.Context, tokenString string) (*storage.Token, error) {
	if tokenString == "" {
		return nil, nil
	}

	token, err := s.tokens.FindByToken(ctx, s.kind, tokenString)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if !security.SecureCompare(token.Token, tokenString) {
		return nil, nil
	}
	return token, nil
}

// DeleteToken revokes a token. Failures propagate to the caller.
func (s *TokenService) DeleteToken(ctx context.Context, token *storage.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}
	if err := s.tokens.DeleteToken(ctx, s.kind, token.Token); err != nil {
		return err
	}
	s.auditor.LogTokenRevoked(token.OwnerID, token.ClientID, string(s.kind))
	if s.inst != nil {
		s.inst.Metrics().RecordTokenRevoked(ctx, string(s.kind))
	}
	return nil
}

// PurgeExpiredTokens delegates bulk expiry cleanup to the storage boundary
func (s *TokenService) PurgeExpiredTokens(ctx context.Context) (int, error) {
	return s.tokens.PurgeExpiredTokens(ctx, s.kind)
}
