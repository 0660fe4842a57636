package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/giantswarm/oauth2-server/storage"
)

// ============================================================
// TokenStore Implementation
// ============================================================

// tokenJSON is the JSON representation of a stored token
type tokenJSON struct {
	Kind        string    `json:"kind"`
	Token       string    `json:"token"`
	OwnerID     string    `json:"owner_id,omitempty"`
	ClientID    string    `json:"client_id"`
	Scopes      []string  `json:"scopes,omitempty"`
	RedirectURI string    `json:"redirect_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

func toTokenJSON(t *storage.Token) *tokenJSON {
	return &tokenJSON{
		Kind:        string(t.Kind),
		Token:       t.Token,
		OwnerID:     t.OwnerID,
		ClientID:    t.ClientID,
		Scopes:      t.Scopes,
		RedirectURI: t.RedirectURI,
		CreatedAt:   t.CreatedAt,
		ExpiresAt:   t.ExpiresAt,
	}
}

func fromTokenJSON(j *tokenJSON) *storage.Token {
	return &storage.Token{
		Kind:        storage.TokenKind(j.Kind),
		Token:       j.Token,
		OwnerID:     j.OwnerID,
		ClientID:    j.ClientID,
		Scopes:      j.Scopes,
		RedirectURI: j.RedirectURI,
		CreatedAt:   j.CreatedAt,
		ExpiresAt:   j.ExpiresAt,
	}
}

// SaveToken persists a token with optional encryption at rest. Uniqueness
// per kind is enforced atomically with SET NX; a taken key yields
// storage.ErrTokenExists.
func (s *Store) SaveToken(ctx context.Context, token *storage.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}
	if token.Token == "" {
		return fmt.Errorf("token string cannot be empty")
	}

	// Validate input lengths to prevent DoS
	if err := validateStringLength(token.Token, MaxTokenLength, "token"); err != nil {
		return err
	}
	if err := validateStringLength(token.ClientID, MaxIDLength, "clientID"); err != nil {
		return err
	}

	toStore, err := s.encryptOwner(token)
	if err != nil {
		return err
	}

	data, err := json.Marshal(toTokenJSON(toStore))
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if len(data) > MaxDataSize {
		return errInputTooLarge
	}

	key := s.tokenKey(token.Kind, token.Token)

	var execErr error
	if !token.ExpiresAt.IsZero() {
		ttl := calculateTTL(token.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("token already expired")
		}
		execErr = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Nx().Ex(ttl).Build()).Error()
	} else {
		execErr = s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Nx().Build()).Error()
	}

	if execErr != nil {
		// SET NX answers nil when the key is already taken
		if isNilError(execErr) {
			return storage.ErrTokenExists
		}
		return fmt.Errorf("failed to save token: %w", execErr)
	}

	s.logger.Debug("Saved token", "kind", token.Kind, "client_id", token.ClientID)
	return nil
}

// FindByToken retrieves a token by its exact string and decrypts if necessary
func (s *Store) FindByToken(ctx context.Context, kind storage.TokenKind, token string) (*storage.Token, error) {
	key := s.tokenKey(kind, token)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var j tokenJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	result := fromTokenJSON(&j)

	// The key TTL normally removes expired tokens, but a non-expiring key
	// written with a later-set expiry could still linger.
	if result.Expired() {
		return nil, storage.ErrTokenNotFound
	}

	return s.decryptOwner(result)
}

// DeleteToken removes a token. Deleting an unknown token yields
// storage.ErrTokenNotFound.
func (s *Store) DeleteToken(ctx context.Context, kind storage.TokenKind, token string) error {
	key := s.tokenKey(kind, token)

	removed, err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if removed == 0 {
		return storage.ErrTokenNotFound
	}

	s.logger.Debug("Deleted token", "kind", kind)
	return nil
}

// TokenExists reports whether a token string is already taken
func (s *Store) TokenExists(ctx context.Context, kind storage.TokenKind, token string) (bool, error) {
	key := s.tokenKey(kind, token)

	count, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check token existence: %w", err)
	}
	return count > 0, nil
}

// PurgeExpiredTokens is a no-op for Valkey: key TTLs expire tokens natively.
func (s *Store) PurgeExpiredTokens(ctx context.Context, kind storage.TokenKind) (int, error) {
	return 0, nil
}

// ============================================================
// Encryption at rest
// ============================================================

// encryptOwner returns a copy of the token with the owner reference
// encrypted, leaving the original unchanged.
func (s *Store) encryptOwner(token *storage.Token) (*storage.Token, error) {
	enc := s.getEncryptor()
	if !enc.IsEnabled() || token.OwnerID == "" {
		return token, nil
	}

	encrypted, err := enc.Encrypt(token.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt owner reference: %w", err)
	}

	clone := *token
	clone.OwnerID = encrypted
	return &clone, nil
}

func (s *Store) decryptOwner(token *storage.Token) (*storage.Token, error) {
	enc := s.getEncryptor()
	if !enc.IsEnabled() || token.OwnerID == "" {
		return token, nil
	}

	decrypted, err := enc.Decrypt(token.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt owner reference: %w", err)
	}

	clone := *token
	clone.OwnerID = decrypted
	return &clone, nil
}
