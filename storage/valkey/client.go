package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/giantswarm/oauth2-server/storage"
)

// ============================================================
// ClientStore Implementation
// ============================================================

// clientJSON is the JSON representation of a registered client
type clientJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	SecretHash   string    `json:"secret_hash,omitempty"`
	RedirectURIs []string  `json:"redirect_uris,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toClientJSON(c *storage.Client) *clientJSON {
	return &clientJSON{
		ID:           c.ID,
		Name:         c.Name,
		SecretHash:   c.SecretHash,
		RedirectURIs: c.RedirectURIs,
		Scopes:       c.Scopes,
		CreatedAt:    c.CreatedAt,
	}
}

func fromClientJSON(j *clientJSON) *storage.Client {
	return &storage.Client{
		ID:           j.ID,
		Name:         j.Name,
		SecretHash:   j.SecretHash,
		RedirectURIs: j.RedirectURIs,
		Scopes:       j.Scopes,
		CreatedAt:    j.CreatedAt,
	}
}

// GetClient retrieves a client by ID
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	key := s.clientKey(clientID)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	var j clientJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return fromClientJSON(&j), nil
}

// SaveClient persists a newly registered client. ID uniqueness is enforced
// atomically with SET NX; a taken ID yields storage.ErrClientExists.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil {
		return fmt.Errorf("client cannot be nil")
	}
	if client.ID == "" {
		return fmt.Errorf("client ID cannot be empty")
	}
	if err := validateStringLength(client.ID, MaxIDLength, "clientID"); err != nil {
		return err
	}

	data, err := json.Marshal(toClientJSON(client))
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}
	if len(data) > MaxDataSize {
		return errInputTooLarge
	}

	key := s.clientKey(client.ID)

	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Nx().Build()).Error(); err != nil {
		if isNilError(err) {
			return storage.ErrClientExists
		}
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ID)
	return nil
}

// ClientIDExists reports whether a client ID is already registered
func (s *Store) ClientIDExists(ctx context.Context, clientID string) (bool, error) {
	key := s.clientKey(clientID)

	count, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check client existence: %w", err)
	}
	return count > 0, nil
}

// ============================================================
// ScopeStore Implementation
// ============================================================

// scopeJSON is the JSON representation of a registered scope
type scopeJSON struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default,omitempty"`
}

func toScopeJSON(sc *storage.Scope) *scopeJSON {
	return &scopeJSON{
		ID:          sc.ID,
		Name:        sc.Name,
		Description: sc.Description,
		IsDefault:   sc.IsDefault,
	}
}

func fromScopeJSON(j *scopeJSON) *storage.Scope {
	return &storage.Scope{
		ID:          j.ID,
		Name:        j.Name,
		Description: j.Description,
		IsDefault:   j.IsDefault,
	}
}

// SaveScope registers a scope. Name uniqueness is enforced atomically with
// SET NX; a taken name yields storage.ErrScopeExists.
func (s *Store) SaveScope(ctx context.Context, scope *storage.Scope) error {
	if scope == nil {
		return fmt.Errorf("scope cannot be nil")
	}
	if scope.Name == "" {
		return fmt.Errorf("scope name cannot be empty")
	}
	if err := validateStringLength(scope.Name, MaxIDLength, "scope name"); err != nil {
		return err
	}

	data, err := json.Marshal(toScopeJSON(scope))
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	key := s.scopeKey(scope.Name)

	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(string(data)).Nx().Build()).Error(); err != nil {
		if isNilError(err) {
			return storage.ErrScopeExists
		}
		return fmt.Errorf("failed to save scope: %w", err)
	}

	s.logger.Debug("Saved scope", "name", scope.Name)
	return nil
}

// FindAllScopes returns every registered scope
func (s *Store) FindAllScopes(ctx context.Context) ([]*storage.Scope, error) {
	// Use SCAN to iterate over all scope keys
	pattern := s.scopeKey("*")

	// Use a map to deduplicate results (SCAN can return duplicates across iterations)
	scopeMap := make(map[string]*storage.Scope)

	var cursor uint64
	for {
		result, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(pattern).Count(scanBatchSize).Build(),
		).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan scopes: %w", err)
		}

		for _, key := range result.Elements {
			if _, exists := scopeMap[key]; exists {
				continue
			}

			data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
			if err != nil {
				if isNilError(err) {
					continue // Key may have been deleted between SCAN and GET
				}
				return nil, fmt.Errorf("failed to get scope %s: %w", key, err)
			}

			var j scopeJSON
			if err := json.Unmarshal([]byte(data), &j); err != nil {
				s.logger.Warn("Failed to unmarshal scope, skipping",
					"key", key,
					"error", err)
				continue
			}

			scopeMap[key] = fromScopeJSON(&j)
		}

		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}

	scopes := make([]*storage.Scope, 0, len(scopeMap))
	for _, sc := range scopeMap {
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

// FindDefaultScopes returns the scopes marked as defaults
func (s *Store) FindDefaultScopes(ctx context.Context) ([]*storage.Scope, error) {
	all, err := s.FindAllScopes(ctx)
	if err != nil {
		return nil, err
	}

	var defaults []*storage.Scope
	for _, sc := range all {
		if sc.IsDefault {
			defaults = append(defaults, sc)
		}
	}
	return defaults, nil
}
